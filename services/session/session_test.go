package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestIdleTracker_SlidingWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewIdleTracker(30*time.Minute, nil, WithClock(clock.Now))

	assert.False(t, tr.Expired("alice"), "untracked principal")

	tr.Touch("alice")
	clock.Advance(20 * time.Minute)
	assert.False(t, tr.Expired("alice"))

	tr.Touch("alice")
	clock.Advance(20 * time.Minute)
	assert.False(t, tr.Expired("alice"), "touch restarts the window")

	left, ok := tr.Remaining("alice")
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, left)

	clock.Advance(10 * time.Minute)
	assert.True(t, tr.Expired("alice"))
}

func TestIdleTracker_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewIdleTracker(time.Minute, nil, WithClock(clock.Now))

	tr.Touch("bob")
	tr.Touch("alice")
	clock.Advance(30 * time.Second)
	tr.Touch("carol")
	clock.Advance(40 * time.Second)

	assert.Equal(t, []string{"alice", "bob"}, tr.Sweep())
	assert.Empty(t, tr.Sweep())
	assert.False(t, tr.Expired("alice"))

	tr.Forget("carol")
	_, ok := tr.Remaining("carol")
	assert.False(t, ok)
}

func TestIdleTracker_Run(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	expired := make(chan string, 4)
	tr := NewIdleTracker(time.Minute, func(p string) { expired <- p }, WithClock(clock.Now))

	tr.Touch("alice")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, time.Millisecond)
		close(done)
	}()

	select {
	case p := <-expired:
		assert.Equal(t, "alice", p)
	case <-time.After(time.Second):
		t.Fatal("expected idle disconnect")
	}

	cancel()
	<-done
}

func TestNonPositiveIntervals(t *testing.T) {
	p := NewPoller(0, func(context.Context) error { return nil }, nil)
	assert.Equal(t, DefaultPollInterval, p.Interval())
	assert.True(t, p.Start(context.Background()))
	p.Stop()

	lp := NewLinkUserStatePoller(&userStateBackend{}, &client.LinkUserStateRequest{LinkID: "link-1"}, -time.Second, nil, nil)
	assert.Equal(t, DefaultPollInterval, lp.Interval())

	tr := NewIdleTracker(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx, 0)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

func TestPoller_StartStop(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, nil)

	assert.True(t, p.Start(context.Background()))
	assert.False(t, p.Start(context.Background()), "already running")
	assert.True(t, p.Running())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())

	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no polls after Stop returns")

	assert.True(t, p.Start(context.Background()), "restartable")
	p.Stop()
}

func TestPoller_ErrorsDoNotStopLoop(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("backend unavailable")
	}, nil)

	p.Start(context.Background())
	defer p.Stop()
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
}

type userStateBackend struct {
	client.BackendClient
	calls atomic.Int32
}

func (b *userStateBackend) GetLinkUserState(_ context.Context, req *client.LinkUserStateRequest) (*types.LinkUserStateResult, error) {
	if b.calls.Add(1) < 2 {
		return &types.LinkUserStateResult{LinkUserState: types.LinkUserStateChooseWallet}, nil
	}
	return &types.LinkUserStateResult{LinkUserState: types.LinkUserStateCompleted}, nil
}

func TestLinkUserStatePoller(t *testing.T) {
	backend := &userStateBackend{}
	updates := make(chan types.LinkUserState, 16)

	p := NewLinkUserStatePoller(backend, &client.LinkUserStateRequest{LinkID: "link-1", ActionType: types.ActionTypeReceive},
		time.Millisecond, func(r *types.LinkUserStateResult) {
			select {
			case updates <- r.LinkUserState:
			default:
			}
		}, nil)

	p.Start(context.Background())
	defer p.Stop()

	assert.Equal(t, types.LinkUserStateChooseWallet, <-updates)
	assert.Equal(t, types.LinkUserStateCompleted, <-updates)
}
