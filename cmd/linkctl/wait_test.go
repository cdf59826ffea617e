package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/types"
)

// scriptedBackend 依次返回 states，用完后重复最后一个
type scriptedBackend struct {
	client.BackendClient
	states []types.ActionState
	calls  atomic.Int32
}

func (b *scriptedBackend) GetLinkUserState(_ context.Context, req *client.LinkUserStateRequest) (*types.LinkUserStateResult, error) {
	i := int(b.calls.Add(1)) - 1
	if i >= len(b.states) {
		i = len(b.states) - 1
	}
	return &types.LinkUserStateResult{Action: &types.Action{ID: "action-1", State: b.states[i]}}, nil
}

func TestWaitSettled(t *testing.T) {
	req := &client.LinkUserStateRequest{LinkID: testLinkID, ActionType: types.ActionTypeReceive}
	svc := &services.Config{PollInterval: 2 * time.Millisecond, IdleTimeout: 200 * time.Millisecond}

	t.Run("settles", func(t *testing.T) {
		backend := &scriptedBackend{states: []types.ActionState{
			types.ActionStateProcessing, types.ActionStateProcessing, types.ActionStateSuccess,
		}}
		res, err := waitSettled(context.Background(), backend, req, "2vxsx-fae", svc, nil)
		require.NoError(t, err)
		assert.Equal(t, types.ActionStateSuccess, res.Action.State)
		assert.GreaterOrEqual(t, backend.calls.Load(), int32(3))
	})

	t.Run("gives up after idle timeout", func(t *testing.T) {
		backend := &scriptedBackend{states: []types.ActionState{types.ActionStateProcessing}}
		idle := &services.Config{PollInterval: 2 * time.Millisecond, IdleTimeout: 20 * time.Millisecond}

		start := time.Now()
		_, err := waitSettled(context.Background(), backend, req, "2vxsx-fae", idle, nil)
		assert.ErrorIs(t, err, errIdle)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("caller cancel", func(t *testing.T) {
		backend := &scriptedBackend{states: []types.ActionState{types.ActionStateProcessing}}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := waitSettled(ctx, backend, req, "2vxsx-fae", svc, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, errIdle)
	})
}

func TestSettled(t *testing.T) {
	tests := []struct {
		name string
		res  *types.LinkUserStateResult
		want bool
	}{
		{"nil", nil, false},
		{"completed", &types.LinkUserStateResult{LinkUserState: types.LinkUserStateCompleted}, true},
		{"choose wallet", &types.LinkUserStateResult{LinkUserState: types.LinkUserStateChooseWallet}, false},
		{"processing", &types.LinkUserStateResult{Action: &types.Action{State: types.ActionStateProcessing}}, false},
		{"failed", &types.LinkUserStateResult{Action: &types.Action{State: types.ActionStateFail}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settled(tt.res))
		})
	}
}
