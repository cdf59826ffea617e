package session

import (
	"context"
	"sync"
	"time"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/types"
)

// DefaultPollInterval interval 非正时使用的轮询间隔
const DefaultPollInterval = 5 * time.Second

// PollFunc 单次轮询
type PollFunc func(ctx context.Context) error

// Poller 周期性刷新，必须成对调用 Start/Stop
type Poller struct {
	interval time.Duration
	poll     PollFunc
	logger   client.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller 创建轮询器，logger 可为 nil；interval 非正时使用 DefaultPollInterval
func NewPoller(interval time.Duration, poll PollFunc, logger client.Logger) *Poller {
	if logger == nil {
		logger = client.NopLogger{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		interval: interval,
		poll:     poll,
		logger:   logger,
	}
}

// Start 立即轮询一次，之后每个 interval 轮询一次；已在运行时返回 false
func (p *Poller) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.loop(ctx, done)
	return true
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("Poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop 停止轮询并等待当前轮询结束，可重复调用
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Interval 实际使用的轮询间隔
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Running 是否在运行
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// NewLinkUserStatePoller 轮询领取方视角的链接状态
func NewLinkUserStatePoller(
	backend client.BackendClient,
	req *client.LinkUserStateRequest,
	interval time.Duration,
	onUpdate func(*types.LinkUserStateResult),
	logger client.Logger,
) *Poller {
	return NewPoller(interval, func(ctx context.Context) error {
		res, err := backend.GetLinkUserState(ctx, req)
		if err != nil {
			return err
		}
		if onUpdate != nil {
			onUpdate(res)
		}
		return nil
	}, logger)
}
