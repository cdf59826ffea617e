package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cashierlink/link-sdk-go/client"
)

// DefaultIdleTimeout timeout 非正时使用的空闲超时
const DefaultIdleTimeout = 30 * time.Minute

// IdleTracker 按 principal 计算空闲超时（滑动窗口）
//
// 每次 Touch 都会重新开始计时，超过 timeout 未活动即视为过期。
type IdleTracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	lastSeen map[string]time.Time
	now      func() time.Time
	onExpire func(principal string)
	logger   client.Logger
}

// IdleOption IdleTracker 选项
type IdleOption func(*IdleTracker)

// WithClock 替换时钟
func WithClock(now func() time.Time) IdleOption {
	return func(t *IdleTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIdleLogger 设置日志
func WithIdleLogger(l client.Logger) IdleOption {
	return func(t *IdleTracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewIdleTracker 创建空闲跟踪器，onExpire 在 Run 中对每个过期 principal 调用，可为 nil
//
// timeout 非正时使用 DefaultIdleTimeout。
func NewIdleTracker(timeout time.Duration, onExpire func(principal string), opts ...IdleOption) *IdleTracker {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	t := &IdleTracker{
		timeout:  timeout,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
		onExpire: onExpire,
		logger:   client.NopLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Touch 记录一次活动
func (t *IdleTracker) Touch(principal string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[principal] = t.now()
}

// Forget 停止跟踪（主动断开）
func (t *IdleTracker) Forget(principal string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSeen, principal)
}

// Expired 是否已过期；未跟踪的 principal 不算过期
func (t *IdleTracker) Expired(principal string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastSeen[principal]
	return ok && t.now().Sub(last) >= t.timeout
}

// Remaining 距离过期的剩余时间
func (t *IdleTracker) Remaining(principal string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastSeen[principal]
	if !ok {
		return 0, false
	}
	left := t.timeout - t.now().Sub(last)
	if left < 0 {
		left = 0
	}
	return left, true
}

// Sweep 移除并返回所有过期的 principal（按字典序）
func (t *IdleTracker) Sweep() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var expired []string
	for p, last := range t.lastSeen {
		if now.Sub(last) >= t.timeout {
			expired = append(expired, p)
			delete(t.lastSeen, p)
		}
	}
	sort.Strings(expired)
	return expired
}

// Run 周期性 Sweep 并回调 onExpire，直到 ctx 结束；interval 非正时按 timeout 扫描
func (t *IdleTracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = t.timeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range t.Sweep() {
				t.logger.Info("Session idle timeout, disconnecting", "principal", p)
				if t.onExpire != nil {
					t.onExpire(p)
				}
			}
		}
	}
}
