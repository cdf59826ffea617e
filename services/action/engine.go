package action

import (
	"errors"
	"sync"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/signer"
	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/utils"
)

var (
	// ErrSignerUnavailable 没有已连接的签名器，引擎处于降级模式
	ErrSignerUnavailable = errors.New("signer unavailable")

	// ErrExecuteInFlight 同一会话的 Execute 正在执行
	ErrExecuteInFlight = errors.New("execute already in flight")

	// ErrUnexpectedTreasury 向 treasury 付费的 Intent 收款方不是配置的 treasury canister
	ErrUnexpectedTreasury = errors.New("treasury intent pays an unexpected account")
)

// AccountProvider 当前已认证账户
type AccountProvider interface {
	// Account 未认证时返回 false
	Account() (types.Wallet, bool)
}

// AccountFunc 函数适配 AccountProvider
type AccountFunc func() (types.Wallet, bool)

// Account 实现 AccountProvider
func (f AccountFunc) Account() (types.Wallet, bool) {
	return f()
}

// StaticAccount 固定账户，Address 为空视为未认证
func StaticAccount(w types.Wallet) AccountProvider {
	return AccountFunc(func() (types.Wallet, bool) {
		return w, w.Address != ""
	})
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithValidation 批量调用的校验目标
func WithValidation(v *signer.ValidationTarget) EngineOption {
	return func(e *Engine) { e.validation = v }
}

// WithTreasury 提交前检查 TransferWalletToTreasury 的收款方，空字符串不检查
func WithTreasury(canisterID string) EngineOption {
	return func(e *Engine) { e.treasury = canisterID }
}

// WithLogger 设置日志器
func WithLogger(l client.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// Engine 批量执行引擎，按链接 ID 管理会话
type Engine struct {
	backend    client.BackendClient
	accounts   AccountProvider
	validation *signer.ValidationTarget
	treasury   string
	logger     client.Logger
	metrics    *Metrics

	mu        sync.RWMutex
	transport signer.Transport
	sessions  map[string]*Session

	actions *utils.SnapshotStore[string, types.Action]
}

// NewEngine 创建引擎，未 Initialize 前处于降级模式
func NewEngine(backend client.BackendClient, accounts AccountProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		backend:  backend,
		accounts: accounts,
		logger:   client.NopLogger{},
		sessions: make(map[string]*Session),
		actions:  utils.NewSnapshotStore[string, types.Action](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize 绑定当前已连接的签名器
//
// 没有签名器时返回 ErrSignerUnavailable，引擎仍可使用，但无法执行带批量请求的 Action。
func (e *Engine) Initialize(connector signer.Connector) error {
	var t signer.Transport
	ok := false
	if connector != nil {
		t, ok = connector.Connected()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok || t == nil {
		e.transport = nil
		e.logger.Warn("No signer connected, engine running in degraded mode")
		return ErrSignerUnavailable
	}
	e.transport = t
	return nil
}

// Degraded 是否处于降级模式
func (e *Engine) Degraded() bool {
	return e.currentTransport() == nil
}

func (e *Engine) currentTransport() signer.Transport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.transport
}

// Open 为链接打开会话；已有会话时替换其 Action
func (e *Engine) Open(linkID string, action types.Action) *Session {
	e.mu.Lock()
	s, ok := e.sessions[linkID]
	if !ok {
		s = &Session{engine: e, linkID: linkID}
		e.sessions[linkID] = s
	}
	e.mu.Unlock()

	e.actions.Put(linkID, action.Clone())
	return s
}

// Session 查找会话
func (e *Engine) Session(linkID string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[linkID]
	return s, ok
}

// Close 关闭会话并结束订阅
func (e *Engine) Close(linkID string) {
	e.mu.Lock()
	delete(e.sessions, linkID)
	e.mu.Unlock()
	e.actions.Delete(linkID)
}
