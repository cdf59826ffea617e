package link

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/types"
)

// BalanceProvider 余额查询，token.Oracle 即满足
type BalanceProvider interface {
	GetBalance(ctx context.Context, owner types.Wallet, address string) (*big.Int, error)
}

// Option Machine 选项
type Option func(*Machine)

// WithConfig 设置业务配置
func WithConfig(cfg *services.Config) Option {
	return func(m *Machine) { m.cfg = cfg.WithDefaults() }
}

// WithFeeService 设置手续费服务（用于代币精度和符号）
func WithFeeService(svc *fee.Service) Option {
	return func(m *Machine) { m.fees = svc }
}

// WithBalanceProvider 启用创建者余额校验
func WithBalanceProvider(p BalanceProvider, creator types.Wallet) Option {
	return func(m *Machine) {
		m.balances = p
		m.creator = creator
	}
}

// WithLogger 设置日志器
func WithLogger(l client.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// Machine 单个链接的创建状态机
//
// 状态保存在 Store 中，Machine 只负责校验和迁移。任何失败都不修改快照。
type Machine struct {
	mu       sync.Mutex
	id       string
	store    *Store
	backend  client.BackendClient
	fees     *fee.Service
	balances BalanceProvider
	creator  types.Wallet
	cfg      *services.Config
	logger   client.Logger

	// create_link 已成功但后续步骤失败时，重试跳过创建
	created bool
}

func newMachine(store *Store, backend client.BackendClient, id string, opts []Option) *Machine {
	m := &Machine{
		id:      id,
		store:   store,
		backend: backend,
		cfg:     services.DefaultConfig(),
		logger:  client.NopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fees == nil {
		m.fees = fee.NewService(nil, m.cfg, m.logger)
	}
	return m
}

// NewDraft 创建新的链接草稿，ID 为本地生成的 UUID
func NewDraft(store *Store, backend client.BackendClient, opts ...Option) *Machine {
	m := newMachine(store, backend, uuid.NewString(), opts)
	store.Put(Snapshot{
		Step: StepChooseLinkType,
		Link: types.Link{
			ID:          m.id,
			State:       types.LinkStateChooseLinkType,
			Creator:     m.creator.Address,
			MaxUseCount: 1,
			CreatedAt:   time.Now().UTC(),
		},
	})
	return m
}

// FromLink 以后端返回的链接恢复状态机
func FromLink(store *Store, backend client.BackendClient, l types.Link, opts ...Option) (*Machine, error) {
	step, err := StepForState(l.State)
	if err != nil {
		return nil, err
	}
	m := newMachine(store, backend, l.ID, opts)
	m.created = true
	store.Put(Snapshot{Step: step, Link: l, Confirmed: true})
	return m, nil
}

// Resume 绑定到仓库中已有的快照
func Resume(store *Store, backend client.BackendClient, linkID string, opts ...Option) (*Machine, error) {
	snap, ok := store.Get(linkID)
	if !ok {
		return nil, fmt.Errorf("link %s not found in store", linkID)
	}
	m := newMachine(store, backend, linkID, opts)
	m.created = snap.Confirmed
	return m, nil
}

// ID 链接 ID
func (m *Machine) ID() string {
	return m.id
}

// Snapshot 当前快照
func (m *Machine) Snapshot() Snapshot {
	snap, _ := m.store.Get(m.id)
	return snap
}

// Subscribe 订阅快照替换
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	return m.store.Subscribe(m.id)
}

// SetLinkType 设置链接类型，仅在 ChooseLinkType
func (m *Machine) SetLinkType(t types.LinkType) (Snapshot, error) {
	if !t.Valid() {
		return m.Snapshot(), types.NewValidationError(types.ValidationMissingLinkType, "link_type", "unknown link type %q", t)
	}
	return m.edit(StepChooseLinkType, func(l *types.Link) error {
		l.LinkType = t
		for i := range l.Assets {
			l.Assets[i].Label = t.AssetLabel()
		}
		return nil
	})
}

// SetDetails 设置标题和描述，仅在 ChooseLinkType
func (m *Machine) SetDetails(title, description string) (Snapshot, error) {
	return m.edit(StepChooseLinkType, func(l *types.Link) error {
		l.Title = title
		l.Description = description
		return nil
	})
}

// SetAssets 整体替换资产列表，仅在 AddAsset；未填标签的按链接类型补齐
func (m *Machine) SetAssets(assets []types.AssetInfo) (Snapshot, error) {
	return m.edit(StepAddAsset, func(l *types.Link) error {
		l.Assets = make([]types.AssetInfo, len(assets))
		for i, a := range assets {
			l.Assets[i] = a.Clone()
			if l.Assets[i].Label == "" {
				l.Assets[i].Label = l.LinkType.AssetLabel()
			}
		}
		return nil
	})
}

// SetMaxUse 设置最大使用次数，仅在 AddAsset
func (m *Machine) SetMaxUse(n uint64) (Snapshot, error) {
	return m.edit(StepAddAsset, func(l *types.Link) error {
		l.MaxUseCount = n
		return nil
	})
}

// AttachAction 用执行引擎对账后的 Action 替换快照中的 Action
func (m *Machine) AttachAction(action types.Action) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Update(m.id, func(cur Snapshot, ok bool) (Snapshot, error) {
		if !ok {
			return cur, fmt.Errorf("link %s not found in store", m.id)
		}
		if cur.Step != StepCreateLink {
			return cur, wrongStep(cur.Step, StepCreateLink)
		}
		if cur.Action != nil && cur.Action.ID != action.ID {
			return cur, fmt.Errorf("action %s does not belong to link %s", action.ID, m.id)
		}
		a := action.Clone()
		cur.Action = &a
		return cur, nil
	})
}

// GoBack 回到上一步，不校验、不失败
func (m *Machine) GoBack() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Update(m.id, func(cur Snapshot, ok bool) (Snapshot, error) {
		prev := cur.Step.Prev()
		if !ok || prev == cur.Step {
			return cur, errNoop
		}
		cur.Step = prev
		cur.Link.State = prev.LinkState()
		return cur, nil
	})
	if err != nil {
		return m.Snapshot()
	}
	return snap
}

// GoNext 校验当前步骤并前进
func (m *Machine) GoNext(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.store.Get(m.id)
	if !ok {
		return Snapshot{}, fmt.Errorf("link %s not found in store", m.id)
	}

	var next Snapshot
	var err error
	switch cur.Step {
	case StepChooseLinkType:
		next, err = m.nextFromChooseLinkType(cur)
	case StepAddAsset:
		next, err = m.nextFromAddAsset(ctx, cur)
	case StepPreview:
		next, err = m.nextFromPreview(ctx, cur)
	case StepCreateLink:
		next, err = m.nextFromCreateLink(ctx, cur)
	case StepActive:
		next, err = m.nextFromActive(ctx, cur)
	case StepInactive:
		err = types.NewValidationError(types.ValidationWrongStep, "step", "link is inactive, no further steps")
	default:
		err = fmt.Errorf("unknown step %s", cur.Step)
	}
	if err != nil {
		m.logger.Debug("Link transition rejected", "link", m.id, "step", cur.Step.String(), "error", err)
		return cur, err
	}

	// 网络调用期间快照可能被替换（例如 AttachAction），以版本号判断
	snap, err := m.store.Update(m.id, func(latest Snapshot, ok bool) (Snapshot, error) {
		if !ok || latest.Version != cur.Version {
			return latest, fmt.Errorf("link %s changed during transition", m.id)
		}
		return next, nil
	})
	if err != nil {
		return cur, err
	}
	m.logger.Info("Link transitioned", "link", m.id, "from", cur.Step.String(), "to", snap.Step.String())
	return snap, nil
}

func (m *Machine) nextFromChooseLinkType(cur Snapshot) (Snapshot, error) {
	if err := validateDetails(cur.Link); err != nil {
		return cur, err
	}
	cur.Step = StepAddAsset
	cur.Link.State = types.LinkStateAddAssets
	return cur, nil
}

func (m *Machine) nextFromAddAsset(ctx context.Context, cur Snapshot) (Snapshot, error) {
	if err := validateAssetList(cur.Link); err != nil {
		return cur, err
	}
	l := cur.Link
	if err := normalizeMaxUse(&l); err != nil {
		return cur, err
	}
	if err := m.validateAirdropTotal(ctx, l); err != nil {
		return cur, err
	}
	if err := m.validateBalances(ctx, l); err != nil {
		return cur, err
	}
	cur.Link = l
	cur.Step = StepPreview
	cur.Link.State = types.LinkStatePreview
	return cur, nil
}

// nextFromPreview 持久化草稿并创建 CreateLink Action
func (m *Machine) nextFromPreview(ctx context.Context, cur Snapshot) (Snapshot, error) {
	if m.backend == nil {
		return cur, fmt.Errorf("backend client is not configured")
	}

	if !cur.Confirmed && !m.created {
		created, err := m.backend.CreateLink(ctx, &client.CreateLinkRequest{ID: cur.Link.ID, LinkType: cur.Link.LinkType})
		if err != nil {
			return cur, fmt.Errorf("create link: %w", err)
		}
		if created.ID != cur.Link.ID {
			return cur, fmt.Errorf("backend assigned link id %s, draft id %s", created.ID, cur.Link.ID)
		}
		m.created = true
	}

	title, description, maxUse := cur.Link.Title, cur.Link.Description, cur.Link.MaxUseCount
	updated, err := m.backend.UpdateLink(ctx, cur.Link.ID, &client.LinkPatch{
		Action:      client.LinkUpdateContinue,
		Title:       &title,
		Description: &description,
		Assets:      cur.Link.Assets,
		MaxUseCount: &maxUse,
	})
	if err != nil {
		return cur, fmt.Errorf("update link: %w", err)
	}

	action, err := m.backend.ProcessAction(ctx, &client.ProcessActionRequest{
		LinkID:     cur.Link.ID,
		ActionType: types.ActionTypeCreateLink,
	})
	if err != nil {
		return cur, fmt.Errorf("process action: %w", err)
	}

	cur.Link = *updated
	if cur.Link.State == "" {
		cur.Link.State = types.LinkStateCreateLink
	}
	cur.Step = StepCreateLink
	cur.Action = action
	cur.Confirmed = true
	return cur, nil
}

// nextFromCreateLink Action 全部成功后由后端激活链接
func (m *Machine) nextFromCreateLink(ctx context.Context, cur Snapshot) (Snapshot, error) {
	if cur.Action == nil || !cur.Action.AllSucceeded() {
		return cur, types.NewValidationError(types.ValidationActionNotSettled, "action",
			"create link action has not succeeded yet")
	}

	updated, err := m.backend.UpdateLink(ctx, cur.Link.ID, &client.LinkPatch{Action: client.LinkUpdateContinue})
	if err != nil {
		return cur, fmt.Errorf("activate link: %w", err)
	}
	if updated.State != types.LinkStateActive {
		return cur, fmt.Errorf("backend returned link state %s, want %s", updated.State, types.LinkStateActive)
	}

	cur.Link = *updated
	cur.Step = StepActive
	return cur, nil
}

// nextFromActive 结束链接
func (m *Machine) nextFromActive(ctx context.Context, cur Snapshot) (Snapshot, error) {
	updated, err := m.backend.UpdateLink(ctx, cur.Link.ID, &client.LinkPatch{Action: client.LinkUpdateContinue})
	if err != nil {
		return cur, fmt.Errorf("deactivate link: %w", err)
	}
	if updated.State != types.LinkStateInactive && updated.State != types.LinkStateInactiveEnded {
		return cur, fmt.Errorf("backend returned link state %s, want %s", updated.State, types.LinkStateInactive)
	}

	cur.Link = *updated
	cur.Step = StepInactive
	return cur, nil
}

// edit 在指定步骤内修改草稿
func (m *Machine) edit(step Step, fn func(l *types.Link) error) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, err := m.store.Update(m.id, func(cur Snapshot, ok bool) (Snapshot, error) {
		if !ok {
			return cur, fmt.Errorf("link %s not found in store", m.id)
		}
		if cur.Step != step {
			return cur, wrongStep(cur.Step, step)
		}
		if err := fn(&cur.Link); err != nil {
			return cur, err
		}
		return cur, nil
	})
	if err != nil {
		return m.Snapshot(), err
	}
	return snap, nil
}

var errNoop = fmt.Errorf("no-op")

func wrongStep(cur, want Step) error {
	return types.NewValidationError(types.ValidationWrongStep, "step", "operation requires step %s, link is at %s", want, cur)
}
