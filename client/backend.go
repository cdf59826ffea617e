package client

import (
	"context"
	"fmt"

	"github.com/cashierlink/link-sdk-go/types"
)

// 后端 RPC 方法名
const (
	MethodCreateLink       = "create_link"
	MethodUpdateLink       = "update_link"
	MethodProcessAction    = "process_action"
	MethodUpdateAction     = "update_action"
	MethodGetLinkUserState = "get_link_user_state"
)

// LinkUpdateAction update_link 的推进方向
type LinkUpdateAction string

// LinkUpdateContinue 推进到下一状态，后退只在本地草稿内进行
const LinkUpdateContinue LinkUpdateAction = "Continue"

// LinkPatch update_link 的载荷
//
// 字段为 nil 表示不修改
type LinkPatch struct {
	Action      LinkUpdateAction  `json:"action"`
	Title       *string           `json:"title,omitempty"`
	Description *string           `json:"description,omitempty"`
	Assets      []types.AssetInfo `json:"asset_info,omitempty"`
	MaxUseCount *uint64           `json:"link_use_action_max_count,omitempty"`
}

// CreateLinkRequest create_link 参数
type CreateLinkRequest struct {
	ID       string         `json:"id,omitempty"` // 本地草稿 ID，后端可以沿用
	LinkType types.LinkType `json:"link_type"`
}

// ProcessActionRequest process_action 参数
type ProcessActionRequest struct {
	LinkID     string           `json:"link_id"`
	ActionType types.ActionType `json:"action_type"`
	ActionID   string           `json:"action_id,omitempty"`
}

// UpdateActionRequest update_action 参数
type UpdateActionRequest struct {
	ActionID string `json:"action_id"`
	LinkID   string `json:"link_id"`
	External bool   `json:"external"`
}

// LinkUserStateRequest get_link_user_state 参数
type LinkUserStateRequest struct {
	LinkID          string           `json:"link_id"`
	ActionType      types.ActionType `json:"action_type"`
	AnonymousWallet string           `json:"anonymous_wallet_address,omitempty"`
}

// BackendClient 链接后端的类型化 RPC 封装
type BackendClient interface {
	// CreateLink 创建链接草稿
	CreateLink(ctx context.Context, req *CreateLinkRequest) (*types.Link, error)

	// UpdateLink 修改链接并按 patch.Action 推进或回退状态
	UpdateLink(ctx context.Context, linkID string, patch *LinkPatch) (*types.Link, error)

	// ProcessAction 创建或继续一个 Action
	ProcessAction(ctx context.Context, req *ProcessActionRequest) (*types.Action, error)

	// UpdateAction 通知后端批量调用已结束，返回对账后的 Action
	UpdateAction(ctx context.Context, req *UpdateActionRequest) (*types.Action, error)

	// GetLinkUserState 领取方的状态
	GetLinkUserState(ctx context.Context, req *LinkUserStateRequest) (*types.LinkUserStateResult, error)

	Close() error
}

// backendClientImpl BackendClient 实现
type backendClientImpl struct {
	client Client
}

// NewBackendClient 按配置创建后端客户端
func NewBackendClient(config *Config) (BackendClient, error) {
	c, err := NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &backendClientImpl{client: c}, nil
}

// NewBackendClientFromClient 从现有 Client 创建
func NewBackendClientFromClient(c Client) BackendClient {
	return &backendClientImpl{client: c}
}

func (b *backendClientImpl) CreateLink(ctx context.Context, req *CreateLinkRequest) (*types.Link, error) {
	if req == nil || !req.LinkType.Valid() {
		return nil, invalidParams(MethodCreateLink, "valid link_type is required")
	}

	var link types.Link
	if err := CallInto(ctx, b.client, MethodCreateLink, req, &link); err != nil {
		return nil, wrapBackendError(MethodCreateLink, err)
	}
	return &link, nil
}

func (b *backendClientImpl) UpdateLink(ctx context.Context, linkID string, patch *LinkPatch) (*types.Link, error) {
	if linkID == "" {
		return nil, invalidParams(MethodUpdateLink, "link id is required")
	}
	// 拷贝后再补默认值，不改动调用方的 patch
	var p LinkPatch
	if patch != nil {
		p = *patch
	}
	if p.Action == "" {
		p.Action = LinkUpdateContinue
	}

	params := struct {
		ID string `json:"id"`
		*LinkPatch
	}{ID: linkID, LinkPatch: &p}

	var link types.Link
	if err := CallInto(ctx, b.client, MethodUpdateLink, params, &link); err != nil {
		return nil, wrapBackendError(MethodUpdateLink, err)
	}
	return &link, nil
}

func (b *backendClientImpl) ProcessAction(ctx context.Context, req *ProcessActionRequest) (*types.Action, error) {
	if req == nil || req.LinkID == "" || req.ActionType == "" {
		return nil, invalidParams(MethodProcessAction, "link_id and action_type are required")
	}

	var action types.Action
	if err := CallInto(ctx, b.client, MethodProcessAction, req, &action); err != nil {
		return nil, wrapBackendError(MethodProcessAction, err)
	}
	return &action, nil
}

func (b *backendClientImpl) UpdateAction(ctx context.Context, req *UpdateActionRequest) (*types.Action, error) {
	if req == nil || req.ActionID == "" || req.LinkID == "" {
		return nil, invalidParams(MethodUpdateAction, "action_id and link_id are required")
	}

	var action types.Action
	if err := CallInto(ctx, b.client, MethodUpdateAction, req, &action); err != nil {
		return nil, wrapBackendError(MethodUpdateAction, err)
	}
	return &action, nil
}

func (b *backendClientImpl) GetLinkUserState(ctx context.Context, req *LinkUserStateRequest) (*types.LinkUserStateResult, error) {
	if req == nil || req.LinkID == "" {
		return nil, invalidParams(MethodGetLinkUserState, "link_id is required")
	}

	var result types.LinkUserStateResult
	if err := CallInto(ctx, b.client, MethodGetLinkUserState, req, &result); err != nil {
		return nil, wrapBackendError(MethodGetLinkUserState, err)
	}
	return &result, nil
}

func (b *backendClientImpl) Close() error {
	return b.client.Close()
}
