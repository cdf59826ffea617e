package types

import (
	"math/big"
	"time"
)

// Chain 资产所在链
type Chain string

const (
	ChainIC Chain = "IC"
)

// Asset 链上代币引用（链 + 账本地址）
//
// 值类型，可直接用 == 比较
type Asset struct {
	Chain   Chain  `json:"chain"`
	Address string `json:"address"`
}

// Equal 结构相等
func (a Asset) Equal(other Asset) bool {
	return a == other
}

// String 返回 "chain:address" 形式
func (a Asset) String() string {
	return string(a.Chain) + ":" + a.Address
}

// 资产角色标签
const (
	LabelSendTipAsset         = "SEND_TIP_ASSET"
	LabelSendAirdropAsset     = "SEND_AIRDROP_ASSET"
	LabelSendTokenBasketAsset = "SEND_TOKEN_BASKET_ASSET"
	LabelReceivePaymentAsset  = "RECEIVE_PAYMENT_ASSET"
	LabelLinkCreationFee      = "LINK_CREATION_FEE"
)

// AssetInfo 链接中使用的资产：资产 + 每次使用的原始金额 + 角色标签
type AssetInfo struct {
	Asset  Asset    `json:"asset"`
	Amount *big.Int `json:"amount"` // 每次使用金额（最小单位）
	Label  string   `json:"label"`
}

// Clone 深拷贝（Amount 为指针）
func (a AssetInfo) Clone() AssetInfo {
	out := a
	if a.Amount != nil {
		out.Amount = new(big.Int).Set(a.Amount)
	}
	return out
}

// LinkType 链接类型
type LinkType string

const (
	LinkTypeSendTip         LinkType = "SendTip"
	LinkTypeSendAirdrop     LinkType = "SendAirdrop"
	LinkTypeSendTokenBasket LinkType = "SendTokenBasket"
	LinkTypeReceivePayment  LinkType = "ReceivePayment"
)

// Valid 是否为已知链接类型
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeSendTip, LinkTypeSendAirdrop, LinkTypeSendTokenBasket, LinkTypeReceivePayment:
		return true
	}
	return false
}

// SingleAsset 该类型是否只允许一个资产
func (t LinkType) SingleAsset() bool {
	switch t {
	case LinkTypeSendTip, LinkTypeSendAirdrop, LinkTypeReceivePayment:
		return true
	case LinkTypeSendTokenBasket:
		return false
	}
	return false
}

// IsSend 创建者是否需要向链接转入资产
func (t LinkType) IsSend() bool {
	return t != LinkTypeReceivePayment
}

// AssetLabel 该类型资产的默认角色标签
func (t LinkType) AssetLabel() string {
	switch t {
	case LinkTypeSendTip:
		return LabelSendTipAsset
	case LinkTypeSendAirdrop:
		return LabelSendAirdropAsset
	case LinkTypeSendTokenBasket:
		return LabelSendTokenBasketAsset
	case LinkTypeReceivePayment:
		return LabelReceivePaymentAsset
	}
	return ""
}

// LinkState 链接生命周期状态（后端权威字段）
type LinkState string

const (
	LinkStateChooseLinkType LinkState = "ChooseLinkType"
	LinkStateAddAssets      LinkState = "AddAssets"
	LinkStatePreview        LinkState = "Preview"
	LinkStateCreateLink     LinkState = "CreateLink"
	LinkStateActive         LinkState = "Active"
	LinkStateInactive       LinkState = "Inactive"
	LinkStateInactiveEnded  LinkState = "InactiveEnded"
)

// Link 链接实体
type Link struct {
	ID          string      `json:"id"`
	LinkType    LinkType    `json:"link_type"`
	State       LinkState   `json:"state"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Assets      []AssetInfo `json:"asset_info"`
	MaxUseCount uint64      `json:"link_use_action_max_count"`
	Creator     string      `json:"creator,omitempty"`
	CreatedAt   time.Time   `json:"create_at"`
}

// Clone 深拷贝，快照之间不共享资产切片
func (l Link) Clone() Link {
	out := l
	if l.Assets != nil {
		out.Assets = make([]AssetInfo, len(l.Assets))
		for i, a := range l.Assets {
			out.Assets[i] = a.Clone()
		}
	}
	return out
}

// Wallet 转账端点（principal + 可选 32 字节子账户）
type Wallet struct {
	Address    string `json:"address"`
	Subaccount []byte `json:"subaccount,omitempty"`
}

// IntentTask Intent 的转账方向
type IntentTask string

const (
	TaskTransferWalletToLink     IntentTask = "TransferWalletToLink"
	TaskTransferWalletToTreasury IntentTask = "TransferWalletToTreasury"
	TaskTransferLinkToWallet     IntentTask = "TransferLinkToWallet"
	TaskTransferWalletToWallet   IntentTask = "TransferWalletToWallet"
)

// IntentState Intent 执行状态
type IntentState string

const (
	IntentStateCreated    IntentState = "Created"
	IntentStateProcessing IntentState = "Processing"
	IntentStateSuccess    IntentState = "Success"
	IntentStateFail       IntentState = "Fail"
)

// CanTransition 状态是否允许从 from 迁移到 to
//
// Created → Processing → {Success, Fail}；只有 Fail 可以重新进入 Processing。
func CanTransition(from, to IntentState) bool {
	switch from {
	case IntentStateCreated:
		return to == IntentStateProcessing
	case IntentStateProcessing:
		return to == IntentStateSuccess || to == IntentStateFail
	case IntentStateFail:
		return to == IntentStateProcessing
	case IntentStateSuccess:
		return false
	}
	return false
}

// DisplayState Intent 的展示状态
type DisplayState string

const (
	DisplayCreated    DisplayState = "CREATED"
	DisplayProcessing DisplayState = "PROCESSING"
	DisplaySucceed    DisplayState = "SUCCEED"
	DisplayFailed     DisplayState = "FAILED"
)

// Display 映射为展示状态
func (s IntentState) Display() DisplayState {
	switch s {
	case IntentStateCreated:
		return DisplayCreated
	case IntentStateProcessing:
		return DisplayProcessing
	case IntentStateSuccess:
		return DisplaySucceed
	case IntentStateFail:
		return DisplayFailed
	}
	return DisplayCreated
}

// Transfer Intent 的转账载荷
type Transfer struct {
	From   Wallet   `json:"from"`
	To     Wallet   `json:"to"`
	Asset  Asset    `json:"asset"`
	Amount *big.Int `json:"amount"`
}

// Intent Action 中的一笔原子转账
type Intent struct {
	ID        string      `json:"id"`
	Task      IntentTask  `json:"task"`
	State     IntentState `json:"state"`
	CreatedAt time.Time   `json:"created_at"`
	Transfer  Transfer    `json:"transfer"`
}

// ActionType Action 类型
type ActionType string

const (
	ActionTypeCreateLink ActionType = "CreateLink"
	ActionTypeWithdraw   ActionType = "Withdraw"
	ActionTypeSend       ActionType = "Send"
	ActionTypeReceive    ActionType = "Receive"
)

// ActionState Action 整体状态
type ActionState string

const (
	ActionStateCreated    ActionState = "Created"
	ActionStateProcessing ActionState = "Processing"
	ActionStateSuccess    ActionState = "Success"
	ActionStateFail       ActionState = "Fail"
)

// CanisterCall 引擎层的单个 canister 调用
type CanisterCall struct {
	CanisterID string `json:"canister_id"`
	Method     string `json:"method"`
	Arg        []byte `json:"arg"`
	Nonce      []byte `json:"nonce,omitempty"`
	IntentID   string `json:"intent_id,omitempty"` // 关联的 Intent；为空时按展开后的位置对应
}

// Action 后端下发的执行计划
//
// 只能整体替换，不允许逐字段修改
type Action struct {
	ID            string           `json:"id"`
	Type          ActionType       `json:"type"`
	State         ActionState      `json:"state"`
	Creator       string           `json:"creator"`
	Intents       []Intent         `json:"intents"`
	BatchRequests [][]CanisterCall `json:"icrc_112_requests,omitempty"`
}

// Clone 深拷贝 Intents（批量请求只读，共享底层字节）
func (a Action) Clone() Action {
	out := a
	out.Intents = make([]Intent, len(a.Intents))
	copy(out.Intents, a.Intents)
	if a.BatchRequests != nil {
		out.BatchRequests = make([][]CanisterCall, len(a.BatchRequests))
		for i, group := range a.BatchRequests {
			out.BatchRequests[i] = append([]CanisterCall(nil), group...)
		}
	}
	return out
}

// IntentByID 按 ID 查找 Intent 下标
func (a Action) IntentByID(id string) (int, bool) {
	for i, it := range a.Intents {
		if it.ID == id {
			return i, true
		}
	}
	return -1, false
}

// AllSucceeded 所有 Intent 是否均已成功
func (a Action) AllSucceeded() bool {
	if len(a.Intents) == 0 {
		return a.State == ActionStateSuccess
	}
	for _, it := range a.Intents {
		if it.State != IntentStateSuccess {
			return false
		}
	}
	return true
}

// LinkUserState 领取方视角的链接状态（get_link_user_state 返回）
type LinkUserState string

const (
	LinkUserStateChooseWallet LinkUserState = "ChooseWallet"
	LinkUserStateCompleted    LinkUserState = "CompletedLink"
)

// LinkUserStateResult get_link_user_state 结果
type LinkUserStateResult struct {
	Action        *Action       `json:"action,omitempty"`
	LinkUserState LinkUserState `json:"link_user_state,omitempty"`
}
