package cart

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/types"
)

// AssetItem 单个 Intent 的展示资产
type AssetItem struct {
	Asset       types.Asset
	Symbol      string
	Decimals    int32
	Amount      *big.Int
	AmountHuman decimal.Decimal
	AmountUSD   *decimal.Decimal
	Resolved    bool
}

// Item 购物车中的一行，按 Intent 顺序排列
type Item struct {
	IntentID string
	Task     types.IntentTask
	Asset    AssetItem
	Fee      *fee.FeeItem // 不展示手续费时为 nil
	State    types.DisplayState
}

// Total 单个代币的合计
type Total struct {
	Asset       types.Asset
	Symbol      string
	Decimals    int32
	Amount      *big.Int
	Fee         *big.Int
	AmountHuman decimal.Decimal
	FeeHuman    decimal.Decimal
	USD         *decimal.Decimal // 任一行缺少价格时为 nil
}

// Cart Action 的展示投影
//
// 只由 Action 和代币信息推导，不持久化。
type Cart struct {
	ActionID   string
	ActionType types.ActionType
	Items      []Item
	Totals     []Total
}

// WithAction 使用新的 Action 状态重新推导展示状态，不重新查询代币信息
//
// Action 中找不到的 Intent 保留原状态。
func (c *Cart) WithAction(action types.Action) *Cart {
	out := &Cart{
		ActionID:   c.ActionID,
		ActionType: c.ActionType,
		Items:      make([]Item, len(c.Items)),
		Totals:     c.Totals,
	}
	copy(out.Items, c.Items)
	for i, item := range out.Items {
		if idx, ok := action.IntentByID(item.IntentID); ok {
			out.Items[i].State = action.Intents[idx].State.Display()
		}
	}
	return out
}

// Settled 所有行都已成功或失败
func (c *Cart) Settled() bool {
	for _, item := range c.Items {
		if item.State != types.DisplaySucceed && item.State != types.DisplayFailed {
			return false
		}
	}
	return true
}

// Failed 失败行的 Intent ID
func (c *Cart) Failed() []string {
	var ids []string
	for _, item := range c.Items {
		if item.State == types.DisplayFailed {
			ids = append(ids, item.IntentID)
		}
	}
	return ids
}

func totals(items []Item) []Total {
	var out []Total
	index := make(map[types.Asset]int)
	for _, item := range items {
		i, ok := index[item.Asset.Asset]
		if !ok {
			zero := decimal.Zero
			out = append(out, Total{
				Asset:    item.Asset.Asset,
				Symbol:   item.Asset.Symbol,
				Decimals: item.Asset.Decimals,
				Amount:   new(big.Int),
				Fee:      new(big.Int),
				USD:      &zero,
			})
			i = len(out) - 1
			index[item.Asset.Asset] = i
		}
		t := &out[i]
		t.Amount.Add(t.Amount, item.Asset.Amount)
		if item.Fee != nil && item.Fee.Fee != nil {
			t.Fee.Add(t.Fee, item.Fee.Fee)
		}
		if t.USD != nil && item.Asset.AmountUSD != nil {
			sum := t.USD.Add(*item.Asset.AmountUSD)
			t.USD = &sum
		} else {
			t.USD = nil
		}
	}
	for i := range out {
		out[i].AmountHuman = fee.FormatAmount(out[i].Amount, out[i].Decimals)
		out[i].FeeHuman = fee.FormatAmount(out[i].Fee, out[i].Decimals)
	}
	return out
}
