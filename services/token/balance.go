package token

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/utils"
)

// balanceParams get_balance 参数
type balanceParams struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"` // hex
	Address    string `json:"address"`
}

// GetBalance 查询余额
func (o *rpcOracle) GetBalance(ctx context.Context, owner types.Wallet, address string) (*big.Int, error) {
	if owner.Address == "" || address == "" {
		return nil, fmt.Errorf("owner and token address are required")
	}

	params := balanceParams{Owner: owner.Address, Address: address}
	if len(owner.Subaccount) > 0 {
		params.Subaccount = hex.EncodeToString(owner.Subaccount)
	}

	raw, err := o.client.Call(ctx, MethodGetBalance, params)
	if err != nil {
		return nil, fmt.Errorf("call %s failed: %w", MethodGetBalance, err)
	}

	var result struct {
		Balance string `json:"balance"`
	}
	if err := decodeJSON(raw, &result); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", MethodGetBalance, err)
	}
	balance, ok := new(big.Int).SetString(result.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("parse balance failed: %q", result.Balance)
	}
	return balance, nil
}

// GetBalances 并发查询多个代币的余额，结果与 addresses 下标对齐
func GetBalances(ctx context.Context, o Oracle, owner types.Wallet, addresses []string) ([]*big.Int, error) {
	result := utils.BatchQuery(ctx, addresses, func(ctx context.Context, address string, _ int) (*big.Int, error) {
		return o.GetBalance(ctx, owner, address)
	}, &utils.BatchConfig{BatchSize: 20, Concurrency: 5})

	if err := result.FirstError(); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func decodeJSON(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty result")
	}
	return json.Unmarshal(raw, out)
}
