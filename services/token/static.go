package token

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/cashierlink/link-sdk-go/types"
)

// StaticOracle 内存 Oracle，用于开发模式和测试
type StaticOracle struct {
	mu       sync.RWMutex
	metadata map[string]*Metadata
	balances map[string]*big.Int
}

// NewStaticOracle 创建内存 Oracle
func NewStaticOracle(tokens ...*Metadata) *StaticOracle {
	o := &StaticOracle{
		metadata: make(map[string]*Metadata),
		balances: make(map[string]*big.Int),
	}
	for _, m := range tokens {
		o.metadata[m.Address] = m
	}
	return o
}

// SetBalance 设置余额
func (o *StaticOracle) SetBalance(owner types.Wallet, address string, amount *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.balances[balanceKey(owner, address)] = new(big.Int).Set(amount)
}

// GetTokenMetadata 实现 Oracle
func (o *StaticOracle) GetTokenMetadata(_ context.Context, address string) (*Metadata, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.metadata[address]
	if !ok {
		return nil, fmt.Errorf("%s: %w", address, ErrTokenNotFound)
	}
	return m, nil
}

// GetBalance 实现 Oracle，未设置时为 0
func (o *StaticOracle) GetBalance(_ context.Context, owner types.Wallet, address string) (*big.Int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if b, ok := o.balances[balanceKey(owner, address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func balanceKey(owner types.Wallet, address string) string {
	return fmt.Sprintf("%s/%x/%s", owner.Address, owner.Subaccount, address)
}
