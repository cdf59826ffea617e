package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/types"
)

// RPC 方法名
const (
	MethodGetTokenMetadata = "get_token_metadata"
	MethodGetBalance       = "get_balance"
)

// ErrTokenNotFound 未知代币
var ErrTokenNotFound = errors.New("token not found")

// Metadata 代币信息
type Metadata struct {
	Address  string
	Symbol   string
	Decimals int32
	Fee      *big.Int         // 账本手续费（最小单位）
	PriceUSD *decimal.Decimal // 可能缺失
}

// Oracle 代币信息与余额查询
type Oracle interface {
	// GetTokenMetadata 查询代币信息
	GetTokenMetadata(ctx context.Context, address string) (*Metadata, error)

	// GetBalance 查询账户余额（最小单位）
	GetBalance(ctx context.Context, owner types.Wallet, address string) (*big.Int, error)
}

// rpcOracle 通过 JSON-RPC 查询的 Oracle，代币信息带 LRU 缓存
type rpcOracle struct {
	client client.Client
	cache  *lru.Cache
}

// NewRPCOracle 创建 Oracle，cacheSize <= 0 时不缓存
func NewRPCOracle(c client.Client, cacheSize int) (Oracle, error) {
	o := &rpcOracle{client: c}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create metadata cache: %w", err)
		}
		o.cache = cache
	}
	return o, nil
}

// metadataWire get_token_metadata 返回格式，大数以字符串传输
type metadataWire struct {
	Symbol   string  `json:"symbol"`
	Decimals int32   `json:"decimals"`
	Fee      string  `json:"fee"`
	PriceUSD *string `json:"price_usd,omitempty"`
}

// GetTokenMetadata 查询代币信息
func (o *rpcOracle) GetTokenMetadata(ctx context.Context, address string) (*Metadata, error) {
	if address == "" {
		return nil, fmt.Errorf("token address is required")
	}
	if o.cache != nil {
		if v, ok := o.cache.Get(address); ok {
			return v.(*Metadata), nil
		}
	}

	var wire *metadataWire
	raw, err := o.client.Call(ctx, MethodGetTokenMetadata, map[string]string{"address": address})
	if err != nil {
		return nil, fmt.Errorf("call %s failed: %w", MethodGetTokenMetadata, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%s: %w", address, ErrTokenNotFound)
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", MethodGetTokenMetadata, err)
	}

	meta, err := wire.toMetadata(address)
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		o.cache.Add(address, meta)
	}
	return meta, nil
}

func (w *metadataWire) toMetadata(address string) (*Metadata, error) {
	fee, ok := new(big.Int).SetString(w.Fee, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid fee %q for token %s", w.Fee, address)
	}
	meta := &Metadata{
		Address:  address,
		Symbol:   w.Symbol,
		Decimals: w.Decimals,
		Fee:      fee,
	}
	if w.PriceUSD != nil && *w.PriceUSD != "" {
		price, err := decimal.NewFromString(*w.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for token %s: %w", *w.PriceUSD, address, err)
		}
		meta.PriceUSD = &price
	}
	return meta, nil
}
