package cart

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/types"
)

// DefaultConcurrency 代币信息并发查询数
const DefaultConcurrency = 8

// Builder 由 Action 构造 Cart
type Builder struct {
	fees        *fee.Service
	concurrency int
	logger      client.Logger
}

// Option Builder 选项
type Option func(*Builder)

// WithConcurrency 设置并发查询数
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(l client.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder 创建 Builder
func NewBuilder(fees *fee.Service, opts ...Option) *Builder {
	b := &Builder{
		fees:        fees,
		concurrency: DefaultConcurrency,
		logger:      client.NopLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type resolvedMetadata struct {
	meta     *token.Metadata
	resolved bool
}

// Build 并发解析每个代币的信息，按 Intent 顺序生成 Item 和按代币合计
//
// 代币信息查询失败时使用占位信息，不会导致 Build 失败。
func (b *Builder) Build(ctx context.Context, action types.Action) (*Cart, error) {
	addresses := distinctAddresses(action)

	var mu sync.Mutex
	metadata := make(map[string]resolvedMetadata, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, addr := range addresses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			meta, ok := b.fees.Metadata(gctx, addr)
			mu.Lock()
			metadata[addr] = resolvedMetadata{meta: meta, resolved: ok}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(action.Intents))
	for _, intent := range action.Intents {
		rm := metadata[intent.Transfer.Asset.Address]
		fi, err := b.fees.ComputeItemWithMetadata(intent, action.Type, rm.meta, rm.resolved)
		if err != nil {
			return nil, err
		}
		item := Item{
			IntentID: intent.ID,
			Task:     intent.Task,
			Asset: AssetItem{
				Asset:       fi.Asset,
				Symbol:      fi.Symbol,
				Decimals:    fi.Decimals,
				Amount:      fi.Amount,
				AmountHuman: fi.AmountHuman,
				AmountUSD:   fi.AmountUSD,
				Resolved:    fi.Resolved,
			},
			State: intent.State.Display(),
		}
		if fi.Fee != nil {
			fi := fi
			item.Fee = &fi
		}
		items = append(items, item)
	}

	unresolved := 0
	for _, rm := range metadata {
		if !rm.resolved {
			unresolved++
		}
	}
	if unresolved > 0 {
		b.logger.Warn("Cart built with placeholder token metadata", "action", action.ID, "unresolved", unresolved)
	}

	return &Cart{
		ActionID:   action.ID,
		ActionType: action.Type,
		Items:      items,
		Totals:     totals(items),
	}, nil
}

func distinctAddresses(action types.Action) []string {
	seen := make(map[string]bool)
	var out []string
	for _, intent := range action.Intents {
		addr := intent.Transfer.Asset.Address
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
