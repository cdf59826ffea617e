package fee

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/types"
)

// 代币信息无法解析时的占位
const (
	UnresolvedSymbol       = "?"
	FallbackDecimals int32 = 8
)

// FeeItem 单个 Intent 的展示金额与手续费
type FeeItem struct {
	IntentID    string
	Asset       types.Asset
	Symbol      string
	Decimals    int32
	Amount      *big.Int         // 总额（最小单位）
	Fee         *big.Int         // nil 表示不展示
	AmountHuman decimal.Decimal
	FeeHuman    *decimal.Decimal
	AmountUSD   *decimal.Decimal // 价格缺失时为 nil
	FeeUSD      *decimal.Decimal
	Resolved    bool // 代币信息是否来自 Oracle
}

// Service 手续费服务
type Service struct {
	oracle      token.Oracle
	fallbackFee *big.Int
	logger      client.Logger
}

// NewService 创建手续费服务，logger 可为 nil
func NewService(oracle token.Oracle, cfg *services.Config, logger client.Logger) *Service {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = client.NopLogger{}
	}
	return &Service{
		oracle:      oracle,
		fallbackFee: new(big.Int).Set(cfg.FallbackLedgerFee),
		logger:      logger,
	}
}

// Metadata 查询代币信息，失败时返回以回退手续费构造的占位信息和 false
func (s *Service) Metadata(ctx context.Context, address string) (*token.Metadata, bool) {
	if s.oracle != nil {
		meta, err := s.oracle.GetTokenMetadata(ctx, address)
		if err == nil && meta != nil {
			return meta, true
		}
		s.logger.Warn("Token metadata unavailable, using fallback fee", "token", address, "error", err)
	}
	return &token.Metadata{
		Address:  address,
		Symbol:   UnresolvedSymbol,
		Decimals: FallbackDecimals,
		Fee:      new(big.Int).Set(s.fallbackFee),
	}, false
}

// ComputeItem 计算单个 Intent 的 FeeItem
//
// Oracle 失败不会返回错误；只有未知的 Action 类型或 Intent 任务才返回错误。
func (s *Service) ComputeItem(ctx context.Context, intent types.Intent, actionType types.ActionType) (FeeItem, error) {
	meta, resolved := s.Metadata(ctx, intent.Transfer.Asset.Address)
	return s.ComputeItemWithMetadata(intent, actionType, meta, resolved)
}

// ComputeItemWithMetadata 使用已解析的代币信息计算 FeeItem
func (s *Service) ComputeItemWithMetadata(intent types.Intent, actionType types.ActionType, meta *token.Metadata, resolved bool) (FeeItem, error) {
	af, err := ComputeAmountAndFeeRaw(intent, meta.Fee, actionType)
	if err != nil {
		return FeeItem{}, err
	}

	item := FeeItem{
		IntentID:    intent.ID,
		Asset:       intent.Transfer.Asset,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		Amount:      af.Amount,
		Fee:         af.Fee,
		AmountHuman: FormatAmount(af.Amount, meta.Decimals),
		Resolved:    resolved,
	}
	if af.Fee != nil {
		feeHuman := FormatAmount(af.Fee, meta.Decimals)
		item.FeeHuman = &feeHuman
	}

	if meta.PriceUSD != nil {
		usd, err := ToUSD(af.Amount, meta.Decimals, *meta.PriceUSD)
		if err != nil {
			s.logger.Warn("Skipping USD value", "token", meta.Address, "error", err)
			return item, nil
		}
		item.AmountUSD = &usd
		if af.Fee != nil {
			feeUSD, _ := ToUSD(af.Fee, meta.Decimals, *meta.PriceUSD)
			item.FeeUSD = &feeUSD
		}
	}
	return item, nil
}
