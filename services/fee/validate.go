package fee

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/types"
)

// TotalAmountInput 总额校验参数（人类可读单位）
type TotalAmountInput struct {
	PerUseAmount   decimal.Decimal
	MaxUse         uint64
	MaxTotalAmount decimal.Decimal
}

// TotalAmountResult 总额校验结果
type TotalAmountResult struct {
	IsValid         bool
	CalculatedTotal decimal.Decimal
	ExceedsLimit    bool
	MaxPerUse       decimal.Decimal
}

// ValidateTotalAmount 校验 perUse × maxUse 不超过上限
func ValidateTotalAmount(in TotalAmountInput) TotalAmountResult {
	if in.MaxUse == 0 {
		return TotalAmountResult{
			CalculatedTotal: decimal.Zero,
			MaxPerUse:       in.MaxTotalAmount,
		}
	}

	maxUse := decimal.NewFromBigInt(new(big.Int).SetUint64(in.MaxUse), 0)
	total := in.PerUseAmount.Mul(maxUse)
	exceeds := total.GreaterThan(in.MaxTotalAmount)
	return TotalAmountResult{
		IsValid:         !exceeds,
		CalculatedTotal: total,
		ExceedsLimit:    exceeds,
		MaxPerUse:       in.MaxTotalAmount.Div(maxUse),
	}
}

// ValidateBalance 余额不足时返回带缺口信息的校验错误
func ValidateBalance(required, available *big.Int, meta *token.Metadata) *types.ValidationError {
	if available == nil {
		available = new(big.Int)
	}
	if required == nil || required.Cmp(available) <= 0 {
		return nil
	}

	symbol := UnresolvedSymbol
	decimals := FallbackDecimals
	if meta != nil {
		symbol = meta.Symbol
		decimals = meta.Decimals
	}

	verr := types.NewValidationError(types.ValidationInsufficientBalance, "assets",
		"insufficient balance: required %s %s, available %s %s",
		FormatAmount(required, decimals), symbol, FormatAmount(available, decimals), symbol)
	verr.Required = new(big.Int).Set(required)
	verr.Available = new(big.Int).Set(available)
	verr.Symbol = symbol
	return verr
}
