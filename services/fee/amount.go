package fee

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount 最小单位转人类可读金额
func FormatAmount(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ParseAmount 人类可读金额转最小单位
//
// 精度超过 decimals 或为负数时返回错误
func ParseAmount(text string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", text, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q must not be negative", text)
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", text, decimals)
	}
	return shifted.BigInt(), nil
}

// ToUSD 换算美元价值，price ≤ 0 为数据错误
func ToUSD(raw *big.Int, decimals int32, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid token price %s", price)
	}
	return FormatAmount(raw, decimals).Mul(price), nil
}
