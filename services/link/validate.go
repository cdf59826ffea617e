package link

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/types"
)

// validateDetails ChooseLinkType 离开前的校验
func validateDetails(l types.Link) error {
	if !l.LinkType.Valid() {
		return types.NewValidationError(types.ValidationMissingLinkType, "link_type", "link type is required")
	}
	if strings.TrimSpace(l.Title) == "" {
		return types.NewValidationError(types.ValidationMissingTitle, "title", "title is required")
	}
	return nil
}

// validateAssetList 资产数量、地址、金额和重复性
func validateAssetList(l types.Link) error {
	if len(l.Assets) == 0 {
		return types.NewValidationError(types.ValidationNoAssets, "assets", "at least one asset is required")
	}
	if l.LinkType.SingleAsset() && len(l.Assets) != 1 {
		return types.NewValidationError(types.ValidationTooManyAssets, "assets",
			"%s link takes exactly one asset, got %d", l.LinkType, len(l.Assets))
	}

	seen := make(map[types.Asset]struct{}, len(l.Assets))
	for i, a := range l.Assets {
		if strings.TrimSpace(a.Asset.Address) == "" {
			return types.NewValidationError(types.ValidationInvalidAsset, fmt.Sprintf("assets[%d].address", i),
				"asset address is required")
		}
		if a.Amount == nil || a.Amount.Sign() <= 0 {
			return types.NewValidationError(types.ValidationInvalidAmount, fmt.Sprintf("assets[%d].amount", i),
				"amount must be greater than 0")
		}
		if _, dup := seen[a.Asset]; dup {
			return types.NewValidationError(types.ValidationDuplicateAsset, fmt.Sprintf("assets[%d]", i),
				"asset %s appears more than once", a.Asset)
		}
		seen[a.Asset] = struct{}{}
	}
	return nil
}

// normalizeMaxUse 非空投类型固定为 1，空投至少为 1
func normalizeMaxUse(l *types.Link) error {
	switch l.LinkType {
	case types.LinkTypeSendAirdrop:
		if l.MaxUseCount < 1 {
			return types.NewValidationError(types.ValidationInvalidMaxUse, "max_use", "airdrop needs at least one use")
		}
	case types.LinkTypeSendTip, types.LinkTypeSendTokenBasket, types.LinkTypeReceivePayment:
		l.MaxUseCount = 1
	default:
		return types.NewValidationError(types.ValidationMissingLinkType, "link_type", "unknown link type %q", l.LinkType)
	}
	return nil
}

// validateAirdropTotal 空投总额不超过配置上限
func (m *Machine) validateAirdropTotal(ctx context.Context, l types.Link) error {
	if l.LinkType != types.LinkTypeSendAirdrop {
		return nil
	}
	if !m.cfg.MaxAirdropTotal.IsPositive() {
		m.logger.Debug("Airdrop total guard skipped, no max total configured", "link", m.id)
		return nil
	}
	a := l.Assets[0]
	meta, _ := m.fees.Metadata(ctx, a.Asset.Address)

	res := fee.ValidateTotalAmount(fee.TotalAmountInput{
		PerUseAmount:   fee.FormatAmount(a.Amount, meta.Decimals),
		MaxUse:         l.MaxUseCount,
		MaxTotalAmount: m.cfg.MaxAirdropTotal,
	})
	if !res.IsValid {
		return types.NewValidationError(types.ValidationTotalExceedsLimit, "assets[0].amount",
			"total %s %s exceeds limit %s, at most %s per use",
			res.CalculatedTotal, meta.Symbol, m.cfg.MaxAirdropTotal, res.MaxPerUse)
	}
	return nil
}

// validateBalances 发送类链接需要创建者余额覆盖总额
func (m *Machine) validateBalances(ctx context.Context, l types.Link) error {
	if !l.LinkType.IsSend() {
		return nil
	}
	if m.balances == nil || m.creator.Address == "" {
		m.logger.Debug("Balance check skipped, no balance provider", "link", m.id)
		return nil
	}

	uses := big.NewInt(1)
	if l.LinkType == types.LinkTypeSendAirdrop {
		uses = new(big.Int).SetUint64(l.MaxUseCount)
	}

	for _, a := range l.Assets {
		available, err := m.balances.GetBalance(ctx, m.creator, a.Asset.Address)
		if err != nil {
			return fmt.Errorf("query balance of %s: %w", a.Asset, err)
		}
		required := new(big.Int).Mul(a.Amount, uses)
		meta, _ := m.fees.Metadata(ctx, a.Asset.Address)
		if verr := fee.ValidateBalance(required, available, meta); verr != nil {
			verr.Field = "assets"
			return verr
		}
	}
	return nil
}
