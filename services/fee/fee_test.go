package fee

import (
	"context"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/types"
)

const icpLedger = "ryjl3-tyaaa-aaaaa-aaaba-cai"

func intentOf(task types.IntentTask, amount int64) types.Intent {
	return types.Intent{
		ID:   "intent-1",
		Task: task,
		Transfer: types.Transfer{
			Asset:  types.Asset{Chain: types.ChainIC, Address: icpLedger},
			Amount: big.NewInt(amount),
		},
	}
}

func TestComputeAmountAndFeeRaw(t *testing.T) {
	ledgerFee := big.NewInt(10_000)

	tests := []struct {
		name       string
		actionType types.ActionType
		task       types.IntentTask
		payload    int64
		wantAmount int64
		wantFee    *int64
	}{
		{"create link treasury", types.ActionTypeCreateLink, types.TaskTransferWalletToTreasury, 100_000, 120_000, ptr(120_000)},
		{"create link to link", types.ActionTypeCreateLink, types.TaskTransferWalletToLink, 500_000, 510_000, ptr(10_000)},
		{"withdraw", types.ActionTypeWithdraw, types.TaskTransferLinkToWallet, 500_000, 490_000, ptr(10_000)},
		{"withdraw below fee floors at zero", types.ActionTypeWithdraw, types.TaskTransferLinkToWallet, 5_000, 0, ptr(10_000)},
		{"send", types.ActionTypeSend, types.TaskTransferWalletToLink, 500_000, 510_000, ptr(10_000)},
		{"send treasury task", types.ActionTypeSend, types.TaskTransferWalletToTreasury, 1, 10_001, ptr(10_000)},
		{"receive", types.ActionTypeReceive, types.TaskTransferLinkToWallet, 500_000, 500_000, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeAmountAndFeeRaw(intentOf(tt.task, tt.payload), ledgerFee, tt.actionType)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, got.Amount.Int64())
			if tt.wantFee == nil {
				assert.Nil(t, got.Fee)
			} else {
				require.NotNil(t, got.Fee)
				assert.Equal(t, *tt.wantFee, got.Fee.Int64())
			}
		})
	}

	assert.Equal(t, int64(10_000), ledgerFee.Int64(), "ledger fee must not be mutated")
}

func TestComputeAmountAndFeeRaw_LargeValues(t *testing.T) {
	payload, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	intent := intentOf(types.TaskTransferWalletToLink, 0)
	intent.Transfer.Amount = payload

	got, err := ComputeAmountAndFeeRaw(intent, big.NewInt(1), types.ActionTypeSend)
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", got.Amount.String())
}

func TestComputeAmountAndFeeRaw_Unknown(t *testing.T) {
	_, err := ComputeAmountAndFeeRaw(intentOf(types.TaskTransferWalletToLink, 1), big.NewInt(1), types.ActionType("Refund"))
	assert.Error(t, err)

	_, err = ComputeAmountAndFeeRaw(intentOf(types.IntentTask("Mint"), 1), big.NewInt(1), types.ActionTypeCreateLink)
	assert.Error(t, err)
}

func TestValidateTotalAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      TotalAmountInput
		valid   bool
		total   int64
		exceeds bool
		perUse  int64
	}{
		{"exceeds", TotalAmountInput{decimal.NewFromInt(25), 5, decimal.NewFromInt(100)}, false, 125, true, 20},
		{"within", TotalAmountInput{decimal.NewFromInt(10), 5, decimal.NewFromInt(100)}, true, 50, false, 20},
		{"exactly at limit", TotalAmountInput{decimal.NewFromInt(20), 5, decimal.NewFromInt(100)}, true, 100, false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateTotalAmount(tt.in)
			assert.Equal(t, tt.valid, got.IsValid)
			assert.True(t, got.CalculatedTotal.Equal(decimal.NewFromInt(tt.total)), "total = %s", got.CalculatedTotal)
			assert.Equal(t, tt.exceeds, got.ExceedsLimit)
			assert.True(t, got.MaxPerUse.Equal(decimal.NewFromInt(tt.perUse)), "maxPerUse = %s", got.MaxPerUse)
		})
	}

	zero := ValidateTotalAmount(TotalAmountInput{PerUseAmount: decimal.NewFromInt(1), MaxTotalAmount: decimal.NewFromInt(10)})
	assert.False(t, zero.IsValid)
}

func TestAmountConversions(t *testing.T) {
	assert.Equal(t, "1.2345", FormatAmount(big.NewInt(123_450_000), 8).String())
	assert.Equal(t, "0", FormatAmount(nil, 8).String())

	raw, err := ParseAmount("1.2345", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(123_450_000), raw.Int64())

	_, err = ParseAmount("0.000000001", 8)
	assert.Error(t, err)
	_, err = ParseAmount("-1", 8)
	assert.Error(t, err)
	_, err = ParseAmount("abc", 8)
	assert.Error(t, err)
}

func TestToUSD(t *testing.T) {
	usd, err := ToUSD(big.NewInt(250_000_000), 8, decimal.RequireFromString("4.2"))
	require.NoError(t, err)
	assert.True(t, usd.Equal(decimal.RequireFromString("10.5")))

	_, err = ToUSD(big.NewInt(1), 8, decimal.Zero)
	assert.Error(t, err)
	_, err = ToUSD(big.NewInt(1), 8, decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestValidateBalance(t *testing.T) {
	meta := &token.Metadata{Symbol: "ICP", Decimals: 8}

	assert.Nil(t, ValidateBalance(big.NewInt(100), big.NewInt(100), meta))

	verr := ValidateBalance(big.NewInt(250_000_000), big.NewInt(100_000_000), meta)
	require.NotNil(t, verr)
	assert.Equal(t, types.ValidationInsufficientBalance, verr.Code)
	assert.Equal(t, "ICP", verr.Symbol)
	assert.Equal(t, int64(250_000_000), verr.Required.Int64())
	assert.Equal(t, int64(100_000_000), verr.Available.Int64())
	assert.Contains(t, verr.Error(), "required 2.5 ICP")
	assert.Contains(t, verr.Error(), "available 1 ICP")
}

func TestService_ComputeItem(t *testing.T) {
	price := decimal.RequireFromString("5")
	oracle := token.NewStaticOracle(&token.Metadata{
		Address: icpLedger, Symbol: "ICP", Decimals: 8, Fee: big.NewInt(10_000), PriceUSD: &price,
	})
	svc := NewService(oracle, &services.Config{FallbackLedgerFee: big.NewInt(1)}, nil)
	ctx := context.Background()

	item, err := svc.ComputeItem(ctx, intentOf(types.TaskTransferWalletToLink, 100_000_000), types.ActionTypeSend)
	require.NoError(t, err)
	assert.True(t, item.Resolved)
	assert.Equal(t, "ICP", item.Symbol)
	assert.Equal(t, int64(100_010_000), item.Amount.Int64())
	require.NotNil(t, item.AmountUSD)
	assert.True(t, item.AmountUSD.Equal(decimal.RequireFromString("5.0005")))
	require.NotNil(t, item.FeeHuman)
	assert.True(t, item.FeeHuman.Equal(decimal.RequireFromString("0.0001")))

	unknown := intentOf(types.TaskTransferWalletToLink, 100)
	unknown.Transfer.Asset.Address = "unknown-ledger"
	item, err = svc.ComputeItem(ctx, unknown, types.ActionTypeSend)
	require.NoError(t, err)
	assert.False(t, item.Resolved)
	assert.Equal(t, UnresolvedSymbol, item.Symbol)
	assert.Equal(t, int64(101), item.Amount.Int64())
	assert.Nil(t, item.AmountUSD)

	item, err = svc.ComputeItem(ctx, intentOf(types.TaskTransferLinkToWallet, 100), types.ActionTypeReceive)
	require.NoError(t, err)
	assert.Nil(t, item.Fee)
	assert.Nil(t, item.FeeHuman)
}

func TestService_InvalidPriceOmitsUSD(t *testing.T) {
	zero := decimal.Zero
	oracle := token.NewStaticOracle(&token.Metadata{Address: icpLedger, Symbol: "ICP", Decimals: 8, Fee: big.NewInt(1), PriceUSD: &zero})
	svc := NewService(oracle, nil, nil)

	item, err := svc.ComputeItem(context.Background(), intentOf(types.TaskTransferWalletToLink, 10), types.ActionTypeSend)
	require.NoError(t, err)
	assert.True(t, item.Resolved)
	assert.Nil(t, item.AmountUSD)
}

func ptr(v int64) *int64 { return &v }
