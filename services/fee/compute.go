package fee

import (
	"fmt"
	"math/big"

	"github.com/cashierlink/link-sdk-go/types"
)

// AmountAndFee 转账总额与展示手续费
//
// Fee 为 nil 表示不展示手续费
type AmountAndFee struct {
	Amount *big.Int
	Fee    *big.Int
}

// ComputeAmountAndFeeRaw 按 Action 类型计算总额和手续费（最小单位）
//
//	CreateLink + TransferWalletToTreasury: amount = 2×fee + payload, fee = amount
//	CreateLink + 其他:                      amount = fee + payload,   fee = fee
//	Withdraw:                              amount = payload − fee（不低于 0）, fee = fee
//	Send:                                  amount = payload + fee,   fee = fee
//	Receive:                               amount = payload,         fee = nil
func ComputeAmountAndFeeRaw(intent types.Intent, ledgerFee *big.Int, actionType types.ActionType) (AmountAndFee, error) {
	payload := intent.Transfer.Amount
	if payload == nil {
		payload = new(big.Int)
	}
	if ledgerFee == nil {
		ledgerFee = new(big.Int)
	}
	fee := new(big.Int).Set(ledgerFee)

	switch actionType {
	case types.ActionTypeCreateLink:
		switch intent.Task {
		case types.TaskTransferWalletToTreasury:
			amount := new(big.Int).Mul(ledgerFee, big.NewInt(2))
			amount.Add(amount, payload)
			return AmountAndFee{Amount: amount, Fee: new(big.Int).Set(amount)}, nil
		case types.TaskTransferWalletToLink, types.TaskTransferLinkToWallet, types.TaskTransferWalletToWallet:
			return AmountAndFee{Amount: new(big.Int).Add(ledgerFee, payload), Fee: fee}, nil
		default:
			return AmountAndFee{}, fmt.Errorf("unknown intent task %q", intent.Task)
		}
	case types.ActionTypeWithdraw:
		amount := new(big.Int).Sub(payload, ledgerFee)
		if amount.Sign() < 0 {
			amount.SetInt64(0)
		}
		return AmountAndFee{Amount: amount, Fee: fee}, nil
	case types.ActionTypeSend:
		return AmountAndFee{Amount: new(big.Int).Add(payload, ledgerFee), Fee: fee}, nil
	case types.ActionTypeReceive:
		return AmountAndFee{Amount: new(big.Int).Set(payload)}, nil
	default:
		return AmountAndFee{}, fmt.Errorf("unknown action type %q", actionType)
	}
}
