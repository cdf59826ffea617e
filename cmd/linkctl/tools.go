package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/services/link"
	"github.com/cashierlink/link-sdk-go/types"
)

func newSubaccountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "subaccount <link-id>",
		Short: "Derive the vault subaccount of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := link.DeriveSubaccount(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "subaccount: %s\n", hex.EncodeToString(sub[:]))
			if a.cfg.Canisters.Backend != "" {
				vault, err := link.VaultAccount(a.cfg.Canisters.Backend, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "owner:      %s\n", vault.Address)
			}
			return nil
		},
	}
}

func newShareCodeCommand(a *app) *cobra.Command {
	var decode bool
	cmd := &cobra.Command{
		Use:   "share-code <link-id|code>",
		Short: "Encode a link id as a share code, or decode one with --decode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if decode {
				id, err := link.ParseShareCode(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
				return nil
			}
			code, err := link.ShareCode(args[0])
			if err != nil {
				return err
			}
			url, err := link.ShareURL(a.cfg.Share.BaseURL, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "code: %s\nurl:  %s\n", code, url)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "decode a share code")
	return cmd
}

func newFeeCommand(a *app) *cobra.Command {
	var (
		actionType string
		task       string
		tokenAddr  string
		amount     string
		raw        bool
	)
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Show the amount and fee a wallet will see for one intent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tokenAddr == "" {
				return errors.New("--token is required")
			}
			svc, _, err := a.feeService()
			if err != nil {
				return err
			}
			meta, resolved := svc.Metadata(cmd.Context(), tokenAddr)

			payload, err := parseAmountFlag(amount, meta.Decimals, raw)
			if err != nil {
				return err
			}
			intent := types.Intent{
				ID:   "preview",
				Task: types.IntentTask(task),
				Transfer: types.Transfer{
					Asset:  types.Asset{Chain: types.ChainIC, Address: tokenAddr},
					Amount: payload,
				},
			}
			item, err := svc.ComputeItemWithMetadata(intent, types.ActionType(actionType), meta, resolved)
			if err != nil {
				return err
			}
			printFeeItem(cmd, item)
			return nil
		},
	}
	cmd.Flags().StringVar(&actionType, "action", string(types.ActionTypeCreateLink), "action type (CreateLink, Withdraw, Send, Receive)")
	cmd.Flags().StringVar(&task, "task", string(types.TaskTransferWalletToLink), "intent task")
	cmd.Flags().StringVar(&tokenAddr, "token", "", "token ledger address")
	cmd.Flags().StringVar(&amount, "amount", "0", "transfer amount")
	cmd.Flags().BoolVar(&raw, "raw", false, "amount is in base units")
	return cmd
}

func printFeeItem(cmd *cobra.Command, item fee.FeeItem) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "token:  %s (%s)\n", item.Symbol, item.Asset.Address)
	fmt.Fprintf(out, "amount: %s (%s)\n", item.AmountHuman.String(), item.Amount.String())
	if item.FeeHuman != nil {
		fmt.Fprintf(out, "fee:    %s (%s)\n", item.FeeHuman.String(), item.Fee.String())
	}
	if item.AmountUSD != nil {
		fmt.Fprintf(out, "usd:    %s\n", item.AmountUSD.StringFixed(2))
	}
	if !item.Resolved {
		fmt.Fprintln(out, "note:   token metadata unavailable, fallback fee used")
	}
}

func newValidateTotalCommand(a *app) *cobra.Command {
	var (
		perUse   string
		maxUse   uint64
		maxTotal string
	)
	cmd := &cobra.Command{
		Use:   "validate-total",
		Short: "Check per-use amount × max uses against a limit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			per, err := decimal.NewFromString(perUse)
			if err != nil {
				return fmt.Errorf("invalid --per-use: %w", err)
			}
			limit := a.cfg.Fees.MaxAirdropTotal
			if maxTotal != "" {
				limit = maxTotal
			}
			if limit == "" {
				return errors.New("--max-total is required")
			}
			limitAmount, err := decimal.NewFromString(limit)
			if err != nil {
				return fmt.Errorf("invalid --max-total: %w", err)
			}

			res := fee.ValidateTotalAmount(fee.TotalAmountInput{PerUseAmount: per, MaxUse: maxUse, MaxTotalAmount: limitAmount})
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total:       %s\n", res.CalculatedTotal.String())
			fmt.Fprintf(out, "max per use: %s\n", res.MaxPerUse.String())
			if !res.IsValid {
				return fmt.Errorf("total %s is not valid for limit %s", res.CalculatedTotal.String(), limitAmount.String())
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&perUse, "per-use", "0", "amount per use")
	cmd.Flags().Uint64Var(&maxUse, "max-use", 1, "maximum number of uses")
	cmd.Flags().StringVar(&maxTotal, "max-total", "", "total limit (default fees.max_airdrop_total)")
	return cmd
}

func parseAmountFlag(text string, decimals int32, raw bool) (*big.Int, error) {
	if raw {
		v, ok := new(big.Int).SetString(text, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q", text)
		}
		return v, nil
	}
	return fee.ParseAmount(text, decimals)
}
