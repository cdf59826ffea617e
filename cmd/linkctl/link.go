package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services/action"
	"github.com/cashierlink/link-sdk-go/services/cart"
	"github.com/cashierlink/link-sdk-go/services/fee"
	"github.com/cashierlink/link-sdk-go/services/link"
	"github.com/cashierlink/link-sdk-go/types"
)

type executeFlags struct {
	wallet      string
	localSigner bool
}

func (f *executeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.wallet, "wallet", "", "principal of the keystore wallet that signs")
	cmd.Flags().BoolVar(&f.localSigner, "local-signer", false, "sign locally and send signed calls to signer.endpoint")
}

func newLinkCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create and manage links",
	}
	cmd.AddCommand(newLinkCreateCommand(a))
	return cmd
}

func newLinkCreateCommand(a *app) *cobra.Command {
	var (
		exec        executeFlags
		linkType    string
		title       string
		description string
		assets      []string
		maxUse      uint64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a link draft, pay the create action and activate it",
		Example: `  linkctl link create --type SendTip --title "Coffee" \
    --asset ryjl3-tyaaa-aaaaa-aaaba-cai=0.5 --wallet <principal>`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, err := a.openWallet(exec.wallet)
			if err != nil {
				return err
			}
			_, backend, err := a.backendClient()
			if err != nil {
				return err
			}
			fees, oracle, err := a.feeService()
			if err != nil {
				return err
			}
			svc, err := a.servicesConfig()
			if err != nil {
				return err
			}
			creator := types.Wallet{Address: w.Principal().String()}

			m := link.NewDraft(link.NewStore(), backend,
				link.WithConfig(svc),
				link.WithFeeService(fees),
				link.WithBalanceProvider(oracle, creator),
				link.WithLogger(client.WithComponent(a.logger, "link")),
			)

			if _, err := m.SetLinkType(types.LinkType(linkType)); err != nil {
				return err
			}
			if _, err := m.SetDetails(title, description); err != nil {
				return err
			}
			if _, err := m.GoNext(ctx); err != nil {
				return err
			}

			infos, err := parseAssets(cmd, fees, assets)
			if err != nil {
				return err
			}
			if _, err := m.SetAssets(infos); err != nil {
				return err
			}
			if _, err := m.SetMaxUse(maxUse); err != nil {
				return err
			}
			if _, err := m.GoNext(ctx); err != nil {
				return err
			}

			snap, err := m.GoNext(ctx)
			if err != nil {
				return err
			}
			if snap.Action == nil {
				return errors.New("backend did not return a create action")
			}

			engine, err := a.engine(w, exec.localSigner)
			if err != nil {
				return err
			}
			res, err := executeAndPrint(ctx, cmd, engine, cart.NewBuilder(fees, cart.WithLogger(a.logger)), m.ID(), *snap.Action)
			if err != nil {
				return err
			}
			if _, err := m.AttachAction(res.Action); err != nil {
				return err
			}
			if !res.Action.AllSucceeded() {
				return fmt.Errorf("create action %s did not complete, retry with 'linkctl action execute --link %s'", res.Action.ID, m.ID())
			}

			snap, err = m.GoNext(ctx)
			if err != nil {
				return err
			}
			url, err := link.ShareURL(a.cfg.Share.BaseURL, snap.Link.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "link %s is %s\n%s\n", snap.Link.ID, snap.Link.State, url)
			return nil
		},
	}
	exec.register(cmd)
	cmd.Flags().StringVar(&linkType, "type", string(types.LinkTypeSendTip), "link type (SendTip, SendAirdrop, SendTokenBasket, ReceivePayment)")
	cmd.Flags().StringVar(&title, "title", "", "link title")
	cmd.Flags().StringVar(&description, "description", "", "link description")
	cmd.Flags().StringArrayVar(&assets, "asset", nil, "asset as <ledger>=<amount per use>, repeatable")
	cmd.Flags().Uint64Var(&maxUse, "max-use", 1, "maximum number of uses")
	return cmd
}

// parseAssets 解析 <ledger>=<amount>，金额按代币精度换算
func parseAssets(cmd *cobra.Command, fees *fee.Service, specs []string) ([]types.AssetInfo, error) {
	out := make([]types.AssetInfo, 0, len(specs))
	for _, spec := range specs {
		addr, amount, ok := strings.Cut(spec, "=")
		if !ok || addr == "" {
			return nil, fmt.Errorf("invalid --asset %q, want <ledger>=<amount>", spec)
		}
		meta, _ := fees.Metadata(cmd.Context(), addr)
		raw, err := fee.ParseAmount(amount, meta.Decimals)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", addr, err)
		}
		out = append(out, types.AssetInfo{
			Asset:  types.Asset{Chain: types.ChainIC, Address: addr},
			Amount: raw,
		})
	}
	return out, nil
}

func newActionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Run link actions",
	}

	var (
		exec       executeFlags
		linkID     string
		actionType string
		actionID   string
		wait       bool
		timeout    time.Duration
	)
	executeCmd := &cobra.Command{
		Use:   "execute",
		Short: "Fetch (or create) an action for a link and execute its pending intents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if linkID == "" {
				return errors.New("--link is required")
			}
			w, err := a.openWallet(exec.wallet)
			if err != nil {
				return err
			}
			_, backend, err := a.backendClient()
			if err != nil {
				return err
			}
			fees, _, err := a.feeService()
			if err != nil {
				return err
			}
			svc, err := a.servicesConfig()
			if err != nil {
				return err
			}

			act, err := backend.ProcessAction(cmd.Context(), &client.ProcessActionRequest{
				LinkID:     linkID,
				ActionType: types.ActionType(actionType),
				ActionID:   actionID,
			})
			if err != nil {
				return err
			}

			engine, err := a.engine(w, exec.localSigner)
			if err != nil {
				return err
			}

			execCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				execCtx, cancel = context.WithTimeout(execCtx, timeout)
				defer cancel()
			}
			res, err := executeAndPrint(execCtx, cmd, engine, cart.NewBuilder(fees, cart.WithLogger(a.logger)), linkID, *act)
			switch {
			case err != nil && !(wait && errors.Is(err, context.DeadlineExceeded)):
				return err
			case err == nil && res.Action.AllSucceeded():
				return nil
			case err == nil && !wait:
				return fmt.Errorf("action %s finished with state %s", res.Action.ID, res.Action.State)
			}

			// 批量已提交但还没结束，轮询后端直到对账完成
			fmt.Fprintf(cmd.OutOrStdout(), "waiting for action %s to settle\n", act.ID)
			state, err := waitSettled(cmd.Context(), backend, &client.LinkUserStateRequest{
				LinkID:     linkID,
				ActionType: types.ActionType(actionType),
			}, w.Principal().String(), svc, client.WithComponent(a.logger, "session"))
			if err != nil {
				return err
			}
			if state.Action != nil && state.Action.State != types.ActionStateSuccess {
				return fmt.Errorf("action %s finished with state %s", state.Action.ID, state.Action.State)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "action %s settled\n", act.ID)
			return nil
		},
	}
	exec.register(executeCmd)
	executeCmd.Flags().StringVar(&linkID, "link", "", "link id")
	executeCmd.Flags().StringVar(&actionType, "type", string(types.ActionTypeWithdraw), "action type")
	executeCmd.Flags().StringVar(&actionID, "id", "", "existing action id")
	executeCmd.Flags().BoolVar(&wait, "wait", false, "poll the backend until the action settles (session.poll_interval, gives up after session.idle_timeout without progress)")
	executeCmd.Flags().DurationVar(&timeout, "timeout", 0, "stop waiting for the signer after this long; with --wait the action is then reconciled by polling")

	cmd.AddCommand(executeCmd)
	return cmd
}

// executeAndPrint 打印待执行的 Cart，执行后打印最终状态
func executeAndPrint(ctx context.Context, cmd *cobra.Command, engine *action.Engine, builder *cart.Builder, linkID string, act types.Action) (*action.Result, error) {
	out := cmd.OutOrStdout()

	c, err := builder.Build(ctx, act)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "action %s (%s)\n", act.ID, act.Type)
	printCart(cmd, c)

	session := engine.Open(linkID, act)
	defer engine.Close(linkID)

	res, err := session.Execute(ctx)
	if err != nil {
		if current, ok := session.Action(); ok {
			printCart(cmd, c.WithAction(current))
		}
		return nil, err
	}
	fmt.Fprintf(out, "executed in %s\n", res.Duration.Round(time.Millisecond))
	printCart(cmd, c.WithAction(res.Action))
	return res, nil
}

func printCart(cmd *cobra.Command, c *cart.Cart) {
	out := cmd.OutOrStdout()
	for _, item := range c.Items {
		line := fmt.Sprintf("  %-10s %-26s %s %s", item.State, item.Task, item.Asset.AmountHuman.String(), item.Asset.Symbol)
		if item.Fee != nil && item.Fee.FeeHuman != nil {
			line += fmt.Sprintf(" (fee %s)", item.Fee.FeeHuman.String())
		}
		fmt.Fprintln(out, line)
	}
	for _, t := range c.Totals {
		line := fmt.Sprintf("  total %s %s, fees %s", t.AmountHuman.String(), t.Symbol, t.FeeHuman.String())
		if t.USD != nil {
			line += fmt.Sprintf(" (~$%s)", t.USD.StringFixed(2))
		}
		fmt.Fprintln(out, line)
	}
}
