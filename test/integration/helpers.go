package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services/action"
	"github.com/cashierlink/link-sdk-go/services/session"
	"github.com/cashierlink/link-sdk-go/signer"
	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/wallet"
)

// NewTestEngine 创建使用本地签名的执行引擎
func NewTestEngine(t *testing.T, backend client.BackendClient, signerRPC client.Client, w wallet.Wallet) *action.Engine {
	t.Helper()
	account := action.StaticAccount(types.Wallet{Address: w.Principal().String()})
	e := action.NewEngine(backend, account)
	local := signer.NewLocalSigner(w, signer.NewRPCCaller(signerRPC))
	require.NoError(t, e.Initialize(signer.Static(local)), "绑定签名器失败")
	return e
}

// waitForActionSettled 轮询后端直到所有 Intent 都已成功或失败
func waitForActionSettled(ctx context.Context, s *action.Session, interval time.Duration) (types.Action, error) {
	settled := make(chan types.Action, 1)
	poller := session.NewPoller(interval, func(ctx context.Context) error {
		a, err := s.Refresh(ctx)
		if err != nil {
			return err
		}
		for _, it := range a.Intents {
			if it.State != types.IntentStateSuccess && it.State != types.IntentStateFail {
				return nil
			}
		}
		select {
		case settled <- a:
		default:
		}
		return nil
	}, nil)
	poller.Start(ctx)
	defer poller.Stop()

	select {
	case a := <-settled:
		return a, nil
	case <-ctx.Done():
		cur, _ := s.Action()
		return cur, fmt.Errorf("action %s not settled: %w", cur.ID, ctx.Err())
	}
}

// WaitForActionSettled 等待 Action 对账完成
func WaitForActionSettled(t *testing.T, s *action.Session) types.Action {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ActionSettleTimeout)
	defer cancel()

	a, err := waitForActionSettled(ctx, s, ActionSettleInterval)
	require.NoError(t, err, "等待 Action 对账失败")
	return a
}

// VerifyActionSuccess 验证 Action 所有 Intent 成功
func VerifyActionSuccess(t *testing.T, a types.Action) {
	t.Helper()
	assert.NotEmpty(t, a.ID, "Action ID 为空")
	for _, it := range a.Intents {
		assert.Equal(t, types.IntentStateSuccess, it.State, "intent %s (%s) 未成功", it.ID, it.Task)
	}
}
