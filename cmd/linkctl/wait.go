package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/session"
	"github.com/cashierlink/link-sdk-go/types"
)

// errIdle 在空闲超时前没有观察到任何进展
var errIdle = errors.New("no progress before idle timeout")

// settled Action 已成功或失败，或领取方状态已完成
func settled(res *types.LinkUserStateResult) bool {
	if res == nil {
		return false
	}
	if res.LinkUserState == types.LinkUserStateCompleted {
		return true
	}
	return res.Action != nil &&
		(res.Action.State == types.ActionStateSuccess || res.Action.State == types.ActionStateFail)
}

// progressKey 两次轮询的 key 不同即视为有进展
func progressKey(res *types.LinkUserStateResult) string {
	var b strings.Builder
	b.WriteString(string(res.LinkUserState))
	if res.Action != nil {
		b.WriteString("|" + string(res.Action.State))
		for _, it := range res.Action.Intents {
			b.WriteString("|" + it.ID + "=" + string(it.State))
		}
	}
	return b.String()
}

// waitSettled 每 PollInterval 轮询一次 get_link_user_state，直到 Action 结束
//
// principal 每次有进展时 Touch 一次；超过 IdleTimeout 没有进展则放弃等待，返回 errIdle。
func waitSettled(
	ctx context.Context,
	backend client.BackendClient,
	req *client.LinkUserStateRequest,
	principal string,
	svc *services.Config,
	logger client.Logger,
) (*types.LinkUserStateResult, error) {
	svc = svc.WithDefaults()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var idleOut atomic.Bool
	idle := session.NewIdleTracker(svc.IdleTimeout, func(p string) {
		if p == principal {
			idleOut.Store(true)
			cancel()
		}
	}, session.WithIdleLogger(logger))
	idle.Touch(principal)

	idleDone := make(chan struct{})
	go func() {
		idle.Run(ctx, svc.PollInterval)
		close(idleDone)
	}()
	defer func() {
		cancel()
		<-idleDone
	}()

	results := make(chan *types.LinkUserStateResult, 1)
	var last string
	poller := session.NewLinkUserStatePoller(backend, req, svc.PollInterval, func(res *types.LinkUserStateResult) {
		if key := progressKey(res); key != last {
			last = key
			idle.Touch(principal)
		}
		if settled(res) {
			select {
			case results <- res:
			default:
			}
		}
	}, logger)
	poller.Start(ctx)
	defer poller.Stop()

	select {
	case res := <-results:
		return res, nil
	case <-ctx.Done():
		if idleOut.Load() {
			return nil, fmt.Errorf("link %s: %w (%s)", req.LinkID, errIdle, svc.IdleTimeout)
		}
		return nil, ctx.Err()
	}
}
