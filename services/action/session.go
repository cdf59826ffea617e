package action

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/signer"
	"github.com/cashierlink/link-sdk-go/types"
)

// CallOutcome 单个调用的结果
type CallOutcome struct {
	Group    int
	Index    int
	IntentID string
	Method   string
	Err      *signer.CallError // nil 表示成功
}

// Result Execute 结果
type Result struct {
	Action        types.Action
	DisplayStates map[string]types.DisplayState
	Calls         []CallOutcome
	Duration      time.Duration
}

// Session 单个链接的 Action 执行会话
//
// Action 只整体替换，每次替换都推送给订阅者。
type Session struct {
	engine  *Engine
	linkID  string
	running atomic.Bool
}

// LinkID 链接 ID
func (s *Session) LinkID() string {
	return s.linkID
}

// Action 当前 Action
func (s *Session) Action() (types.Action, bool) {
	a, ok := s.engine.actions.Get(s.linkID)
	if !ok {
		return types.Action{}, false
	}
	return a.Clone(), true
}

// Subscribe 订阅 Action 替换
func (s *Session) Subscribe() (<-chan types.Action, func()) {
	return s.engine.actions.Subscribe(s.linkID)
}

func (s *Session) replace(a types.Action) {
	s.engine.actions.Put(s.linkID, a.Clone())
}

// Refresh 从后端重新拉取 Action，用于放弃等待后的对账
func (s *Session) Refresh(ctx context.Context) (types.Action, error) {
	cur, ok := s.Action()
	if !ok {
		return types.Action{}, fmt.Errorf("no action for link %s", s.linkID)
	}
	fresh, err := s.engine.backend.ProcessAction(ctx, &client.ProcessActionRequest{
		LinkID:     s.linkID,
		ActionType: cur.Type,
		ActionID:   cur.ID,
	})
	if err != nil {
		return cur, fmt.Errorf("refresh action %s: %w", cur.ID, err)
	}
	s.replace(*fresh)
	return fresh.Clone(), nil
}

// pendingCall 需要提交的调用及其 Intent
type pendingCall struct {
	group, index int
	intentID     string
	call         types.CanisterCall
}

// Execute 提交 Action 的批量请求并与后端对账
//
// 已处于 Processing 或 Success 的 Intent 对应的调用不会重复提交。同一会话不允许并发调用。
func (s *Session) Execute(ctx context.Context) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrExecuteInFlight
	}
	defer s.running.Store(false)

	e := s.engine
	start := time.Now()

	account, ok := e.accounts.Account()
	if !ok {
		e.metrics.incExecution("unauthenticated")
		return nil, types.ErrUnauthenticated
	}

	cur, ok := s.Action()
	if !ok {
		return nil, fmt.Errorf("no action for link %s", s.linkID)
	}

	// 提交前的状态决定哪些调用需要跳过
	skip := make(map[string]bool, len(cur.Intents))
	for _, it := range cur.Intents {
		if it.State == types.IntentStateProcessing || it.State == types.IntentStateSuccess {
			skip[it.ID] = true
		}
	}
	pending := collectPending(cur, skip)

	if err := e.checkTreasury(cur, skip); err != nil {
		e.metrics.incExecution("rejected")
		e.logger.Error("Refusing to sign action", "link", s.linkID, "action", cur.ID, "error", err)
		return nil, err
	}

	var transport signer.Transport
	if len(pending) > 0 {
		transport = e.currentTransport()
		if transport == nil {
			e.metrics.incExecution("degraded")
			return nil, ErrSignerUnavailable
		}
	}

	// Created/Fail → Processing
	processing := cur.Clone()
	for i, it := range processing.Intents {
		if types.CanTransition(it.State, types.IntentStateProcessing) {
			processing.Intents[i].State = types.IntentStateProcessing
		}
	}
	processing.State = types.ActionStateProcessing
	s.replace(processing)
	local := processing

	var calls []CallOutcome
	if len(pending) > 0 {
		batch, groupOf := buildBatch(pending)
		params := signer.ToWire(account.Address, batch, e.validation)

		e.logger.Info("Submitting batch", "link", s.linkID, "action", cur.ID, "groups", len(batch), "calls", len(pending))
		batchStart := time.Now()
		resp, err := transport.BatchCall(ctx, params)
		e.metrics.observeBatch(time.Since(batchStart))
		if err == nil {
			err = resp.CheckShape(params)
		}
		if err != nil && ctx.Err() != nil {
			// 调用方放弃等待：批量可能已送达签名器，保持 Processing，由 Refresh 或下一次 Execute 对账
			e.metrics.incExecution("abandoned")
			e.logger.Warn("Batch call abandoned by caller", "link", s.linkID, "action", cur.ID, "error", err)
			return nil, fmt.Errorf("execute action %s: %w", cur.ID, err)
		}
		if err != nil {
			failed := markAll(local, types.IntentStateProcessing, types.IntentStateFail)
			failed.State = types.ActionStateFail
			s.replace(failed)
			e.metrics.incExecution("batch_error")
			e.metrics.observeIntents(failed)
			e.logger.Error("Batch call failed", "link", s.linkID, "action", cur.ID, "error", err)

			var bErr *signer.BatchError
			if !errors.As(err, &bErr) {
				err = &signer.BatchError{Op: signer.MethodBatchCallCanister, Err: err}
			}
			return nil, fmt.Errorf("execute action %s: %w", cur.ID, err)
		}

		calls = make([]CallOutcome, 0, len(pending))
		failedIntents := make(map[string]bool)
		for g, group := range resp.Responses {
			for i, r := range group {
				p := groupOf[g][i]
				calls = append(calls, CallOutcome{
					Group:    p.group,
					Index:    p.index,
					IntentID: p.intentID,
					Method:   p.call.Method,
					Err:      r.Error,
				})
				if !r.OK() && p.intentID != "" {
					failedIntents[p.intentID] = true
				}
			}
		}
		if len(failedIntents) > 0 {
			local = local.Clone()
			for i, it := range local.Intents {
				if failedIntents[it.ID] && it.State == types.IntentStateProcessing {
					local.Intents[i].State = types.IntentStateFail
				}
			}
			s.replace(local)
			e.logger.Warn("Some canister calls failed", "link", s.linkID, "action", cur.ID, "failed_intents", len(failedIntents))
		}
	}

	updated, err := e.backend.UpdateAction(ctx, &client.UpdateActionRequest{
		ActionID: cur.ID,
		LinkID:   s.linkID,
		External: true,
	})
	if err != nil {
		e.metrics.incExecution("backend_error")
		e.logger.Error("Action reconciliation failed", "link", s.linkID, "action", cur.ID, "error", err)
		return nil, fmt.Errorf("reconcile action %s: %w", cur.ID, err)
	}

	s.replace(*updated)
	e.metrics.incExecution("ok")
	e.metrics.observeIntents(*updated)

	return &Result{
		Action:        updated.Clone(),
		DisplayStates: DisplayStates(*updated),
		Calls:         calls,
		Duration:      time.Since(start),
	}, nil
}

// checkTreasury 待提交的 treasury Intent 必须付给配置的 treasury canister
func (e *Engine) checkTreasury(a types.Action, skip map[string]bool) error {
	if e.treasury == "" {
		return nil
	}
	for _, it := range a.Intents {
		if skip[it.ID] || it.Task != types.TaskTransferWalletToTreasury {
			continue
		}
		if to := it.Transfer.To.Address; to != e.treasury {
			return fmt.Errorf("intent %s: %w: %q, want %q", it.ID, ErrUnexpectedTreasury, to, e.treasury)
		}
	}
	return nil
}

// DisplayStates Intent 展示状态
func DisplayStates(a types.Action) map[string]types.DisplayState {
	out := make(map[string]types.DisplayState, len(a.Intents))
	for _, it := range a.Intents {
		out[it.ID] = it.State.Display()
	}
	return out
}

// collectPending 展开批量请求并过滤已提交 Intent 的调用
//
// 调用通过 IntentID 关联 Intent；为空时按展开后的位置对应 Intents[i]。
func collectPending(a types.Action, skip map[string]bool) []pendingCall {
	var out []pendingCall
	flat := 0
	for g, group := range a.BatchRequests {
		for i, call := range group {
			intentID := call.IntentID
			if intentID == "" && flat < len(a.Intents) {
				intentID = a.Intents[flat].ID
			}
			flat++
			if intentID != "" && skip[intentID] {
				continue
			}
			out = append(out, pendingCall{group: g, index: i, intentID: intentID, call: call})
		}
	}
	return out
}

// buildBatch 按原分组重建批量请求，空分组被丢弃；groupOf 记录每个位置对应的调用
func buildBatch(pending []pendingCall) (signer.BatchRequest, [][]pendingCall) {
	var batch signer.BatchRequest
	var groupOf [][]pendingCall
	last := -1
	for _, p := range pending {
		if p.group != last {
			batch = append(batch, nil)
			groupOf = append(groupOf, nil)
			last = p.group
		}
		n := len(batch) - 1
		batch[n] = append(batch[n], p.call)
		groupOf[n] = append(groupOf[n], p)
	}
	return batch, groupOf
}

func markAll(a types.Action, from, to types.IntentState) types.Action {
	out := a.Clone()
	for i, it := range out.Intents {
		if it.State == from {
			out.Intents[i].State = to
		}
	}
	return out
}
