package signer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cashierlink/link-sdk-go/types"
)

// MethodBatchCallCanister 签名器批量调用方法名
const MethodBatchCallCanister = "icrc112_batch_call_canister"

// 单个调用的错误码
const (
	CallErrCodeFailed       = 1000 // 调用失败
	CallErrCodeNotProcessed = 1001 // 前序分组失败，未执行
)

// BatchRequest 引擎层批量请求：外层分组顺序执行，组内并行
type BatchRequest [][]types.CanisterCall

// Len 展开后的调用数量
func (b BatchRequest) Len() int {
	n := 0
	for _, group := range b {
		n += len(group)
	}
	return n
}

// WireCall 线上格式的单个调用，arg/nonce 为 base64
type WireCall struct {
	CanisterID string `json:"canisterId"`
	Method     string `json:"method"`
	Arg        string `json:"arg"`
	Nonce      string `json:"nonce,omitempty"`
}

// ValidationTarget 批量结果的校验 canister
type ValidationTarget struct {
	CanisterID string `json:"canisterId"`
	Method     string `json:"method"`
}

// BatchCallParams icrc112_batch_call_canister 参数
type BatchCallParams struct {
	Sender     string            `json:"sender"`
	Requests   [][]WireCall      `json:"requests"`
	Validation *ValidationTarget `json:"validation,omitempty"`
}

// CallError 单个调用的错误
type CallError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("canister call error [%d]: %s", e.Code, e.Message)
}

// CallResponse 单个调用结果，Result 和 Error 二选一
type CallResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *CallError      `json:"error,omitempty"`
}

// OK 调用是否成功
func (r CallResponse) OK() bool {
	return r.Error == nil
}

// BatchCallResult icrc112_batch_call_canister 结果
type BatchCallResult struct {
	Responses [][]CallResponse `json:"responses"`
}

// ToWire 转换为线上格式
func ToWire(sender string, batch BatchRequest, validation *ValidationTarget) *BatchCallParams {
	requests := make([][]WireCall, 0, len(batch))
	for _, group := range batch {
		wireGroup := make([]WireCall, 0, len(group))
		for _, call := range group {
			wc := WireCall{
				CanisterID: call.CanisterID,
				Method:     call.Method,
				Arg:        base64.StdEncoding.EncodeToString(call.Arg),
			}
			if len(call.Nonce) > 0 {
				wc.Nonce = base64.StdEncoding.EncodeToString(call.Nonce)
			}
			wireGroup = append(wireGroup, wc)
		}
		requests = append(requests, wireGroup)
	}
	return &BatchCallParams{
		Sender:     sender,
		Requests:   requests,
		Validation: validation,
	}
}

// FromWire 从线上格式还原（IntentID 不在线上传输）
func FromWire(params *BatchCallParams) (BatchRequest, error) {
	if params == nil {
		return nil, fmt.Errorf("nil batch params")
	}
	batch := make(BatchRequest, 0, len(params.Requests))
	for g, group := range params.Requests {
		calls := make([]types.CanisterCall, 0, len(group))
		for i, wc := range group {
			if wc.CanisterID == "" || wc.Method == "" {
				return nil, fmt.Errorf("request [%d][%d]: canisterId and method are required", g, i)
			}
			arg, err := base64.StdEncoding.DecodeString(wc.Arg)
			if err != nil {
				return nil, fmt.Errorf("request [%d][%d]: decode arg: %w", g, i, err)
			}
			call := types.CanisterCall{
				CanisterID: wc.CanisterID,
				Method:     wc.Method,
				Arg:        arg,
			}
			if wc.Nonce != "" {
				call.Nonce, err = base64.StdEncoding.DecodeString(wc.Nonce)
				if err != nil {
					return nil, fmt.Errorf("request [%d][%d]: decode nonce: %w", g, i, err)
				}
			}
			calls = append(calls, call)
		}
		batch = append(batch, calls)
	}
	return batch, nil
}

// CheckShape 结果分组结构必须与请求一致
func (r *BatchCallResult) CheckShape(params *BatchCallParams) error {
	if len(r.Responses) != len(params.Requests) {
		return fmt.Errorf("response has %d groups, request has %d", len(r.Responses), len(params.Requests))
	}
	for g := range params.Requests {
		if len(r.Responses[g]) != len(params.Requests[g]) {
			return fmt.Errorf("response group %d has %d calls, request has %d",
				g, len(r.Responses[g]), len(params.Requests[g]))
		}
	}
	return nil
}
