package signer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/types"
	"github.com/cashierlink/link-sdk-go/utils"
	"github.com/cashierlink/link-sdk-go/wallet"
)

// SignedCall 已签名的单个 canister 调用
type SignedCall struct {
	Sender     string
	CanisterID string
	Method     string
	Arg        []byte
	Nonce      []byte
	PublicKey  []byte // DER
	Signature  []byte // r || s
}

// CanisterCaller 执行已签名调用的下游（边界节点或测试桩）
type CanisterCaller interface {
	CallCanister(ctx context.Context, call *SignedCall) (json.RawMessage, error)
}

// CanisterCallerFunc 函数适配 CanisterCaller
type CanisterCallerFunc func(ctx context.Context, call *SignedCall) (json.RawMessage, error)

// CallCanister 实现 CanisterCaller
func (f CanisterCallerFunc) CallCanister(ctx context.Context, call *SignedCall) (json.RawMessage, error) {
	return f(ctx, call)
}

// LocalSigner 进程内签名器
//
// 外层分组顺序执行，组内并发；某组有调用失败时，后续分组不再执行并标记为未处理。
type LocalSigner struct {
	wallet      wallet.Wallet
	caller      CanisterCaller
	concurrency int
	logger      client.Logger
}

// LocalSignerOption 选项
type LocalSignerOption func(*LocalSigner)

// WithConcurrency 组内并发上限，0 表示不限
func WithConcurrency(n int) LocalSignerOption {
	return func(s *LocalSigner) { s.concurrency = n }
}

// WithLogger 设置日志器
func WithLogger(l client.Logger) LocalSignerOption {
	return func(s *LocalSigner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewLocalSigner 创建进程内签名器
func NewLocalSigner(w wallet.Wallet, caller CanisterCaller, opts ...LocalSignerOption) *LocalSigner {
	s := &LocalSigner{wallet: w, caller: caller, logger: client.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sender 签名者 principal
func (s *LocalSigner) Sender() string {
	return s.wallet.Principal().String()
}

// BatchCall 实现 Transport
func (s *LocalSigner) BatchCall(ctx context.Context, params *BatchCallParams) (*BatchCallResult, error) {
	if params.Sender != s.Sender() {
		return nil, &BatchError{Op: "authorize", Err: fmt.Errorf("sender %s does not match signer %s", params.Sender, s.Sender())}
	}
	batch, err := FromWire(params)
	if err != nil {
		return nil, &BatchError{Op: "decode requests", Err: err}
	}

	result := &BatchCallResult{Responses: make([][]CallResponse, len(batch))}
	halted := false
	for g, group := range batch {
		if halted {
			result.Responses[g] = notProcessed(len(group))
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &BatchError{Op: MethodBatchCallCanister, Err: err}
		}

		outputs, errs := utils.ParallelCollect(ctx, group, func(ctx context.Context, call types.CanisterCall, _ int) (json.RawMessage, error) {
			signed, err := s.sign(call)
			if err != nil {
				return nil, err
			}
			return s.caller.CallCanister(ctx, signed)
		}, s.concurrency)

		responses := make([]CallResponse, len(group))
		for i := range group {
			if errs[i] != nil {
				s.logger.Warn("Canister call failed", "group", g, "index", i, "method", group[i].Method, "error", errs[i])
				responses[i] = CallResponse{Error: &CallError{Code: CallErrCodeFailed, Message: errs[i].Error()}}
				halted = true
				continue
			}
			responses[i] = CallResponse{Result: outputs[i]}
		}
		result.Responses[g] = responses
	}
	return result, nil
}

// sign 对 CallDigest 签名
func (s *LocalSigner) sign(call types.CanisterCall) (*SignedCall, error) {
	signed := &SignedCall{
		Sender:     s.Sender(),
		CanisterID: call.CanisterID,
		Method:     call.Method,
		Arg:        call.Arg,
		Nonce:      call.Nonce,
		PublicKey:  s.wallet.PublicKeyDER(),
	}
	sig, err := s.wallet.SignHash(CallDigest(signed))
	if err != nil {
		return nil, fmt.Errorf("sign %s.%s: %w", call.CanisterID, call.Method, err)
	}
	signed.Signature = sig
	return signed, nil
}

// CallDigest sha256(canisterId || method || arg || nonce)，每段带 8 字节长度前缀
func CallDigest(call *SignedCall) []byte {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(call.CanisterID), []byte(call.Method), call.Arg, call.Nonce} {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return h.Sum(nil)
}

func notProcessed(n int) []CallResponse {
	out := make([]CallResponse, n)
	for i := range out {
		out[i] = CallResponse{Error: &CallError{Code: CallErrCodeNotProcessed, Message: "not processed due to batch request failure"}}
	}
	return out
}
