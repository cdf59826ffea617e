package signer

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cashierlink/link-sdk-go/client"
)

// MethodCallCanister 边界节点执行已签名调用的方法
const MethodCallCanister = "call_canister"

// wireSignedCall 已签名调用的 JSON 形式
type wireSignedCall struct {
	Sender     string `json:"sender"`
	CanisterID string `json:"canisterId"`
	Method     string `json:"method"`
	Arg        string `json:"arg"`
	Nonce      string `json:"nonce,omitempty"`
	PublicKey  string `json:"publicKey"`
	Signature  string `json:"signature"`
}

// RPCCaller 通过 JSON-RPC 把已签名调用转发给边界节点
type RPCCaller struct {
	client client.Client
}

// NewRPCCaller 创建边界节点调用器
func NewRPCCaller(c client.Client) *RPCCaller {
	return &RPCCaller{client: c}
}

// CallCanister 实现 CanisterCaller
func (r *RPCCaller) CallCanister(ctx context.Context, call *SignedCall) (json.RawMessage, error) {
	w := wireSignedCall{
		Sender:     call.Sender,
		CanisterID: call.CanisterID,
		Method:     call.Method,
		Arg:        base64.StdEncoding.EncodeToString(call.Arg),
		PublicKey:  hex.EncodeToString(call.PublicKey),
		Signature:  hex.EncodeToString(call.Signature),
	}
	if len(call.Nonce) > 0 {
		w.Nonce = base64.StdEncoding.EncodeToString(call.Nonce)
	}
	out, err := r.client.Call(ctx, MethodCallCanister, w)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", call.CanisterID, call.Method, err)
	}
	return out, nil
}

// Close 关闭底层连接
func (r *RPCCaller) Close() error {
	return r.client.Close()
}
