package signer

import (
	"context"

	"github.com/cashierlink/link-sdk-go/client"
)

// Transport 签名器批量调用通道
type Transport interface {
	BatchCall(ctx context.Context, params *BatchCallParams) (*BatchCallResult, error)
}

// Connector 提供当前已连接的签名器
type Connector interface {
	// Connected 未连接时返回 false
	Connected() (Transport, bool)
}

// ConnectorFunc 函数适配 Connector
type ConnectorFunc func() (Transport, bool)

// Connected 实现 Connector
func (f ConnectorFunc) Connected() (Transport, bool) {
	return f()
}

// Static 固定 Transport 的 Connector，t 为 nil 时视为未连接
func Static(t Transport) Connector {
	return ConnectorFunc(func() (Transport, bool) {
		return t, t != nil
	})
}

// RPCTransport 通过 JSON-RPC 通道调用远端签名器
type RPCTransport struct {
	client client.Client
}

// NewRPCTransport 创建 RPC 签名器通道
func NewRPCTransport(c client.Client) *RPCTransport {
	return &RPCTransport{client: c}
}

// BatchCall 发送 icrc112_batch_call_canister
func (t *RPCTransport) BatchCall(ctx context.Context, params *BatchCallParams) (*BatchCallResult, error) {
	var result BatchCallResult
	if err := client.CallInto(ctx, t.client, MethodBatchCallCanister, params, &result); err != nil {
		return nil, &BatchError{Op: MethodBatchCallCanister, Err: err}
	}
	if err := result.CheckShape(params); err != nil {
		return nil, &BatchError{Op: "decode responses", Err: err}
	}
	return &result, nil
}

// Close 关闭底层连接
func (t *RPCTransport) Close() error {
	return t.client.Close()
}
