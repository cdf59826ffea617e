package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// GRPCMethod gRPC 网关暴露的 JSON-RPC 透传方法
const GRPCMethod = "/cashierlink.rpc.v1.JSONRPC/Call"

// jsonCodec 以 JSON 编码 gRPC 消息，网关不需要 protobuf 定义
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return "json" }

// grpcClient gRPC 客户端实现
//
// 每次调用是一次 unary 请求，消息体为 JSON-RPC 信封。
type grpcClient struct {
	conn     *grpc.ClientConn
	endpoint string
	timeout  time.Duration
	md       metadata.MD
	nextID   atomic.Uint64
}

// NewGRPCClient 创建 gRPC 客户端
func NewGRPCClient(config *Config) (Client, error) {
	config = config.withDefaults()

	endpoint := strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "http://"), "https://")
	timeout := config.Timeout

	creds := insecure.NewCredentials()
	if config.TLS != nil && !config.TLS.Insecure && config.TLS.CAFile != "" {
		tlsCreds, err := credentials.NewClientTLSFromFile(config.TLS.CAFile, "")
		if err != nil {
			return nil, fmt.Errorf("load gRPC TLS credentials: %w", err)
		}
		creds = tlsCreds
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial gRPC: %w", err))
	}

	return &grpcClient{
		conn:     conn,
		endpoint: endpoint,
		timeout:  timeout,
		md:       metadata.New(config.Headers),
	}, nil
}

// Call 调用 JSON-RPC 方法（通过 gRPC 透传）
func (c *grpcClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	if c.md.Len() > 0 {
		ctx = metadata.NewOutgoingContext(ctx, c.md)
	}

	var resp jsonRPCResponse
	if err := c.conn.Invoke(ctx, GRPCMethod, req, &resp); err != nil {
		return nil, NewNetworkError(fmt.Errorf("gRPC invoke %s: %w", method, err))
	}
	if resp.Error != nil {
		return nil, rpcErrorToError(resp.Error)
	}
	return resp.Result, nil
}

// Close 关闭连接
func (c *grpcClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
