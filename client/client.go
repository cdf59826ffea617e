package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client JSON-RPC 客户端接口
//
// 后端 RPC 和签名器批量调用都走同一个通道，具体协议由 Config.Protocol 决定。
type Client interface {
	// Call 调用 JSON-RPC 方法，返回原始 result
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// Close 关闭连接
	Close() error
}

// NewClient 创建新的客户端
func NewClient(config *Config) (Client, error) {
	config = config.withDefaults()

	switch config.Protocol {
	case ProtocolHTTP:
		return NewHTTPClient(config)
	case ProtocolGRPC:
		return NewGRPCClient(config)
	case ProtocolWebSocket:
		return NewWebSocketClient(config)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", config.Protocol)
	}
}

// CallInto 调用方法并把 result 解码到 out
func CallInto(ctx context.Context, c Client, method string, params interface{}, out interface{}) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return NewInvalidResponseError(fmt.Sprintf("%s returned empty result", method))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{
			Code:    ErrCodeInvalidResponse,
			Message: fmt.Sprintf("decode %s result", method),
			Err:     err,
		}
	}
	return nil
}
