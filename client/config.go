package client

import (
	"net/http"
	"time"
)

// Protocol 传输协议
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolGRPC      Protocol = "grpc"
	ProtocolWebSocket Protocol = "websocket"
)

// DefaultTimeout Timeout 为零时的单次请求超时
const DefaultTimeout = 30 * time.Second

// Config 后端或签名器的 JSON-RPC 连接参数
//
// 零值字段由 withDefaults 补齐；Retry 为 nil 时 HTTP 使用 DefaultRetryConfig。
type Config struct {
	Endpoint string
	Protocol Protocol
	Timeout  time.Duration

	// Headers 附加到每个 HTTP 请求、WebSocket 握手和 gRPC metadata
	Headers map[string]string

	Retry  *RetryConfig
	TLS    *TLSConfig
	Debug  bool // 打印请求和响应体
	Logger Logger
}

// TLSConfig TLS 文件，Insecure 只用于本地副本
type TLSConfig struct {
	CAFile   string
	CertFile string
	KeyFile  string
	Insecure bool
}

// DefaultConfig 本地副本的默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:4943",
		Protocol: ProtocolHTTP,
		Timeout:  DefaultTimeout,
	}
}

// withDefaults 补齐零值后的副本，nil 返回 DefaultConfig
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.Endpoint == "" {
		out.Endpoint = def.Endpoint
	}
	if out.Protocol == "" {
		out.Protocol = def.Protocol
	}
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	return &out
}

func (c *Config) header() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}
