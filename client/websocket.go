package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// websocketClient WebSocket 客户端实现
//
// 单连接上复用多个请求，按 id 把响应分发给等待的调用方。
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	timeout  time.Duration
	logger   Logger

	writeMu sync.Mutex // gorilla 连接不支持并发写
	closed  atomic.Bool
	nextID  atomic.Uint64

	muReq    sync.Mutex
	requests map[uint64]chan *jsonRPCResponse
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	config = config.withDefaults()

	endpoint := toWebSocketURL(config.Endpoint)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(endpoint, config.header())
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	c := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		timeout:  config.Timeout,
		logger:   config.Logger,
		requests: make(map[uint64]chan *jsonRPCResponse),
	}

	go c.readLoop()

	return c, nil
}

// toWebSocketURL 将 http:// 或 https:// 转换为 ws:// 或 wss://
func toWebSocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	default:
		return "ws://" + endpoint
	}
}

// readLoop 消息读取循环，退出时唤醒所有等待中的请求
func (c *websocketClient) readLoop() {
	defer func() {
		c.closed.Store(true)
		c.muReq.Lock()
		for id, ch := range c.requests {
			close(ch)
			delete(c.requests, id)
		}
		c.muReq.Unlock()
	}()

	for {
		var resp jsonRPCResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			if !c.closed.Load() && c.logger != nil {
				c.logger.Warn("websocket read failed", "endpoint", c.endpoint, "error", err)
			}
			return
		}

		c.muReq.Lock()
		ch, exists := c.requests[resp.ID]
		if exists {
			delete(c.requests, resp.ID)
		}
		c.muReq.Unlock()

		if exists {
			ch <- &resp
		}
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	reqID := c.nextID.Add(1)
	req := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      reqID,
	}

	// 缓冲 1，readLoop 投递时不会阻塞
	respCh := make(chan *jsonRPCResponse, 1)
	// 与 readLoop 的退出清理互斥：在锁内判断 closed 再登记，避免登记到已无人读取的表里
	c.muReq.Lock()
	if c.closed.Load() {
		c.muReq.Unlock()
		return nil, &Error{Code: ErrCodeClosed, Message: "websocket client is closed"}
	}
	c.requests[reqID] = respCh
	c.muReq.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(reqID)
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok || resp == nil {
			return nil, &Error{Code: ErrCodeClosed, Message: "websocket closed before response"}
		}
		if resp.Error != nil {
			return nil, rpcErrorToError(resp.Error)
		}
		return resp.Result, nil

	case <-ctx.Done():
		c.forget(reqID)
		return nil, ctx.Err()

	case <-timer.C:
		c.forget(reqID)
		return nil, NewTimeoutError()
	}
}

func (c *websocketClient) forget(id uint64) {
	c.muReq.Lock()
	delete(c.requests, id)
	c.muReq.Unlock()
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}
