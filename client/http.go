package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/cashierlink/link-sdk-go/types"
)

// httpClient HTTP客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
	header   http.Header
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(config *Config) (Client, error) {
	config = config.withDefaults()

	httpCli := &http.Client{
		Timeout: config.Timeout,
	}
	if config.TLS != nil && config.TLS.Insecure {
		httpCli.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // 仅用于本地开发
		}
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Logger != nil {
			logger := config.Logger
			retryConfig.OnRetry = func(attempt int, err error) {
				logger.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   httpCli,
		logger:   config.Logger,
		debug:    config.Debug,
		retry:    retryConfig,
		header:   config.header(),
	}, nil
}

// Call 调用JSON-RPC方法
func (c *httpClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	req := &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewLinkError(types.ErrorCodeSDKRequestSerializationError,
			"failed to encode request", err.Error(), 0, map[string]interface{}{"method": method})
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	var statusCode int
	var respBody []byte
	sendErr := withRetry(ctx, func() error {
		// Body 只能读取一次，每次重试重新构建请求
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}
		for k, v := range c.header {
			httpReq.Header[k] = v
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}
		defer func() {
			if cerr := httpResp.Body.Close(); cerr != nil && c.logger != nil {
				c.logger.Warn("Failed to close response body", "error", cerr)
			}
		}()

		if isRetryableHTTPError(httpResp.StatusCode) {
			return &httpStatusError{StatusCode: httpResp.StatusCode}
		}

		body, readErr := io.ReadAll(httpResp.Body)
		if readErr != nil {
			return fmt.Errorf("read response failed: %w", readErr)
		}
		statusCode = httpResp.StatusCode
		respBody = body
		return nil
	}, c.retry)
	if sendErr != nil {
		return nil, NewNetworkError(fmt.Errorf("send %s: %w", method, sendErr))
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("JSON-RPC response", "status", statusCode, "body", string(respBody))
	}

	if statusCode != http.StatusOK {
		if linkErr := parseProblemBody(respBody); linkErr != nil {
			return nil, linkErr
		}
		return nil, types.NewLinkError(types.ErrorCodeSDKHTTPError,
			"backend request failed",
			fmt.Sprintf("HTTP error: %d, body: %s", statusCode, string(respBody)),
			statusCode, map[string]interface{}{"method": method})
	}

	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, types.NewLinkError(types.ErrorCodeSDKResponseDeserializationError,
			"failed to decode response", err.Error(), statusCode, map[string]interface{}{"method": method})
	}

	if jsonResp.Error != nil {
		return nil, rpcErrorToError(jsonResp.Error)
	}

	return jsonResp.Result, nil
}

// parseProblemBody 非 200 响应体如果是 Problem 则转为 LinkError
func parseProblemBody(body []byte) *types.LinkError {
	p, ok := types.DecodeProblem(body)
	if !ok {
		return nil
	}
	return &types.LinkError{Problem: *p}
}

// Close 关闭连接（HTTP客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// jsonRPCRequest JSON-RPC请求结构
type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// jsonRPCResponse JSON-RPC响应结构
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonRPCError JSON-RPC错误结构
type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
