package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/types"
)

func TestHTTPClient_ErrorHandling(t *testing.T) {
	tests := []struct {
		name           string
		responseBody   string
		statusCode     int
		contentType    string
		checkErrorFunc func(*testing.T, error)
	}{
		{
			name: "problem details in JSON-RPC error",
			responseBody: `{
				"jsonrpc": "2.0",
				"error": {
					"code": -32000,
					"message": "Internal error",
					"data": {
						"code": "LINK_NOT_FOUND",
						"layer": "link-backend",
						"userMessage": "链接不存在",
						"detail": "link not found",
						"traceId": "trace-123",
						"timestamp": "2025-11-23T10:00:00Z",
						"status": 404
					}
				},
				"id": 1
			}`,
			statusCode:  200,
			contentType: "application/json",
			checkErrorFunc: func(t *testing.T, err error) {
				linkErr, ok := types.IsLinkError(err)
				require.True(t, ok, "expected LinkError, got %T", err)
				assert.Equal(t, "LINK_NOT_FOUND", linkErr.Code)
				assert.Equal(t, "链接不存在", linkErr.UserMessage)
			},
		},
		{
			name: "plain JSON-RPC error",
			responseBody: `{
				"jsonrpc": "2.0",
				"error": {"code": -32601, "message": "Method not found"},
				"id": 1
			}`,
			statusCode:  200,
			contentType: "application/json",
			checkErrorFunc: func(t *testing.T, err error) {
				cErr, ok := IsClientError(err)
				require.True(t, ok, "expected client Error, got %T", err)
				assert.Equal(t, ErrCodeRPCError, cErr.Code)
				assert.Equal(t, -32601, cErr.RPCCode)
			},
		},
		{
			name: "HTTP error with problem details",
			responseBody: `{
				"code": "LINK_NOT_FOUND",
				"layer": "link-backend",
				"userMessage": "链接不存在",
				"traceId": "trace-123",
				"status": 404
			}`,
			statusCode:  404,
			contentType: "application/problem+json",
			checkErrorFunc: func(t *testing.T, err error) {
				linkErr, ok := types.IsLinkError(err)
				require.True(t, ok, "expected LinkError, got %T", err)
				assert.Equal(t, "LINK_NOT_FOUND", linkErr.Code)
			},
		},
		{
			name:         "HTTP error without problem details",
			responseBody: `not json`,
			statusCode:   400,
			contentType:  "text/plain",
			checkErrorFunc: func(t *testing.T, err error) {
				linkErr, ok := types.IsLinkError(err)
				require.True(t, ok, "expected LinkError, got %T", err)
				assert.Equal(t, types.ErrorCodeSDKHTTPError, linkErr.Code)
				require.NotNil(t, linkErr.Status)
				assert.Equal(t, 400, *linkErr.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			c, err := NewClient(&Config{Endpoint: server.URL, Protocol: ProtocolHTTP, Retry: NoRetry()})
			require.NoError(t, err)
			defer c.Close()

			_, err = c.Call(context.Background(), "get_link", []interface{}{})
			require.Error(t, err)
			tt.checkErrorFunc(t, err)
		})
	}
}

func TestHTTPClient_CallSuccess(t *testing.T) {
	var gotReq jsonRPCRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"id":"abc","state":"Active"}}`))
	}))
	defer server.Close()

	c, err := NewHTTPClient(&Config{Endpoint: server.URL, Retry: NoRetry()})
	require.NoError(t, err)

	var out struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	err = CallInto(context.Background(), c, "get_link", []interface{}{"abc"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "2.0", gotReq.JSONRPC)
	assert.Equal(t, "get_link", gotReq.Method)
	assert.Equal(t, uint64(1), gotReq.ID)
	assert.Equal(t, "abc", out.ID)
	assert.Equal(t, "Active", out.State)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":true}`))
	}))
	defer server.Close()

	c, err := NewHTTPClient(&Config{
		Endpoint: server.URL,
		Retry: &RetryConfig{
			MaxRetries:        3,
			InitialDelay:      1,
			MaxDelay:          5,
			BackoffMultiplier: 2,
		},
	})
	require.NoError(t, err)

	raw, err := c.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(raw))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallInto_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	}))
	defer server.Close()

	c, err := NewHTTPClient(&Config{Endpoint: server.URL, Retry: NoRetry()})
	require.NoError(t, err)

	var out map[string]interface{}
	err = CallInto(context.Background(), c, "get_link", nil, &out)
	cErr, ok := IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidResponse, cErr.Code)
}

func TestHTTPClient_SendsConfiguredHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":true}`))
	}))
	defer server.Close()

	c, err := NewHTTPClient(&Config{
		Endpoint: server.URL,
		Retry:    NoRetry(),
		Headers:  map[string]string{"x-client": "linkctl", "Content-Type": "text/plain"},
	})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "linkctl", got.Get("X-Client"))
	assert.Equal(t, "application/json", got.Get("Content-Type"), "JSON-RPC content type wins")
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := (*Config)(nil).withDefaults()
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)

	orig := &Config{Endpoint: "http://backend:4943"}
	cfg = orig.withDefaults()
	assert.Equal(t, "http://backend:4943", cfg.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Zero(t, orig.Timeout, "caller config is not modified")
}
