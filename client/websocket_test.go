package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoRPCServer 按 method 返回固定结果的 JSON-RPC WebSocket 服务
func newEchoRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req jsonRPCRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
			if result, ok := results[req.Method]; ok {
				resp["result"] = rawJSON(result)
			} else {
				resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
}

type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) { return []byte(r), nil }

func TestWebSocketClient_Call(t *testing.T) {
	server := newEchoRPCServer(t, map[string]string{
		"icrc112_batch_call_canister": `{"responses":[[{"result":{"reply":"AA=="}}]]}`,
	})
	defer server.Close()

	c, err := NewClient(&Config{Endpoint: server.URL, Protocol: ProtocolWebSocket, Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, err := c.Call(ctx, "icrc112_batch_call_canister", map[string]interface{}{"sender": "aaaaa-aa"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"responses":[[{"result":{"reply":"AA=="}}]]}`, string(raw))

	_, err = c.Call(ctx, "unknown_method", nil)
	cErr, ok := IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, -32601, cErr.RPCCode)
}

func TestWebSocketClient_CallAfterClose(t *testing.T) {
	server := newEchoRPCServer(t, nil)
	defer server.Close()

	c, err := NewWebSocketClient(&Config{Endpoint: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Call(context.Background(), "ping", nil)
	cErr, ok := IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeClosed, cErr.Code)
}

func TestWebSocketClient_ServerDropFailsFast(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer server.Close()

	c, err := NewWebSocketClient(&Config{Endpoint: server.URL, Timeout: 30 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	wsc := c.(*websocketClient)
	require.Eventually(t, wsc.closed.Load, time.Second, time.Millisecond)

	start := time.Now()
	_, err = c.Call(context.Background(), "ping", nil)
	cErr, ok := IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeClosed, cErr.Code)
	assert.Less(t, time.Since(start), time.Second, "no wait for the request timeout")

	wsc.muReq.Lock()
	defer wsc.muReq.Unlock()
	assert.Empty(t, wsc.requests)
}

func TestToWebSocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":  "ws://localhost:8080",
		"https://signer.example": "wss://signer.example",
		"ws://already":           "ws://already",
		"wss://already":          "wss://already",
		"localhost:9000":         "ws://localhost:9000",
	}
	for in, want := range tests {
		if got := toWebSocketURL(in); got != want {
			t.Errorf("toWebSocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}
