package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/client"
)

const sample = `
backend:
  endpoint: https://backend.example.org
  protocol: websocket
  timeout: 10s
  headers:
    X-Client: linkctl
signer:
  endpoint: http://localhost:8080/signer
canisters:
  treasury: ryjl3-tyaaa-aaaaa-aaaba-cai
  backend: jjio5-5aaaa-aaaam-adhaq-cai
  validation:
    canister_id: jjio5-5aaaa-aaaam-adhaq-cai
    method: icrc114_validate
fees:
  fallback_ledger_fee: "20000"
  max_airdrop_total: "1000.5"
session:
  idle_timeout: 15m
  poll_interval: 2s
tokens:
  cache_size: 64
  static:
    - address: ryjl3-tyaaa-aaaaa-aaaba-cai
      symbol: ICP
      decimals: 8
      fee: "10000"
      price_usd: "7.25"
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linksdk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.org", cfg.Backend.Endpoint)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "./keystore", cfg.Keystore.Dir, "defaults survive partial files")

	bc := cfg.BackendClientConfig(nil)
	assert.Equal(t, client.ProtocolWebSocket, bc.Protocol)
	assert.Equal(t, 10*time.Second, bc.Timeout)
	assert.Equal(t, map[string]string{"X-Client": "linkctl"}, bc.Headers)
	assert.Nil(t, bc.Retry)

	sc := cfg.SignerClientConfig(nil)
	require.NotNil(t, sc)
	assert.Equal(t, client.ProtocolHTTP, sc.Protocol)
	require.NotNil(t, sc.Retry)
	assert.Equal(t, 0, sc.Retry.MaxRetries, "signer batches are not replayed")

	svc, err := cfg.ServicesConfig()
	require.NoError(t, err)
	assert.Equal(t, "20000", svc.FallbackLedgerFee.String())
	assert.True(t, svc.MaxAirdropTotal.Equal(decimal.RequireFromString("1000.5")))
	assert.Equal(t, 2*time.Second, svc.PollInterval)
	assert.Equal(t, 64, svc.MetadataCacheSize)
	require.NotNil(t, svc.BatchValidation)
	assert.Equal(t, "icrc114_validate", svc.BatchValidation.Method)

	oracle, ok, err := cfg.StaticOracle()
	require.NoError(t, err)
	require.True(t, ok)
	meta, err := oracle.GetTokenMetadata(t.Context(), "ryjl3-tyaaa-aaaaa-aaaba-cai")
	require.NoError(t, err)
	assert.Equal(t, "ICP", meta.Symbol)
	assert.True(t, meta.PriceUSD.Equal(decimal.RequireFromString("7.25")))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LINK_BACKEND_ENDPOINT", "http://override:4943")
	t.Setenv("LINK_IDLE_TIMEOUT", "1h")
	t.Setenv("LINK_DEBUG", "true")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "http://override:4943", cfg.Backend.Endpoint)
	assert.Equal(t, time.Hour, cfg.Session.IdleTimeout)
	assert.True(t, cfg.Backend.Debug)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.SignerClientConfig(nil))

	svc, err := cfg.ServicesConfig()
	require.NoError(t, err)
	assert.Equal(t, "10000", svc.FallbackLedgerFee.String())
	assert.Equal(t, 30*time.Minute, svc.IdleTimeout)

	_, ok, err := cfg.StaticOracle()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"protocol", "backend:\n  protocol: carrier-pigeon\n"},
		{"fee", "fees:\n  fallback_ledger_fee: \"-1\"\n"},
		{"max total", "fees:\n  max_airdrop_total: lots\n"},
		{"log level", "log:\n  level: chatty\n"},
		{"token price", "tokens:\n  static:\n    - address: x\n      price_usd: nope\n"},
		{"yaml", "backend: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("LINK_IDLE_TIMEOUT", "soon")
	_, err := Load(writeConfig(t, sample))
	assert.Error(t, err)
}
