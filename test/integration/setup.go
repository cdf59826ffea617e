package integration

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/wallet"
)

const (
	// DefaultTimeout 默认超时时间
	DefaultTimeout = 30 * time.Second
	// ActionSettleTimeout Action 对账超时时间
	ActionSettleTimeout = 60 * time.Second
	// ActionSettleInterval Action 对账轮询间隔
	ActionSettleInterval = 2 * time.Second

	// TestLedger 测试代币账本
	TestLedger = "ryjl3-tyaaa-aaaaa-aaaba-cai"
)

// TestConfig 测试配置
//
// 由 LINK_INTEGRATION_BACKEND 和 LINK_INTEGRATION_SIGNER 提供，未设置后端时跳过测试。
type TestConfig struct {
	BackendEndpoint string
	SignerEndpoint  string
	Timeout         time.Duration
}

// LoadTestConfig 从环境变量读取测试配置
func LoadTestConfig(t *testing.T) *TestConfig {
	t.Helper()
	backend := os.Getenv("LINK_INTEGRATION_BACKEND")
	if backend == "" {
		t.Skip("LINK_INTEGRATION_BACKEND not set, skipping integration test")
	}
	return &TestConfig{
		BackendEndpoint: backend,
		SignerEndpoint:  os.Getenv("LINK_INTEGRATION_SIGNER"),
		Timeout:         DefaultTimeout,
	}
}

// SetupBackend 连接后端
func SetupBackend(t *testing.T, cfg *TestConfig) (client.Client, client.BackendClient) {
	t.Helper()
	c, err := client.NewClient(&client.Config{
		Endpoint: cfg.BackendEndpoint,
		Protocol: client.ProtocolHTTP,
		Timeout:  cfg.Timeout,
	})
	require.NoError(t, err, "创建后端客户端失败")

	backend := client.NewBackendClientFromClient(c)
	t.Cleanup(func() {
		if err := backend.Close(); err != nil {
			t.Logf("关闭后端客户端失败: %v", err)
		}
	})
	return c, backend
}

// SetupSigner 连接签名通道（边界节点）；未配置时跳过测试
func SetupSigner(t *testing.T, cfg *TestConfig) client.Client {
	t.Helper()
	if cfg.SignerEndpoint == "" {
		t.Skip("LINK_INTEGRATION_SIGNER not set, skipping test that executes actions")
	}
	c, err := client.NewClient(&client.Config{
		Endpoint: cfg.SignerEndpoint,
		Protocol: client.ProtocolHTTP,
		Timeout:  cfg.Timeout,
		Retry:    client.NoRetry(),
	})
	require.NoError(t, err, "创建签名通道失败")
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// CreateTestWallet 创建测试钱包
func CreateTestWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet()
	require.NoError(t, err, "创建测试钱包失败")
	return w
}

// TestOracle 固定代币信息的 Oracle
func TestOracle() *token.StaticOracle {
	price := decimal.NewFromInt(5)
	return token.NewStaticOracle(&token.Metadata{
		Address:  TestLedger,
		Symbol:   "ICP",
		Decimals: 8,
		Fee:      big.NewInt(10_000),
		PriceUSD: &price,
	})
}
