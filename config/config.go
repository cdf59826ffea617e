package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cashierlink/link-sdk-go/client"
	"github.com/cashierlink/link-sdk-go/services"
	"github.com/cashierlink/link-sdk-go/services/token"
	"github.com/cashierlink/link-sdk-go/signer"
)

// DefaultPath 未指定路径时读取的配置文件
const DefaultPath = "linksdk.yaml"

// Config 文件配置
type Config struct {
	Backend   EndpointConfig `yaml:"backend"`
	Signer    EndpointConfig `yaml:"signer"`
	Canisters CanisterConfig `yaml:"canisters"`
	Fees      FeeConfig      `yaml:"fees"`
	Session   SessionConfig  `yaml:"session"`
	Tokens    TokenConfig    `yaml:"tokens"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
	Keystore  KeystoreConfig `yaml:"keystore"`
	Share     ShareConfig    `yaml:"share"`
}

// EndpointConfig JSON-RPC 端点
type EndpointConfig struct {
	Endpoint string       `yaml:"endpoint"`
	Protocol string       `yaml:"protocol"` // http | websocket | grpc
	Timeout  time.Duration     `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
	Debug    bool              `yaml:"debug"`
	TLS      *TLSConfig        `yaml:"tls"`
	Retry    *RetryConfig      `yaml:"retry"`
}

// TLSConfig TLS 文件
type TLSConfig struct {
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	Insecure bool   `yaml:"insecure"`
}

// RetryConfig 重试参数（毫秒）
type RetryConfig struct {
	MaxRetries   int     `yaml:"max_retries"`
	InitialDelay int     `yaml:"initial_delay_ms"`
	MaxDelay     int     `yaml:"max_delay_ms"`
	Multiplier   float64 `yaml:"multiplier"`
}

// CanisterConfig canister ID
type CanisterConfig struct {
	Treasury   string            `yaml:"treasury"`
	Backend    string            `yaml:"backend"`
	Validation *ValidationConfig `yaml:"validation"`
}

// ValidationConfig 批量调用校验目标
type ValidationConfig struct {
	CanisterID string `yaml:"canister_id"`
	Method     string `yaml:"method"`
}

// FeeConfig 手续费参数，金额使用字符串避免精度丢失
type FeeConfig struct {
	FallbackLedgerFee string `yaml:"fallback_ledger_fee"`
	MaxAirdropTotal   string `yaml:"max_airdrop_total"`
}

// SessionConfig 会话参数
type SessionConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TokenConfig 代币信息来源
type TokenConfig struct {
	CacheSize int           `yaml:"cache_size"`
	Static    []StaticToken `yaml:"static"` // 非空时使用内存 Oracle
}

// StaticToken 内存 Oracle 的代币
type StaticToken struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
	Fee      string `yaml:"fee"`
	PriceUSD string `yaml:"price_usd"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// MetricsConfig 指标
type MetricsConfig struct {
	Listen string `yaml:"listen"` // 为空时不暴露
}

// KeystoreConfig 本地钱包目录
type KeystoreConfig struct {
	Dir string `yaml:"dir"`
}

// ShareConfig 分享链接
type ShareConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Backend: EndpointConfig{
			Endpoint: "http://localhost:4943",
			Protocol: string(client.ProtocolHTTP),
			Timeout:  client.DefaultTimeout,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Keystore: KeystoreConfig{Dir: "./keystore"},
		Share:    ShareConfig{BaseURL: "https://cashierlink.app"},
	}
}

// Load 读取 YAML 配置并应用 LINK_* 环境变量
//
// path 为空且默认文件不存在时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case explicit || !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := overrideFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) error {
	if v := os.Getenv("LINK_BACKEND_ENDPOINT"); v != "" {
		cfg.Backend.Endpoint = v
	}
	if v := os.Getenv("LINK_BACKEND_PROTOCOL"); v != "" {
		cfg.Backend.Protocol = v
	}
	if v := os.Getenv("LINK_SIGNER_ENDPOINT"); v != "" {
		cfg.Signer.Endpoint = v
	}
	if v := os.Getenv("LINK_TREASURY_CANISTER"); v != "" {
		cfg.Canisters.Treasury = v
	}
	if v := os.Getenv("LINK_BACKEND_CANISTER"); v != "" {
		cfg.Canisters.Backend = v
	}
	if v := os.Getenv("LINK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LINK_KEYSTORE_DIR"); v != "" {
		cfg.Keystore.Dir = v
	}
	if v := os.Getenv("LINK_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("LINK_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LINK_DEBUG: %w", err)
		}
		cfg.Backend.Debug = b
		cfg.Signer.Debug = b
	}
	if v := os.Getenv("LINK_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LINK_IDLE_TIMEOUT: %w", err)
		}
		cfg.Session.IdleTimeout = d
	}
	return nil
}

// Validate 检查配置
func (c *Config) Validate() error {
	if err := validateProtocol("backend", c.Backend.Protocol); err != nil {
		return err
	}
	if c.Signer.Endpoint != "" {
		if err := validateProtocol("signer", c.Signer.Protocol); err != nil {
			return err
		}
	}
	if _, err := c.fallbackFee(); err != nil {
		return err
	}
	if _, err := c.maxAirdropTotal(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	for _, t := range c.Tokens.Static {
		if _, err := t.metadata(); err != nil {
			return err
		}
	}
	return nil
}

func validateProtocol(name, p string) error {
	switch client.Protocol(p) {
	case "", client.ProtocolHTTP, client.ProtocolWebSocket, client.ProtocolGRPC:
		return nil
	}
	return fmt.Errorf("%s: unsupported protocol %q", name, p)
}

// Logger 按配置创建 logrus 日志器
func (c *Config) Logger() client.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(lvl)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return client.NewLogrusLogger(l)
}

// BackendClientConfig 后端客户端配置
func (c *Config) BackendClientConfig(logger client.Logger) *client.Config {
	return c.Backend.clientConfig(logger)
}

// SignerClientConfig 签名器客户端配置；未配置签名器时返回 nil
//
// 批量调用不可重放，未显式配置重试时关闭重试。
func (c *Config) SignerClientConfig(logger client.Logger) *client.Config {
	if c.Signer.Endpoint == "" {
		return nil
	}
	cfg := c.Signer.clientConfig(logger)
	if c.Signer.Retry == nil {
		cfg.Retry = client.NoRetry()
	}
	return cfg
}

func (e EndpointConfig) clientConfig(logger client.Logger) *client.Config {
	cfg := client.DefaultConfig()
	if e.Endpoint != "" {
		cfg.Endpoint = e.Endpoint
	}
	if e.Protocol != "" {
		cfg.Protocol = client.Protocol(e.Protocol)
	}
	if e.Timeout > 0 {
		cfg.Timeout = e.Timeout
	}
	cfg.Headers = e.Headers
	cfg.Debug = e.Debug
	cfg.Logger = logger
	if e.TLS != nil {
		cfg.TLS = &client.TLSConfig{
			CAFile:   e.TLS.CAFile,
			CertFile: e.TLS.CertFile,
			KeyFile:  e.TLS.KeyFile,
			Insecure: e.TLS.Insecure,
		}
	}
	if e.Retry != nil {
		retry := client.DefaultRetryConfig()
		retry.MaxRetries = e.Retry.MaxRetries
		if e.Retry.InitialDelay > 0 {
			retry.InitialDelay = e.Retry.InitialDelay
		}
		if e.Retry.MaxDelay > 0 {
			retry.MaxDelay = e.Retry.MaxDelay
		}
		if e.Retry.Multiplier > 0 {
			retry.BackoffMultiplier = e.Retry.Multiplier
		}
		cfg.Retry = retry
	}
	return cfg
}

// ServicesConfig 业务服务参数
func (c *Config) ServicesConfig() (*services.Config, error) {
	fee, err := c.fallbackFee()
	if err != nil {
		return nil, err
	}
	maxTotal, err := c.maxAirdropTotal()
	if err != nil {
		return nil, err
	}
	out := &services.Config{
		TreasuryCanisterID: c.Canisters.Treasury,
		BackendCanisterID:  c.Canisters.Backend,
		FallbackLedgerFee:  fee,
		MaxAirdropTotal:    maxTotal,
		IdleTimeout:        c.Session.IdleTimeout,
		PollInterval:       c.Session.PollInterval,
		MetadataCacheSize:  c.Tokens.CacheSize,
	}
	if v := c.Canisters.Validation; v != nil && v.CanisterID != "" {
		out.BatchValidation = &signer.ValidationTarget{CanisterID: v.CanisterID, Method: v.Method}
	}
	return out.WithDefaults(), nil
}

// StaticOracle 配置了静态代币时返回内存 Oracle
func (c *Config) StaticOracle() (*token.StaticOracle, bool, error) {
	if len(c.Tokens.Static) == 0 {
		return nil, false, nil
	}
	metas := make([]*token.Metadata, 0, len(c.Tokens.Static))
	for _, t := range c.Tokens.Static {
		m, err := t.metadata()
		if err != nil {
			return nil, false, err
		}
		metas = append(metas, m)
	}
	return token.NewStaticOracle(metas...), true, nil
}

func (t StaticToken) metadata() (*token.Metadata, error) {
	if t.Address == "" {
		return nil, fmt.Errorf("static token: missing address")
	}
	fee := new(big.Int)
	if t.Fee != "" {
		if _, ok := fee.SetString(t.Fee, 10); !ok || fee.Sign() < 0 {
			return nil, fmt.Errorf("static token %s: invalid fee %q", t.Address, t.Fee)
		}
	}
	m := &token.Metadata{
		Address:  t.Address,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		Fee:      fee,
	}
	if t.PriceUSD != "" {
		p, err := decimal.NewFromString(t.PriceUSD)
		if err != nil {
			return nil, fmt.Errorf("static token %s: invalid price: %w", t.Address, err)
		}
		m.PriceUSD = &p
	}
	return m, nil
}

func (c *Config) fallbackFee() (*big.Int, error) {
	if c.Fees.FallbackLedgerFee == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(c.Fees.FallbackLedgerFee, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid fallback_ledger_fee %q", c.Fees.FallbackLedgerFee)
	}
	return v, nil
}

func (c *Config) maxAirdropTotal() (decimal.Decimal, error) {
	if c.Fees.MaxAirdropTotal == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(c.Fees.MaxAirdropTotal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid max_airdrop_total: %w", err)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid max_airdrop_total %q", c.Fees.MaxAirdropTotal)
	}
	return v, nil
}
