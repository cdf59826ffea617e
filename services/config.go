package services

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cashierlink/link-sdk-go/signer"
)

// Config 业务服务运行时参数
//
// 所有字段均可选，零值由 DefaultConfig 补齐。
type Config struct {
	// TreasuryCanisterID 收取创建费用的 canister
	TreasuryCanisterID string

	// BackendCanisterID 链接后端 canister
	BackendCanisterID string

	// BatchValidation 批量调用的校验目标，nil 时不校验
	BatchValidation *signer.ValidationTarget

	// FallbackLedgerFee 代币信息查询失败时使用的手续费（最小单位）
	FallbackLedgerFee *big.Int

	// MaxAirdropTotal 空投链接总额上限（人类可读单位），零值表示不限制
	MaxAirdropTotal decimal.Decimal

	// IdleTimeout 会话空闲超时
	IdleTimeout time.Duration

	// PollInterval 链接状态轮询间隔
	PollInterval time.Duration

	// MetadataCacheSize 代币信息缓存条目数
	MetadataCacheSize int
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		FallbackLedgerFee: big.NewInt(10000),
		IdleTimeout:       30 * time.Minute,
		PollInterval:      5 * time.Second,
		MetadataCacheSize: 256,
	}
}

// WithDefaults 返回补齐零值后的副本
func (c *Config) WithDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.FallbackLedgerFee == nil {
		out.FallbackLedgerFee = def.FallbackLedgerFee
	}
	if out.IdleTimeout <= 0 {
		out.IdleTimeout = def.IdleTimeout
	}
	if out.PollInterval <= 0 {
		out.PollInterval = def.PollInterval
	}
	if out.MetadataCacheSize <= 0 {
		out.MetadataCacheSize = def.MetadataCacheSize
	}
	return &out
}
