package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config 运行时配置，全部来自环境变量
type Config struct {
	ServerPort  string
	DatabaseDSN string

	// eBay 应用凭证
	EbayClientID     string
	EbayClientSecret string
	EbayRedirectURI  string // eBay 侧的 RuName

	// 商户政策 ID（business 账户推送时引用）
	EbayFulfillmentPolicyID string
	EbayPaymentPolicyID     string
	EbayReturnPolicyID      string

	// 同步节流
	BulkInterDelay  time.Duration
	BulkConcurrency int

	// HTTP 客户端超时
	APITimeout time.Duration
}

// Load 读取环境变量，带默认值
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DATABASE_DSN", "host=localhost user=reseller password=reseller dbname=reseller_sync port=5432 sslmode=disable")
	v.SetDefault("BULK_INTER_DELAY", "2s")
	v.SetDefault("BULK_CONCURRENCY", 1)
	v.SetDefault("API_TIMEOUT", "20s")

	return &Config{
		ServerPort:  v.GetString("SERVER_PORT"),
		DatabaseDSN: v.GetString("DATABASE_DSN"),

		EbayClientID:     v.GetString("EBAY_CLIENT_ID"),
		EbayClientSecret: v.GetString("EBAY_CLIENT_SECRET"),
		EbayRedirectURI:  v.GetString("EBAY_REDIRECT_URI"),

		EbayFulfillmentPolicyID: v.GetString("EBAY_FULFILLMENT_POLICY_ID"),
		EbayPaymentPolicyID:     v.GetString("EBAY_PAYMENT_POLICY_ID"),
		EbayReturnPolicyID:      v.GetString("EBAY_RETURN_POLICY_ID"),

		BulkInterDelay:  v.GetDuration("BULK_INTER_DELAY"),
		BulkConcurrency: v.GetInt("BULK_CONCURRENCY"),
		APITimeout:      v.GetDuration("API_TIMEOUT"),
	}
}
