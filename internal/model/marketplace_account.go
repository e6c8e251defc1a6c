package model

import (
	"time"
)

// 平台常量
const (
	PlatformEbay     = "ebay"
	PlatformMercari  = "mercari"
	PlatformPoshmark = "poshmark"
)

// Token 状态常量
const (
	TokenStatusValid      = "valid"           // 有效
	TokenStatusRefreshing = "refreshing"      // 刷新中
	TokenStatusReauth     = "reauth_required" // 需重新授权
)

// 账户能力常量
// individual / business 的分支只在构建推送 Payload 时消费一次，
// 不允许在各组件里重复判断
const (
	CapabilityIndividual = "individual"
	CapabilityBusiness   = "business"
)

// MarketplaceAccount 市场平台授权账户
// 每个 (user_id, platform_id) 唯一一条记录
// 写入方只有 TokenService（刷新）和用户主动断开，其他组件只读
type MarketplaceAccount struct {
	BaseModel
	// 1. 核心身份
	UserID     int64  `gorm:"uniqueIndex:idx_user_platform;index;not null"`
	PlatformID string `gorm:"uniqueIndex:idx_user_platform;size:20;not null;comment:平台标识 ebay/mercari/..."`

	// 2. OAuth 凭证
	// RefreshToken 为空表示只能重新授权，不能静默刷新
	AccessToken          string    `gorm:"size:2048"`
	RefreshToken         string    `gorm:"size:2048"`
	AccessTokenExpiresAt time.Time // Token 具体的过期时间点

	// 3. 连接状态
	// IsConnected=true 时 AccessToken 必须非空且 ExpiresAt 已设置
	IsConnected bool   `gorm:"default:false;index"`
	IsActive    bool   `gorm:"default:true"`
	TokenStatus string `gorm:"index;size:20;default:'reauth_required'"`

	// 4. 能力配置
	Capabilities string `gorm:"size:20;default:'individual';comment:individual/business"`

	// 5. 同步记录
	LastSyncedAt *time.Time `gorm:"comment:最后成功同步时间"`
}

func (MarketplaceAccount) TableName() string {
	return "marketplace_accounts"
}

// TokenRemaining 计算距离过期的剩余时间
func (a *MarketplaceAccount) TokenRemaining(now time.Time) time.Duration {
	return a.AccessTokenExpiresAt.Sub(now)
}

// NeedsRefresh 判断是否进入刷新缓冲区
func (a *MarketplaceAccount) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return a.TokenRemaining(now) <= buffer
}
