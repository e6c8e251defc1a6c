package model

// Listing 状态常量
const (
	ListingStateDraft  = "draft"  // 草稿
	ListingStateActive = "active" // 在售
	ListingStateEnded  = "ended"  // 已下架
)

// Listing 本地商品快照
// SKU 是跨平台推送的幂等键：同一 SKU 重试创建不会产生重复远端对象
type Listing struct {
	BaseModel
	UserID int64  `gorm:"index;not null"`
	SKU    string `gorm:"uniqueIndex;size:64;not null;comment:幂等键"`

	Title       string `gorm:"size:255"`
	Description string `gorm:"type:text"`

	// 价格以最小货币单位存储 (美分)，避免浮点误差
	PriceAmount  int64  `gorm:"not null;default:0"`
	CurrencyCode string `gorm:"size:8;default:'USD'"`
	Quantity     int    `gorm:"default:0"`

	State string `gorm:"size:20;index;default:'draft'"`
}

func (Listing) TableName() string {
	return "listings"
}
