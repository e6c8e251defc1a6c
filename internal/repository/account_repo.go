package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"reseller_sync_v1/internal/model"
)

// ==================== 接口定义 ====================

// MarketplaceAccountRepository 授权账户仓储接口
// 写路径只有 TokenService（刷新）和 AuthService（授权/断开），
// 调和引擎等其他消费方只读
type MarketplaceAccountRepository interface {
	Create(ctx context.Context, account *model.MarketplaceAccount) error
	GetByID(ctx context.Context, id int64) (*model.MarketplaceAccount, error)
	GetByUserAndPlatform(ctx context.Context, userID int64, platformID string) (*model.MarketplaceAccount, error)
	Update(ctx context.Context, account *model.MarketplaceAccount) error

	// Token 生命周期
	UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
	MarkReauthRequired(ctx context.Context, id int64) error
	TouchLastSynced(ctx context.Context, id int64, at time.Time) error

	// 连接管理：断开只改标志位，保留历史记录
	Disconnect(ctx context.Context, id int64) error

	// 扫描查询
	FindExpiring(ctx context.Context, before time.Time) ([]model.MarketplaceAccount, error)
	ListConnected(ctx context.Context, platformID string) ([]model.MarketplaceAccount, error)
}

// ==================== 仓储实现 ====================

type accountRepo struct {
	db *gorm.DB
}

// NewMarketplaceAccountRepository 创建账户仓储
func NewMarketplaceAccountRepository(db *gorm.DB) MarketplaceAccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) Create(ctx context.Context, account *model.MarketplaceAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*model.MarketplaceAccount, error) {
	var account model.MarketplaceAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platformID string) (*model.MarketplaceAccount, error) {
	var account model.MarketplaceAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform_id = ?", userID, platformID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) Update(ctx context.Context, account *model.MarketplaceAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// UpdateToken 刷新成功后落库
// refreshToken 传空串表示平台未轮换，保留原值
func (r *accountRepo) UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	fields := map[string]interface{}{
		"access_token":            accessToken,
		"access_token_expires_at": expiresAt,
		"token_status":            model.TokenStatusValid,
		"is_connected":            true,
	}
	if refreshToken != "" {
		fields["refresh_token"] = refreshToken
	}
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// MarkReauthRequired 刷新被明确拒绝后降级
// 清空凭证 + 置离线，人工重新授权前不再提供 Token
func (r *accountRepo) MarkReauthRequired(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token":  "",
			"refresh_token": "",
			"token_status":  model.TokenStatusReauth,
			"is_connected":  false,
		}).Error
}

func (r *accountRepo) TouchLastSynced(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Update("last_synced_at", at).Error
}

func (r *accountRepo) Disconnect(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketplaceAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_connected": false,
			"is_active":    false,
			"token_status": model.TokenStatusReauth,
		}).Error
}

// FindExpiring 查找 Token 在 before 之前过期的已连接账户
// 保活任务的扫描入口
func (r *accountRepo) FindExpiring(ctx context.Context, before time.Time) ([]model.MarketplaceAccount, error) {
	var accounts []model.MarketplaceAccount
	err := r.db.WithContext(ctx).
		Where("is_connected = ? AND token_status = ? AND access_token_expires_at < ?",
			true, model.TokenStatusValid, before).
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepo) ListConnected(ctx context.Context, platformID string) ([]model.MarketplaceAccount, error) {
	var accounts []model.MarketplaceAccount
	query := r.db.WithContext(ctx).Where("is_connected = ?", true)
	if platformID != "" {
		query = query.Where("platform_id = ?", platformID)
	}
	err := query.Find(&accounts).Error
	return accounts, err
}
