package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reseller_sync_v1/internal/model"
)

// ==================== 接口定义 ====================

// SyncStatusRepository 同步状态仓储接口
// 写入方只有调和引擎；UI/API 侧只读
type SyncStatusRepository interface {
	// GetByPair 取 (listing, platform) 对的状态，不存在返回 (nil, nil)
	GetByPair(ctx context.Context, listingID int64, platformID string) (*model.SyncStatus, error)
	ListByListing(ctx context.Context, listingID int64) ([]model.SyncStatus, error)
	ListByStatus(ctx context.Context, status string) ([]model.SyncStatus, error)

	// Upsert 按 (listing_id, platform_id) 冲突键写入
	// 每次调和结束整条覆盖，保证状态终态唯一
	Upsert(ctx context.Context, status *model.SyncStatus) error
}

// ==================== 仓储实现 ====================

type syncStatusRepo struct {
	db *gorm.DB
}

// NewSyncStatusRepository 创建同步状态仓储
func NewSyncStatusRepository(db *gorm.DB) SyncStatusRepository {
	return &syncStatusRepo{db: db}
}

func (r *syncStatusRepo) GetByPair(ctx context.Context, listingID int64, platformID string) (*model.SyncStatus, error) {
	var status model.SyncStatus
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND platform_id = ?", listingID, platformID).
		First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *syncStatusRepo) ListByListing(ctx context.Context, listingID int64) ([]model.SyncStatus, error) {
	var statuses []model.SyncStatus
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("platform_id ASC").
		Find(&statuses).Error
	return statuses, err
}

func (r *syncStatusRepo) ListByStatus(ctx context.Context, status string) ([]model.SyncStatus, error) {
	var statuses []model.SyncStatus
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Find(&statuses).Error
	return statuses, err
}

// Upsert 依赖 idx_listing_platform 唯一索引
// 已带主键的记录直接整条覆盖，新记录走冲突键写入
func (r *syncStatusRepo) Upsert(ctx context.Context, status *model.SyncStatus) error {
	if status.ID > 0 {
		return r.db.WithContext(ctx).Save(status).Error
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_id"}, {Name: "platform_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "platform_object_id", "last_synced_at",
			"error_message", "retryable", "conflicts_json", "updated_at",
		}),
	}).Create(status).Error
}
