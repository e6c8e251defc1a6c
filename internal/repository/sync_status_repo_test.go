package repository

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reseller_sync_v1/internal/model"
)

// ==================== 测试辅助 ====================

func setupRepoTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&model.MarketplaceAccount{},
		&model.Listing{},
		&model.SyncStatus{},
	)
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

// ==================== SyncStatus 仓储 ====================

func TestSyncStatusRepo_GetByPair_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewSyncStatusRepository(db)

	status, err := repo.GetByPair(context.Background(), 999, model.PlatformEbay)
	if err != nil {
		t.Fatalf("GetByPair() error = %v, 不存在不是错误", err)
	}
	if status != nil {
		t.Errorf("status = %+v, want nil", status)
	}
}

func TestSyncStatusRepo_UpsertCreatesThenOverwrites(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewSyncStatusRepository(db)
	ctx := context.Background()

	// 首次写入
	first := &model.SyncStatus{
		ListingID:  1,
		PlatformID: model.PlatformEbay,
		Status:     model.SyncStatePending,
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	// 同一 (listing, platform) 对再写，应覆盖而不是新增
	now := time.Now()
	second := &model.SyncStatus{
		ListingID:        1,
		PlatformID:       model.PlatformEbay,
		Status:           model.SyncStateSynced,
		PlatformObjectID: "obj-1",
		LastSyncedAt:     &now,
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	var count int64
	db.Model(&model.SyncStatus{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1 (upsert must not duplicate)", count)
	}

	saved, err := repo.GetByPair(ctx, 1, model.PlatformEbay)
	if err != nil || saved == nil {
		t.Fatalf("GetByPair() = %v, %v", saved, err)
	}
	if saved.Status != model.SyncStateSynced {
		t.Errorf("status = %s, want synced", saved.Status)
	}
	if saved.PlatformObjectID != "obj-1" {
		t.Errorf("object id = %s, want obj-1", saved.PlatformObjectID)
	}
}

func TestSyncStatusRepo_ConflictsRoundTrip(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewSyncStatusRepository(db)
	ctx := context.Background()

	status := &model.SyncStatus{
		ListingID:  2,
		PlatformID: model.PlatformEbay,
		Status:     model.SyncStateConflict,
	}
	status.SetConflicts([]model.Conflict{
		{
			ID:           "c-1",
			ConflictType: model.ConflictTypePrice,
			Platforms:    []string{model.PlatformEbay},
			DetectedAt:   time.Now().UTC(),
			Details:      map[string]interface{}{"local_price": float64(1000), "remote_price": float64(1200)},
		},
	})
	if err := repo.Upsert(ctx, status); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	saved, _ := repo.GetByPair(ctx, 2, model.PlatformEbay)
	conflicts := saved.Conflicts()
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(conflicts))
	}
	if conflicts[0].ConflictType != model.ConflictTypePrice {
		t.Errorf("conflict type = %s, want price_mismatch", conflicts[0].ConflictType)
	}
}

func TestSyncStatusRepo_ListByListing(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewSyncStatusRepository(db)
	ctx := context.Background()

	for _, p := range []string{model.PlatformEbay, model.PlatformMercari} {
		if err := repo.Upsert(ctx, &model.SyncStatus{ListingID: 3, PlatformID: p, Status: model.SyncStatePending}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", p, err)
		}
	}

	statuses, err := repo.ListByListing(ctx, 3)
	if err != nil {
		t.Fatalf("ListByListing() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Errorf("statuses = %d, want 2", len(statuses))
	}
}

// ==================== 账户仓储 ====================

func TestAccountRepo_UpdateToken_PreservesRefreshToken(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewMarketplaceAccountRepository(db)
	ctx := context.Background()

	account := &model.MarketplaceAccount{
		UserID:       1,
		PlatformID:   model.PlatformEbay,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		IsConnected:  true,
		TokenStatus:  model.TokenStatusValid,
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// 空 refreshToken 表示未轮换，必须保留原值
	expiresAt := time.Now().Add(2 * time.Hour)
	if err := repo.UpdateToken(ctx, account.ID, "new-access", "", expiresAt); err != nil {
		t.Fatalf("UpdateToken() error = %v", err)
	}

	saved, _ := repo.GetByID(ctx, account.ID)
	if saved.AccessToken != "new-access" {
		t.Errorf("access token = %s, want new-access", saved.AccessToken)
	}
	if saved.RefreshToken != "old-refresh" {
		t.Errorf("refresh token = %s, want old-refresh (preserved)", saved.RefreshToken)
	}

	// 轮换时覆盖
	if err := repo.UpdateToken(ctx, account.ID, "new-access-2", "rotated-refresh", expiresAt); err != nil {
		t.Fatalf("UpdateToken() error = %v", err)
	}
	saved, _ = repo.GetByID(ctx, account.ID)
	if saved.RefreshToken != "rotated-refresh" {
		t.Errorf("refresh token = %s, want rotated-refresh", saved.RefreshToken)
	}
}

func TestAccountRepo_FindExpiring(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewMarketplaceAccountRepository(db)
	ctx := context.Background()
	now := time.Now()

	accounts := []*model.MarketplaceAccount{
		// 30 分钟后过期：命中
		{UserID: 1, PlatformID: model.PlatformEbay, RefreshToken: "r", AccessTokenExpiresAt: now.Add(30 * time.Minute), IsConnected: true, TokenStatus: model.TokenStatusValid},
		// 3 小时后过期：不命中
		{UserID: 2, PlatformID: model.PlatformEbay, RefreshToken: "r", AccessTokenExpiresAt: now.Add(3 * time.Hour), IsConnected: true, TokenStatus: model.TokenStatusValid},
		// 即将过期但已降级：不命中
		{UserID: 3, PlatformID: model.PlatformEbay, AccessTokenExpiresAt: now.Add(10 * time.Minute), IsConnected: false, TokenStatus: model.TokenStatusReauth},
	}
	for _, a := range accounts {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	expiring, err := repo.FindExpiring(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("FindExpiring() error = %v", err)
	}
	if len(expiring) != 1 {
		t.Fatalf("expiring = %d, want 1", len(expiring))
	}
	if expiring[0].UserID != 1 {
		t.Errorf("expiring account user = %d, want 1", expiring[0].UserID)
	}
}

func TestAccountRepo_MarkReauthRequired(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewMarketplaceAccountRepository(db)
	ctx := context.Background()

	account := &model.MarketplaceAccount{
		UserID:       1,
		PlatformID:   model.PlatformEbay,
		AccessToken:  "a",
		RefreshToken: "r",
		IsConnected:  true,
		TokenStatus:  model.TokenStatusValid,
	}
	if err := repo.Create(ctx, account); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.MarkReauthRequired(ctx, account.ID); err != nil {
		t.Fatalf("MarkReauthRequired() error = %v", err)
	}

	saved, _ := repo.GetByID(ctx, account.ID)
	if saved.TokenStatus != model.TokenStatusReauth {
		t.Errorf("token status = %s, want reauth_required", saved.TokenStatus)
	}
	if saved.AccessToken != "" || saved.RefreshToken != "" {
		t.Error("credentials should be cleared")
	}
	if saved.IsConnected {
		t.Error("account should be disconnected")
	}
}
