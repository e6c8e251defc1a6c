package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
)

// ==================== 测试辅助 ====================

func setupServiceTestDB(t *testing.T) *gorm.DB {
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

// ==================== 假时钟 ====================

// fakeClock 固定时间 + 记录休眠/计时器，不产生真实等待
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	afters []time.Duration

	// sleepHook 第 n 次 Sleep 时回调（从 1 开始），测试用来注入取消
	sleepHook func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	hook := c.sleepHook
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afters = append(c.afters, d)
	// 不触发回调，测试只关心是否挂了计时器
	return func() {}
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func (c *fakeClock) afterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.afters)
}

// ==================== 假平台客户端 ====================

// fakeClient 可编程的平台客户端，带调用计数
type fakeClient struct {
	platformID string

	createCalls  int32
	updateCalls  int32
	getCalls     int32
	findCalls    int32
	refreshCalls int32

	createFn   func(payload *platform.ListingPayload) (string, error)
	updateFn   func(objectID string, payload *platform.ListingPayload) error
	getFn      func(objectID string) (*platform.ObjectSnapshot, error)
	findFn     func(sku string) (*platform.ObjectSnapshot, error)
	refreshFn  func(refreshToken string) (*platform.TokenGrant, error)
	exchangeFn func(code, verifier string) (*platform.TokenGrant, error)
}

func newFakeClient(platformID string) *fakeClient {
	return &fakeClient{platformID: platformID}
}

func (c *fakeClient) PlatformID() string { return c.platformID }

func (c *fakeClient) CreateObject(ctx context.Context, accessToken string, payload *platform.ListingPayload) (string, error) {
	atomic.AddInt32(&c.createCalls, 1)
	if c.createFn != nil {
		return c.createFn(payload)
	}
	return "obj-" + payload.SKU, nil
}

func (c *fakeClient) UpdateObject(ctx context.Context, accessToken, objectID string, payload *platform.ListingPayload) error {
	atomic.AddInt32(&c.updateCalls, 1)
	if c.updateFn != nil {
		return c.updateFn(objectID, payload)
	}
	return nil
}

func (c *fakeClient) GetObject(ctx context.Context, accessToken, objectID string) (*platform.ObjectSnapshot, error) {
	atomic.AddInt32(&c.getCalls, 1)
	if c.getFn != nil {
		return c.getFn(objectID)
	}
	return &platform.ObjectSnapshot{ObjectID: objectID}, nil
}

func (c *fakeClient) FindObjectBySKU(ctx context.Context, accessToken, sku string) (*platform.ObjectSnapshot, error) {
	atomic.AddInt32(&c.findCalls, 1)
	if c.findFn != nil {
		return c.findFn(sku)
	}
	return nil, nil
}

func (c *fakeClient) RefreshToken(ctx context.Context, refreshToken string) (*platform.TokenGrant, error) {
	atomic.AddInt32(&c.refreshCalls, 1)
	if c.refreshFn != nil {
		return c.refreshFn(refreshToken)
	}
	return &platform.TokenGrant{AccessToken: "new-access", ExpiresIn: 7200}, nil
}

func (c *fakeClient) ExchangeCode(ctx context.Context, code, verifier string) (*platform.TokenGrant, error) {
	if c.exchangeFn != nil {
		return c.exchangeFn(code, verifier)
	}
	return &platform.TokenGrant{AccessToken: "exchanged-access", RefreshToken: "exchanged-refresh", ExpiresIn: 7200}, nil
}

// ==================== 数据种子 ====================

func seedAccount(t *testing.T, db *gorm.DB, clock *fakeClock, expiresIn time.Duration) *model.MarketplaceAccount {
	t.Helper()
	account := &model.MarketplaceAccount{
		UserID:               1,
		PlatformID:           model.PlatformEbay,
		AccessToken:          "seed-access",
		RefreshToken:         "seed-refresh",
		AccessTokenExpiresAt: clock.Now().Add(expiresIn),
		IsConnected:          true,
		IsActive:             true,
		TokenStatus:          model.TokenStatusValid,
		Capabilities:         model.CapabilityIndividual,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("创建测试账户失败: %v", err)
	}
	return account
}

func seedListing(t *testing.T, db *gorm.DB, sku string, price int64, quantity int) *model.Listing {
	t.Helper()
	listing := &model.Listing{
		UserID:       1,
		SKU:          sku,
		Title:        "测试商品 " + sku,
		Description:  "desc",
		PriceAmount:  price,
		CurrencyCode: "USD",
		Quantity:     quantity,
		State:        model.ListingStateActive,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("创建测试商品失败: %v", err)
	}
	return listing
}
