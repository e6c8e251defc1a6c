package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/pkg/utils"
)

func newAuthServiceForTest(t *testing.T, client *fakeClient) (*AuthService, repository.MarketplaceAccountRepository, *fakeClock) {
	t.Helper()
	db := setupServiceTestDB(t)
	clock := newFakeClock()
	accountRepo := repository.NewMarketplaceAccountRepository(db)
	clients := map[string]platform.Client{model.PlatformEbay: client}

	tokens := NewTokenService(accountRepo, clients, clock)
	t.Cleanup(tokens.Stop)

	svc := NewAuthService(accountRepo, clients, tokens, &AuthConfig{
		ClientID:    "test-client",
		RedirectURI: "https://example.com/callback",
	}, clock)
	return svc, accountRepo, clock
}

// ==================== 授权链接 ====================

func TestAuthService_GenerateConnectURL(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t, newFakeClient(model.PlatformEbay))

	rawURL, err := svc.GenerateConnectURL(context.Background(), 1, model.PlatformEbay)
	if err != nil {
		t.Fatalf("GenerateConnectURL() error = %v", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("生成的 URL 无法解析: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "test-client" {
		t.Errorf("client_id = %s, want test-client", q.Get("client_id"))
	}
	if q.Get("code_challenge_method") != "S256" {
		t.Errorf("challenge method = %s, want S256", q.Get("code_challenge_method"))
	}
	if q.Get("code_challenge") == "" {
		t.Error("code_challenge should be present")
	}
	if q.Get("state") == "" {
		t.Error("state should be present")
	}
	if !strings.HasPrefix(rawURL, EbayAuthorizeURL) {
		t.Errorf("url = %s, want prefix %s", rawURL, EbayAuthorizeURL)
	}
}

func TestAuthService_GenerateConnectURL_UnknownPlatform(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t, newFakeClient(model.PlatformEbay))

	_, err := svc.GenerateConnectURL(context.Background(), 1, "nosuch")
	if !errors.Is(err, ErrPlatformUnsupported) {
		t.Errorf("error = %v, want ErrPlatformUnsupported", err)
	}
}

// ==================== 授权回调 ====================

func TestAuthService_HandleCallback_CreatesAccount(t *testing.T) {
	client := newFakeClient(model.PlatformEbay)
	svc, accountRepo, clock := newAuthServiceForTest(t, client)

	// 模拟连接流程写入的缓存
	utils.SetCache("state-abc", "verifier-xyz:7:ebay")
	defer utils.DeleteCache("state-abc")

	account, err := svc.HandleCallback(context.Background(), "auth-code", "state-abc")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if account.UserID != 7 {
		t.Errorf("user id = %d, want 7", account.UserID)
	}
	if account.PlatformID != model.PlatformEbay {
		t.Errorf("platform = %s, want ebay", account.PlatformID)
	}
	if !account.IsConnected {
		t.Error("account should be connected")
	}
	if account.TokenStatus != model.TokenStatusValid {
		t.Errorf("token status = %s, want valid", account.TokenStatus)
	}

	saved, err := accountRepo.GetByUserAndPlatform(context.Background(), 7, model.PlatformEbay)
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if saved.AccessToken != "exchanged-access" {
		t.Errorf("access token = %s, want exchanged-access", saved.AccessToken)
	}
	wantExpiry := clock.Now().Add(7200 * time.Second)
	if !saved.AccessTokenExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires at = %v, want %v", saved.AccessTokenExpiresAt, wantExpiry)
	}

	// state 用完即焚
	if _, ok := utils.GetCache("state-abc"); ok {
		t.Error("state cache should be burned after use")
	}
}

func TestAuthService_HandleCallback_RevivesDisconnectedAccount(t *testing.T) {
	client := newFakeClient(model.PlatformEbay)
	svc, accountRepo, _ := newAuthServiceForTest(t, client)

	// 既有的已断开账户
	old := &model.MarketplaceAccount{
		UserID:       7,
		PlatformID:   model.PlatformEbay,
		TokenStatus:  model.TokenStatusReauth,
		IsConnected:  false,
		Capabilities: model.CapabilityBusiness,
	}
	if err := accountRepo.Create(context.Background(), old); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	utils.SetCache("state-revive", "verifier-xyz:7:ebay")
	defer utils.DeleteCache("state-revive")

	account, err := svc.HandleCallback(context.Background(), "auth-code", "state-revive")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	// 复用同一条记录，不新建
	if account.ID != old.ID {
		t.Errorf("account id = %d, want %d (reuse existing row)", account.ID, old.ID)
	}
	if account.Capabilities != model.CapabilityBusiness {
		t.Errorf("capabilities = %s, want business (preserved)", account.Capabilities)
	}

	// 重新授权不允许出现第二条 (user, platform) 记录
	accounts, _ := accountRepo.ListConnected(context.Background(), model.PlatformEbay)
	if len(accounts) != 1 {
		t.Errorf("connected accounts = %d, want 1", len(accounts))
	}
}

func TestAuthService_HandleCallback_ExpiredState(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t, newFakeClient(model.PlatformEbay))

	_, err := svc.HandleCallback(context.Background(), "auth-code", "never-cached")
	if !errors.Is(err, ErrStateExpired) {
		t.Errorf("error = %v, want ErrStateExpired", err)
	}
}

// ==================== 断开连接 ====================

func TestAuthService_Disconnect(t *testing.T) {
	svc, accountRepo, clock := newAuthServiceForTest(t, newFakeClient(model.PlatformEbay))

	account := seedAccountWithRepo(t, accountRepo, clock, 2*time.Hour)

	if err := svc.Disconnect(context.Background(), account.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	saved, _ := accountRepo.GetByID(context.Background(), account.ID)
	if saved.IsConnected {
		t.Error("account should be disconnected")
	}
	// 只改标志位，历史记录保留
	if saved.ID != account.ID {
		t.Error("row must be preserved")
	}
}
