package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/pkg/utils"
)

// 业务常量
const (
	// EbayAuthorizeURL eBay 授权页
	EbayAuthorizeURL = "https://auth.ebay.com/oauth2/authorize"

	// 请求的权限范围：库存读写
	ebayScopes = "https://api.ebay.com/oauth/api_scope/sell.inventory https://api.ebay.com/oauth/api_scope/sell.account.readonly"
)

const (
	// ErrStateExpired 授权回调的 state 无效或已过期
	ErrStateExpired SvcError = "oauth state expired or invalid"
)

// AuthConfig 授权配置
type AuthConfig struct {
	ClientID    string
	RedirectURI string
}

// AuthService 市场平台授权服务
// 负责授权链接生成、回调换 Token、断开连接
type AuthService struct {
	accountRepo repository.MarketplaceAccountRepository
	clients     map[string]platform.Client
	tokens      *TokenService
	cfg         *AuthConfig
	clock       Clock
}

// NewAuthService 工厂方法
func NewAuthService(
	accountRepo repository.MarketplaceAccountRepository,
	clients map[string]platform.Client,
	tokens *TokenService,
	cfg *AuthConfig,
	clock Clock,
) *AuthService {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &AuthService{
		accountRepo: accountRepo,
		clients:     clients,
		tokens:      tokens,
		cfg:         cfg,
		clock:       clock,
	}
}

// GenerateConnectURL 生成平台授权链接
// PKCE (S256) + state 防 CSRF，verifier 与 user/platform 一起进缓存等回调取用
func (s *AuthService) GenerateConnectURL(ctx context.Context, userID int64, platformID string) (string, error) {
	if _, ok := s.clients[platformID]; !ok {
		return "", ErrPlatformUnsupported
	}

	// 1. 生成 PKCE 安全参数
	verifier, err := utils.GenerateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}
	challenge := utils.GenerateCodeChallenge(verifier)
	state, err := utils.GenerateRandomString(16)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	// 2. 缓存 (key=state, value="verifier:userID:platformID")
	utils.SetCache(state, fmt.Sprintf("%s:%d:%s", verifier, userID, platformID))

	// 3. 拼接授权 URL
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", s.cfg.ClientID)
	query.Set("redirect_uri", s.cfg.RedirectURI)
	query.Set("scope", ebayScopes)
	query.Set("state", state)
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", "S256")

	return EbayAuthorizeURL + "?" + query.Encode(), nil
}

// HandleCallback 处理授权回调 -> 换 Token -> 建档
func (s *AuthService) HandleCallback(ctx context.Context, code, state string) (*model.MarketplaceAccount, error) {
	// 1. 校验 state 取缓存
	cached, exists := utils.GetCache(state)
	if !exists {
		return nil, ErrStateExpired
	}
	utils.DeleteCache(state) // 用完即焚

	// 2. 解析缓存 "verifier:userID:platformID"
	parts := strings.SplitN(cached, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("bad cache payload, want 'verifier:userID:platformID', got: %s", cached)
	}
	verifier := parts[0]
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad userID in cache: %w", err)
	}
	platformID := parts[2]

	client, ok := s.clients[platformID]
	if !ok {
		return nil, ErrPlatformUnsupported
	}

	// 3. 授权码换 Token
	grant, err := client.ExchangeCode(ctx, code, verifier)
	if err != nil {
		classified := platform.AsClassified(platformID, err)
		return nil, fmt.Errorf("exchange code failed: %w", classified)
	}

	expiresAt := s.clock.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)

	// 4. 建档或复活既有账户（断开过的账户重新连接走同一条记录）
	account, err := s.accountRepo.GetByUserAndPlatform(ctx, userID, platformID)
	if err != nil {
		account = &model.MarketplaceAccount{
			UserID:       userID,
			PlatformID:   platformID,
			Capabilities: model.CapabilityIndividual,
		}
		s.applyGrant(account, grant, expiresAt)
		if err := s.accountRepo.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
	} else {
		s.applyGrant(account, grant, expiresAt)
		if err := s.accountRepo.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
	}

	// 5. 挂上主动刷新
	s.tokens.ScheduleRefresh(account.ID, expiresAt)

	log.Printf("[Auth] 用户 %d 已连接 %s，Token 有效至 %s", userID, platformID, expiresAt.Format(time.RFC3339))
	return account, nil
}

// Disconnect 用户主动断开
// 只置标志位不删行，历史保留给支持排查
func (s *AuthService) Disconnect(ctx context.Context, accountID int64) error {
	return s.accountRepo.Disconnect(ctx, accountID)
}

func (s *AuthService) applyGrant(account *model.MarketplaceAccount, grant *platform.TokenGrant, expiresAt time.Time) {
	account.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		account.RefreshToken = grant.RefreshToken
	}
	account.AccessTokenExpiresAt = expiresAt
	account.IsConnected = true
	account.IsActive = true
	account.TokenStatus = model.TokenStatusValid
}
