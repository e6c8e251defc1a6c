package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
)

// ==================== 业务常量 ====================

const (
	// RefreshBuffer 过期前多久触发主动刷新
	RefreshBuffer = 5 * time.Minute
	// ScheduleHorizon 超过此时长的刷新不挂计时器，等下一次自然触发
	ScheduleHorizon = 24 * time.Hour
)

// SvcError 服务层哨兵错误
type SvcError string

func (e SvcError) Error() string { return string(e) }

const (
	// ErrReauthRequired 账户需要人工重新授权，调用方应引导用户重连而不是重试
	ErrReauthRequired SvcError = "marketplace account requires re-authentication"
	// ErrAccountDisconnected 账户未连接
	ErrAccountDisconnected SvcError = "marketplace account is not connected"
	// ErrPlatformUnsupported 平台未注册客户端
	ErrPlatformUnsupported SvcError = "platform client not registered"
)

// ==================== TokenService Token 生命周期管理 ====================

// TokenService 保证向调用方交付的 Token 至少在缓冲期内有效，
// 否则给出明确的 reauth_required 信号
//
// 状态机（每账户）：valid -> (临近过期) refreshing -> valid | reauth_required
//
// 并发约束：同一账户同时只允许一次远端刷新，并发调用共享在飞结果
// （多数 OAuth 提供方 refresh_token 用后即失效或轮换，重复刷新会互相打死）
type TokenService struct {
	accountRepo repository.MarketplaceAccountRepository
	clients     map[string]platform.Client
	clock       Clock

	refreshBuffer   time.Duration
	scheduleHorizon time.Duration

	// 每账户刷新合流
	group singleflight.Group

	// 挂起的主动刷新计时器 accountID -> cancel
	timers   map[int64]func()
	timersMu sync.Mutex
}

// NewTokenService 创建 Token 服务
func NewTokenService(
	accountRepo repository.MarketplaceAccountRepository,
	clients map[string]platform.Client,
	clock Clock,
) *TokenService {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenService{
		accountRepo:     accountRepo,
		clients:         clients,
		clock:           clock,
		refreshBuffer:   RefreshBuffer,
		scheduleHorizon: ScheduleHorizon,
		timers:          make(map[int64]func()),
	}
}

// GetAccessToken 取一个至少在缓冲期内有效的 access_token
// 账户处于 reauth_required 时快速失败，不发起下游调用
func (s *TokenService) GetAccessToken(ctx context.Context, accountID int64) (string, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("load account %d: %w", accountID, err)
	}

	// 1. 离线/需重授权账户直接拒绝
	if account.TokenStatus == model.TokenStatusReauth || account.RefreshToken == "" {
		return "", ErrReauthRequired
	}
	if !account.IsConnected {
		return "", ErrAccountDisconnected
	}

	// 2. 距过期还有富余：直接返回，顺手挂上主动刷新
	if !account.NeedsRefresh(s.clock.Now(), s.refreshBuffer) {
		s.ScheduleRefresh(account.ID, account.AccessTokenExpiresAt)
		return account.AccessToken, nil
	}

	// 3. 进入缓冲区：同步阻塞等待刷新完成
	if err := s.Refresh(ctx, accountID); err != nil {
		return "", err
	}

	refreshed, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("reload account %d: %w", accountID, err)
	}
	return refreshed.AccessToken, nil
}

// Refresh 刷新指定账户的 Token
// singleflight 合流：并发调用只触发一次远端刷新，共享同一结果
func (s *TokenService) Refresh(ctx context.Context, accountID int64) error {
	key := fmt.Sprintf("account:%d", accountID)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		return nil, s.doRefresh(ctx, accountID)
	})
	return err
}

// ScheduleRefresh 为账户挂一个过期前缓冲期触发的刷新计时器
// 延迟超过 horizon 的不挂（长寿 Token 等下次自然触发再检查）
func (s *TokenService) ScheduleRefresh(accountID int64, expiresAt time.Time) {
	delay := expiresAt.Sub(s.clock.Now()) - s.refreshBuffer
	if delay <= 0 || delay > s.scheduleHorizon {
		return
	}

	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	// 已有计时器的不重复挂
	if _, exists := s.timers[accountID]; exists {
		return
	}

	s.timers[accountID] = s.clock.AfterFunc(delay, func() {
		s.timersMu.Lock()
		delete(s.timers, accountID)
		s.timersMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.Refresh(ctx, accountID); err != nil {
			// 刷新失败只降级该账户，不影响进程
			log.Printf("[TokenService] 账户 %d 定时刷新失败: %v", accountID, err)
		}
	})
}

// Stop 取消所有挂起的计时器
func (s *TokenService) Stop() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}
}

// ==================== 刷新执行 ====================

// doRefresh 实际的刷新逻辑（singleflight 内执行）
func (s *TokenService) doRefresh(ctx context.Context, accountID int64) error {
	// 重新加载，避免用旧快照里已轮换的 refresh_token
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", accountID, err)
	}

	if account.TokenStatus == model.TokenStatusReauth || account.RefreshToken == "" {
		return ErrReauthRequired
	}

	client, ok := s.clients[account.PlatformID]
	if !ok {
		return ErrPlatformUnsupported
	}

	grant, err := client.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		return s.handleRefreshFailure(ctx, account, client, err)
	}

	return s.persistGrant(ctx, account, grant)
}

// handleRefreshFailure 分类失败原因并决定降级或重试
func (s *TokenService) handleRefreshFailure(
	ctx context.Context,
	account *model.MarketplaceAccount,
	client platform.Client,
	cause error,
) error {
	classified := platform.AsClassified(account.PlatformID, cause)

	// 授权类失败（invalid_grant 等）：清凭证置离线，等人工重连
	if classified.Category == platform.CategoryAuthentication {
		log.Printf("[TokenService] 账户 %d 刷新被拒绝，转入待重授权: %s", account.ID, classified.TechnicalMessage)
		if err := s.accountRepo.MarkReauthRequired(ctx, account.ID); err != nil {
			log.Printf("[TokenService] 账户 %d 降级落库失败: %v", account.ID, err)
		}
		return ErrReauthRequired
	}

	// 可重试失败：按分类器建议的间隔退避后重试一次
	if classified.Retryable {
		delay := time.Duration(classified.RetryAfterSeconds) * time.Second
		log.Printf("[TokenService] 账户 %d 刷新暂时失败，%v 后重试一次: %s", account.ID, delay, classified.TechnicalMessage)

		if err := s.clock.Sleep(ctx, delay); err != nil {
			return err
		}

		grant, err := client.RefreshToken(ctx, account.RefreshToken)
		if err == nil {
			return s.persistGrant(ctx, account, grant)
		}

		retried := platform.AsClassified(account.PlatformID, err)
		if retried.Category == platform.CategoryAuthentication {
			if markErr := s.accountRepo.MarkReauthRequired(ctx, account.ID); markErr != nil {
				log.Printf("[TokenService] 账户 %d 降级落库失败: %v", account.ID, markErr)
			}
			return ErrReauthRequired
		}
		// 重试仍失败：不再改账户状态，原样上抛
		return retried
	}

	// unknown 类只携带兜底文案，技术细节必须落日志
	if classified.Category == platform.CategoryUnknown {
		log.Printf("[TokenService] 账户 %d 刷新遇到未知错误: %s", account.ID, classified.TechnicalMessage)
	}
	return classified
}

// persistGrant 刷新成功落库并重新挂计时器
func (s *TokenService) persistGrant(ctx context.Context, account *model.MarketplaceAccount, grant *platform.TokenGrant) error {
	expiresAt := s.clock.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)

	// grant.RefreshToken 为空表示未轮换，仓储层会保留原值
	if err := s.accountRepo.UpdateToken(ctx, account.ID, grant.AccessToken, grant.RefreshToken, expiresAt); err != nil {
		return fmt.Errorf("persist refreshed token for account %d: %w", account.ID, err)
	}

	s.ScheduleRefresh(account.ID, expiresAt)
	return nil
}
