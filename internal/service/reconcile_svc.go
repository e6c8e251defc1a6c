package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
)

// 冲突裁决策略
const (
	PolicyLocalWins  = "local_wins"
	PolicyRemoteWins = "remote_wins"
)

const (
	// ErrConflictDetected 检测到冲突，需要显式裁决
	ErrConflictDetected SvcError = "sync conflict detected, explicit resolution required"
	// ErrInvalidPolicy 未知的裁决策略
	ErrInvalidPolicy SvcError = "unknown conflict resolution policy"
)

// ==================== ReconcileService 调和引擎 ====================

// ReconcileService 把一条本地 Listing 与一个平台的远端状态调和一致
//
// 写权属：SyncStatus 只由本服务写入；MarketplaceAccount 本服务只读
// 并发约束：同一 (listing, platform) 对的调和串行化，并发调用共享结果；
// 不同对可以并行
type ReconcileService struct {
	listingRepo repository.ListingRepository
	statusRepo  repository.SyncStatusRepository
	accountRepo repository.MarketplaceAccountRepository
	tokens      *TokenService
	clients     map[string]platform.Client
	clock       Clock

	// 每 (listing, platform) 对合流
	group singleflight.Group
}

// NewReconcileService 创建调和引擎
func NewReconcileService(
	listingRepo repository.ListingRepository,
	statusRepo repository.SyncStatusRepository,
	accountRepo repository.MarketplaceAccountRepository,
	tokens *TokenService,
	clients map[string]platform.Client,
	clock Clock,
) *ReconcileService {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &ReconcileService{
		listingRepo: listingRepo,
		statusRepo:  statusRepo,
		accountRepo: accountRepo,
		tokens:      tokens,
		clients:     clients,
		clock:       clock,
	}
}

// Reconcile 调和一条 Listing 在指定平台上的状态
// 无论成败，本次尝试都以恰好一次 SyncStatus 终态写入收尾
func (s *ReconcileService) Reconcile(ctx context.Context, listingID int64, platformID string) (*model.SyncStatus, error) {
	key := fmt.Sprintf("%d:%s", listingID, platformID)
	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.reconcileOnce(ctx, listingID, platformID)
	})
	if result == nil {
		return nil, err
	}
	return result.(*model.SyncStatus), err
}

// reconcileOnce 单次调和（singleflight 内执行）
func (s *ReconcileService) reconcileOnce(ctx context.Context, listingID int64, platformID string) (*model.SyncStatus, error) {
	// 1. 本地快照
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", listingID, err)
	}

	client, ok := s.clients[platformID]
	if !ok {
		return nil, ErrPlatformUnsupported
	}

	// 2. 既有状态（惰性创建）
	status, err := s.statusRepo.GetByPair(ctx, listingID, platformID)
	if err != nil {
		return nil, fmt.Errorf("load sync status %d/%s: %w", listingID, platformID, err)
	}
	if status == nil {
		status = &model.SyncStatus{
			ListingID:  listingID,
			PlatformID: platformID,
			Status:     model.SyncStatePending,
		}
	}

	// 3. 账户与 Token
	account, err := s.accountRepo.GetByUserAndPlatform(ctx, listing.UserID, platformID)
	if err != nil {
		return nil, fmt.Errorf("load account user=%d platform=%s: %w", listing.UserID, platformID, err)
	}

	token, err := s.tokens.GetAccessToken(ctx, account.ID)
	if err != nil {
		// 拿不到 Token：终态写 error，reauth 情况单独标记给 UI
		if errors.Is(err, ErrReauthRequired) || errors.Is(err, ErrAccountDisconnected) {
			s.finish(ctx, status, model.SyncStateError, "账户授权已失效，请重新连接后再同步", false)
			return status, ErrReauthRequired
		}
		classified := platform.AsClassified(platformID, err)
		s.finish(ctx, status, model.SyncStateError, classified.UserMessage, classified.Retryable)
		return status, classified
	}

	payload := buildPayload(listing, account)

	// 4. 无远端 ID -> 创建路径；有 -> 对比路径
	if status.PlatformObjectID == "" {
		return s.createPath(ctx, client, token, listing, status, payload)
	}
	return s.comparePath(ctx, client, token, listing, status)
}

// ==================== 创建路径 ====================

func (s *ReconcileService) createPath(
	ctx context.Context,
	client platform.Client,
	token string,
	listing *model.Listing,
	status *model.SyncStatus,
	payload *platform.ListingPayload,
) (*model.SyncStatus, error) {
	objectID, err := client.CreateObject(ctx, token, payload)
	if err != nil {
		classified := platform.AsClassified(client.PlatformID(), err)

		// "已存在"是可恢复情况：按 SKU 找到既有对象并认领其 ID，
		// 然后走对比路径，不算失败
		if classified.AlreadyExists {
			log.Printf("[Reconcile] SKU %s 在 %s 已存在，认领既有对象", listing.SKU, client.PlatformID())
			snapshot, findErr := client.FindObjectBySKU(ctx, token, listing.SKU)
			if findErr == nil && snapshot != nil {
				status.PlatformObjectID = snapshot.ObjectID
				return s.compareWithSnapshot(ctx, listing, status, snapshot)
			}
			if findErr != nil {
				classified = platform.AsClassified(client.PlatformID(), findErr)
			}
		}

		// 可重试失败：按建议间隔退避后重试一次
		if classified.Retryable {
			if retryID, ok := s.retryCreate(ctx, client, token, payload, classified); ok {
				return s.adoptCreated(ctx, status, retryID)
			}
		}

		s.finish(ctx, status, model.SyncStateError, classified.UserMessage, classified.Retryable)
		return status, classified
	}

	return s.adoptCreated(ctx, status, objectID)
}

// retryCreate 单次有界重试
func (s *ReconcileService) retryCreate(
	ctx context.Context,
	client platform.Client,
	token string,
	payload *platform.ListingPayload,
	classified *platform.ClassifiedError,
) (string, bool) {
	delay := time.Duration(classified.RetryAfterSeconds) * time.Second
	if err := s.clock.Sleep(ctx, delay); err != nil {
		return "", false
	}
	objectID, err := client.CreateObject(ctx, token, payload)
	if err != nil {
		return "", false
	}
	return objectID, true
}

// adoptCreated 创建成功：记录远端 ID，置 synced
func (s *ReconcileService) adoptCreated(ctx context.Context, status *model.SyncStatus, objectID string) (*model.SyncStatus, error) {
	status.PlatformObjectID = objectID
	status.SetConflicts(nil)
	s.finish(ctx, status, model.SyncStateSynced, "", false)
	return status, nil
}

// ==================== 对比路径 ====================

func (s *ReconcileService) comparePath(
	ctx context.Context,
	client platform.Client,
	token string,
	listing *model.Listing,
	status *model.SyncStatus,
) (*model.SyncStatus, error) {
	snapshot, err := client.GetObject(ctx, token, status.PlatformObjectID)
	if err != nil {
		classified := platform.AsClassified(client.PlatformID(), err)
		s.finish(ctx, status, model.SyncStateError, classified.UserMessage, classified.Retryable)
		return status, classified
	}
	return s.compareWithSnapshot(ctx, listing, status, snapshot)
}

// compareWithSnapshot 本地 vs 远端逐字段 diff
// 所有不一致都记录，不在第一处短路；有冲突时绝不静默覆盖远端
func (s *ReconcileService) compareWithSnapshot(
	ctx context.Context,
	listing *model.Listing,
	status *model.SyncStatus,
	snapshot *platform.ObjectSnapshot,
) (*model.SyncStatus, error) {
	conflicts := diffListing(listing, snapshot, status.PlatformID, s.clock.Now())

	if len(conflicts) == 0 {
		status.SetConflicts(nil)
		s.finish(ctx, status, model.SyncStateSynced, "", false)
		return status, nil
	}

	status.SetConflicts(conflicts)
	s.finish(ctx, status, model.SyncStateConflict, "检测到本地与平台数据不一致，请裁决后重试", false)
	return status, ErrConflictDetected
}

// diffListing 对比价格 / 数量 / 生命周期状态
func diffListing(listing *model.Listing, snapshot *platform.ObjectSnapshot, platformID string, now time.Time) []model.Conflict {
	var conflicts []model.Conflict

	add := func(conflictType string, details map[string]interface{}) {
		conflicts = append(conflicts, model.Conflict{
			ID:           uuid.NewString(),
			ConflictType: conflictType,
			Platforms:    []string{platformID},
			DetectedAt:   now,
			Details:      details,
		})
	}

	if listing.PriceAmount != snapshot.PriceAmount {
		add(model.ConflictTypePrice, map[string]interface{}{
			"local_price":  listing.PriceAmount,
			"remote_price": snapshot.PriceAmount,
			"currency":     listing.CurrencyCode,
		})
	}
	if listing.Quantity != snapshot.Quantity {
		add(model.ConflictTypeQuantity, map[string]interface{}{
			"local_quantity":  listing.Quantity,
			"remote_quantity": snapshot.Quantity,
		})
	}
	if listing.State != snapshot.State {
		add(model.ConflictTypeStatus, map[string]interface{}{
			"local_state":  listing.State,
			"remote_state": snapshot.State,
		})
	}
	return conflicts
}

// ==================== 冲突裁决 ====================

// ResolveConflicts 对一组平台执行显式裁决，然后重跑对比确认收敛
//   - local_wins:  把本地值推到远端（一次普通更新调用）
//   - remote_wins: 把远端值拉回本地快照
func (s *ReconcileService) ResolveConflicts(
	ctx context.Context,
	listingID int64,
	platformIDs []string,
	policy string,
) ([]*model.SyncStatus, error) {
	if policy != PolicyLocalWins && policy != PolicyRemoteWins {
		return nil, ErrInvalidPolicy
	}

	var results []*model.SyncStatus
	for _, platformID := range platformIDs {
		status, err := s.resolveOne(ctx, listingID, platformID, policy)
		if err != nil && !errors.Is(err, ErrConflictDetected) {
			return results, err
		}
		results = append(results, status)
	}
	return results, nil
}

func (s *ReconcileService) resolveOne(ctx context.Context, listingID int64, platformID string, policy string) (*model.SyncStatus, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", listingID, err)
	}

	status, err := s.statusRepo.GetByPair(ctx, listingID, platformID)
	if err != nil {
		return nil, err
	}
	if status == nil || status.PlatformObjectID == "" {
		// 没有远端对象就没有可裁决的冲突，直接走一次常规调和
		return s.Reconcile(ctx, listingID, platformID)
	}

	client, ok := s.clients[platformID]
	if !ok {
		return nil, ErrPlatformUnsupported
	}

	account, err := s.accountRepo.GetByUserAndPlatform(ctx, listing.UserID, platformID)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.GetAccessToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	switch policy {
	case PolicyLocalWins:
		// 本地为准：推送本地值
		if err := client.UpdateObject(ctx, token, status.PlatformObjectID, buildPayload(listing, account)); err != nil {
			classified := platform.AsClassified(platformID, err)
			s.finish(ctx, status, model.SyncStateError, classified.UserMessage, classified.Retryable)
			return status, classified
		}

	case PolicyRemoteWins:
		// 远端为准：拉回本地快照
		snapshot, err := client.GetObject(ctx, token, status.PlatformObjectID)
		if err != nil {
			classified := platform.AsClassified(platformID, err)
			s.finish(ctx, status, model.SyncStateError, classified.UserMessage, classified.Retryable)
			return status, classified
		}
		fields := map[string]interface{}{
			"price_amount": snapshot.PriceAmount,
			"quantity":     snapshot.Quantity,
			"state":        snapshot.State,
		}
		if err := s.listingRepo.UpdateFields(ctx, listingID, fields); err != nil {
			return nil, fmt.Errorf("pull remote values into listing %d: %w", listingID, err)
		}
	}

	// 裁决后重跑对比确认收敛
	return s.Reconcile(ctx, listingID, platformID)
}

// ==================== 辅助 ====================

// buildPayload 本地快照 + 账户能力 -> 平台负载
// individual/business 的分支只在这里消费一次
func buildPayload(listing *model.Listing, account *model.MarketplaceAccount) *platform.ListingPayload {
	return &platform.ListingPayload{
		SKU:          listing.SKU,
		Title:        listing.Title,
		Description:  listing.Description,
		PriceAmount:  listing.PriceAmount,
		CurrencyCode: listing.CurrencyCode,
		Quantity:     listing.Quantity,
		State:        listing.State,
		Business:     account.Capabilities == model.CapabilityBusiness,
	}
}

// finish 统一的终态写入
// 每次调和尝试不管成败都必须恰好落一次状态
func (s *ReconcileService) finish(ctx context.Context, status *model.SyncStatus, state, errMsg string, retryable bool) {
	status.Status = state
	status.ErrorMessage = errMsg
	status.Retryable = retryable
	if state == model.SyncStateSynced {
		now := s.clock.Now()
		status.LastSyncedAt = &now
	}

	if err := s.statusRepo.Upsert(ctx, status); err != nil {
		log.Printf("[Reconcile] 状态落库失败 listing=%d platform=%s: %v", status.ListingID, status.PlatformID, err)
	}
}
