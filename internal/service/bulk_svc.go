package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
)

// ==================== BulkSyncService 批量同步编排 ====================

// DefaultInterRequestDelay 条目间隔
// 市场 API 的单账户限流很紧，自抑制节流是第一道背压：
// 被远端 429 打回的请求本身也计入配额，能不触发就不触发
const DefaultInterRequestDelay = 2 * time.Second

// BulkItemResult 单条结果
type BulkItemResult struct {
	ListingID int64                  `json:"listing_id"`
	Status    string                 `json:"status"` // synced / conflict / error / skipped
	Message   string                 `json:"message,omitempty"`
	Category  platform.ErrorCategory `json:"category,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// BulkResult 批量运行汇总
// 调用方可以只取失败子集重试
type BulkResult struct {
	RunID      string           `json:"run_id"`
	PlatformID string           `json:"platform_id"`
	Attempted  int              `json:"attempted"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Conflicted int              `json:"conflicted"`
	Canceled   bool             `json:"canceled"`
	Items      []BulkItemResult `json:"items"`
}

// BulkSyncService 以受控节奏驱动调和引擎跑一批 Listing
//
// 默认串行 + 固定条目间隔（贴合市场 API 的严格限流），
// 单条失败互相隔离，不会中断整批
type BulkSyncService struct {
	engine *ReconcileService
	clock  Clock

	interDelay time.Duration
	// concurrency > 1 时退化为信号量并发模式（平台限流宽松时使用）
	concurrency int
}

// NewBulkSyncService 创建批量同步服务
func NewBulkSyncService(engine *ReconcileService, clock Clock) *BulkSyncService {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &BulkSyncService{
		engine:      engine,
		clock:       clock,
		interDelay:  DefaultInterRequestDelay,
		concurrency: 1,
	}
}

// SetPacing 调整节流参数
func (s *BulkSyncService) SetPacing(interDelay time.Duration, concurrency int) {
	if interDelay > 0 {
		s.interDelay = interDelay
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
}

// BulkReconcile 对一批 Listing 逐条调和
// 取消信号只在条目之间检查：在飞的远端调用让它跑完，
// 避免把远端对象留在半写状态
func (s *BulkSyncService) BulkReconcile(ctx context.Context, listingIDs []int64, platformID string) (*BulkResult, error) {
	result := &BulkResult{
		RunID:      uuid.NewString(),
		PlatformID: platformID,
		Items:      make([]BulkItemResult, 0, len(listingIDs)),
	}

	log.Printf("[BulkSync] run=%s 开始处理 %d 条 Listing -> %s", result.RunID, len(listingIDs), platformID)

	if s.concurrency > 1 {
		s.runConcurrent(ctx, listingIDs, platformID, result)
	} else {
		s.runSequential(ctx, listingIDs, platformID, result)
	}

	log.Printf("[BulkSync] run=%s 完成: 尝试 %d, 成功 %d, 冲突 %d, 失败 %d",
		result.RunID, result.Attempted, result.Succeeded, result.Conflicted, result.Failed)
	return result, nil
}

// ==================== 串行模式（默认）====================

func (s *BulkSyncService) runSequential(ctx context.Context, listingIDs []int64, platformID string, result *BulkResult) {
	for i, listingID := range listingIDs {
		// 条目之间检查取消
		select {
		case <-ctx.Done():
			log.Printf("[BulkSync] run=%s 在第 %d 条前被取消", result.RunID, i+1)
			result.Canceled = true
			return
		default:
		}

		item := s.syncOne(ctx, listingID, platformID)
		s.collect(result, item)

		// 末条不再等待
		if i < len(listingIDs)-1 {
			if err := s.clock.Sleep(ctx, s.interDelay); err != nil {
				result.Canceled = true
				return
			}
		}
	}
}

// ==================== 并发模式 ====================

func (s *BulkSyncService) runConcurrent(ctx context.Context, listingIDs []int64, platformID string, result *BulkResult) {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, listingID := range listingIDs {
		select {
		case <-ctx.Done():
			result.Canceled = true
			wg.Wait()
			return
		default:
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()

			item := s.syncOne(ctx, id, platformID)

			mu.Lock()
			defer mu.Unlock()
			s.collect(result, item)
		}(listingID)
	}

	wg.Wait()
}

// ==================== 单条执行 ====================

// syncOne 单条调和，失败被吸收进结果，不向上冒泡
func (s *BulkSyncService) syncOne(ctx context.Context, listingID int64, platformID string) BulkItemResult {
	status, err := s.engine.Reconcile(ctx, listingID, platformID)

	item := BulkItemResult{ListingID: listingID}

	if err == nil {
		item.Status = model.SyncStateSynced
		return item
	}

	// 冲突是非致命结果，单列统计
	if errors.Is(err, ErrConflictDetected) {
		item.Status = model.SyncStateConflict
		item.Message = "检测到数据冲突，需要人工裁决"
		return item
	}

	if errors.Is(err, ErrReauthRequired) {
		item.Status = model.SyncStateError
		item.Message = "账户授权已失效，请重新连接"
		item.Category = platform.CategoryAuthentication
		return item
	}

	classified := platform.AsClassified(platformID, err)
	item.Status = model.SyncStateError
	item.Message = classified.UserMessage
	item.Category = classified.Category
	item.Retryable = classified.Retryable

	if status != nil && status.Status != "" {
		item.Status = status.Status
	}
	return item
}

func (s *BulkSyncService) collect(result *BulkResult, item BulkItemResult) {
	result.Attempted++
	result.Items = append(result.Items, item)

	switch item.Status {
	case model.SyncStateSynced:
		result.Succeeded++
	case model.SyncStateConflict:
		result.Conflicted++
	default:
		result.Failed++
	}
}
