package task

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/internal/service"
)

// ==================== ReconcileSweepTask 全量调和任务 ====================

// ReconcileSweepTask 每日对所有在售 Listing 做一轮全平台调和
// 捕捉远端单方面变化（被平台下架、库存被订单消耗等）
type ReconcileSweepTask struct {
	listingRepo repository.ListingRepository
	accountRepo repository.MarketplaceAccountRepository
	bulkService *service.BulkSyncService
	cron        *cron.Cron

	platforms []string
}

// NewReconcileSweepTask 创建全量调和任务
func NewReconcileSweepTask(
	listingRepo repository.ListingRepository,
	accountRepo repository.MarketplaceAccountRepository,
	bulkService *service.BulkSyncService,
	platforms []string,
) *ReconcileSweepTask {
	if len(platforms) == 0 {
		platforms = []string{model.PlatformEbay}
	}
	return &ReconcileSweepTask{
		listingRepo: listingRepo,
		accountRepo: accountRepo,
		bulkService: bulkService,
		cron:        cron.New(cron.WithSeconds()),
		platforms:   platforms,
	}
}

// Start 启动定时任务
func (t *ReconcileSweepTask) Start() {
	// 每日凌晨 3 点全量调和
	_, _ = t.cron.AddFunc("0 0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
		defer cancel()
		log.Println("[ReconcileSweep] 开始每日全量调和...")
		t.sweep(ctx)
	})

	t.cron.Start()
	log.Println("[ReconcileSweep] 已启动 (每日凌晨3点)")
}

// Stop 停止任务
func (t *ReconcileSweepTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[ReconcileSweep] 已停止")
}

// sweep 单轮全量调和
func (t *ReconcileSweepTask) sweep(ctx context.Context) {
	listings, err := t.listingRepo.ListActive(ctx)
	if err != nil {
		log.Printf("[ReconcileSweep] 获取在售 Listing 失败: %v", err)
		return
	}
	if len(listings) == 0 {
		log.Println("[ReconcileSweep] 无在售 Listing 需要调和")
		return
	}

	ids := make([]int64, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	for _, platformID := range t.platforms {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileSweep] 任务超时停止")
			return
		default:
		}

		result, err := t.bulkService.BulkReconcile(ctx, ids, platformID)
		if err != nil {
			log.Printf("[ReconcileSweep] 平台 %s 调和失败: %v", platformID, err)
			continue
		}
		log.Printf("[ReconcileSweep] 平台 %s: 尝试 %d, 成功 %d, 冲突 %d, 失败 %d",
			platformID, result.Attempted, result.Succeeded, result.Conflicted, result.Failed)
	}
}

// SweepNow 手动触发全量调和
func (t *ReconcileSweepTask) SweepNow() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Hour)
		defer cancel()
		t.sweep(ctx)
	}()
}
