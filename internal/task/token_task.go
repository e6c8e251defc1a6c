package task

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/internal/service"
)

// ==================== TokenTask Token 保活任务 ====================

// TokenTask 周期扫描临近过期的账户并触发刷新
// 主动刷新计时器只覆盖 24h 内的过期，这里是长寿 Token 的自然触发兜底
type TokenTask struct {
	accountRepo  repository.MarketplaceAccountRepository
	tokenService *service.TokenService
	cron         *cron.Cron

	// 扫描提前量：过期前 1 小时内的账户进入本轮刷新
	scanMargin time.Duration

	// 控制并发刷新数量，防止一轮扫描打爆 Token 端点
	concurrencyLimit int
	sleepTime        time.Duration
}

// NewTokenTask 创建保活任务
func NewTokenTask(accountRepo repository.MarketplaceAccountRepository, tokenService *service.TokenService) *TokenTask {
	return &TokenTask{
		accountRepo:      accountRepo,
		tokenService:     tokenService,
		cron:             cron.New(cron.WithSeconds()), // 支持秒级控制
		scanMargin:       1 * time.Hour,
		concurrencyLimit: 10,
		sleepTime:        100 * time.Millisecond, // 每个协程启动间隔，平滑波峰
	}
}

// SetConcurrency 设置并发参数
func (t *TokenTask) SetConcurrency(limit int, sleep time.Duration) {
	t.concurrencyLimit = limit
	t.sleepTime = sleep
}

// Start 启动定时任务
func (t *TokenTask) Start() {
	// 首次执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		log.Println("[TokenTask] 服务启动，正在执行首次 Token 检查...")
		t.refreshJob(ctx)
	}()

	// 定时策略：每 40 分钟一轮
	_, err := t.cron.AddFunc("0 0/40 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		t.refreshJob(ctx)
	})
	if err != nil {
		log.Fatalf("无法启动 Token 定时任务: %v", err)
	}

	t.cron.Start()
	log.Println("[TokenTask] Token 保活任务已启动 (每40分钟检查一次)")
}

// Stop 停止任务
func (t *TokenTask) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
	log.Println("[TokenTask] 已停止")
}

// refreshJob 单轮扫描刷新
func (t *TokenTask) refreshJob(ctx context.Context) {
	accounts, err := t.accountRepo.FindExpiring(ctx, time.Now().Add(t.scanMargin))
	if err != nil {
		log.Printf("[TokenTask] 过期账户查询失败: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	// 信号量限流
	sem := make(chan struct{}, t.concurrencyLimit)
	var wg sync.WaitGroup

	log.Printf("[TokenTask] 开始处理 %d 个账户的 Token 刷新，并发上限: %d", len(accounts), t.concurrencyLimit)

	for i := range accounts {
		select {
		case <-ctx.Done():
			log.Println("[TokenTask] 任务超时停止")
			wg.Wait()
			return
		default:
		}

		sem <- struct{}{}
		wg.Add(1)

		// 平滑波峰
		time.Sleep(t.sleepTime)

		account := accounts[i]
		go func(accountID int64, platformID string) {
			defer wg.Done()
			defer func() { <-sem }()

			// 刷新失败只降级单个账户，日志记录，不中断其他协程
			if err := t.tokenService.Refresh(ctx, accountID); err != nil {
				log.Printf("[TokenTask] 账户 %d (%s) 刷新失败: %v", accountID, platformID, err)
			}
		}(account.ID, account.PlatformID)
	}

	wg.Wait()
	log.Println("[TokenTask] 本轮 Token 刷新任务完成")
}

// RefreshNow 手动触发一轮刷新
func (t *TokenTask) RefreshNow() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		t.refreshJob(ctx)
	}()
}
