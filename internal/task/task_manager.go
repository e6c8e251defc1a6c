package task

import (
	"log"
	"time"

	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理后台任务
// 管理范围：Token 保活、每日全量调和
type TaskManager struct {
	tokenTask     *TokenTask
	reconcileTask *ReconcileSweepTask
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	AccountRepo repository.MarketplaceAccountRepository
	ListingRepo repository.ListingRepository

	TokenService *service.TokenService
	BulkService  *service.BulkSyncService
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// Token 保活
	TokenEnabled     bool
	TokenConcurrency int

	// 全量调和
	SweepEnabled   bool
	SweepPlatforms []string
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		TokenEnabled:     true,
		TokenConcurrency: 10,

		SweepEnabled: true,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{}

	// Token 保活任务
	if cfg.TokenEnabled && deps.TokenService != nil {
		tm.tokenTask = NewTokenTask(deps.AccountRepo, deps.TokenService)
		tm.tokenTask.SetConcurrency(cfg.TokenConcurrency, 100*time.Millisecond)
	}

	// 全量调和任务
	if cfg.SweepEnabled && deps.BulkService != nil {
		tm.reconcileTask = NewReconcileSweepTask(
			deps.ListingRepo,
			deps.AccountRepo,
			deps.BulkService,
			cfg.SweepPlatforms,
		)
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() {
	log.Println("[TaskManager] 正在启动后台任务...")

	if tm.tokenTask != nil {
		tm.tokenTask.Start()
	}
	if tm.reconcileTask != nil {
		tm.reconcileTask.Start()
	}

	log.Println("[TaskManager] 后台任务已全部启动")
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	log.Println("[TaskManager] 正在停止后台任务...")

	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
	if tm.reconcileTask != nil {
		tm.reconcileTask.Stop()
	}

	log.Println("[TaskManager] 后台任务已全部停止")
}

// ==================== 手动触发接口 ====================

// TriggerTokenRefresh 触发一轮 Token 保活扫描
func (tm *TaskManager) TriggerTokenRefresh() error {
	if tm.tokenTask == nil {
		return ErrTaskDisabled
	}
	tm.tokenTask.RefreshNow()
	return nil
}

// TriggerSweep 触发一轮全量调和
func (tm *TaskManager) TriggerSweep() error {
	if tm.reconcileTask == nil {
		return ErrTaskDisabled
	}
	tm.reconcileTask.SweepNow()
	return nil
}

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"token":     tm.tokenTask != nil,
		"reconcile": tm.reconcileTask != nil,
	}
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
