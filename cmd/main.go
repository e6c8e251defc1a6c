package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"reseller_sync_v1/internal/config"
	"reseller_sync_v1/internal/controller"
	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/internal/router"
	"reseller_sync_v1/internal/service"
	"reseller_sync_v1/internal/task"
	"reseller_sync_v1/pkg/database"
	"reseller_sync_v1/pkg/utils"
)

func main() {
	// 1. 加载配置
	cfg := config.Load()

	// 2. 初始化数据库
	db := initDatabase(cfg)

	// 3. 初始化依赖
	deps := initDependencies(db, cfg)

	// 4. 启动定时任务
	deps.TaskManager.Start()
	defer deps.TaskManager.Stop()
	defer deps.Services.Token.Stop()

	// 5. 初始化路由
	r := gin.Default()
	router.InitRoutes(r, deps.Controllers.Auth, deps.Controllers.Listing, deps.Controllers.Sync)

	// 6. 启动服务
	startServer(r, cfg.ServerPort)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controllers *Controllers
	TaskManager *task.TaskManager
}

// Repositories 仓库集合
type Repositories struct {
	Account    repository.MarketplaceAccountRepository
	Listing    repository.ListingRepository
	SyncStatus repository.SyncStatusRepository
}

// Services 服务集合
type Services struct {
	Token     *service.TokenService
	Reconcile *service.ReconcileService
	Bulk      *service.BulkSyncService
	Auth      *service.AuthService
}

// Controllers 控制器集合
type Controllers struct {
	Auth    *controller.AuthController
	Listing *controller.ListingController
	Sync    *controller.SyncController
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config) *gorm.DB {
	return database.InitDB(cfg.DatabaseDSN,
		// Account
		&model.MarketplaceAccount{},
		// Listing
		&model.Listing{},
		// Sync
		&model.SyncStatus{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB, cfg *config.Config) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		Account:    repository.NewMarketplaceAccountRepository(db),
		Listing:    repository.NewListingRepository(db),
		SyncStatus: repository.NewSyncStatusRepository(db),
	}

	// -------- 平台客户端 --------
	httpClient := utils.NewAPIClient(cfg.APITimeout)
	clients := map[string]platform.Client{
		model.PlatformEbay: platform.NewEbayClient(&platform.EbayConfig{
			ClientID:            cfg.EbayClientID,
			ClientSecret:        cfg.EbayClientSecret,
			RedirectURI:         cfg.EbayRedirectURI,
			FulfillmentPolicyID: cfg.EbayFulfillmentPolicyID,
			PaymentPolicyID:     cfg.EbayPaymentPolicyID,
			ReturnPolicyID:      cfg.EbayReturnPolicyID,
		}, httpClient),
	}

	// -------- 业务服务 --------
	clock := service.NewSystemClock()

	tokenSvc := service.NewTokenService(repos.Account, clients, clock)
	reconcileSvc := service.NewReconcileService(repos.Listing, repos.SyncStatus, repos.Account, tokenSvc, clients, clock)
	bulkSvc := service.NewBulkSyncService(reconcileSvc, clock)
	bulkSvc.SetPacing(cfg.BulkInterDelay, cfg.BulkConcurrency)
	authSvc := service.NewAuthService(repos.Account, clients, tokenSvc, &service.AuthConfig{
		ClientID:    cfg.EbayClientID,
		RedirectURI: cfg.EbayRedirectURI,
	}, clock)

	services := &Services{
		Token:     tokenSvc,
		Reconcile: reconcileSvc,
		Bulk:      bulkSvc,
		Auth:      authSvc,
	}

	// -------- 后台任务 --------
	taskManager := task.NewTaskManager(&task.TaskManagerDeps{
		AccountRepo:  repos.Account,
		ListingRepo:  repos.Listing,
		TokenService: tokenSvc,
		BulkService:  bulkSvc,
	}, nil)

	// -------- Controller 层 --------
	controllers := &Controllers{
		Auth:    controller.NewAuthController(authSvc),
		Listing: controller.NewListingController(repos.Listing),
		Sync:    controller.NewSyncController(reconcileSvc, bulkSvc, repos.SyncStatus, taskManager),
	}

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
		TaskManager: taskManager,
	}
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}
