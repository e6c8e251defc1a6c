package controller

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/platform"
	"reseller_sync_v1/internal/repository"
	"reseller_sync_v1/internal/service"
	"reseller_sync_v1/internal/task"
)

// SyncController 同步控制器
type SyncController struct {
	reconcileService *service.ReconcileService
	bulkService      *service.BulkSyncService
	syncStatusRepo   repository.SyncStatusRepository
	taskManager      *task.TaskManager
}

// NewSyncController 创建同步控制器
func NewSyncController(
	reconcileService *service.ReconcileService,
	bulkService *service.BulkSyncService,
	syncStatusRepo repository.SyncStatusRepository,
	taskManager *task.TaskManager,
) *SyncController {
	return &SyncController{
		reconcileService: reconcileService,
		bulkService:      bulkService,
		syncStatusRepo:   syncStatusRepo,
		taskManager:      taskManager,
	}
}

// ==================== Handler 实现 ====================

// SyncListing 同步单个 Listing 到指定平台
// @Summary 手动同步单个 Listing
// @Tags Sync
// @Param id path int true "Listing ID"
// @Param platform query string true "平台 ID，如 ebay"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{} "需要重新授权"
// @Failure 409 {object} map[string]interface{} "检测到冲突"
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/v1/listings/{id}/sync [post]
func (c *SyncController) SyncListing(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}

	platformID := ctx.Query("platform")
	if platformID == "" {
		ctx.JSON(400, gin.H{"code": 400, "message": "缺少 platform 参数"})
		return
	}

	status, err := c.reconcileService.Reconcile(ctx.Request.Context(), listingID, platformID)
	if err != nil {
		c.renderSyncError(ctx, platformID, status, err)
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "同步完成",
		"data":    statusPayload(status),
	})
}

// GetSyncStatus 查询 Listing 的各平台同步状态
// @Summary 查询 Listing 同步状态
// @Tags Sync
// @Param id path int true "Listing ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/listings/{id}/sync-status [get]
func (c *SyncController) GetSyncStatus(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}

	statuses, err := c.syncStatusRepo.ListByListing(ctx.Request.Context(), listingID)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(statuses))
	for i := range statuses {
		items = append(items, statusPayload(&statuses[i]))
	}

	ctx.JSON(200, gin.H{
		"code": 200,
		"data": gin.H{
			"listing_id": listingID,
			"statuses":   items,
		},
	})
}

// BulkSyncReq 批量同步请求体
type BulkSyncReq struct {
	ListingIDs []int64 `json:"listing_ids" binding:"required,min=1"`
	Platform   string  `json:"platform" binding:"required"`
}

// BulkSync 批量同步
// @Summary 批量同步 Listing 到指定平台
// @Tags Sync
// @Param body body BulkSyncReq true "批量同步参数"
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/v1/sync/bulk [post]
func (c *SyncController) BulkSync(ctx *gin.Context) {
	var req BulkSyncReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	result, err := c.bulkService.BulkReconcile(ctx.Request.Context(), req.ListingIDs, req.Platform)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "批量同步完成",
		"data":    result,
	})
}

// ResolveConflictReq 冲突裁决请求体
type ResolveConflictReq struct {
	Platforms []string `json:"platforms" binding:"required,min=1"`
	Policy    string   `json:"policy" binding:"required"` // local_wins / remote_wins
}

// ResolveConflict 裁决冲突
// @Summary 按策略裁决 Listing 冲突
// @Tags Sync
// @Param id path int true "Listing ID"
// @Param body body ResolveConflictReq true "裁决参数"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "策略无效"
// @Router /api/v1/listings/{id}/resolve [post]
func (c *SyncController) ResolveConflict(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}

	var req ResolveConflictReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	statuses, err := c.reconcileService.ResolveConflicts(ctx.Request.Context(), listingID, req.Platforms, req.Policy)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPolicy) {
			ctx.JSON(400, gin.H{"code": 400, "message": "无效的裁决策略: " + req.Policy})
			return
		}
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	items := make([]gin.H, 0, len(statuses))
	for i := range statuses {
		items = append(items, statusPayload(statuses[i]))
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "冲突裁决完成",
		"data": gin.H{
			"listing_id": listingID,
			"policy":     req.Policy,
			"statuses":   items,
		},
	})
}

// TriggerSweep 触发全量调和
// @Summary 手动触发全量调和
// @Tags Sync
// @Success 200 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{} "限流中"
// @Router /api/v1/sync/sweep [post]
func (c *SyncController) TriggerSweep(ctx *gin.Context) {
	if err := c.taskManager.TriggerSweep(); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "全量调和任务已启动",
	})
}

// TriggerTokenRefresh 触发 Token 保活扫描
// @Summary 手动触发 Token 保活扫描
// @Tags Sync
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sync/tokens/refresh [post]
func (c *SyncController) TriggerTokenRefresh(ctx *gin.Context) {
	if err := c.taskManager.TriggerTokenRefresh(); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "Token 保活扫描已启动",
	})
}

// ==================== 错误渲染 ====================

// renderSyncError 把同步错误映射为对前端友好的响应
func (c *SyncController) renderSyncError(ctx *gin.Context, platformID string, status *model.SyncStatus, err error) {
	// 需要重新授权：前端据此引导用户走 OAuth 流程
	if errors.Is(err, service.ErrReauthRequired) {
		ctx.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"message": "平台授权已失效，请重新连接账户",
			"data":    gin.H{"platform": platformID, "reauth_required": true},
		})
		return
	}

	// 检测到冲突：携带冲突详情返回 409
	if errors.Is(err, service.ErrConflictDetected) {
		payload := gin.H{"platform": platformID}
		if status != nil {
			payload = statusPayload(status)
		}
		ctx.JSON(http.StatusConflict, gin.H{
			"code":    409,
			"message": "本地与平台数据存在冲突，请裁决",
			"data":    payload,
		})
		return
	}

	// 其余错误统一走分类器的用户文案
	classified := platform.AsClassified(platformID, err)
	// unknown 类只给用户兜底文案，技术细节必须落日志
	if classified.Category == platform.CategoryUnknown {
		log.Printf("[Sync] 未知错误 platform=%s: %s", platformID, classified.TechnicalMessage)
	}
	ctx.JSON(500, gin.H{
		"code":    500,
		"message": classified.UserMessage,
		"data": gin.H{
			"category":    string(classified.Category),
			"retryable":   classified.Retryable,
			"retry_after": classified.RetryAfterSeconds,
		},
	})
}

// statusPayload 同步状态的响应形态
func statusPayload(status *model.SyncStatus) gin.H {
	return gin.H{
		"listing_id":         status.ListingID,
		"platform":           status.PlatformID,
		"status":             status.Status,
		"platform_object_id": status.PlatformObjectID,
		"last_synced_at":     status.LastSyncedAt,
		"error_message":      status.ErrorMessage,
		"retryable":          status.Retryable,
		"conflicts":          status.Conflicts(),
	}
}

// ==================== 工具函数 ====================

func parseID(ctx *gin.Context, key string) int64 {
	idStr := ctx.Param(key)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(400, gin.H{"code": 400, "message": "无效的 ID"})
		return 0
	}
	return id
}
