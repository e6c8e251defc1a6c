package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reseller_sync_v1/internal/service"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(s *service.AuthService) *AuthController {
	return &AuthController{authService: s}
}

// Connect
// @Summary 获取平台授权链接
// @Description 为用户生成 OAuth 授权跳转链接
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param user_id query int true "用户 ID"
// @Param platform query string true "平台 ID，如 ebay"
// @Success 200 {object} map[string]interface{} "授权链接"
// @Failure 400 {object} map[string]string "参数错误"
// @Router /oauth/connect [get]
func (ctrl *AuthController) Connect(c *gin.Context) {
	// 1. 获取 user_id
	userIDStr := c.Query("user_id")
	if userIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id 为空"})
		return
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id 必须是数字"})
		return
	}

	// 2. 获取 platform
	platformID := c.Query("platform")
	if platformID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform 为空"})
		return
	}

	// 3. 调用 Service
	url, err := ctrl.authService.GenerateConnectURL(c.Request.Context(), userID, platformID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "生成失败",
			"detail": err.Error(),
		})
		return
	}

	// 返回 JSON 给前端，由前端负责跳转
	c.JSON(http.StatusOK, gin.H{
		"message":  "获取成功",
		"auth_url": url,
	})
}

// Callback
// @Summary 平台授权回调
// @Description 接收平台返回的 code 和 state，换取 Token 并入库
// @Tags Auth (授权模块)
// @Accept json
// @Produce json
// @Param code query string true "授权码"
// @Param state query string true "安全校验码"
// @Success 200 {object} map[string]interface{} "授权成功信息"
// @Failure 400 {object} map[string]string "拒绝授权/参数错误"
// @Router /api/oauth/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	errParam := c.Query("error")

	if errParam != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户拒绝了授权", "platform_msg": errParam})
		return
	}

	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要参数 code 或 state"})
		return
	}

	// 调用业务层换 Token
	account, err := ctrl.authService.HandleCallback(c.Request.Context(), code, state)
	if err != nil {
		if err == service.ErrStateExpired {
			c.JSON(http.StatusBadRequest, gin.H{"error": "授权已过期，请重新发起连接"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "授权失败",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "账户连接成功",
		"account_id": account.ID,
		"platform":   account.PlatformID,
		"expire_at":  account.AccessTokenExpiresAt.Format(time.RFC3339),
	})
}

// Disconnect
// @Summary 断开平台账户
// @Description 断开连接但保留历史记录
// @Tags Auth (授权模块)
// @Param id path int true "账户 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "参数错误"
// @Router /api/v1/accounts/{id}/disconnect [post]
func (ctrl *AuthController) Disconnect(c *gin.Context) {
	accountID := parseID(c, "id")
	if accountID == 0 {
		return
	}

	if err := ctrl.authService.Disconnect(c.Request.Context(), accountID); err != nil {
		c.JSON(500, gin.H{"error": "断开失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"message":    "账户已断开",
		"account_id": accountID,
	})
}
