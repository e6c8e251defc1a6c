package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"reseller_sync_v1/internal/model"
	"reseller_sync_v1/internal/repository"
)

// ListingController 本地商品控制器
type ListingController struct {
	listingRepo repository.ListingRepository
}

// NewListingController 创建商品控制器
func NewListingController(listingRepo repository.ListingRepository) *ListingController {
	return &ListingController{listingRepo: listingRepo}
}

// ==================== Handler 实现 ====================

// ListListings 分页查询商品
// @Summary 分页查询本地商品
// @Tags Listing
// @Param user_id query int false "用户 ID"
// @Param state query string false "状态筛选 draft/active/ended"
// @Param keyword query string false "标题关键词"
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页数量，默认 20"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/listings [get]
func (c *ListingController) ListListings(ctx *gin.Context) {
	filter := repository.ListingFilter{
		State:   ctx.Query("state"),
		Keyword: ctx.Query("keyword"),
	}

	if userIDStr := ctx.Query("user_id"); userIDStr != "" {
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			ctx.JSON(400, gin.H{"code": 400, "message": "user_id 必须是数字"})
			return
		}
		filter.UserID = userID
	}

	filter.Page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	listings, total, err := c.listingRepo.List(ctx.Request.Context(), filter)
	if err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code": 200,
		"data": gin.H{
			"total":     total,
			"page":      filter.Page,
			"page_size": filter.PageSize,
			"items":     listings,
		},
	})
}

// GetListing 查询单个商品
// @Summary 查询单个本地商品
// @Tags Listing
// @Param id path int true "Listing ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "不存在"
// @Router /api/v1/listings/{id} [get]
func (c *ListingController) GetListing(ctx *gin.Context) {
	listingID := parseID(ctx, "id")
	if listingID == 0 {
		return
	}

	listing, err := c.listingRepo.GetByID(ctx.Request.Context(), listingID)
	if err != nil {
		ctx.JSON(404, gin.H{"code": 404, "message": "商品不存在"})
		return
	}

	ctx.JSON(200, gin.H{"code": 200, "data": listing})
}

// CreateListingReq 创建商品请求体
type CreateListingReq struct {
	UserID       int64  `json:"user_id" binding:"required"`
	SKU          string `json:"sku" binding:"required"`
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	PriceAmount  int64  `json:"price_amount" binding:"required,min=1"` // 单位：分
	CurrencyCode string `json:"currency_code"`
	Quantity     int    `json:"quantity" binding:"min=0"`
}

// CreateListing 创建商品
// @Summary 创建本地商品草稿
// @Tags Listing
// @Param body body CreateListingReq true "商品参数"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Router /api/v1/listings [post]
func (c *ListingController) CreateListing(ctx *gin.Context) {
	var req CreateListingReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	if req.CurrencyCode == "" {
		req.CurrencyCode = "USD"
	}

	listing := &model.Listing{
		UserID:       req.UserID,
		SKU:          req.SKU,
		Title:        req.Title,
		Description:  req.Description,
		PriceAmount:  req.PriceAmount,
		CurrencyCode: req.CurrencyCode,
		Quantity:     req.Quantity,
		State:        model.ListingStateDraft,
	}

	if err := c.listingRepo.Create(ctx.Request.Context(), listing); err != nil {
		ctx.JSON(500, gin.H{"code": 500, "message": "创建失败: " + err.Error()})
		return
	}

	ctx.JSON(200, gin.H{
		"code":    200,
		"message": "创建成功",
		"data":    listing,
	})
}
