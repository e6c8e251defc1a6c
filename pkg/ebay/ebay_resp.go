package ebay

// ==========================================
// DTO: 用于接收 eBay API 返回的原始 JSON 数据
// ==========================================

// OfferResp 单个 Offer 响应
// GET /sell/inventory/v1/offer/{offer_id}
type OfferResp struct {
	OfferID            string         `json:"offerId"`
	SKU                string         `json:"sku"`
	MarketplaceID      string         `json:"marketplaceId"`
	Format             string         `json:"format"`
	AvailableQuantity  int            `json:"availableQuantity"`
	PricingSummary     PricingSummary `json:"pricingSummary"`
	ListingDescription string         `json:"listingDescription"`
	Status             string         `json:"status"` // PUBLISHED / UNPUBLISHED / ENDED
}

// OffersResp Offer 列表响应
// GET /sell/inventory/v1/offer?sku={sku}
type OffersResp struct {
	Total  int         `json:"total"`
	Offers []OfferResp `json:"offers"`
}

// CreateOfferResp 创建 Offer 响应
type CreateOfferResp struct {
	OfferID string `json:"offerId"`
}

// ErrorDetailResp eBay 标准错误体中的一条
type ErrorDetailResp struct {
	ErrorID    int    `json:"errorId"`
	Domain     string `json:"domain"`
	Category   string `json:"category"`
	Message    string `json:"message"`
	Parameters []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"parameters,omitempty"`
}

// ErrorResp eBay 通用错误响应
type ErrorResp struct {
	Errors []ErrorDetailResp `json:"errors"`
}

// TokenResp OAuth Token 响应
// POST /identity/v1/oauth2/token
type TokenResp struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}
