package ebay

// ==========================================
// DTO: 发往 eBay Sell API 的请求体
// ==========================================

// OfferPrice 价格对象
type OfferPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// PricingSummary 报价信息
type PricingSummary struct {
	Price OfferPrice `json:"price"`
}

// CreateOfferReq 创建/更新 Offer 请求
// POST /sell/inventory/v1/offer
// PUT  /sell/inventory/v1/offer/{offer_id}
type CreateOfferReq struct {
	SKU                string         `json:"sku"`
	MarketplaceID      string         `json:"marketplaceId"`
	Format             string         `json:"format"`
	AvailableQuantity  int            `json:"availableQuantity"`
	PricingSummary     PricingSummary `json:"pricingSummary"`
	ListingDescription string         `json:"listingDescription,omitempty"`
	// 商户账户才携带政策引用，个人账户留空走平台默认
	ListingPolicies *ListingPolicies `json:"listingPolicies,omitempty"`
}

// ListingPolicies 商户政策引用
type ListingPolicies struct {
	FulfillmentPolicyID string `json:"fulfillmentPolicyId,omitempty"`
	PaymentPolicyID     string `json:"paymentPolicyId,omitempty"`
	ReturnPolicyID      string `json:"returnPolicyId,omitempty"`
}
