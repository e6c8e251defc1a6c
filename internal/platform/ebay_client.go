package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"reseller_sync_v1/pkg/ebay"
)

// ==================== eBay 客户端 ====================

const (
	ebayAPIBase   = "https://api.ebay.com"
	ebayTokenURL  = "https://api.ebay.com/identity/v1/oauth2/token"
	ebayOfferPath = "/sell/inventory/v1/offer"

	// Offer 固定参数
	ebayMarketplaceID = "EBAY_US"
	ebayFormatFixed   = "FIXED_PRICE"
)

// EbayConfig eBay 应用凭证配置
type EbayConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string // eBay 侧的 RuName
	// 商户政策 ID（business 账户推送时引用）
	FulfillmentPolicyID string
	PaymentPolicyID     string
	ReturnPolicyID      string
}

// ebayClient Client 接口的 eBay 实现
// 私有结构体，外部只通过 NewEbayClient 获取接口
type ebayClient struct {
	cfg    *EbayConfig
	client *resty.Client
}

var _ Client = (*ebayClient)(nil)

// NewEbayClient 创建 eBay 客户端
// httpClient 传 nil 时使用默认 20s 超时的 resty 实例
func NewEbayClient(cfg *EbayConfig, httpClient *resty.Client) Client {
	if httpClient == nil {
		httpClient = resty.New()
	}
	httpClient.SetBaseURL(ebayAPIBase)
	return &ebayClient{cfg: cfg, client: httpClient}
}

func (c *ebayClient) PlatformID() string {
	return "ebay"
}

// CreateObject 创建 Offer
// SKU 是幂等键：同一 SKU 重复创建，eBay 返回 25002 already exists
func (c *ebayClient) CreateObject(ctx context.Context, accessToken string, payload *ListingPayload) (string, error) {
	var res ebay.CreateOfferResp

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildOfferReq(payload)).
		SetResult(&res).
		Post(ebayOfferPath)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 201 && resp.StatusCode() != 200 {
		return "", c.remoteError(resp)
	}
	if res.OfferID == "" {
		return "", fmt.Errorf("ebay create offer: empty offerId in response")
	}
	return res.OfferID, nil
}

// UpdateObject 更新 Offer
func (c *ebayClient) UpdateObject(ctx context.Context, accessToken, objectID string, payload *ListingPayload) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(c.buildOfferReq(payload)).
		Put(ebayOfferPath + "/" + objectID)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 204 {
		return c.remoteError(resp)
	}
	return nil
}

// GetObject 拉取 Offer 快照
func (c *ebayClient) GetObject(ctx context.Context, accessToken, objectID string) (*ObjectSnapshot, error) {
	var res ebay.OfferResp

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&res).
		Get(ebayOfferPath + "/" + objectID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, c.remoteError(resp)
	}
	return toSnapshot(&res), nil
}

// FindObjectBySKU 按 SKU 查找 Offer，未找到返回 (nil, nil)
func (c *ebayClient) FindObjectBySKU(ctx context.Context, accessToken, sku string) (*ObjectSnapshot, error) {
	var res ebay.OffersResp

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("sku", sku).
		SetResult(&res).
		Get(ebayOfferPath)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.StatusCode() != 200 {
		return nil, c.remoteError(resp)
	}
	if len(res.Offers) == 0 {
		return nil, nil
	}
	return toSnapshot(&res.Offers[0]), nil
}

// RefreshToken 刷新 access_token
// eBay 的 refresh_token 不轮换，响应中 refresh_token 为空
func (c *ebayClient) RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, data)
}

// ExchangeCode 授权码换 Token
func (c *ebayClient) ExchangeCode(ctx context.Context, code, verifier string) (*TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.cfg.RedirectURI)
	if verifier != "" {
		data.Set("code_verifier", verifier)
	}

	return c.tokenRequest(ctx, data)
}

// ==================== 内部方法 ====================

// tokenRequest 统一的 Token 端点调用（Basic 认证 + 表单编码）
func (c *ebayClient) tokenRequest(ctx context.Context, data url.Values) (*TokenGrant, error) {
	var res ebay.TokenResp

	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(data.Encode()).
		SetResult(&res).
		Post(ebayTokenURL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 || res.Error != "" {
		// Token 端点的错误体是 {error, error_description}，
		// 包装成带文本的 RemoteError 交给分类器做关键字匹配
		return nil, &RemoteError{
			PlatformID: c.PlatformID(),
			StatusCode: resp.StatusCode(),
			Raw:        fmt.Sprintf("%s %s %s", res.Error, res.ErrorDescription, resp.String()),
		}
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("ebay token endpoint: empty access_token")
	}

	return &TokenGrant{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// buildOfferReq ListingPayload -> eBay Offer 请求体
func (c *ebayClient) buildOfferReq(payload *ListingPayload) *ebay.CreateOfferReq {
	req := &ebay.CreateOfferReq{
		SKU:               payload.SKU,
		MarketplaceID:     ebayMarketplaceID,
		Format:            ebayFormatFixed,
		AvailableQuantity: payload.Quantity,
		PricingSummary: ebay.PricingSummary{
			Price: ebay.OfferPrice{
				Value:    formatAmount(payload.PriceAmount),
				Currency: payload.CurrencyCode,
			},
		},
		ListingDescription: payload.Description,
	}

	// business 账户引用商户政策，个人账户走平台默认
	if payload.Business {
		req.ListingPolicies = &ebay.ListingPolicies{
			FulfillmentPolicyID: c.cfg.FulfillmentPolicyID,
			PaymentPolicyID:     c.cfg.PaymentPolicyID,
			ReturnPolicyID:      c.cfg.ReturnPolicyID,
		}
	}
	return req
}

// remoteError 解析失败响应为 RemoteError
func (c *ebayClient) remoteError(resp *resty.Response) *RemoteError {
	re := &RemoteError{
		PlatformID: c.PlatformID(),
		StatusCode: resp.StatusCode(),
		Raw:        resp.String(),
	}

	// Retry-After 响应头（秒）
	if v := resp.Header().Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			re.RetryAfter = seconds
		}
	}

	var body ebay.ErrorResp
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		for _, d := range body.Errors {
			detail := ErrorDetail{
				Code:     d.ErrorID,
				Domain:   d.Domain,
				Category: d.Category,
				Message:  d.Message,
			}
			if len(d.Parameters) > 0 {
				detail.Parameters = make(map[string]string, len(d.Parameters))
				for _, p := range d.Parameters {
					detail.Parameters[p.Name] = p.Value
				}
			}
			re.Errors = append(re.Errors, detail)
		}
	}
	return re
}

// ==================== 转换工具 ====================

// toSnapshot OfferResp -> 平台无关快照
func toSnapshot(res *ebay.OfferResp) *ObjectSnapshot {
	return &ObjectSnapshot{
		ObjectID:     res.OfferID,
		SKU:          res.SKU,
		PriceAmount:  parseAmount(res.PricingSummary.Price.Value),
		CurrencyCode: res.PricingSummary.Price.Currency,
		Quantity:     res.AvailableQuantity,
		State:        toListingState(res.Status),
	}
}

// toListingState eBay Offer 状态 -> 本地生命周期状态
func toListingState(status string) string {
	switch strings.ToUpper(status) {
	case "PUBLISHED":
		return "active"
	case "ENDED":
		return "ended"
	default:
		return "draft"
	}
}

// formatAmount 美分 -> "12.34"
// 价格不允许为负，负值按 0 处理
func formatAmount(amount int64) string {
	if amount < 0 {
		amount = 0
	}
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// parseAmount "12.34" -> 美分，解析失败或负值返回 0
func parseAmount(value string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f*100 + 0.5)
}
