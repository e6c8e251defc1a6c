package platform

import (
	"context"
	"fmt"
	"strings"
)

// ==================== 远端平台客户端接口 ====================

// ListingPayload 推送到平台的商品负载（平台无关的中间表示）
type ListingPayload struct {
	SKU          string
	Title        string
	Description  string
	PriceAmount  int64 // 最小货币单位
	CurrencyCode string
	Quantity     int
	State        string
	// Business 账户走商户字段（如退货政策引用），由调和引擎
	// 根据账户能力设置一次，客户端不再做分支
	Business bool
}

// ObjectSnapshot 远端对象当前状态快照
type ObjectSnapshot struct {
	ObjectID     string
	SKU          string
	PriceAmount  int64
	CurrencyCode string
	Quantity     int
	State        string // active / ended
}

// TokenGrant 刷新或换码成功的结果
// RefreshToken 为空表示平台未轮换，沿用旧值
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // 秒
}

// Client 远端平台客户端
// 所有方法都是网络往返，失败时返回 *RemoteError（可被分类器消费）
// 或普通传输错误（超时等，由 ClassifyTransport 处理）
type Client interface {
	PlatformID() string

	// CreateObject 创建远端对象，成功返回远端 ID
	// 以 SKU 作为幂等键，重复创建会收到 already exists 错误
	CreateObject(ctx context.Context, accessToken string, payload *ListingPayload) (string, error)

	// UpdateObject 更新已存在的远端对象
	UpdateObject(ctx context.Context, accessToken, objectID string, payload *ListingPayload) error

	// GetObject 拉取远端对象快照
	GetObject(ctx context.Context, accessToken, objectID string) (*ObjectSnapshot, error)

	// FindObjectBySKU 按 SKU 查找远端对象（认领已存在对象时使用）
	// 未找到返回 (nil, nil)
	FindObjectBySKU(ctx context.Context, accessToken, sku string) (*ObjectSnapshot, error)

	// RefreshToken 用 refresh_token 换取新的 access_token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenGrant, error)

	// ExchangeCode 授权码换 Token（OAuth 回调使用）
	ExchangeCode(ctx context.Context, code, verifier string) (*TokenGrant, error)
}

// ==================== 远端错误 ====================

// ErrorDetail 平台错误体里的一条错误
type ErrorDetail struct {
	Code       int               `json:"code"`
	Domain     string            `json:"domain"`
	Category   string            `json:"category"`
	Message    string            `json:"message"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// RemoteError 远端调用失败的原始信息
// 可能只有 HTTP 状态码（裸错误），也可能带结构化错误体
type RemoteError struct {
	PlatformID string
	StatusCode int
	Errors     []ErrorDetail
	// RetryAfter 响应头给出的重试秒数，0 表示未提供
	RetryAfter int
	Raw        string
}

func (e *RemoteError) Error() string {
	if len(e.Errors) > 0 {
		first := e.Errors[0]
		return fmt.Sprintf("%s api error [%d] code=%d: %s", e.PlatformID, e.StatusCode, first.Code, first.Message)
	}
	return fmt.Sprintf("%s api error [%d]", e.PlatformID, e.StatusCode)
}

// FirstMessage 取第一条错误文案，没有则返回空串
func (e *RemoteError) FirstMessage() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return ""
}

// allText 拼接 domain + message 用于关键字启发式匹配
func (e *RemoteError) allText() string {
	var b strings.Builder
	for _, d := range e.Errors {
		b.WriteString(strings.ToLower(d.Domain))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(d.Category))
		b.WriteString(" ")
		b.WriteString(strings.ToLower(d.Message))
		b.WriteString(" ")
	}
	b.WriteString(strings.ToLower(e.Raw))
	return b.String()
}
