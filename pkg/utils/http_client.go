package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// NewAPIClient 创建配置好超时和 UA 的 Resty 客户端
// 它是全系统统一的平台请求入口
func NewAPIClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		// 默认超时：市场 API 偶发慢响应，给 20s
		timeout = 20 * time.Second
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "ResellerSync-Go/1.0")
}
