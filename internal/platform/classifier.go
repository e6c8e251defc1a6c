package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ==================== 错误分类器 ====================

// ErrorCategory 错误类别
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryPolicy         ErrorCategory = "policy"
	CategoryBusiness       ErrorCategory = "business"
	CategorySystem         ErrorCategory = "system"
	CategoryUnknown        ErrorCategory = "unknown"
)

// 类别默认重试间隔（秒）
const (
	retryAfterRateLimit   = 60
	retryAfterTransient   = 30
	retryAfterMaintenance = 300
)

// ClassifiedError 分类结果，临时值不落库
type ClassifiedError struct {
	Category          ErrorCategory
	UserMessage       string
	TechnicalMessage  string
	Retryable         bool
	RetryAfterSeconds int
	// AlreadyExists 为 true 时调和引擎走"认领已存在对象"路径
	AlreadyExists bool
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.TechnicalMessage)
}

// Classify 把远端原始错误映射为分类结果
// 纯函数：同样输入必得同样输出，无任何副作用
func Classify(raw *RemoteError) *ClassifiedError {
	if raw == nil {
		return &ClassifiedError{
			Category:         CategoryUnknown,
			UserMessage:      "未知错误，请稍后重试",
			TechnicalMessage: "classify called with nil error",
		}
	}

	technical := raw.Error()

	// 1. 已知码表优先，逐条匹配第一条命中的错误码
	for _, detail := range raw.Errors {
		if rule, ok := lookupCode(raw.PlatformID, detail.Code); ok {
			return &ClassifiedError{
				Category:          rule.Category,
				UserMessage:       ruleMessage(rule, detail),
				TechnicalMessage:  technical,
				Retryable:         rule.Retryable,
				RetryAfterSeconds: pickRetryAfter(raw.RetryAfter, rule.RetryAfterSeconds),
				AlreadyExists:     rule.AlreadyExists,
			}
		}
	}

	// 2. HTTP 状态码兜底
	if ce := classifyByStatus(raw, technical); ce != nil {
		return ce
	}

	// 3. 关键字启发式
	if ce := classifyByKeywords(raw, technical); ce != nil {
		return ce
	}

	// 4. 全部未命中 -> unknown，不可重试
	return &ClassifiedError{
		Category:         CategoryUnknown,
		UserMessage:      "操作失败，请稍后重试或联系支持",
		TechnicalMessage: technical,
	}
}

// ClassifyTransport 分类传输层错误（超时、连接失败等，没有 HTTP 响应）
// 超时一律视为可重试的 system 错误
func ClassifyTransport(platformID string, err error) *ClassifiedError {
	technical := fmt.Sprintf("%s transport error: %v", platformID, err)

	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())

	if timeout {
		return &ClassifiedError{
			Category:          CategorySystem,
			UserMessage:       "平台响应超时，请稍后重试",
			TechnicalMessage:  technical,
			Retryable:         true,
			RetryAfterSeconds: retryAfterTransient,
		}
	}

	return &ClassifiedError{
		Category:          CategorySystem,
		UserMessage:       "网络异常，请稍后重试",
		TechnicalMessage:  technical,
		Retryable:         true,
		RetryAfterSeconds: retryAfterTransient,
	}
}

// AsClassified 把任意 error 规整为 ClassifiedError
// 已经是分类结果的原样返回；RemoteError 走 Classify；其余按传输错误处理
func AsClassified(platformID string, err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return Classify(re)
	}
	return ClassifyTransport(platformID, err)
}

// ==================== 内部分类规则 ====================

func classifyByStatus(raw *RemoteError, technical string) *ClassifiedError {
	switch {
	case raw.StatusCode == http.StatusUnauthorized || raw.StatusCode == http.StatusForbidden:
		return &ClassifiedError{
			Category:         CategoryAuthentication,
			UserMessage:      "授权已失效，请重新连接账户",
			TechnicalMessage: technical,
		}
	case raw.StatusCode == http.StatusTooManyRequests:
		return &ClassifiedError{
			Category:          CategorySystem,
			UserMessage:       "请求过于频繁，请稍后重试",
			TechnicalMessage:  technical,
			Retryable:         true,
			RetryAfterSeconds: pickRetryAfter(raw.RetryAfter, retryAfterRateLimit),
		}
	case raw.StatusCode == http.StatusServiceUnavailable:
		// 平台维护窗口，冷却时间拉长
		return &ClassifiedError{
			Category:          CategorySystem,
			UserMessage:       "平台维护中，请稍后重试",
			TechnicalMessage:  technical,
			Retryable:         true,
			RetryAfterSeconds: pickRetryAfter(raw.RetryAfter, retryAfterMaintenance),
		}
	case raw.StatusCode >= 500:
		return &ClassifiedError{
			Category:          CategorySystem,
			UserMessage:       "平台暂时不可用，请稍后重试",
			TechnicalMessage:  technical,
			Retryable:         true,
			RetryAfterSeconds: pickRetryAfter(raw.RetryAfter, retryAfterTransient),
		}
	}
	return nil
}

func classifyByKeywords(raw *RemoteError, technical string) *ClassifiedError {
	text := raw.allText()
	if text == "" {
		return nil
	}

	contains := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	}

	// 文本可能同时命中多类关键字：授权最优先，其次可重试的系统类
	switch {
	case contains("invalid_grant", "token", "unauthorized", "authentication", "auth"):
		return &ClassifiedError{
			Category:         CategoryAuthentication,
			UserMessage:      "授权已失效，请重新连接账户",
			TechnicalMessage: technical,
		}
	case contains("rate", "limit", "timeout", "unavailable", "maintenance"):
		retryAfter := retryAfterTransient
		if contains("rate", "limit") {
			retryAfter = retryAfterRateLimit
		}
		if contains("maintenance") {
			retryAfter = retryAfterMaintenance
		}
		return &ClassifiedError{
			Category:          CategorySystem,
			UserMessage:       "平台暂时不可用，请稍后重试",
			TechnicalMessage:  technical,
			Retryable:         true,
			RetryAfterSeconds: pickRetryAfter(raw.RetryAfter, retryAfter),
		}
	case contains("policy", "payment", "return", "fulfillment"):
		return &ClassifiedError{
			Category:         CategoryPolicy,
			UserMessage:      firstOr(raw, "账户政策配置有误，请检查平台后台设置"),
			TechnicalMessage: technical,
		}
	case contains("invalid", "required", "missing", "format"):
		return &ClassifiedError{
			Category:         CategoryValidation,
			UserMessage:      firstOr(raw, "提交内容校验失败，请修改后重试"),
			TechnicalMessage: technical,
		}
	case contains("inventory", "sku", "offer", "listing"):
		return &ClassifiedError{
			Category:         CategoryBusiness,
			UserMessage:      firstOr(raw, "平台业务规则拒绝了此操作"),
			TechnicalMessage: technical,
		}
	}
	return nil
}

// pickRetryAfter 平台显式给出的 Retry-After 优先于类别默认值
func pickRetryAfter(explicit, fallback int) int {
	if explicit > 0 {
		return explicit
	}
	return fallback
}

// ruleMessage 码表文案优先，缺省时回落到平台原始 message
func ruleMessage(rule CodeRule, detail ErrorDetail) string {
	if rule.UserMessage != "" {
		return rule.UserMessage
	}
	return detail.Message
}

func firstOr(raw *RemoteError, fallback string) string {
	if msg := raw.FirstMessage(); msg != "" {
		return msg
	}
	return fallback
}
