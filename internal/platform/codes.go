package platform

// ==================== 平台错误码表 ====================

// CodeRule 一条已知错误码的分类规则
// 新平台接入只需要注册一张码表，不需要改分类器代码
type CodeRule struct {
	Category          ErrorCategory
	UserMessage       string
	Retryable         bool
	RetryAfterSeconds int
	// AlreadyExists 标记"对象已存在"类错误，调和引擎据此走认领路径
	AlreadyExists bool
}

// ebayCodeTable eBay Sell API 已知错误码
// 参考 Inventory API / Identity API 的 errorId 语义
var ebayCodeTable = map[int]CodeRule{
	// Inventory
	25001: {Category: CategorySystem, UserMessage: "eBay 系统繁忙，请稍后重试", Retryable: true, RetryAfterSeconds: 30},
	25002: {Category: CategoryBusiness, UserMessage: "该 SKU 在 eBay 已存在", AlreadyExists: true},
	25003: {Category: CategoryValidation, UserMessage: "价格无效，请检查后重新提交"},
	25004: {Category: CategoryValidation, UserMessage: "商品数量无效"},
	25005: {Category: CategoryValidation, UserMessage: "分类 ID 无效"},
	25006: {Category: CategoryPolicy, UserMessage: "物流政策配置无效，请在 eBay 后台检查"},
	25007: {Category: CategoryPolicy, UserMessage: "退货政策配置无效，请在 eBay 后台检查"},
	25008: {Category: CategoryPolicy, UserMessage: "付款政策配置无效，请在 eBay 后台检查"},
	25402: {Category: CategoryBusiness, UserMessage: "远端商品状态不允许此操作"},
	25710: {Category: CategoryBusiness, UserMessage: "远端对象不存在或已删除"},

	// Identity / OAuth
	1001: {Category: CategoryAuthentication, UserMessage: "授权已失效，请重新连接 eBay 账户"},
	1100: {Category: CategoryAuthentication, UserMessage: "refresh token 已失效，请重新连接 eBay 账户"},

	// 限流
	2001: {Category: CategorySystem, UserMessage: "请求过于频繁，已被 eBay 限流", Retryable: true, RetryAfterSeconds: 60},
}

// codeTables 按平台注册的码表
var codeTables = map[string]map[int]CodeRule{
	"ebay": ebayCodeTable,
}

// RegisterCodeTable 注册/覆盖一个平台的错误码表
// 测试和新平台扩展入口
func RegisterCodeTable(platformID string, table map[int]CodeRule) {
	codeTables[platformID] = table
}

// lookupCode 查 (platform, code) 是否命中已知规则
func lookupCode(platformID string, code int) (CodeRule, bool) {
	table, ok := codeTables[platformID]
	if !ok {
		return CodeRule{}, false
	}
	rule, ok := table[code]
	return rule, ok
}
