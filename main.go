package main

import (
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 1. 定义与数据库表对应的结构体
type Account struct {
	ID          int64
	PlatformID  string
	AccessToken string
	IsConnected bool
}

func (Account) TableName() string { return "marketplace_accounts" }

func main() {
	fmt.Println(">>> 开始执行全链路测试...")

	// ------------------------------------------------
	// 2. 连接数据库
	// ------------------------------------------------
	dsn := "host=localhost user=reseller password=reseller dbname=reseller_sync port=5432 sslmode=disable"
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v", err)
	}
	fmt.Println("✅ 数据库连接成功！")

	// ------------------------------------------------
	// 3. 从数据库读取一个已连接的 eBay 账户
	// ------------------------------------------------
	var account Account
	result := db.Where("platform_id = ? AND is_connected = ?", "ebay", true).First(&account)
	if result.Error != nil {
		log.Fatalf("❌ 未找到已连接的 eBay 账户，请先走一遍授权流程: %v", result.Error)
	}
	fmt.Printf("✅ 读取账户成功: [ID: %d] [Token长度: %d]\n", account.ID, len(account.AccessToken))

	// ------------------------------------------------
	// 4. 发起 eBay API 请求
	// ------------------------------------------------
	client := resty.New()

	// 设置超时和重试，防止网络波动
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(3)

	fmt.Println(">>> 正在向 eBay 发起 Offer 查询请求...")

	resp, err := client.R().
		SetAuthToken(account.AccessToken).
		Get("https://api.ebay.com/sell/inventory/v1/offer?sku=healthcheck")

	// ------------------------------------------------
	// 5. 结果验证
	// ------------------------------------------------
	if err != nil {
		log.Fatalf("❌ 请求失败 (可能是网络不通): %v", err)
	}

	switch resp.StatusCode() {
	case 200, 404:
		// 404 也算通：说明鉴权过了，只是没有这个 SKU
		fmt.Println("🎉🎉🎉 测试成功！全链路已打通！")
		fmt.Printf("eBay 响应: %s\n", resp.String())
	case 401:
		fmt.Println("⚠️ 连接通了，但 Token 已失效 (状态码 401)")
		fmt.Println("提示: 等待保活任务刷新，或重新授权该账户。")
	default:
		fmt.Printf("⚠️ 连接通了，但 eBay 拒绝了请求 (状态码 %d)\n", resp.StatusCode())
		fmt.Printf("错误信息: %s\n", resp.String())
		fmt.Println("提示: 如果是 429，是请求太快了。")
	}
}
