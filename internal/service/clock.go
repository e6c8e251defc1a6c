package service

import (
	"context"
	"time"
)

// Clock 时间抽象
// 定时/退避逻辑全部经过这里，测试注入假时钟即可做到无真实计时器
type Clock interface {
	Now() time.Time
	// Sleep 可被 ctx 取消的休眠
	Sleep(ctx context.Context, d time.Duration) error
	// AfterFunc 延迟执行，返回取消函数
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// systemClock 真实时钟实现
type systemClock struct{}

// NewSystemClock 创建系统时钟
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (systemClock) AfterFunc(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}
