package platform

import (
	"testing"
)

// ==================== 金额转换 ====================

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{1234, "12.34"},
		{999999, "9999.99"},
		{-500, "0.00"}, // 负值钳到 0
	}

	for _, tt := range tests {
		if got := formatAmount(tt.cents); got != tt.want {
			t.Errorf("formatAmount(%d) = %s, want %s", tt.cents, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"0.00", 0},
		{"0.05", 5},
		{"12.34", 1234},
		{"19.99", 1999}, // 浮点舍入不能丢分
		{"garbage", 0},
		{"", 0},
		{"-1.50", 0}, // 负值钳到 0
	}

	for _, tt := range tests {
		if got := parseAmount(tt.value); got != tt.want {
			t.Errorf("parseAmount(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 1050, 123456} {
		if got := parseAmount(formatAmount(cents)); got != cents {
			t.Errorf("round trip %d -> %d", cents, got)
		}
	}
}

// ==================== 状态映射 ====================

func TestToListingState(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"PUBLISHED", "active"},
		{"published", "active"},
		{"ENDED", "ended"},
		{"UNPUBLISHED", "draft"},
		{"", "draft"},
	}

	for _, tt := range tests {
		if got := toListingState(tt.status); got != tt.want {
			t.Errorf("toListingState(%q) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
