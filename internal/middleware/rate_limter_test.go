package middleware

import (
	"testing"
	"time"
)

// ==================== 限流器测试 ====================

func TestSyncRateLimiter_CheckBlocksWithinInterval(t *testing.T) {
	limiter := &SyncRateLimiter{}
	key := ListingSyncKey(1, SyncTypeListing)

	first := limiter.Check(key, time.Minute)
	if !first.Allowed {
		t.Fatal("first check should be allowed")
	}

	second := limiter.Check(key, time.Minute)
	if second.Allowed {
		t.Error("second check within interval should be blocked")
	}
	if second.RetryAfter <= 0 || second.RetryAfter > time.Minute {
		t.Errorf("retry after = %v, want (0, 1m]", second.RetryAfter)
	}
}

func TestSyncRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := &SyncRateLimiter{}

	if !limiter.Check(ListingSyncKey(1, SyncTypeListing), time.Minute).Allowed {
		t.Fatal("listing 1 first check should be allowed")
	}
	// 其他 Listing 不受影响
	if !limiter.Check(ListingSyncKey(2, SyncTypeListing), time.Minute).Allowed {
		t.Error("listing 2 should not share listing 1's cooldown")
	}
	// 同一 Listing 的不同同步类型也独立
	if !limiter.Check(ListingSyncKey(1, SyncTypeBulk), time.Minute).Allowed {
		t.Error("bulk key should not share listing sync cooldown")
	}
}

func TestSyncRateLimiter_CheckOnlyDoesNotConsume(t *testing.T) {
	limiter := &SyncRateLimiter{}
	key := GlobalSyncKey(SyncTypeBulk)

	// CheckOnly 不更新时间
	if !limiter.CheckOnly(key, time.Minute).Allowed {
		t.Fatal("unknown key should be allowed")
	}
	if !limiter.Check(key, time.Minute).Allowed {
		t.Fatal("first real check should be allowed")
	}
	if limiter.CheckOnly(key, time.Minute).Allowed {
		t.Error("check-only within cooldown should report blocked")
	}
}

func TestSyncRateLimiter_Reset(t *testing.T) {
	limiter := &SyncRateLimiter{}
	key := ListingSyncKey(3, SyncTypeListing)

	limiter.Check(key, time.Minute)
	limiter.Reset(key)

	if !limiter.Check(key, time.Minute).Allowed {
		t.Error("check after reset should be allowed")
	}
}

func TestGetInterval_Defaults(t *testing.T) {
	if GetInterval(SyncTypeListing) != 30*time.Second {
		t.Errorf("listing interval = %v, want 30s", GetInterval(SyncTypeListing))
	}
	if GetInterval(SyncType("unknown")) != time.Minute {
		t.Errorf("unknown interval = %v, want 1m", GetInterval(SyncType("unknown")))
	}
}
