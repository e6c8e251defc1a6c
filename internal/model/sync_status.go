package model

import (
	"encoding/json"
	"time"
)

// 同步状态常量
const (
	SyncStatePending  = "pending"  // 尚未尝试
	SyncStateSynced   = "synced"   // 与远端一致
	SyncStateConflict = "conflict" // 检测到冲突，等待人工裁决
	SyncStateError    = "error"    // 上次尝试失败
)

// 冲突类型常量
const (
	ConflictTypePrice    = "price_mismatch"
	ConflictTypeQuantity = "quantity_mismatch"
	ConflictTypeStatus   = "status_mismatch"
)

// Conflict 描述一条本地与远端的不一致
// 只作为 SyncStatus 的内嵌数据存在，不单独持久化
type Conflict struct {
	ID           string                 `json:"id"`
	ConflictType string                 `json:"conflict_type"`
	Platforms    []string               `json:"platforms"`
	DetectedAt   time.Time              `json:"detected_at"`
	Details      map[string]interface{} `json:"details"`
}

// SyncStatus 每个 (listing_id, platform_id) 一条
// 首次同步时惰性创建，之后每次调和结束都整条覆盖，不删除
// 不变式：Status=synced 时 PlatformObjectID 非空且无冲突
type SyncStatus struct {
	BaseModel
	ListingID  int64  `gorm:"uniqueIndex:idx_listing_platform;index;not null"`
	PlatformID string `gorm:"uniqueIndex:idx_listing_platform;size:20;not null"`

	Status string `gorm:"size:20;index;default:'pending'"`

	// 远端对象 ID，创建成功（或认领已存在对象）后写入
	PlatformObjectID string `gorm:"size:64"`

	LastSyncedAt *time.Time

	// 失败信息：面向用户的文案 + 是否可重试
	ErrorMessage string `gorm:"size:512"`
	Retryable    bool   `gorm:"default:false"`

	// 冲突列表 JSON 序列化后落在文本列
	ConflictsJSON string `gorm:"type:text"`
}

func (SyncStatus) TableName() string {
	return "sync_statuses"
}

// Conflicts 反序列化冲突列表，空列返回 nil
func (s *SyncStatus) Conflicts() []Conflict {
	if s.ConflictsJSON == "" {
		return nil
	}
	var conflicts []Conflict
	if err := json.Unmarshal([]byte(s.ConflictsJSON), &conflicts); err != nil {
		return nil
	}
	return conflicts
}

// SetConflicts 写入冲突列表，传 nil 清空
func (s *SyncStatus) SetConflicts(conflicts []Conflict) {
	if len(conflicts) == 0 {
		s.ConflictsJSON = ""
		return
	}
	raw, err := json.Marshal(conflicts)
	if err != nil {
		return
	}
	s.ConflictsJSON = string(raw)
}
