package model

import (
	"time"
)

// Run 一次请求在一台设备上的执行记录
type Run struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Request   string    `json:"request" gorm:"type:text"`
	Hostname  string    `json:"hostname" gorm:"type:varchar(128);not null;index"`
	Address   string    `json:"address" gorm:"type:varchar(64);not null"`
	Commands  string    `json:"commands" gorm:"type:text;not null"`
	Status    string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	ReportURI string    `json:"report_uri" gorm:"type:varchar(512)"`
	ErrorMsg  string    `json:"error_msg" gorm:"type:text"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Run) TableName() string {
	return "runs"
}

// RunStatus 执行状态枚举
const (
	RunStatusRunning   = "running"
	RunStatusSuccess   = "success"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)
