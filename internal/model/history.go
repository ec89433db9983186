package model

import "time"

// HistoryRecord 命令执行历史（持久化）
type HistoryRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RunID      string    `json:"run_id" gorm:"type:varchar(64);index"`
	Hostname   string    `json:"hostname" gorm:"type:varchar(128);not null;index"`
	Command    string    `json:"command" gorm:"type:text;not null"`
	Output     string    `json:"output" gorm:"type:text"`
	Success    bool      `json:"success"`
	Incomplete bool      `json:"incomplete"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (HistoryRecord) TableName() string {
	return "command_history"
}
