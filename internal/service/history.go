package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/netshellpro/netshellpro/internal/database"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/internal/util"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

const (
	defaultHistorySize   = 100
	defaultHistoryRecent = 10
	defaultOutputPreview = 500
)

// HistoryEntry 一条命令执行历史，输出为截断后的预览
type HistoryEntry struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Hostname   string    `json:"hostname"`
	Command    string    `json:"command"`
	Output     string    `json:"output"`
	Success    bool      `json:"success"`
	Incomplete bool      `json:"incomplete"`
}

// HistoryStore 历史持久化接口
type HistoryStore interface {
	Save(ctx context.Context, entry HistoryEntry) error
}

// History 有界环形历史，超出容量时丢弃最早的记录
type History struct {
	mu       sync.RWMutex
	entries  []HistoryEntry
	capacity int
	recent   int
	preview  int
	store    HistoryStore
}

// NewHistory 创建历史记录；store 可为 nil
func NewHistory(capacity, recent, preview int, store HistoryStore) *History {
	if capacity <= 0 {
		capacity = defaultHistorySize
	}
	if recent <= 0 {
		recent = defaultHistoryRecent
	}
	if preview <= 0 {
		preview = defaultOutputPreview
	}
	return &History{
		entries:  make([]HistoryEntry, 0, capacity),
		capacity: capacity,
		recent:   recent,
		preview:  preview,
		store:    store,
	}
}

// Append 追加一条历史；持久化失败只记录日志
func (h *History) Append(ctx context.Context, entry HistoryEntry) HistoryEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Output = util.Truncate(entry.Output, h.preview)

	h.mu.Lock()
	if len(h.entries) >= h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.Save(ctx, entry); err != nil {
			logger.Warn("Failed to persist history entry", "command", entry.Command, "error", err)
		}
	}
	return entry
}

// Recent 返回最近 n 条（按时间先后）；n<=0 时使用默认条数
func (h *History) Recent(n int) []HistoryEntry {
	if n <= 0 {
		n = h.recent
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// GormHistoryStore 基于 SQLite 的历史持久化
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore 创建持久化存储，db 为 nil 时使用全局连接
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	if db == nil {
		db = database.GetDB()
	}
	return &GormHistoryStore{db: db}
}

func (s *GormHistoryStore) Save(ctx context.Context, e HistoryEntry) error {
	rec := &model.HistoryRecord{
		ID:         e.ID,
		RunID:      e.RunID,
		Hostname:   e.Hostname,
		Command:    e.Command,
		Output:     e.Output,
		Success:    e.Success,
		Incomplete: e.Incomplete,
		Timestamp:  e.Timestamp,
	}
	return database.WithRetry(func(*gorm.DB) error {
		return s.db.WithContext(ctx).Create(rec).Error
	}, 3, 50*time.Millisecond)
}

// List 按时间倒序查询持久化历史，hostname 为空时不过滤
func (s *GormHistoryStore) List(ctx context.Context, hostname string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryRecent
	}
	q := s.db.WithContext(ctx).Model(&model.HistoryRecord{}).Order("timestamp desc").Limit(limit)
	if hostname != "" {
		q = q.Where("hostname = ?", hostname)
	}
	var recs []model.HistoryRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, HistoryEntry{
			ID:         r.ID,
			RunID:      r.RunID,
			Timestamp:  r.Timestamp,
			Hostname:   r.Hostname,
			Command:    r.Command,
			Output:     r.Output,
			Success:    r.Success,
			Incomplete: r.Incomplete,
		})
	}
	return out, nil
}

// GormRunStore 执行记录持久化
type GormRunStore struct {
	db *gorm.DB
}

func NewGormRunStore(db *gorm.DB) *GormRunStore {
	if db == nil {
		db = database.GetDB()
	}
	return &GormRunStore{db: db}
}

func (s *GormRunStore) SaveRun(ctx context.Context, run *model.Run) error {
	return database.WithRetry(func(*gorm.DB) error {
		return s.db.WithContext(ctx).Save(run).Error
	}, 3, 50*time.Millisecond)
}
