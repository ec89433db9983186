package service

import (
	"sync"
	"time"

	"github.com/netshellpro/netshellpro/internal/util"
)

const (
	defaultNoteLimit = 200
	maxNotes         = 50
)

// Note 一次请求的摘要记录
type Note struct {
	Timestamp   time.Time `json:"timestamp"`
	Request     string    `json:"request"`
	Commands    []string  `json:"commands"`
	KeyFindings string    `json:"key_findings"`
}

// ContextSnapshot 会话上下文的只读快照
type ContextSnapshot struct {
	LastCommand string `json:"last_command"`
	LastOutput  string `json:"last_output"`
	Notes       []Note `json:"notes"`
}

// SessionContext 跨请求保存最近一次命令与请求笔记
type SessionContext struct {
	mu          sync.RWMutex
	lastCommand string
	lastOutput  string
	notes       []Note
	noteLimit   int
}

// NewSessionContext 创建会话上下文；noteLimit 为笔记摘要的截断长度
func NewSessionContext(noteLimit int) *SessionContext {
	if noteLimit <= 0 {
		noteLimit = defaultNoteLimit
	}
	return &SessionContext{noteLimit: noteLimit}
}

// Update 记录最近执行的命令与输出
func (c *SessionContext) Update(command, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCommand = command
	c.lastOutput = output
}

// AddNote 追加请求笔记，只保留最近 maxNotes 条
func (c *SessionContext) AddNote(request string, commands []string, findings string) Note {
	n := Note{
		Timestamp:   time.Now(),
		Request:     request,
		Commands:    append([]string(nil), commands...),
		KeyFindings: util.Truncate(findings, c.noteLimit),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	if len(c.notes) > maxNotes {
		c.notes = append([]Note(nil), c.notes[len(c.notes)-maxNotes:]...)
	}
	return n
}

func (c *SessionContext) Snapshot() ContextSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ContextSnapshot{
		LastCommand: c.lastCommand,
		LastOutput:  c.lastOutput,
		Notes:       append([]Note(nil), c.notes...),
	}
}
