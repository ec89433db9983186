package ssh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/netshellpro/netshellpro/pkg/logger"
)

var (
	// ErrPoolFull 活跃会话数达到上限
	ErrPoolFull = errors.New("ssh: session pool is full")
	// ErrPoolClosed 连接池已关闭
	ErrPoolClosed = errors.New("ssh: session pool is closed")
)

// Dialer 建立交互式 shell 的能力，Client 为默认实现
type Dialer interface {
	Dial(ctx context.Context, info *ConnectionInfo) (Shell, error)
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxSessions int           `yaml:"max_sessions"`
	LeaseWarn   time.Duration `yaml:"lease_warn"`
}

// Pool 会话租约池：同一设备同一时间只允许一个持有者
type Pool struct {
	config *PoolConfig
	dialer Dialer

	mutex  sync.Mutex
	slots  map[string]chan struct{}
	leases map[string]*Lease
	closed bool
}

// Lease 独占的会话句柄，Release 后会话关闭且设备可被再次获取
type Lease struct {
	pool     *Pool
	key      string
	shell    Shell
	info     ConnectionInfo
	acquired time.Time
	once     sync.Once
}

// NewPool 创建SSH连接池
func NewPool(config *PoolConfig, dialer Dialer) *Pool {
	if config == nil {
		config = &PoolConfig{}
	}
	if config.LeaseWarn <= 0 {
		config.LeaseWarn = 10 * time.Minute
	}
	return &Pool{
		config: config,
		dialer: dialer,
		slots:  make(map[string]chan struct{}),
		leases: make(map[string]*Lease),
	}
}

// Acquire 获取设备的独占会话；前一个持有者释放前阻塞，ctx 取消时返回 ctx.Err()
func (p *Pool) Acquire(ctx context.Context, info *ConnectionInfo) (*Lease, error) {
	key := p.getConnectionKey(info)

	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil, ErrPoolClosed
	}
	slot, ok := p.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		p.slots[key] = slot
	}
	p.mutex.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	lease := &Lease{pool: p, key: key, info: *info, acquired: time.Now()}
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		<-slot
		return nil, ErrPoolClosed
	}
	if p.config.MaxSessions > 0 && len(p.leases) >= p.config.MaxSessions {
		p.mutex.Unlock()
		<-slot
		return nil, ErrPoolFull
	}
	// 先占位，拨号期间计入活跃数
	p.leases[key] = lease
	p.mutex.Unlock()

	shell, err := p.dialer.Dial(ctx, info)
	p.mutex.Lock()
	if err == nil && p.closed {
		// 拨号期间连接池已关闭
		shell.Close()
		err = ErrPoolClosed
	}
	if err != nil {
		delete(p.leases, key)
		p.mutex.Unlock()
		<-slot
		return nil, err
	}
	lease.shell = shell
	p.mutex.Unlock()
	return lease, nil
}

// Shell 返回租约持有的会话
func (l *Lease) Shell() Shell {
	return l.shell
}

// Info 返回租约对应的连接信息
func (l *Lease) Info() ConnectionInfo {
	return l.info
}

// Release 关闭会话并归还设备槽位，可重复调用
func (l *Lease) Release() error {
	var err error
	l.once.Do(func() {
		if l.shell != nil {
			err = l.shell.Close()
		}
		p := l.pool
		p.mutex.Lock()
		if cur, ok := p.leases[l.key]; ok && cur == l {
			delete(p.leases, l.key)
		}
		slot := p.slots[l.key]
		p.mutex.Unlock()
		if slot != nil {
			<-slot
		}
	})
	return err
}

// ActiveCount 当前持有中的租约数
func (p *Pool) ActiveCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.leases)
}

// Close 关闭连接池并关闭所有活跃会话
func (p *Pool) Close() error {
	p.mutex.Lock()
	p.closed = true
	shells := make([]Shell, 0, len(p.leases))
	for _, l := range p.leases {
		// 拨号中的租约尚无会话，由 Acquire 在拨号完成后关闭
		if l.shell != nil {
			shells = append(shells, l.shell)
		}
	}
	p.mutex.Unlock()

	var lastErr error
	for _, shell := range shells {
		if err := shell.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetStats 获取连接池统计信息
func (p *Pool) GetStats() map[string]interface{} {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	devices := make([]map[string]interface{}, 0, len(p.leases))
	for key, l := range p.leases {
		devices = append(devices, map[string]interface{}{
			"key":         key,
			"held_for_ms": time.Since(l.acquired).Milliseconds(),
		})
	}
	return map[string]interface{}{
		"active_sessions": len(p.leases),
		"known_devices":   len(p.slots),
		"max_sessions":    p.config.MaxSessions,
		"leases":          devices,
	}
}

// Health 租约持有时间超过 LeaseWarn 视为可能泄漏
func (p *Pool) Health() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for key, l := range p.leases {
		if held := time.Since(l.acquired); held > p.config.LeaseWarn {
			logger.Warn("Session lease held too long", "key", key, "held", held)
			return fmt.Errorf("lease %s held for %s", key, held.Truncate(time.Second))
		}
	}
	return nil
}

// getConnectionKey 生成连接键
func (p *Pool) getConnectionKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s:%d@%s", info.Host, info.Port, info.Username)
}
