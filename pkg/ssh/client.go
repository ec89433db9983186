package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netshellpro/netshellpro/pkg/logger"
)

var (
	// ErrReceiveTimeout 在超时窗口内未收到任何字节
	ErrReceiveTimeout = errors.New("ssh: receive timeout")
	// ErrSessionClosed 会话已关闭或远端已结束 shell
	ErrSessionClosed = errors.New("ssh: session closed")
)

// Shell 交互式 shell 通道的最小能力集合
type Shell interface {
	Send(text string) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// Config SSH配置
type Config struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	TermTypes      []string      `yaml:"term_types"`
	TermWidth      int           `yaml:"term_width"`
	TermHeight     int           `yaml:"term_height"`
}

// DefaultConfig 返回默认客户端配置
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 10 * time.Second,
		KeepAlive:      30 * time.Second,
		TermTypes:      []string{"vt100", "xterm", "ansi", "dumb"},
		TermWidth:      511,
		TermHeight:     24,
	}
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Address 返回 host:port
func (i *ConnectionInfo) Address() string {
	port := i.Port
	if port <= 0 {
		port = 22
	}
	return net.JoinHostPort(i.Host, fmt.Sprintf("%d", port))
}

// ConnectError 建立会话失败（网络或认证），不在客户端内部重试
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// State 会话状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client SSH客户端，负责建立交互式会话
type Client struct {
	config *Config
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if len(config.TermTypes) == 0 {
		config.TermTypes = DefaultConfig().TermTypes
	}
	if config.TermWidth <= 0 {
		config.TermWidth = 511
	}
	if config.TermHeight <= 0 {
		config.TermHeight = 24
	}
	return &Client{config: config}
}

// Session 绑定单台设备的交互式 shell 会话
type Session struct {
	info    ConnectionInfo
	conn    *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	stdoutReader io.Reader
	chunks       chan []byte
	readErr      error
	done         chan struct{}

	state     atomic.Int32
	sendMu    sync.Mutex
	closeOnce sync.Once
}

// Dial 实现 Dialer，供连接池使用
func (c *Client) Dial(ctx context.Context, info *ConnectionInfo) (Shell, error) {
	return c.Connect(ctx, info)
}

// Connect 连接设备并打开 PTY shell；失败返回 *ConnectError
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) (*Session, error) {
	s := &Session{
		info:   *info,
		chunks: make(chan []byte, 256),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))

	fail := func(err error) (*Session, error) {
		s.state.Store(int32(StateDisconnected))
		return nil, &ConnectError{Host: info.Host, Port: info.Port, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	sshConfig := &ssh.ClientConfig{
		User:            info.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.ConnectTimeout,
		Config: ssh.Config{
			// 兼容旧版本交换机的密钥交换算法
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
			},
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"chacha20-poly1305@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-rsa",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
			"ssh-ed25519",
		},
		Auth: []ssh.AuthMethod{
			ssh.Password(info.Password),
			// 部分设备只开放 keyboard-interactive，统一以密码应答
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		},
	}

	address := info.Address()
	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fail(fmt.Errorf("failed to dial: %w", err))
	}
	// 握手阶段同样受连接超时约束
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		_ = conn.Close()
		return fail(fmt.Errorf("failed to create SSH connection: %w", err))
	}
	_ = conn.SetDeadline(time.Time{})
	s.conn = ssh.NewClient(sshConn, chans, reqs)

	if err := s.openShell(c.config); err != nil {
		_ = s.conn.Close()
		return fail(err)
	}

	s.state.Store(int32(StateReady))
	go s.readLoop()
	go s.keepAlive(c.config.KeepAlive)

	logger.Debug("SSH session ready", "host", info.Host, "port", info.Port, "user", info.Username)
	return s, nil
}

// openShell 申请 PTY（终端类型依次回退）并启动 shell
func (s *Session) openShell(cfg *Config) error {
	session, err := s.conn.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range cfg.TermTypes {
		if ptyErr = session.RequestPty(term, cfg.TermHeight, cfg.TermWidth, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		_ = session.Close()
		return fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to get stdout: %w", err)
	}
	if err := session.Shell(); err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to start shell: %w", err)
	}

	s.session = session
	s.stdin = stdin
	s.stdoutReader = stdout
	return nil
}

// readLoop 持续读取 stdout 并投递到 chunks，读到错误后关闭通道
func (s *Session) readLoop() {
	defer close(s.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := s.stdoutReader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				s.readErr = ErrSessionClosed
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// keepAlive 定期发送 keepalive@openssh.com，失败即停止
func (s *Session) keepAlive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if _, _, err := s.conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				logger.Warn("SSH keepalive failed", "host", s.info.Host, "error", err)
				return
			}
		}
	}
}

// State 当前会话状态
func (s *Session) State() State {
	return State(s.state.Load())
}

// Info 返回连接信息
func (s *Session) Info() ConnectionInfo {
	return s.info
}

// Send 写入文本，不等待设备确认
func (s *Session) Send(text string) error {
	if s.State() != StateReady {
		return ErrSessionClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if _, err := io.WriteString(s.stdin, text); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Receive 等待下一段输出；timeout 内无数据返回 ErrReceiveTimeout
func (s *Session) Receive(timeout time.Duration) ([]byte, error) {
	if s.State() == StateClosed {
		return nil, ErrSessionClosed
	}
	if timeout <= 0 {
		select {
		case chunk, ok := <-s.chunks:
			return s.chunkOrEOF(chunk, ok)
		default:
			return nil, ErrReceiveTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case chunk, ok := <-s.chunks:
		return s.chunkOrEOF(chunk, ok)
	case <-timer.C:
		return nil, ErrReceiveTimeout
	}
}

func (s *Session) chunkOrEOF(chunk []byte, ok bool) ([]byte, error) {
	if ok {
		return chunk, nil
	}
	// chunks 关闭后 readErr 已写入
	if s.readErr == nil || errors.Is(s.readErr, io.EOF) {
		return nil, fmt.Errorf("%w: remote closed the shell", ErrSessionClosed)
	}
	return nil, fmt.Errorf("%w: %v", ErrSessionClosed, s.readErr)
}

// Close 关闭会话，可重复调用
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.session != nil {
			_ = s.session.Close()
		}
		if s.conn != nil {
			err = s.conn.Close()
		}
		logger.Debug("SSH session closed", "host", s.info.Host)
	})
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
