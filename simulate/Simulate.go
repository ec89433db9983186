package simulate

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/netshellpro/netshellpro/pkg/logger"
)

// Config simulate.yaml 配置结构
type Config struct {
	Listen string `mapstructure:"listen"`
	// IdleSeconds 单连接最长存活秒数
	IdleSeconds int `mapstructure:"idle_seconds"`
	MaxConn     int `mapstructure:"max_conn"`
	// HostKeyPath 为空时使用内存生成的 RSA 密钥
	HostKeyPath string `mapstructure:"host_key_path"`
	// Devices 以登录用户名选择模拟设备
	Devices map[string]DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备
type DeviceConfig struct {
	Hostname string `mapstructure:"hostname"`
	Password string `mapstructure:"password"`
	Banner   string `mapstructure:"banner"`
	// PageSize 分页开启时每页行数
	PageSize int `mapstructure:"page_size"`
	// Commands 命令 -> 回显，覆盖内置输出
	Commands map[string]string `mapstructure:"commands"`
	// Silent 命令：只吞掉输入，不输出任何内容（用于模拟挂起的设备）
	Silent []string `mapstructure:"silent"`
}

// DefaultConfig 单设备默认配置：admin/admin，主机名 nx-sim-01
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:0",
		IdleSeconds: 300,
		Devices: map[string]DeviceConfig{
			"admin": {Hostname: "nx-sim-01", Password: "admin", PageSize: 20},
		},
	}
}

// LoadConfig 读取 simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1:2222")
	v.SetDefault("idle_seconds", 300)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	if len(cfg.Devices) == 0 {
		return nil, errors.New("simulate config has no devices")
	}
	return &cfg, nil
}

// Server 模拟 NX-OS 风格 CLI 的 SSH 服务
type Server struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer

	mu     sync.Mutex
	active int
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// Start 启动模拟服务
func Start(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	listen := cfg.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, listener: ln, hostKey: signer, conns: make(map[net.Conn]struct{})}
	go s.acceptLoop()
	logger.Info("Simulate: server started", "addr", ln.Addr().String(), "devices", len(cfg.Devices))
	return s, nil
}

// Addr 监听地址
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Port 监听端口
func (s *Server) Port() int {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Stop 停止服务并断开所有连接
func (s *Server) Stop() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	logger.Info("Simulate: server stopped", "addr", s.listener.Addr().String())
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("Simulate: accept error", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		s.mu.Lock()
		if s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn {
			s.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded", "remote", conn.RemoteAddr().String())
			continue
		}
		s.active++
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			s.active--
			delete(s.conns, c)
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) checkPassword(user, password string) bool {
	dev, ok := s.cfg.Devices[user]
	return ok && dev.Password == password
}

func (s *Server) handleConn(nc net.Conn) {
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if s.checkPassword(meta.User(), string(password)) {
				return nil, nil
			}
			logger.Debug("Simulate: auth failed (password)", "user", meta.User())
			return nil, fmt.Errorf("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) > 0 && s.checkPassword(meta.User(), answers[0]) {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	if s.cfg.IdleSeconds > 0 {
		_ = nc.SetDeadline(time.Now().Add(time.Duration(s.cfg.IdleSeconds) * time.Second))
	}
	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		logger.Debug("Simulate: SSH handshake failed", "remote", nc.RemoteAddr().String(), "error", err)
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	dev := s.cfg.Devices[conn.User()]
	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Error("Simulate: channel accept failed", "error", err)
			continue
		}
		go s.handleSession(channel, requests, dev)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, dev DeviceConfig) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "env", "window-change":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			newDeviceShell(channel, dev).run()
			return
		case "exec":
			cmd := extractCommandFromPayload(req.Payload)
			sh := newDeviceShell(channel, dev)
			sh.paging = false
			_, _ = channel.Write([]byte(sh.execute(cmd)))
			_ = req.Reply(true, nil)
			_, _ = channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

// extractCommandFromPayload exec 请求负载为 uint32 长度 + 命令文本
func extractCommandFromPayload(p []byte) string {
	if len(p) < 4 {
		return strings.TrimSpace(string(p))
	}
	n := binary.BigEndian.Uint32(p[:4])
	if int(n) > len(p)-4 {
		return strings.TrimSpace(string(p[4:]))
	}
	return strings.TrimSpace(string(p[4 : 4+n]))
}

// loadOrCreateHostKey 有路径时持久化 RSA 主机密钥，否则仅在内存中生成
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			if signer, err := ssh.ParsePrivateKey(bs); err == nil {
				return signer, nil
			}
			logger.Warn("Simulate: host key parse failed, regenerating", "file", path)
		}
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write host key: %w", err)
		}
	}
	return ssh.ParsePrivateKey(pemBytes)
}
