package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/netshellpro/netshellpro/addone/dialect"
	_ "github.com/netshellpro/netshellpro/addone/dialect/platforms/nxos"
	"github.com/netshellpro/netshellpro/internal/model"
	"github.com/netshellpro/netshellpro/pkg/ssh"
)

const invalidCommand = "% Invalid command at '^' marker."

// fakeDevice 模拟 NX-OS 行为的假 shell：回显命令、输出结果并打印提示符
type fakeDevice struct {
	mu        sync.Mutex
	hostname  string
	outputs   map[string]string
	sent      []string
	queue     [][]byte
	config    bool
	silent    bool
	failAfter int
	broken    bool
	closed    int
}

func newFakeDevice(outputs map[string]string) *fakeDevice {
	d := &fakeDevice{hostname: "leaf-01", outputs: outputs}
	d.queue = append(d.queue, []byte("Nexus fake\r\n"+d.prompt()))
	return d
}

func (d *fakeDevice) prompt() string {
	if d.config {
		return d.hostname + "(config)# "
	}
	return d.hostname + "# "
}

func (d *fakeDevice) Send(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.broken {
		return ssh.ErrSessionClosed
	}
	cmd := strings.TrimRight(text, "\r\n")
	d.sent = append(d.sent, cmd)
	if d.failAfter > 0 && len(d.sent) >= d.failAfter {
		d.broken = true
		d.queue = nil
		return nil
	}
	if d.silent {
		return nil
	}

	var out string
	switch {
	case cmd == "configure terminal":
		d.config = true
	case cmd == "end":
		d.config = false
	case cmd == "terminal length 0":
	default:
		if o, ok := d.outputs[cmd]; ok {
			out = o
		} else if !d.config {
			out = invalidCommand
		}
	}
	reply := cmd + "\r\n"
	if out != "" {
		reply += out + "\r\n"
	}
	d.queue = append(d.queue, []byte(reply+d.prompt()))
	return nil
}

func (d *fakeDevice) Receive(time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) > 0 {
		c := d.queue[0]
		d.queue = d.queue[1:]
		return c, nil
	}
	if d.broken {
		return nil, ssh.ErrSessionClosed
	}
	return nil, ssh.ErrReceiveTimeout
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) sentCommands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.sent...)
}

func (d *fakeDevice) count(cmd string) int {
	n := 0
	for _, s := range d.sentCommands() {
		if s == cmd {
			n++
		}
	}
	return n
}

// fakeDialer 按主机地址返回假设备
type fakeDialer struct {
	mu      sync.Mutex
	devices map[string]*fakeDevice
	err     error
	dials   int
}

func (f *fakeDialer) Dial(_ context.Context, info *ssh.ConnectionInfo) (ssh.Shell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.err != nil {
		return nil, &ssh.ConnectError{Host: info.Host, Port: info.Port, Err: f.err}
	}
	if d, ok := f.devices[info.Host]; ok {
		return d, nil
	}
	return nil, &ssh.ConnectError{Host: info.Host, Port: info.Port, Err: context.DeadlineExceeded}
}

// countingClassifier 统计分类器调用次数
type countingClassifier struct {
	inner        Classifier
	failureCalls int
	suggestCalls int
}

func (c *countingClassifier) IsFailure(text string) bool {
	c.failureCalls++
	return c.inner.IsFailure(text)
}

func (c *countingClassifier) Suggest(cmd string) (string, bool) {
	c.suggestCalls++
	return c.inner.Suggest(cmd)
}

// recordingConfirmer 记录确认请求
type recordingConfirmer struct {
	approveChanges bool
	approveRetry   bool
	changeCalls    int
	retryCalls     int
}

func (r *recordingConfirmer) ConfirmChanges(context.Context, string, []string) (bool, error) {
	r.changeCalls++
	return r.approveChanges, nil
}

func (r *recordingConfirmer) ConfirmRetry(context.Context, string, string) (bool, error) {
	r.retryCalls++
	return r.approveRetry, nil
}

func nxosRules() *dialect.Rules {
	return dialect.Get("nxos").Rules()
}

func testDevice(addr string) model.Device {
	return model.Device{Hostname: "leaf-" + addr, Address: addr, Username: "admin", Password: "admin", Port: 22}
}

func fastFramer() ssh.FramerOptions {
	return ssh.FramerOptions{PollTimeout: time.Millisecond, MaxIdlePolls: 3}
}

func newTestOrchestrator(dialer ssh.Dialer, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Rules == nil {
		cfg.Rules = nxosRules()
	}
	cfg.Framer = fastFramer()
	return NewOrchestrator(ssh.NewPool(&ssh.PoolConfig{}, dialer), cfg)
}
