package ssh

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/netshellpro/netshellpro/internal/util"
)

// DefaultPromptPattern 提示符以 > 或 # 结尾，其后仅允许空白
var DefaultPromptPattern = regexp.MustCompile(`[>#]\s*$`)

// DefaultPagingMarker 分页中断提示
const DefaultPagingMarker = "--More--"

// FramerOptions 分帧参数
type FramerOptions struct {
	PromptPattern *regexp.Regexp
	PagingMarker  string
	// PollTimeout 单次 Receive 的等待时间
	PollTimeout time.Duration
	// MaxIdlePolls 连续空轮询次数上限，达到后返回已累计内容
	MaxIdlePolls int
	// SendDelay 发送后的固定等待，给设备处理输入的时间
	SendDelay  time.Duration
	LineEnding string
}

// Frame 一次命令的完整回显
type Frame struct {
	Text string
	// Complete 是否观察到提示符；false 表示因空闲超时返回的部分输出
	Complete bool
	Pages    int
}

// Framer 将原始字节流切分为以提示符为边界的响应帧
type Framer struct {
	shell Shell
	opts  FramerOptions
}

// NewFramer 创建分帧器，未设置的参数使用默认值
func NewFramer(shell Shell, opts FramerOptions) *Framer {
	if opts.PromptPattern == nil {
		opts.PromptPattern = DefaultPromptPattern
	}
	if opts.PagingMarker == "" {
		opts.PagingMarker = DefaultPagingMarker
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 500 * time.Millisecond
	}
	if opts.MaxIdlePolls <= 0 {
		opts.MaxIdlePolls = 10
	}
	if opts.LineEnding == "" {
		opts.LineEnding = "\n"
	}
	return &Framer{shell: shell, opts: opts}
}

// Exchange 发送一条命令并读取其响应帧
func (f *Framer) Exchange(command string) (Frame, error) {
	if err := f.shell.Send(command + f.opts.LineEnding); err != nil {
		return Frame{}, err
	}
	if f.opts.SendDelay > 0 {
		time.Sleep(f.opts.SendDelay)
	}
	return f.ReadFrame()
}

// ReadFrame 读取一帧，直到出现提示符或连续 MaxIdlePolls 次空轮询；
// 设备仍在输出时不会提前返回。空闲超时不是错误，只有传输故障才返回 error
func (f *Framer) ReadFrame() (Frame, error) {
	var raw bytes.Buffer
	marker := []byte(f.opts.PagingMarker)
	scanFrom := 0
	pages := 0
	idle := 0

	for {
		chunk, err := f.shell.Receive(f.opts.PollTimeout)
		if err != nil {
			if errors.Is(err, ErrReceiveTimeout) {
				idle++
				if idle >= f.opts.MaxIdlePolls {
					return f.finish(raw.Bytes(), false, pages), nil
				}
				continue
			}
			return f.finish(raw.Bytes(), false, pages), err
		}
		idle = 0
		raw.Write(chunk)

		// 每出现一次新的分页提示发送一个空格
		for {
			idx := bytes.Index(raw.Bytes()[scanFrom:], marker)
			if idx < 0 {
				break
			}
			scanFrom += idx + len(marker)
			pages++
			if err := f.shell.Send(" "); err != nil {
				return f.finish(raw.Bytes(), false, pages), err
			}
		}

		if f.isPrompt(raw.Bytes()) {
			return f.finish(raw.Bytes(), true, pages), nil
		}
	}
}

func (f *Framer) isPrompt(raw []byte) bool {
	text := util.StripANSI(string(raw))
	// 分页提示尚未被设备擦除时不视为结束
	if strings.HasSuffix(strings.TrimSpace(text), f.opts.PagingMarker) {
		return false
	}
	return f.opts.PromptPattern.MatchString(text)
}

func (f *Framer) finish(raw []byte, complete bool, pages int) Frame {
	text := util.StripANSI(util.EnsureUTF8Bytes(raw))
	if pages > 0 || strings.Contains(text, f.opts.PagingMarker) {
		text = strings.ReplaceAll(text, f.opts.PagingMarker, "")
	}
	return Frame{Text: text, Complete: complete, Pages: pages}
}
