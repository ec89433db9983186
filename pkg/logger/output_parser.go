package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// FrameLines 设备回显的头部与尾部行
type FrameLines struct {
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
	Total     int      `json:"total"`
}

// ParseFrameLines 提取回显的头尾各 maxLines 行，行数不足时头尾相同
func ParseFrameLines(output string, maxLines int) FrameLines {
	if maxLines <= 0 {
		maxLines = 5
	}
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")
	if strings.TrimSpace(output) == "" {
		return FrameLines{}
	}
	lines := strings.Split(output, "\n")
	total := len(lines)

	n := maxLines
	if n > total {
		n = total
	}
	head := append([]string(nil), lines[:n]...)
	tail := append([]string(nil), lines[total-n:]...)
	return FrameLines{HeadLines: head, TailLines: tail, Total: total}
}

// Format 生成单行日志文本
func (f FrameLines) Format() string {
	if len(f.HeadLines) == 0 {
		return ""
	}
	s := "head-lines: [" + strings.Join(f.HeadLines, " ⟩ ") + "]"
	if f.Total > len(f.HeadLines) {
		s += ", tail-lines: [" + strings.Join(f.TailLines, " ⟩ ") + "]"
	}
	return s
}

// DebugTranscript 在 debug 级别记录一次交互的回显摘要
func DebugTranscript(host, command, output string, maxLines int) {
	if GetLogger().Level < logrus.DebugLevel {
		return
	}
	lines := ParseFrameLines(output, maxLines)
	if lines.Total == 0 {
		return
	}
	Debug("Command echo", "host", host, "command", command, "lines", lines.Total, "echo", lines.Format())
}
