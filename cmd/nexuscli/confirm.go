package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/internal/service"
)

// promptConfirmer 在终端上询问是否执行变更与修正命令
//
// 多台设备并行执行时提示串行输出，输入结束（EOF）视为拒绝。
type promptConfirmer struct {
	mu    sync.Mutex
	in    *bufio.Reader
	out   io.Writer
	rules *dialect.Rules
}

func newPromptConfirmer(in io.Reader, out io.Writer, rules *dialect.Rules) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out, rules: rules}
}

func (p *promptConfirmer) ConfirmChanges(ctx context.Context, device string, commands []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nThe following commands will change the configuration of %s:\n", device)
	for _, line := range service.HighlightChanges(service.GroupCommands(commands, p.rules)) {
		marker := " "
		if line.Highlight {
			marker = "*"
		}
		fmt.Fprintf(p.out, "  %s %s\n", marker, line.Command)
	}
	return p.ask(ctx, "Apply these changes? [y/N]: ")
}

func (p *promptConfirmer) ConfirmRetry(ctx context.Context, failed, suggestion string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nCommand %q failed. Suggested command: %q\n", failed, suggestion)
	return p.ask(ctx, "Run the suggested command? [y/N]: ")
}

func (p *promptConfirmer) ask(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprint(p.out, prompt)
	answer, err := p.in.ReadString('\n')
	if err != nil && answer == "" {
		if err == io.EOF {
			fmt.Fprintln(p.out)
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
