package service

import (
	"strings"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// maxNormalizePasses 改写达到不动点的最大轮数
const maxNormalizePasses = 8

// Normalizer 将其他平台写法改写为目标平台语法
type Normalizer struct {
	rules *dialect.Rules
}

// NewNormalizer 创建语法修正器
func NewNormalizer(rules *dialect.Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Normalize 返回修正后的命令；多轮改写直到结果不再变化，保证幂等
func (n *Normalizer) Normalize(command string) string {
	cur := strings.TrimSpace(command)
	if cur == "" {
		return command
	}
	for i := 0; i < maxNormalizePasses; i++ {
		next := n.pass(cur)
		if next == cur || next == "" {
			break
		}
		logger.Debug("Command normalized", "from", cur, "to", next)
		cur = next
	}
	return cur
}

func (n *Normalizer) pass(cmd string) string {
	for _, c := range n.rules.StrictBlocks {
		if strictHit(cmd, c) {
			return c.Replace
		}
	}

	for _, c := range n.rules.Corrections {
		if out, ok := replaceFold(cmd, c.Match, c.Replace); ok {
			cmd = out
			break
		}
	}

	for _, r := range n.rules.Shorthands {
		cmd = r.Pattern.ReplaceAllString(cmd, r.Replace)
	}
	return strings.TrimSpace(cmd)
}

func strictHit(cmd string, c dialect.Correction) bool {
	if c.Match == "" {
		return false
	}
	if c.Exact {
		return strings.EqualFold(strings.Join(strings.Fields(cmd), " "), c.Match)
	}
	return foldPattern(c.Match).MatchString(cmd)
}
