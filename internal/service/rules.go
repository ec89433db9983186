package service

import (
	"regexp"
	"strings"
	"sync"

	"github.com/netshellpro/netshellpro/addone/dialect"
	"github.com/netshellpro/netshellpro/internal/config"
	"github.com/netshellpro/netshellpro/pkg/logger"
)

// LoadRules 取平台方言规则，并合并 executor.device_defaults 中的覆盖项
func LoadRules(platform string, overrides map[string]config.PlatformDefaultsConfig) *dialect.Rules {
	rules := dialect.Get(platform).Rules().Clone()
	ov, ok := overrides[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return rules
	}
	if p := strings.TrimSpace(ov.PromptPattern); p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn("Invalid prompt pattern override, keep platform default", "platform", platform, "pattern", p, "error", err)
		} else {
			rules.PromptPattern = re
		}
	}
	if ov.PagingMarker != "" {
		rules.PagingMarker = ov.PagingMarker
	}
	if ov.DisablePaging != "" {
		rules.DisablePaging = ov.DisablePaging
	}
	if ov.ConfigModeCLI != "" {
		rules.ConfigEnter = ov.ConfigModeCLI
	}
	if ov.ConfigExitCLI != "" {
		rules.ConfigExit = ov.ConfigExitCLI
	}
	for _, h := range ov.ErrorHints {
		if h = strings.TrimSpace(h); h != "" {
			rules.FailureMarkers = append(rules.FailureMarkers, h)
		}
	}
	return rules
}

// hasVerbPrefix 命令以任一动词开头（整词匹配）
func hasVerbPrefix(lower string, prefixes []string) bool {
	for _, p := range prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if lower == p || strings.HasPrefix(lower, p+" ") {
			return true
		}
	}
	return false
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

var foldPatterns sync.Map

// foldPattern 返回匹配 literal 的大小写不敏感正则，按字面量缓存
func foldPattern(literal string) *regexp.Regexp {
	if re, ok := foldPatterns.Load(literal); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(literal))
	foldPatterns.Store(literal, re)
	return re
}

// replaceFold 大小写不敏感地替换第一次出现的 old，保留其余原文
func replaceFold(s, old, repl string) (string, bool) {
	if old == "" {
		return s, false
	}
	loc := foldPattern(old).FindStringIndex(s)
	if loc == nil {
		return s, false
	}
	return s[:loc[0]] + repl + s[loc[1]:], true
}
