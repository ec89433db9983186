package service

import (
	"strings"

	"github.com/netshellpro/netshellpro/addone/dialect"
)

// Classifier 判断命令输出是否失败，并给出修正建议
type Classifier interface {
	IsFailure(text string) bool
	Suggest(command string) (string, bool)
}

// RuleClassifier 基于方言规则表的字面量匹配分类器
type RuleClassifier struct {
	rules *dialect.Rules
}

// NewRuleClassifier 创建规则分类器
func NewRuleClassifier(rules *dialect.Rules) *RuleClassifier {
	return &RuleClassifier{rules: rules}
}

// IsFailure 输出包含任一失败标记即视为失败（区分大小写的子串匹配）
func (c *RuleClassifier) IsFailure(text string) bool {
	for _, m := range c.rules.FailureMarkers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Suggest 依次尝试精确查找、子串替换与主题兜底；建议与原命令相同时视为无建议
func (c *RuleClassifier) Suggest(command string) (string, bool) {
	cmd := strings.TrimSpace(command)
	lower := strings.ToLower(cmd)
	if lower == "" {
		return "", false
	}

	suggestion := ""
	for _, s := range c.rules.Suggestions {
		if lower == strings.ToLower(s.Match) {
			suggestion = s.Replace
			break
		}
	}
	if suggestion == "" {
		for _, s := range c.rules.Suggestions {
			if out, ok := replaceFold(cmd, s.Match, s.Replace); ok {
				suggestion = out
				break
			}
		}
	}
	if suggestion == "" {
		suggestion = c.topicFallback(lower)
	}

	if suggestion == "" || strings.EqualFold(strings.TrimSpace(suggestion), cmd) {
		return "", false
	}
	return suggestion, true
}

func (c *RuleClassifier) topicFallback(lower string) string {
	for _, tf := range c.rules.TopicFallbacks {
		if !strings.Contains(lower, strings.ToLower(tf.Topic)) {
			continue
		}
		for _, r := range tf.Rules {
			if strings.Contains(lower, strings.ToLower(r.Contains)) {
				return r.Suggest
			}
		}
		return tf.Default
	}
	return ""
}
