package conflict

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RuleSelector names the conflict attribute a batch rule matches on.
type RuleSelector string

const (
	RuleByField      RuleSelector = "field"
	RuleBySource     RuleSelector = "source"
	RuleByConfidence RuleSelector = "confidence_range"
)

// BatchRule applies one action to every conflict matching its pattern.
// Field patterns may end in "*" for a prefix match; confidence patterns
// take the form "0.50-0.90" and match inclusively.
type BatchRule struct {
	Pattern    string       `json:"pattern"`
	Action     Action       `json:"action"`
	AppliesTo  RuleSelector `json:"applies_to"`
	CreatedAt  time.Time    `json:"created_at"`
	UsageCount int          `json:"usage_count"`
}

// Matches reports whether the rule covers the given conflict.
func (r BatchRule) Matches(c Conflict) bool {
	switch r.AppliesTo {
	case RuleByField:
		pattern := strings.ToLower(r.Pattern)
		field := strings.ToLower(c.Field)
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			return strings.HasPrefix(field, prefix)
		}
		return field == pattern
	case RuleBySource:
		return strings.EqualFold(c.Source, r.Pattern)
	case RuleByConfidence:
		low, high, err := parseConfidenceRange(r.Pattern)
		if err != nil {
			return false
		}
		return c.Confidence >= low && c.Confidence <= high
	default:
		return false
	}
}

func parseConfidenceRange(pattern string) (float64, float64, error) {
	low, high, ok := strings.Cut(pattern, "-")
	if !ok {
		return 0, 0, fmt.Errorf("confidence range %q: missing separator", pattern)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(low), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("confidence range %q: %w", pattern, err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(high), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("confidence range %q: %w", pattern, err)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("confidence range %q: inverted bounds", pattern)
	}
	return lo, hi, nil
}

// MatchRule returns the index of the first rule covering the conflict,
// or -1 when none does. Rule order is the persisted order.
func MatchRule(rules []BatchRule, c Conflict) int {
	for i, rule := range rules {
		if rule.Matches(c) {
			return i
		}
	}
	return -1
}
