package conflict

import (
	"strings"

	"retag/internal/metadata"
)

var mergeDelimiters = []string{";", ",", "|"}

// detectDelimiter returns the first known delimiter present in either
// string, or "" when neither contains one.
func detectDelimiter(a, b string) string {
	for _, delim := range mergeDelimiters {
		if strings.Contains(a, delim) || strings.Contains(b, delim) {
			return delim
		}
	}
	return ""
}

// MergeValues combines an existing and a candidate value. Lists and
// delimited strings become a union that preserves existing order and
// appends unseen candidate items. Plain strings follow the configured
// merge policy. Everything else takes the candidate.
func MergeValues(existing, candidate metadata.Value, policy StringMergePolicy) metadata.Value {
	if existing.Kind() == metadata.KindList || candidate.Kind() == metadata.KindList {
		return metadata.List(unionItems(existing.Items(), candidate.Items())...)
	}
	if existing.Kind() == metadata.KindScalar && candidate.Kind() == metadata.KindScalar {
		return mergeStrings(existing.Text(), candidate.Text(), policy)
	}
	return candidate
}

func mergeStrings(existing, candidate string, policy StringMergePolicy) metadata.Value {
	delim := detectDelimiter(existing, candidate)
	if delim != "" {
		merged := unionItems(splitTrim(existing, delim), splitTrim(candidate, delim))
		joiner := delim
		if delim != "|" {
			joiner = delim + " "
		}
		return metadata.String(strings.Join(merged, joiner))
	}
	if candidate == "" {
		return metadata.String(existing)
	}
	if existing == "" || policy == StringMergePreferNew {
		return metadata.String(candidate)
	}
	return metadata.String(existing + "; " + candidate)
}

func splitTrim(s, delim string) []string {
	parts := strings.Split(s, delim)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// unionItems keeps the first slice's order and appends items from the
// second that are not already present, compared case-insensitively.
func unionItems(existing, candidate []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(candidate))
	merged := make([]string, 0, len(existing)+len(candidate))
	for _, items := range [][]string{existing, candidate} {
		for _, item := range items {
			key := strings.ToLower(strings.TrimSpace(item))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, strings.TrimSpace(item))
		}
	}
	return merged
}
