package conflict

import (
	"sort"

	"retag/internal/metadata"
)

// Conflict describes a single field whose current and candidate values
// disagree semantically.
type Conflict struct {
	Field       string
	Existing    metadata.Value
	New         metadata.Value
	Confidence  float64
	Source      string
	Protected   bool
	AutoUpdate  bool
	Recommended Action
}

// Resolution is the outcome for one conflicting field.
type Resolution struct {
	Action       Action
	Value        metadata.Value
	UserDecision bool
	BatchApplied bool
}

// Detect compares the current fields against a candidate set and returns
// the conflicts, sorted by field name. Fields absent from either side,
// fields whose existing value carries no text, fields outside the
// processable set, and fields whose values already agree produce no
// conflict.
func Detect(current, candidate metadata.Fields, confidence float64, source string, policy Policy) []Conflict {
	var conflicts []Conflict
	for field, newValue := range candidate {
		if !policy.IsProcessable(field) {
			continue
		}
		existing, ok := current[field]
		if !ok || existing.Text() == "" {
			continue
		}
		if existing.Equal(newValue) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Field:       field,
			Existing:    existing,
			New:         newValue,
			Confidence:  confidence,
			Source:      source,
			Protected:   policy.IsProtected(field),
			AutoUpdate:  policy.IsAutoUpdate(field),
			Recommended: policy.Recommend(field, existing, newValue, confidence),
		})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Field < conflicts[j].Field })
	return conflicts
}

// Apply folds a resolution map into the current fields and returns the
// result. Skip and AskLater leave the field untouched.
func Apply(current metadata.Fields, resolutions map[string]Resolution) metadata.Fields {
	result := current.Clone()
	if result == nil {
		result = metadata.Fields{}
	}
	for field, res := range resolutions {
		switch res.Action {
		case ActionUseNew, ActionMerge:
			result[field] = res.Value
		}
	}
	return result
}
