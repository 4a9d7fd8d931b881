package conflict

import (
	"strings"

	"retag/internal/config"
	"retag/internal/metadata"
)

// StringMergePolicy controls how two plain strings without a recognized
// delimiter are merged.
type StringMergePolicy string

const (
	// StringMergeConcat joins existing and new with "; ".
	StringMergeConcat StringMergePolicy = "concat"
	// StringMergePreferNew keeps only the candidate value.
	StringMergePreferNew StringMergePolicy = "prefer_new"
)

// Policy bundles the field classifications and thresholds that drive
// detection and recommendation.
type Policy struct {
	MinConfidence       float64
	StringMerge         StringMergePolicy
	BatchOfferThreshold int

	protected   map[string]struct{}
	autoUpdate  []string
	processable map[string]struct{}
	popularity  map[string]struct{}
	genre       map[string]struct{}
	date        map[string]struct{}
}

// NewPolicy derives a Policy from the loaded configuration. Field names
// are matched case-insensitively.
func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		MinConfidence:       cfg.Matching.MinConfidence,
		StringMerge:         StringMergePolicy(cfg.Conflicts.StringMerge),
		BatchOfferThreshold: cfg.Conflicts.BatchOfferThreshold,
		protected:           lowerSet(cfg.Tags.Protected),
		autoUpdate:          lowerList(cfg.Tags.AutoUpdate),
		processable:         lowerSet(cfg.Tags.Processable),
		popularity:          lowerSet(cfg.Matching.PopularityFields),
		genre:               lowerSet(cfg.Matching.GenreFields),
		date:                lowerSet(cfg.Matching.DateFields),
	}
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return set
}

func lowerList(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, strings.ToLower(strings.TrimSpace(name)))
	}
	return out
}

// IsProtected reports whether the field must never be overwritten.
func (p Policy) IsProtected(field string) bool {
	_, ok := p.protected[strings.ToLower(field)]
	return ok
}

// IsAutoUpdate reports whether the field always takes the candidate
// value. Patterns ending in "*" match by prefix.
func (p Policy) IsAutoUpdate(field string) bool {
	name := strings.ToLower(field)
	for _, pattern := range p.autoUpdate {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		} else if name == pattern {
			return true
		}
	}
	return false
}

// IsProcessable reports whether the field participates in conflict
// detection at all. An empty processable list admits every field.
func (p Policy) IsProcessable(field string) bool {
	if len(p.processable) == 0 {
		return true
	}
	_, ok := p.processable[strings.ToLower(field)]
	return ok
}

func (p Policy) isPopularity(field string) bool {
	_, ok := p.popularity[strings.ToLower(field)]
	return ok
}

func (p Policy) isGenre(field string) bool {
	_, ok := p.genre[strings.ToLower(field)]
	return ok
}

func (p Policy) isDate(field string) bool {
	_, ok := p.date[strings.ToLower(field)]
	return ok
}

// Mergeable reports whether the conflicting pair supports a merge:
// genre-like fields, list values, and delimited strings.
func (p Policy) Mergeable(c Conflict) bool {
	if p.isGenre(c.Field) {
		return true
	}
	if c.Existing.Kind() == metadata.KindList || c.New.Kind() == metadata.KindList {
		return true
	}
	return detectDelimiter(c.Existing.Text(), c.New.Text()) != ""
}

// Recommend applies the recommendation ladder for one conflicting field.
// Protection and auto-update outrank every heuristic; below the
// confidence threshold the existing value always wins.
func (p Policy) Recommend(field string, existing, candidate metadata.Value, confidence float64) Action {
	if p.IsProtected(field) {
		return ActionKeepExisting
	}
	if p.IsAutoUpdate(field) {
		return ActionUseNew
	}
	if confidence < p.MinConfidence {
		return ActionKeepExisting
	}
	switch {
	case p.isPopularity(field):
		return ActionUseNew
	case p.isGenre(field):
		return ActionMerge
	case p.isDate(field) && len(candidate.Text()) > len(existing.Text()):
		return ActionUseNew
	case existing.IsEmpty():
		return ActionUseNew
	default:
		return ActionKeepExisting
	}
}
