package metadata

import "sort"

// Canonical field names shared across the aggregator, conflict engine, and
// tag store. Source-specific fields (external ids, counters) keep whatever
// name the source reported.
const (
	FieldArtist   = "artist"
	FieldTitle    = "title"
	FieldAlbum    = "album"
	FieldYear     = "year"
	FieldGenre    = "genre"
	FieldDuration = "duration"
	FieldExplicit = "explicit"
	FieldComment  = "comment"
)

// Fields is a file's in-memory tag set: field name to value, names unique.
type Fields map[string]Value

// Clone returns a deep copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Changed returns the names of fields whose value differs semantically
// between f and other, plus names present on only one side.
func (f Fields) Changed(other Fields) []string {
	seen := make(map[string]struct{}, len(f)+len(other))
	var changed []string
	for name, val := range f {
		seen[name] = struct{}{}
		otherVal, ok := other[name]
		if !ok || !val.Equal(otherVal) {
			changed = append(changed, name)
		}
	}
	for name := range other {
		if _, ok := seen[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}
