package aggregate

import (
	"sort"
	"strings"

	"retag/internal/metadata"
	"retag/internal/textutil"
)

// SourceResult is one source's proposal: a field map with provenance.
type SourceResult struct {
	Source     string
	Confidence float64
	Fields     metadata.Fields
}

// Merged is the consolidated candidate metadata for one file.
type Merged struct {
	Fields        metadata.Fields
	ExternalIDs   map[string]string
	PrimarySource string
	Confidence    float64
}

// Options controls merging behavior.
type Options struct {
	MinConfidence    float64
	MaxGenres        int
	PopularityFields []string
}

// primaryFields are the scalar fields taken wholesale from the primary
// (highest-confidence qualifying) result.
var primaryFields = []string{
	metadata.FieldArtist,
	metadata.FieldTitle,
	metadata.FieldAlbum,
	metadata.FieldYear,
	metadata.FieldDuration,
	metadata.FieldExplicit,
}

// Merge consolidates multiple source results into one candidate field map.
// Results below MinConfidence are dropped; if none qualify, the single best
// result is used so a non-empty input never produces an empty merge.
// Returns false only for empty input.
func Merge(results []SourceResult, opts Options) (Merged, bool) {
	if len(results) == 0 {
		return Merged{}, false
	}
	if opts.MaxGenres <= 0 {
		opts.MaxGenres = 3
	}

	qualifying := make([]SourceResult, 0, len(results))
	for _, r := range results {
		if r.Confidence >= opts.MinConfidence {
			qualifying = append(qualifying, r)
		}
	}
	if len(qualifying) == 0 {
		qualifying = []SourceResult{bestOf(results)}
	}

	primary := bestOf(qualifying)
	out := Merged{
		Fields:        make(metadata.Fields),
		ExternalIDs:   make(map[string]string),
		PrimarySource: primary.Source,
		Confidence:    primary.Confidence,
	}

	for _, name := range primaryFields {
		if v, ok := primary.Fields[name]; ok && !v.IsEmpty() {
			out.Fields[name] = v
		}
	}

	collectExternalIDs(qualifying, &out)
	mergeGenres(qualifying, opts.MaxGenres, &out)
	averagePopularity(qualifying, opts.PopularityFields, &out)

	return out, true
}

// bestOf returns the highest-confidence result; ties go to input order.
func bestOf(results []SourceResult) SourceResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

// collectExternalIDs gathers identifier fields (*_id, *_url) from every
// qualifying result. Duplicate id types are rare; the last source wins.
func collectExternalIDs(results []SourceResult, out *Merged) {
	for _, r := range results {
		for name, value := range r.Fields {
			key := ""
			switch {
			case strings.HasSuffix(name, "_id"):
				key = strings.TrimSuffix(name, "_id")
			case strings.HasSuffix(name, "_url"):
				key = strings.TrimSuffix(name, "_url")
			default:
				continue
			}
			if value.IsEmpty() {
				continue
			}
			out.ExternalIDs[key] = value.Text()
			out.Fields[name] = value
		}
	}
}

// mergeGenres scores each genre token by the summed confidence of the
// sources reporting it and keeps the top maxGenres, ties broken by
// first-seen order.
func mergeGenres(results []SourceResult, maxGenres int, out *Merged) {
	scores := make(map[string]float64)
	firstSeen := make(map[string]int)
	order := 0

	for _, r := range results {
		genreValue, ok := r.Fields[metadata.FieldGenre]
		if !ok {
			continue
		}
		for _, raw := range genreValue.Items() {
			token := textutil.CleanGenre(raw)
			if token == "" {
				continue
			}
			if _, seen := firstSeen[token]; !seen {
				firstSeen[token] = order
				order++
			}
			scores[token] += r.Confidence
		}
	}
	if len(scores) == 0 {
		return
	}

	tokens := make([]string, 0, len(scores))
	for token := range scores {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if scores[tokens[i]] != scores[tokens[j]] {
			return scores[tokens[i]] > scores[tokens[j]]
		}
		return firstSeen[tokens[i]] < firstSeen[tokens[j]]
	})
	if len(tokens) > maxGenres {
		tokens = tokens[:maxGenres]
	}
	out.Fields[metadata.FieldGenre] = metadata.List(tokens...)
}

// averagePopularity floors the mean of each popularity-like field across
// the results that report it. Fields reported nowhere stay absent.
func averagePopularity(results []SourceResult, popularityFields []string, out *Merged) {
	for _, name := range popularityFields {
		var sum float64
		count := 0
		for _, r := range results {
			v, ok := r.Fields[name]
			if !ok {
				continue
			}
			f, ok := v.Float()
			if !ok {
				continue
			}
			sum += f
			count++
		}
		if count == 0 {
			continue
		}
		out.Fields[name] = metadata.Int(int64(sum / float64(count)))
	}
}
