package enrich

import "retag/internal/conflict"

// Status classifies the outcome for one file.
type Status string

const (
	StatusEnriched  Status = "enriched"
	StatusUnchanged Status = "unchanged"
	StatusDryRun    Status = "dry_run"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ItemResult describes what happened to one file.
type ItemResult struct {
	Path      string
	Status    Status
	Changed   []string
	Conflicts int
	Warnings  []string
	Err       error
}

// Summary aggregates a whole run.
type Summary struct {
	Processed int
	Enriched  int
	Unchanged int
	DryRun    int
	Skipped   int
	Failed    int
	Items     []ItemResult
	Session   conflict.Session
}

func (s *Summary) add(item ItemResult) {
	s.Processed++
	s.Items = append(s.Items, item)
	switch item.Status {
	case StatusEnriched:
		s.Enriched++
	case StatusUnchanged:
		s.Unchanged++
	case StatusDryRun:
		s.DryRun++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}
