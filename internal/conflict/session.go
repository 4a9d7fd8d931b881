package conflict

// Session accumulates resolution statistics across one enrichment run.
type Session struct {
	Total               int
	ResolvedAutomatic   int
	ResolvedInteractive int
	BatchRulesApplied   int
	PreferencesApplied  int
	Skipped             int
	ByField             map[string]int
	BySource            map[string]int
}

func (s *Session) record(c Conflict, res Resolution) {
	s.Total++
	switch {
	case res.BatchApplied:
		s.BatchRulesApplied++
	case res.UserDecision:
		s.ResolvedInteractive++
	default:
		s.ResolvedAutomatic++
	}
	if res.Action == ActionSkip {
		s.Skipped++
	}
	if s.ByField == nil {
		s.ByField = make(map[string]int)
	}
	if s.BySource == nil {
		s.BySource = make(map[string]int)
	}
	s.ByField[c.Field]++
	if c.Source != "" {
		s.BySource[c.Source]++
	}
}

// Efficiency is the share of conflicts resolved without an individual
// prompt. A session with no conflicts counts as fully efficient.
func (s *Session) Efficiency() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Total-s.ResolvedInteractive) / float64(s.Total)
}

// Reset clears the accumulated counters.
func (s *Session) Reset() {
	*s = Session{}
}
