package conflict

import (
	"context"
	"errors"
	"testing"

	"retag/internal/config"
	"retag/internal/metadata"
	"retag/internal/services"
)

func testPolicy(t *testing.T) Policy {
	t.Helper()
	cfg := config.Default()
	return NewPolicy(&cfg)
}

func TestParseActionRoundTrip(t *testing.T) {
	for _, action := range []Action{ActionKeepExisting, ActionUseNew, ActionSkip, ActionMerge, ActionAskLater} {
		parsed, err := ParseAction(action.String())
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", action.String(), err)
		}
		if parsed != action {
			t.Fatalf("ParseAction(%q) = %v, want %v", action.String(), parsed, action)
		}
	}
}

func TestParseActionUnknownIsCorruptState(t *testing.T) {
	_, err := ParseAction("overwrite")
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !errors.Is(err, services.ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}

func TestRecommendLadder(t *testing.T) {
	policy := testPolicy(t)
	tests := []struct {
		name       string
		field      string
		existing   metadata.Value
		candidate  metadata.Value
		confidence float64
		want       Action
	}{
		{"protected always keeps", "comment", metadata.String("mine"), metadata.String("theirs"), 0.99, ActionKeepExisting},
		{"auto update wildcard", "youtube_views", metadata.Int(10), metadata.Int(20), 0.1, ActionUseNew},
		{"below threshold keeps", "title", metadata.String("a"), metadata.String("b"), 0.5, ActionKeepExisting},
		{"popularity takes new", "playcount", metadata.Int(5), metadata.Int(9), 0.9, ActionUseNew},
		{"genre merges", "genre", metadata.String("Rock"), metadata.String("Pop"), 0.9, ActionMerge},
		{"longer date takes new", "date", metadata.String("2001"), metadata.String("2001-05-12"), 0.9, ActionUseNew},
		{"shorter date keeps", "date", metadata.String("2001-05-12"), metadata.String("2001"), 0.9, ActionKeepExisting},
		{"empty existing takes new", "title", metadata.String("   "), metadata.String("Real Title"), 0.9, ActionUseNew},
		{"default keeps", "artist", metadata.String("A"), metadata.String("B"), 0.9, ActionKeepExisting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Recommend(tt.field, tt.existing, tt.candidate, tt.confidence)
			if got != tt.want {
				t.Fatalf("Recommend(%s) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	policy := testPolicy(t)
	current := metadata.Fields{
		"artist": metadata.String("Big Star"),
		"title":  metadata.String("Thirteen"),
		"genre":  metadata.String("Rock"),
		"year":   metadata.Int(1972),
	}
	candidate := metadata.Fields{
		"artist": metadata.String("big star"),
		"title":  metadata.String("Thirteen (Remastered)"),
		"genre":  metadata.String("Rock, Pop"),
		"year":   metadata.Int(1972),
		"album":  metadata.String("#1 Record"),
	}
	conflicts := Detect(current, candidate, 0.92, "library", policy)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d: %+v", len(conflicts), conflicts)
	}
	if conflicts[0].Field != "genre" || conflicts[1].Field != "title" {
		t.Fatalf("expected sorted fields [genre title], got [%s %s]", conflicts[0].Field, conflicts[1].Field)
	}
	if conflicts[0].Recommended != ActionMerge {
		t.Fatalf("expected merge recommendation for genre, got %v", conflicts[0].Recommended)
	}
}

func TestDetectSkipsEmptyExisting(t *testing.T) {
	policy := testPolicy(t)
	current := metadata.Fields{"album": metadata.String("")}
	candidate := metadata.Fields{"album": metadata.String("Radio City")}
	if got := Detect(current, candidate, 0.9, "library", policy); len(got) != 0 {
		t.Fatalf("empty existing value must not conflict, got %+v", got)
	}
}

func TestDetectHonorsProcessableList(t *testing.T) {
	cfg := config.Default()
	cfg.Tags.Processable = []string{"artist"}
	policy := NewPolicy(&cfg)
	current := metadata.Fields{
		"artist": metadata.String("A"),
		"title":  metadata.String("T"),
	}
	candidate := metadata.Fields{
		"artist": metadata.String("B"),
		"title":  metadata.String("U"),
	}
	conflicts := Detect(current, candidate, 0.9, "library", policy)
	if len(conflicts) != 1 || conflicts[0].Field != "artist" {
		t.Fatalf("expected only artist conflict, got %+v", conflicts)
	}
}

func TestMergeValues(t *testing.T) {
	tests := []struct {
		name      string
		existing  metadata.Value
		candidate metadata.Value
		policy    StringMergePolicy
		want      string
	}{
		{"list union", metadata.List("Rock", "Indie"), metadata.List("rock", "Pop"), StringMergeConcat, "Rock, Indie, Pop"},
		{"comma delimited strings", metadata.String("Rock"), metadata.String("Rock, Pop"), StringMergeConcat, "Rock, Pop"},
		{"semicolon wins over comma", metadata.String("Rock; Pop"), metadata.String("Jazz"), StringMergeConcat, "Rock; Pop; Jazz"},
		{"pipe delimiter", metadata.String("a|b"), metadata.String("c"), StringMergeConcat, "a|b|c"},
		{"plain concat", metadata.String("first"), metadata.String("second"), StringMergeConcat, "first; second"},
		{"plain prefer new", metadata.String("first"), metadata.String("second"), StringMergePreferNew, "second"},
		{"empty candidate keeps existing", metadata.String("first"), metadata.String(""), StringMergePreferNew, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeValues(tt.existing, tt.candidate, tt.policy)
			if got.Text() != tt.want {
				t.Fatalf("MergeValues = %q, want %q", got.Text(), tt.want)
			}
		})
	}
}

func TestBatchRuleMatching(t *testing.T) {
	conflictFor := func(field, source string, confidence float64) Conflict {
		return Conflict{Field: field, Source: source, Confidence: confidence}
	}
	tests := []struct {
		name string
		rule BatchRule
		c    Conflict
		want bool
	}{
		{"field exact", BatchRule{Pattern: "genre", AppliesTo: RuleByField}, conflictFor("genre", "x", 0.5), true},
		{"field wildcard", BatchRule{Pattern: "youtube_*", AppliesTo: RuleByField}, conflictFor("youtube_views", "x", 0.5), true},
		{"field wildcard miss", BatchRule{Pattern: "youtube_*", AppliesTo: RuleByField}, conflictFor("spotify_id", "x", 0.5), false},
		{"source match", BatchRule{Pattern: "Library", AppliesTo: RuleBySource}, conflictFor("genre", "library", 0.5), true},
		{"confidence inside", BatchRule{Pattern: "0.5-0.9", AppliesTo: RuleByConfidence}, conflictFor("genre", "x", 0.9), true},
		{"confidence outside", BatchRule{Pattern: "0.5-0.9", AppliesTo: RuleByConfidence}, conflictFor("genre", "x", 0.95), false},
		{"confidence malformed", BatchRule{Pattern: "high", AppliesTo: RuleByConfidence}, conflictFor("genre", "x", 0.7), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.c); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchRuleFirstWins(t *testing.T) {
	rules := []BatchRule{
		{Pattern: "youtube_*", AppliesTo: RuleByField, Action: ActionUseNew},
		{Pattern: "youtube_views", AppliesTo: RuleByField, Action: ActionSkip},
	}
	idx := MatchRule(rules, Conflict{Field: "youtube_views"})
	if idx != 0 {
		t.Fatalf("expected first matching rule, got index %d", idx)
	}
}

type fakePrefs struct {
	prefs map[string]Action
	rules []BatchRule
	uses  map[string]int
	added []BatchRule
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{prefs: map[string]Action{}, uses: map[string]int{}}
}

func (f *fakePrefs) Preference(field, source string) (Action, bool) {
	action, ok := f.prefs[field+":"+source]
	return action, ok
}

func (f *fakePrefs) SetPreference(field, source string, action Action) error {
	f.prefs[field+":"+source] = action
	return nil
}

func (f *fakePrefs) Rules() []BatchRule { return f.rules }

func (f *fakePrefs) RecordRuleUse(selector RuleSelector, pattern string) error {
	f.uses[string(selector)+":"+pattern]++
	return nil
}

func (f *fakePrefs) AddRule(rule BatchRule) error {
	f.added = append(f.added, rule)
	return nil
}

type scriptPrompter struct {
	replies      []string
	groupReplies []string
	ruleReplies  []string
	prompts      int
	groupPrompts int
	err          error
}

func (p *scriptPrompter) Prompt(c Conflict, mergeable bool) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.prompts++
	if len(p.replies) == 0 {
		return "k", nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *scriptPrompter) PromptGroup(prefix string, conflicts []Conflict) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.groupPrompts++
	if len(p.groupReplies) == 0 {
		return "i", nil
	}
	reply := p.groupReplies[0]
	p.groupReplies = p.groupReplies[1:]
	return reply, nil
}

func (p *scriptPrompter) PromptRuleAction(prefix string) (string, error) {
	if len(p.ruleReplies) == 0 {
		return "k", nil
	}
	reply := p.ruleReplies[0]
	p.ruleReplies = p.ruleReplies[1:]
	return reply, nil
}

func (p *scriptPrompter) Help() {}

func TestResolveAutomaticFollowsRecommendations(t *testing.T) {
	policy := testPolicy(t)
	resolver := NewResolver(policy, nil, nil)
	conflicts := []Conflict{
		{Field: "genre", Existing: metadata.String("Rock"), New: metadata.String("Rock, Pop"), Recommended: ActionMerge},
		{Field: "title", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveAutomatic(context.Background(), conflicts)
	if got := resolutions["genre"]; got.Action != ActionMerge || got.Value.Text() != "Rock, Pop" {
		t.Fatalf("genre resolution = %+v", got)
	}
	if got := resolutions["title"]; got.Action != ActionKeepExisting {
		t.Fatalf("title resolution = %+v", got)
	}
	session := resolver.Session()
	if session.Total != 2 || session.ResolvedAutomatic != 2 || session.ResolvedInteractive != 0 {
		t.Fatalf("unexpected session stats: %+v", session)
	}
	if session.ByField["genre"] != 1 || session.ByField["title"] != 1 {
		t.Fatalf("unexpected per-field stats: %+v", session.ByField)
	}
}

func TestResolveAutomaticAppliesPreferenceAndRules(t *testing.T) {
	policy := testPolicy(t)
	prefs := newFakePrefs()
	prefs.prefs["title:library"] = ActionUseNew
	prefs.rules = []BatchRule{{Pattern: "spotify_*", AppliesTo: RuleByField, Action: ActionSkip}}
	resolver := NewResolver(policy, prefs, nil)
	conflicts := []Conflict{
		{Field: "title", Source: "library", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionKeepExisting},
		{Field: "spotify_id", Source: "library", Existing: metadata.String("1"), New: metadata.String("2"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveAutomatic(context.Background(), conflicts)
	if got := resolutions["title"]; got.Action != ActionUseNew || got.Value.Text() != "B" {
		t.Fatalf("preference not applied: %+v", got)
	}
	if got := resolutions["spotify_id"]; got.Action != ActionSkip {
		t.Fatalf("batch rule not applied: %+v", got)
	}
	if prefs.uses["field:spotify_*"] != 1 {
		t.Fatalf("rule use not recorded: %+v", prefs.uses)
	}
	session := resolver.Session()
	if session.BatchRulesApplied != 2 || session.PreferencesApplied != 1 {
		t.Fatalf("unexpected session stats: %+v", session)
	}
	if session.BySource["library"] != 2 {
		t.Fatalf("unexpected per-source stats: %+v", session.BySource)
	}
}

func TestResolveAutomaticStoredDecisionsNeverOverrideForcedOutcomes(t *testing.T) {
	policy := testPolicy(t)
	prefs := newFakePrefs()
	// A confidence-range rule matches every field in range, including
	// protected ones.
	prefs.rules = []BatchRule{{Pattern: "0.0-1.0", AppliesTo: RuleByConfidence, Action: ActionUseNew}}
	prefs.prefs["popularity:library"] = ActionKeepExisting
	resolver := NewResolver(policy, prefs, nil)

	current := metadata.Fields{
		"comment":    metadata.String("my note"),
		"popularity": metadata.Int(10),
	}
	candidate := metadata.Fields{
		"comment":    metadata.String("overwritten"),
		"popularity": metadata.Int(80),
	}
	conflicts := Detect(current, candidate, 0.95, "library", policy)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
	}

	resolutions := resolver.ResolveAutomatic(context.Background(), conflicts)
	if got := resolutions["comment"]; got.Action != ActionKeepExisting {
		t.Fatalf("protected field resolved to %v, want keep_existing", got.Action)
	}
	if got := resolutions["popularity"]; got.Action != ActionUseNew || got.Value.Text() != "80" {
		t.Fatalf("auto-update field resolved to %+v, want use_new 80", got)
	}
	if prefs.uses["confidence_range:0.0-1.0"] != 0 {
		t.Fatalf("rule must not fire on forced outcomes: %+v", prefs.uses)
	}
}

func TestResolveInteractiveForcedOutcomes(t *testing.T) {
	policy := testPolicy(t)
	resolver := NewResolver(policy, nil, nil)
	prompter := &scriptPrompter{}
	conflicts := []Conflict{
		{Field: "comment", Protected: true, Existing: metadata.String("keep"), New: metadata.String("drop"), Recommended: ActionKeepExisting},
		{Field: "popularity", AutoUpdate: true, Existing: metadata.Int(1), New: metadata.Int(2), Recommended: ActionUseNew},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if prompter.prompts != 0 {
		t.Fatalf("forced outcomes must not prompt, saw %d prompts", prompter.prompts)
	}
	if resolutions["comment"].Action != ActionKeepExisting {
		t.Fatalf("protected field resolution = %+v", resolutions["comment"])
	}
	if got := resolutions["popularity"]; got.Action != ActionUseNew || got.Value.Text() != "2" {
		t.Fatalf("auto-update resolution = %+v", got)
	}
}

func TestResolveInteractiveRepromptsOnInvalidChoice(t *testing.T) {
	policy := testPolicy(t)
	resolver := NewResolver(policy, nil, nil)
	prompter := &scriptPrompter{replies: []string{"x", "h", "n"}}
	conflicts := []Conflict{
		{Field: "title", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if prompter.prompts != 3 {
		t.Fatalf("expected 3 prompts, got %d", prompter.prompts)
	}
	if got := resolutions["title"]; got.Action != ActionUseNew || !got.UserDecision {
		t.Fatalf("resolution = %+v", got)
	}
}

func TestResolveInteractiveMergeRejectedWhenNotMergeable(t *testing.T) {
	policy := testPolicy(t)
	resolver := NewResolver(policy, nil, nil)
	prompter := &scriptPrompter{replies: []string{"m", "k"}}
	conflicts := []Conflict{
		{Field: "title", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionKeepExisting},
	}
	resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if prompter.prompts != 2 {
		t.Fatalf("merge on plain strings must reprompt, got %d prompts", prompter.prompts)
	}
}

func TestResolveInteractiveApplyAllStoresPreference(t *testing.T) {
	policy := testPolicy(t)
	prefs := newFakePrefs()
	resolver := NewResolver(policy, prefs, nil)
	prompter := &scriptPrompter{replies: []string{"a"}}
	conflicts := []Conflict{
		{Field: "title", Source: "library", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionUseNew},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if got := resolutions["title"]; got.Action != ActionUseNew {
		t.Fatalf("resolution = %+v", got)
	}
	if action, ok := prefs.Preference("title", "library"); !ok || action != ActionUseNew {
		t.Fatalf("preference not stored: %v %v", action, ok)
	}
}

func TestResolveInteractiveGroupBatch(t *testing.T) {
	cfg := config.Default()
	cfg.Conflicts.BatchOfferThreshold = 3
	resolver := NewResolver(NewPolicy(&cfg), nil, nil)
	prompter := &scriptPrompter{groupReplies: []string{"n"}}
	conflicts := []Conflict{
		{Field: "youtube_views", Existing: metadata.Int(1), New: metadata.Int(2), Recommended: ActionKeepExisting},
		{Field: "youtube_likes", Existing: metadata.Int(3), New: metadata.Int(4), Recommended: ActionKeepExisting},
		{Field: "youtube_channel", Existing: metadata.String("a"), New: metadata.String("b"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if prompter.groupPrompts != 1 || prompter.prompts != 0 {
		t.Fatalf("expected one group prompt only, got group=%d individual=%d", prompter.groupPrompts, prompter.prompts)
	}
	for _, field := range []string{"youtube_views", "youtube_likes", "youtube_channel"} {
		if resolutions[field].Action != ActionUseNew {
			t.Fatalf("%s resolution = %+v", field, resolutions[field])
		}
	}
}

func TestResolveInteractiveGroupCreateRule(t *testing.T) {
	cfg := config.Default()
	cfg.Conflicts.BatchOfferThreshold = 2
	prefs := newFakePrefs()
	resolver := NewResolver(NewPolicy(&cfg), prefs, nil)
	prompter := &scriptPrompter{groupReplies: []string{"r"}, ruleReplies: []string{"s"}}
	conflicts := []Conflict{
		{Field: "spotify_id", Existing: metadata.String("1"), New: metadata.String("2"), Recommended: ActionKeepExisting},
		{Field: "spotify_url", Existing: metadata.String("u"), New: metadata.String("v"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if len(prefs.added) != 1 {
		t.Fatalf("expected one stored rule, got %d", len(prefs.added))
	}
	rule := prefs.added[0]
	if rule.Pattern != "spotify_*" || rule.Action != ActionSkip || rule.AppliesTo != RuleByField {
		t.Fatalf("unexpected rule: %+v", rule)
	}
	for _, field := range []string{"spotify_id", "spotify_url"} {
		if resolutions[field].Action != ActionSkip {
			t.Fatalf("%s resolution = %+v", field, resolutions[field])
		}
	}
}

func TestResolveInteractivePromptFailureSkipsField(t *testing.T) {
	policy := testPolicy(t)
	resolver := NewResolver(policy, nil, nil)
	prompter := &scriptPrompter{err: errors.New("stdin closed")}
	conflicts := []Conflict{
		{Field: "title", Existing: metadata.String("A"), New: metadata.String("B"), Recommended: ActionKeepExisting},
	}
	resolutions := resolver.ResolveInteractive(context.Background(), conflicts, prompter)
	if _, ok := resolutions["title"]; ok {
		t.Fatalf("failed prompt must leave the field unresolved, got %+v", resolutions["title"])
	}
}

func TestApplyResolutions(t *testing.T) {
	current := metadata.Fields{
		"title": metadata.String("Old"),
		"genre": metadata.String("Rock"),
		"year":  metadata.Int(1999),
	}
	resolutions := map[string]Resolution{
		"title": {Action: ActionUseNew, Value: metadata.String("New")},
		"genre": {Action: ActionMerge, Value: metadata.String("Rock, Pop")},
		"year":  {Action: ActionSkip},
	}
	result := Apply(current, resolutions)
	if result["title"].Text() != "New" {
		t.Fatalf("title = %q", result["title"].Text())
	}
	if result["genre"].Text() != "Rock, Pop" {
		t.Fatalf("genre = %q", result["genre"].Text())
	}
	if result["year"].Text() != "1999" {
		t.Fatalf("skip must leave the field untouched, year = %q", result["year"].Text())
	}
	if current["title"].Text() != "Old" {
		t.Fatalf("Apply must not mutate its input")
	}
}

func TestSessionEfficiency(t *testing.T) {
	var s Session
	if s.Efficiency() != 1 {
		t.Fatalf("empty session efficiency = %v", s.Efficiency())
	}
	s.record(Conflict{Field: "genre", Source: "library"}, Resolution{Action: ActionKeepExisting})
	s.record(Conflict{Field: "genre", Source: "library"}, Resolution{Action: ActionUseNew, BatchApplied: true})
	s.record(Conflict{Field: "year", Source: "filename"}, Resolution{Action: ActionUseNew, UserDecision: true})
	s.record(Conflict{Field: "title"}, Resolution{Action: ActionSkip})
	if s.Total != 4 || s.ResolvedAutomatic != 2 || s.BatchRulesApplied != 1 || s.ResolvedInteractive != 1 || s.Skipped != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.ByField["genre"] != 2 || s.BySource["library"] != 2 || s.BySource["filename"] != 1 {
		t.Fatalf("unexpected breakdowns: fields %+v sources %+v", s.ByField, s.BySource)
	}
	if got := s.Efficiency(); got != 0.75 {
		t.Fatalf("efficiency = %v, want 0.75", got)
	}
}
