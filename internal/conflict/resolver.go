package conflict

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"retag/internal/logging"
	"retag/internal/metadata"
)

var timeNow = time.Now

// PreferenceStore persists remembered per-field decisions and batch
// rules between runs. Implementations live outside this package.
type PreferenceStore interface {
	Preference(field, source string) (Action, bool)
	SetPreference(field, source string, action Action) error
	Rules() []BatchRule
	RecordRuleUse(selector RuleSelector, pattern string) error
	AddRule(rule BatchRule) error
}

// Resolver turns detected conflicts into resolutions, automatically or
// through a prompter. A nil preference store disables remembered
// decisions and batch rules.
type Resolver struct {
	policy  Policy
	prefs   PreferenceStore
	logger  *slog.Logger
	session Session
}

// NewResolver builds a resolver for one enrichment run.
func NewResolver(policy Policy, prefs PreferenceStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{policy: policy, prefs: prefs, logger: logger}
}

// Session returns a copy of the accumulated statistics.
func (r *Resolver) Session() Session {
	return r.session
}

// ResetSession clears the statistics between runs.
func (r *Resolver) ResetSession() {
	r.session.Reset()
}

// ResolveAutomatic settles every conflict using policy, preferences,
// and batch rules alone. It never prompts.
func (r *Resolver) ResolveAutomatic(ctx context.Context, conflicts []Conflict) map[string]Resolution {
	resolutions := make(map[string]Resolution, len(conflicts))
	for _, c := range conflicts {
		if err := ctx.Err(); err != nil {
			break
		}
		// Forced outcomes first: a stored preference or rule must never
		// override a protected or auto-update field.
		if !c.Protected && !c.AutoUpdate {
			if res, ok := r.resolveStored(c); ok {
				resolutions[c.Field] = res
				continue
			}
		}
		res := r.materialize(c, c.Recommended, false, false)
		resolutions[c.Field] = res
		r.session.record(c, res)
		r.logger.Debug("conflict resolved automatically",
			logging.String(logging.FieldField, c.Field),
			logging.String(logging.FieldAction, res.Action.String()),
			logging.String(logging.FieldSource, c.Source))
	}
	return resolutions
}

// ResolveInteractive settles conflicts with user involvement. Forced
// outcomes (protected, auto-update), remembered preferences, and batch
// rules are applied silently; groups of similar conflicts at or above
// the batch threshold are offered as one decision; the rest are
// prompted individually. A prompter failure on one field skips that
// field and continues with the others.
func (r *Resolver) ResolveInteractive(ctx context.Context, conflicts []Conflict, prompter Prompter) map[string]Resolution {
	resolutions := make(map[string]Resolution, len(conflicts))
	var remaining []Conflict
	for _, c := range conflicts {
		if c.Protected || c.AutoUpdate {
			res := r.materialize(c, c.Recommended, false, false)
			resolutions[c.Field] = res
			r.session.record(c, res)
			continue
		}
		if res, ok := r.resolveStored(c); ok {
			resolutions[c.Field] = res
			continue
		}
		remaining = append(remaining, c)
	}

	for _, group := range r.groupByPrefix(remaining) {
		if err := ctx.Err(); err != nil {
			break
		}
		if len(group.conflicts) >= r.policy.BatchOfferThreshold && r.policy.BatchOfferThreshold > 0 {
			if r.resolveGroup(group, prompter, resolutions) {
				continue
			}
		}
		for _, c := range group.conflicts {
			if err := ctx.Err(); err != nil {
				break
			}
			res, ok := r.promptOne(c, prompter)
			if !ok {
				continue
			}
			resolutions[c.Field] = res
			r.session.record(c, res)
		}
	}
	return resolutions
}

// resolveStored applies a remembered preference or a matching batch
// rule, recording statistics on a hit.
func (r *Resolver) resolveStored(c Conflict) (Resolution, bool) {
	if r.prefs == nil {
		return Resolution{}, false
	}
	if action, ok := r.prefs.Preference(c.Field, c.Source); ok {
		res := r.materialize(c, action, true, true)
		r.session.record(c, res)
		r.session.PreferencesApplied++
		r.logger.Debug("preference applied",
			logging.String(logging.FieldField, c.Field),
			logging.String(logging.FieldAction, action.String()))
		return res, true
	}
	rules := r.prefs.Rules()
	if i := MatchRule(rules, c); i >= 0 {
		rule := rules[i]
		if err := r.prefs.RecordRuleUse(rule.AppliesTo, rule.Pattern); err != nil {
			r.logger.Warn("failed to record rule use", logging.Error(err))
		}
		res := r.materialize(c, rule.Action, true, false)
		r.session.record(c, res)
		r.logger.Debug("batch rule applied",
			logging.String(logging.FieldField, c.Field),
			logging.String(logging.FieldAction, rule.Action.String()))
		return res, true
	}
	return Resolution{}, false
}

func (r *Resolver) promptOne(c Conflict, prompter Prompter) (Resolution, bool) {
	mergeable := r.policy.Mergeable(c)
	for {
		raw, err := prompter.Prompt(c, mergeable)
		if err != nil {
			r.logger.Warn("prompt failed, leaving field unresolved",
				logging.String(logging.FieldField, c.Field),
				logging.Error(err))
			return Resolution{}, false
		}
		if raw == "" {
			raw = "k"
		}
		action, kind := DecideChoice(raw, mergeable)
		switch kind {
		case ChoiceAction:
			return r.materialize(c, action, false, true), true
		case ChoiceApplyAll:
			if r.prefs != nil {
				if err := r.prefs.SetPreference(c.Field, c.Source, c.Recommended); err != nil {
					r.logger.Warn("failed to store preference", logging.Error(err))
				}
			}
			return r.materialize(c, c.Recommended, false, true), true
		case ChoiceHelp:
			prompter.Help()
		default:
			// invalid reply, reprompt
		}
	}
}

type conflictGroup struct {
	prefix    string
	conflicts []Conflict
}

// groupByPrefix buckets conflicts by the field-name segment before the
// first underscore, keeping alphabetical order of prefixes and field
// order within each group.
func (r *Resolver) groupByPrefix(conflicts []Conflict) []conflictGroup {
	buckets := make(map[string][]Conflict)
	for _, c := range conflicts {
		prefix := c.Field
		if head, _, ok := strings.Cut(c.Field, "_"); ok {
			prefix = head + "_"
		}
		buckets[prefix] = append(buckets[prefix], c)
	}
	prefixes := make([]string, 0, len(buckets))
	for prefix := range buckets {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	groups := make([]conflictGroup, 0, len(prefixes))
	for _, prefix := range prefixes {
		groups = append(groups, conflictGroup{prefix: prefix, conflicts: buckets[prefix]})
	}
	return groups
}

// resolveGroup offers a whole group as one decision. It returns false
// when the user chose to decide individually or the prompt failed.
func (r *Resolver) resolveGroup(group conflictGroup, prompter Prompter, resolutions map[string]Resolution) bool {
	raw, err := prompter.PromptGroup(group.prefix, group.conflicts)
	if err != nil {
		r.logger.Warn("group prompt failed, deciding individually",
			logging.String(logging.FieldField, group.prefix),
			logging.Error(err))
		return false
	}
	choice := DecideGroup(raw)
	if choice == GroupInvalid || choice == GroupIndividually {
		return false
	}
	if choice == GroupCreateRule {
		action, ok := r.promptRuleAction(group.prefix, prompter)
		if !ok {
			return false
		}
		rule := BatchRule{Pattern: group.prefix + "*", Action: action, AppliesTo: RuleByField, CreatedAt: timeNow()}
		if r.prefs != nil {
			if err := r.prefs.AddRule(rule); err != nil {
				r.logger.Warn("failed to store batch rule", logging.Error(err))
			}
		}
		for _, c := range group.conflicts {
			res := r.materialize(c, action, true, true)
			resolutions[c.Field] = res
			r.session.record(c, res)
		}
		return true
	}
	action, _ := choice.GroupAction()
	for _, c := range group.conflicts {
		res := r.materialize(c, action, true, true)
		resolutions[c.Field] = res
		r.session.record(c, res)
	}
	return true
}

func (r *Resolver) promptRuleAction(prefix string, prompter Prompter) (Action, bool) {
	for {
		raw, err := prompter.PromptRuleAction(prefix)
		if err != nil {
			return ActionKeepExisting, false
		}
		action, kind := DecideChoice(raw, false)
		if kind == ChoiceAction {
			return action, true
		}
	}
}

// materialize computes the resolution value for an action. AskLater is
// a deferred keep with the decision mark dropped.
func (r *Resolver) materialize(c Conflict, action Action, batch, user bool) Resolution {
	res := Resolution{Action: action, UserDecision: user, BatchApplied: batch}
	switch action {
	case ActionUseNew:
		res.Value = c.New
	case ActionMerge:
		res.Value = MergeValues(c.Existing, c.New, r.policy.StringMerge)
	case ActionKeepExisting, ActionSkip, ActionAskLater:
		res.Value = metadata.Value{}
	}
	return res
}
