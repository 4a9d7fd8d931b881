package conflict

import (
	"fmt"

	"retag/internal/services"
)

// Action is the closed set of resolution decisions for one conflicting field.
type Action int

const (
	// ActionKeepExisting leaves the current value untouched.
	ActionKeepExisting Action = iota
	// ActionUseNew replaces the current value with the candidate.
	ActionUseNew
	// ActionSkip leaves the field out of the write entirely.
	ActionSkip
	// ActionMerge combines both values deterministically.
	ActionMerge
	// ActionAskLater defers the decision to a future pass.
	ActionAskLater
)

var actionNames = map[Action]string{
	ActionKeepExisting: "keep_existing",
	ActionUseNew:       "use_new",
	ActionSkip:         "skip",
	ActionMerge:        "merge",
	ActionAskLater:     "ask_later",
}

var actionValues = map[string]Action{
	"keep_existing": ActionKeepExisting,
	"use_new":       ActionUseNew,
	"skip":          ActionSkip,
	"merge":         ActionMerge,
	"ask_later":     ActionAskLater,
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts a persisted action string back into an Action.
// Unknown strings indicate corrupt persisted state.
func ParseAction(s string) (Action, error) {
	if action, ok := actionValues[s]; ok {
		return action, nil
	}
	return ActionKeepExisting, services.Wrap(services.ErrCorruptState, "conflict", "parse action", fmt.Sprintf("unknown action %q", s), nil)
}

// MarshalText implements encoding.TextMarshaler for JSON persistence.
func (a Action) MarshalText() ([]byte, error) {
	name, ok := actionNames[a]
	if !ok {
		return nil, fmt.Errorf("marshal action: unknown value %d", int(a))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON persistence.
func (a *Action) UnmarshalText(data []byte) error {
	parsed, err := ParseAction(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
