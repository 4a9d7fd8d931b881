package conflict

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter collects raw user choices for conflicts the engine cannot
// settle on its own. Implementations return the trimmed reply text;
// the engine interprets it.
type Prompter interface {
	// Prompt asks about a single conflict and returns the raw choice.
	Prompt(c Conflict, mergeable bool) (string, error)
	// PromptGroup asks about a batch of similar conflicts at once.
	PromptGroup(prefix string, conflicts []Conflict) (string, error)
	// PromptRuleAction asks which action a new batch rule should carry.
	PromptRuleAction(prefix string) (string, error)
	// Help explains the single-conflict options.
	Help()
}

// ChoiceKind classifies an interpreted prompt reply.
type ChoiceKind int

const (
	// ChoiceInvalid means the reply matched nothing and the prompt repeats.
	ChoiceInvalid ChoiceKind = iota
	// ChoiceAction carries a direct resolution action.
	ChoiceAction
	// ChoiceApplyAll asks to remember the action for this field and source.
	ChoiceApplyAll
	// ChoiceHelp requests the option summary.
	ChoiceHelp
)

// DecideChoice interprets a single-conflict reply. Merge is only
// accepted when the pair is mergeable.
func DecideChoice(raw string, mergeable bool) (Action, ChoiceKind) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "k", "keep":
		return ActionKeepExisting, ChoiceAction
	case "n", "new", "use":
		return ActionUseNew, ChoiceAction
	case "s", "skip":
		return ActionSkip, ChoiceAction
	case "m", "merge":
		if mergeable {
			return ActionMerge, ChoiceAction
		}
		return ActionKeepExisting, ChoiceInvalid
	case "a", "all":
		return ActionKeepExisting, ChoiceApplyAll
	case "h", "help", "?":
		return ActionKeepExisting, ChoiceHelp
	default:
		return ActionKeepExisting, ChoiceInvalid
	}
}

// GroupChoice classifies a group prompt reply.
type GroupChoice int

const (
	GroupInvalid GroupChoice = iota
	GroupKeepAll
	GroupUseAll
	GroupSkipAll
	GroupIndividually
	GroupCreateRule
)

// DecideGroup interprets a group prompt reply.
func DecideGroup(raw string) GroupChoice {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "k", "keep":
		return GroupKeepAll
	case "n", "new", "use":
		return GroupUseAll
	case "s", "skip":
		return GroupSkipAll
	case "i", "individually":
		return GroupIndividually
	case "r", "rule":
		return GroupCreateRule
	default:
		return GroupInvalid
	}
}

// GroupAction maps a group-wide choice to the per-field action.
func (g GroupChoice) GroupAction() (Action, bool) {
	switch g {
	case GroupKeepAll:
		return ActionKeepExisting, true
	case GroupUseAll:
		return ActionUseNew, true
	case GroupSkipAll:
		return ActionSkip, true
	default:
		return ActionKeepExisting, false
	}
}

// ConsolePrompter reads replies line by line from a terminal or any
// reader, writing prompts to out.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter wraps a reader/writer pair for interactive use.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(in), out: out}
}

func (p *ConsolePrompter) Prompt(c Conflict, mergeable bool) (string, error) {
	fmt.Fprintf(p.out, "\nConflict in %s (source %s, confidence %.2f)\n", c.Field, c.Source, c.Confidence)
	fmt.Fprintf(p.out, "  existing: %s\n", c.Existing.Text())
	fmt.Fprintf(p.out, "  new:      %s\n", c.New.Text())
	options := "[k]eep / [n]ew / [s]kip"
	if mergeable {
		options += " / [m]erge"
	}
	options += " / [a]lways / [h]elp"
	fmt.Fprintf(p.out, "  recommended: %s\n%s> ", c.Recommended, options)
	return p.readLine()
}

func (p *ConsolePrompter) PromptGroup(prefix string, conflicts []Conflict) (string, error) {
	fmt.Fprintf(p.out, "\n%d similar conflicts in %s* fields:\n", len(conflicts), prefix)
	for _, c := range conflicts {
		fmt.Fprintf(p.out, "  %s: %s -> %s\n", c.Field, c.Existing.Text(), c.New.Text())
	}
	fmt.Fprintf(p.out, "[k]eep all / [n]ew all / [s]kip all / [i]ndividually / create [r]ule> ")
	return p.readLine()
}

func (p *ConsolePrompter) PromptRuleAction(prefix string) (string, error) {
	fmt.Fprintf(p.out, "Action for new %s* rule ([k]eep / [n]ew / [s]kip)> ", prefix)
	return p.readLine()
}

// Help prints the option summary for the single-conflict prompt.
func (p *ConsolePrompter) Help() {
	fmt.Fprintln(p.out, "  k  keep the existing value")
	fmt.Fprintln(p.out, "  n  use the new value")
	fmt.Fprintln(p.out, "  s  skip this field entirely")
	fmt.Fprintln(p.out, "  m  merge both values (when possible)")
	fmt.Fprintln(p.out, "  a  accept the recommended action and remember it for this field and source")
	fmt.Fprintln(p.out, "  h  show this help")
}

func (p *ConsolePrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
