package backup

import (
	"fmt"

	"retag/internal/services"
)

// Strategy selects how a file's previous state is preserved before a
// write.
type Strategy string

const (
	// StrategyChangelog records old and new fields in the changelog
	// database. No file copies are made.
	StrategyChangelog Strategy = "changelog"
	// StrategyInMemory holds the whole file in memory until commit,
	// bounded by the configured cap.
	StrategyInMemory Strategy = "in_memory"
	// StrategySelective snapshots only the critical fields.
	StrategySelective Strategy = "selective"
	// StrategyFullCopy copies the file into the backup directory.
	StrategyFullCopy Strategy = "full_copy"
	// StrategyDisabled performs no backup at all.
	StrategyDisabled Strategy = "disabled"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyChangelog, StrategyInMemory, StrategySelective, StrategyFullCopy, StrategyDisabled:
		return Strategy(name), nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "backup", "parse strategy", fmt.Sprintf("unknown strategy %q", name), nil)
	}
}
