package config

import (
	"errors"
	"fmt"
)

var validStrategies = map[string]struct{}{
	"changelog": {},
	"in_memory": {},
	"selective": {},
	"full_copy": {},
	"disabled":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateConflicts(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		return errors.New("matching.min_confidence must be between 0 and 1")
	}
	if c.Matching.MaxGenres <= 0 {
		return errors.New("matching.max_genres must be positive")
	}
	return nil
}

func (c *Config) validateConflicts() error {
	switch c.Conflicts.Mode {
	case "automatic", "interactive":
	default:
		return fmt.Errorf("conflicts.mode must be \"automatic\" or \"interactive\", got %q", c.Conflicts.Mode)
	}
	switch c.Conflicts.StringMerge {
	case "concat", "prefer_new":
	default:
		return fmt.Errorf("conflicts.string_merge must be \"concat\" or \"prefer_new\", got %q", c.Conflicts.StringMerge)
	}
	if c.Conflicts.BatchOfferThreshold < 2 {
		return errors.New("conflicts.batch_offer_threshold must be at least 2")
	}
	return nil
}

func (c *Config) validateBackup() error {
	if _, ok := validStrategies[c.Backup.Strategy]; !ok {
		return fmt.Errorf("backup.strategy: unknown strategy %q", c.Backup.Strategy)
	}
	if c.Backup.RetentionDays < 1 {
		return errors.New("backup.retention_days must be at least 1")
	}
	if c.Backup.MaxMemoryMB < 1 {
		return errors.New("backup.max_memory_mb must be at least 1")
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.TimeoutSeconds <= 0 {
		return errors.New("sources.timeout_seconds must be positive")
	}
	return nil
}
