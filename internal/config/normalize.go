package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTags()
	c.normalizeConflicts()
	c.normalizeBackup()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		c.Paths.BackupDir = defaultBackupDir
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTags() {
	c.Tags.Protected = trimLower(c.Tags.Protected)
	c.Tags.AutoUpdate = trimLower(c.Tags.AutoUpdate)
	c.Tags.Processable = trimLower(c.Tags.Processable)
}

func (c *Config) normalizeConflicts() {
	c.Conflicts.Mode = strings.ToLower(strings.TrimSpace(c.Conflicts.Mode))
	if c.Conflicts.Mode == "" {
		c.Conflicts.Mode = defaultConflictMode
	}
	c.Conflicts.StringMerge = strings.ToLower(strings.TrimSpace(c.Conflicts.StringMerge))
	if c.Conflicts.StringMerge == "" {
		c.Conflicts.StringMerge = defaultStringMerge
	}
	if c.Conflicts.BatchOfferThreshold == 0 {
		c.Conflicts.BatchOfferThreshold = defaultBatchOfferThreshold
	}
}

func (c *Config) normalizeBackup() {
	c.Backup.Strategy = strings.ToLower(strings.TrimSpace(c.Backup.Strategy))
	if c.Backup.Strategy == "" {
		c.Backup.Strategy = defaultBackupStrategy
	}
	c.Backup.CriticalFields = trimLower(c.Backup.CriticalFields)
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = defaultRetentionDays
	}
	if c.Backup.MaxMemoryMB == 0 {
		c.Backup.MaxMemoryMB = defaultMaxMemoryMB
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimLower(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
