package main

import (
	"log/slog"
	"strings"
	"sync"

	"retag/internal/backup"
	"retag/internal/changelog"
	"retag/internal/config"
	"retag/internal/conflict"
	"retag/internal/logging"
	"retag/internal/prefstore"
	"retag/internal/tagstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

// appServices bundles the stores a command needs. Close releases the
// changelog database.
type appServices struct {
	cfg     *config.Config
	logger  *slog.Logger
	tags    *tagstore.Store
	log     *changelog.Store
	backups *backup.Manager
	prefs   *prefstore.Store
}

func (s *appServices) Close() {
	if s.log != nil {
		_ = s.log.Close()
	}
}

func (s *appServices) newResolver() *conflict.Resolver {
	return conflict.NewResolver(conflict.NewPolicy(s.cfg), s.prefs, s.logger)
}

func (c *commandContext) openServices() (*appServices, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.ensureLogger()

	tags := tagstore.New(logging.NewComponentLogger(logger, "tagstore"))
	log, err := changelog.Open(cfg.ChangelogDBPath())
	if err != nil {
		return nil, err
	}
	backups, err := backup.NewManager(cfg, log, tags, logging.NewComponentLogger(logger, "backup"))
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	prefs, err := prefstore.Open(cfg.PreferencesPath(), cfg.RulesPath(), logging.NewComponentLogger(logger, "prefstore"))
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	return &appServices{
		cfg:     cfg,
		logger:  logger,
		tags:    tags,
		log:     log,
		backups: backups,
		prefs:   prefs,
	}, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
