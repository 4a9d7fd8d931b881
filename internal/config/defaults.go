package config

const (
	defaultStateDir            = "~/.local/share/retag"
	defaultBackupDir           = "~/.local/share/retag/backups"
	defaultLogDir              = "~/.local/share/retag/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultMinConfidence       = 0.8
	defaultMaxGenres           = 3
	defaultConflictMode        = "automatic"
	defaultStringMerge         = "concat"
	defaultBatchOfferThreshold = 5
	defaultBackupStrategy      = "changelog"
	defaultRetentionDays       = 30
	defaultMaxMemoryMB         = 500
	defaultSourceTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			BackupDir: defaultBackupDir,
			LogDir:    defaultLogDir,
		},
		Tags: Tags{
			Protected:  []string{"comment", "rating", "lyrics"},
			AutoUpdate: []string{"youtube_*", "spotify_popularity", "popularity"},
		},
		Matching: Matching{
			MinConfidence:    defaultMinConfidence,
			MaxGenres:        defaultMaxGenres,
			PopularityFields: []string{"popularity", "popularity_score", "youtube_views", "youtube_likes", "playcount", "listeners"},
			GenreFields:      []string{"genre", "genres"},
			DateFields:       []string{"year", "date", "release_date"},
		},
		Conflicts: Conflicts{
			Mode:                defaultConflictMode,
			StringMerge:         defaultStringMerge,
			BatchOfferThreshold: defaultBatchOfferThreshold,
		},
		Backup: Backup{
			Strategy:       defaultBackupStrategy,
			RetentionDays:  defaultRetentionDays,
			MaxMemoryMB:    defaultMaxMemoryMB,
			CriticalFields: []string{"artist", "title", "album", "year", "genre"},
		},
		Sources: Sources{
			TimeoutSeconds: defaultSourceTimeout,
			FilenameGuess:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
