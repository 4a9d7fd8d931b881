package enrich

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"retag/internal/aggregate"
	"retag/internal/backup"
	"retag/internal/config"
	"retag/internal/conflict"
	"retag/internal/logging"
	"retag/internal/metadata"
	"retag/internal/services"
	"retag/internal/sources"
	"retag/internal/tagstore"
)

// Options control one enrichment run.
type Options struct {
	DryRun      bool
	Interactive bool
	Prompter    conflict.Prompter
}

// Pipeline runs the enrichment flow for a set of files: read current
// fields, gather candidates, resolve conflicts, and write through a
// backup transaction.
type Pipeline struct {
	cfg      *config.Config
	policy   conflict.Policy
	tags     *tagstore.Store
	backups  *backup.Manager
	resolver *conflict.Resolver
	srcs     []sources.Source
	logger   *slog.Logger
}

// New assembles a pipeline. The resolver keeps session statistics for
// the lifetime of the pipeline.
func New(cfg *config.Config, tags *tagstore.Store, backups *backup.Manager, resolver *conflict.Resolver, srcs []sources.Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		policy:   conflict.NewPolicy(cfg),
		tags:     tags,
		backups:  backups,
		resolver: resolver,
		srcs:     srcs,
		logger:   logger,
	}
}

// Run processes every path, expanding directories into their audio
// files. One file's failure never stops the rest.
func (p *Pipeline) Run(ctx context.Context, paths []string, opts Options) (*Summary, error) {
	files, err := expandPaths(paths)
	if err != nil {
		return nil, err
	}
	summary := &Summary{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		item := p.processFile(ctx, file, opts)
		summary.add(item)
		p.logItem(item)
	}
	summary.Session = p.resolver.Session()
	return summary, nil
}

func (p *Pipeline) logItem(item ItemResult) {
	attrs := []slog.Attr{
		logging.String(logging.FieldResource, item.Path),
		logging.String("status", string(item.Status)),
	}
	if item.Err != nil {
		attrs = append(attrs, logging.Error(item.Err))
		p.logger.LogAttrs(context.Background(), slog.LevelWarn, "file not enriched", attrs...)
		return
	}
	if len(item.Changed) > 0 {
		attrs = append(attrs, logging.Any("changed", item.Changed))
	}
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, "file processed", attrs...)
}

func (p *Pipeline) processFile(ctx context.Context, path string, opts Options) ItemResult {
	ctx = services.WithResource(ctx, path)
	item := ItemResult{Path: path}

	current, err := p.tags.ReadFields(path)
	if err != nil {
		item.Status = StatusFailed
		item.Err = err
		return item
	}

	query := sources.Query{
		Artist: current[metadata.FieldArtist].Text(),
		Title:  current[metadata.FieldTitle].Text(),
		Album:  current[metadata.FieldAlbum].Text(),
		Path:   path,
	}
	timeout := time.Duration(p.cfg.Sources.TimeoutSeconds) * time.Second
	results := sources.QueryAll(ctx, p.srcs, query, timeout, logging.WithContext(ctx, p.logger))
	if len(results) == 0 {
		item.Status = StatusSkipped
		item.Warnings = append(item.Warnings, "no candidate metadata from any source")
		return item
	}

	merged, ok := aggregate.Merge(results, aggregate.Options{
		MinConfidence:    p.cfg.Matching.MinConfidence,
		MaxGenres:        p.cfg.Matching.MaxGenres,
		PopularityFields: p.cfg.Matching.PopularityFields,
	})
	if !ok {
		item.Status = StatusSkipped
		item.Warnings = append(item.Warnings, "no usable candidate after aggregation")
		return item
	}

	conflicts := conflict.Detect(current, merged.Fields, merged.Confidence, merged.PrimarySource, p.policy)
	item.Conflicts = len(conflicts)

	var resolutions map[string]conflict.Resolution
	if opts.Interactive && opts.Prompter != nil {
		resolutions = p.resolver.ResolveInteractive(ctx, conflicts, opts.Prompter)
	} else {
		resolutions = p.resolver.ResolveAutomatic(ctx, conflicts)
	}

	final := conflict.Apply(current, resolutions)
	p.fillNewFields(final, current, merged)

	item.Changed = current.Changed(final)
	if len(item.Changed) == 0 {
		item.Status = StatusUnchanged
		return item
	}

	if opts.DryRun {
		item.Status = StatusDryRun
		return item
	}
	if !tagstore.CanWrite(path) {
		item.Status = StatusSkipped
		item.Warnings = append(item.Warnings, "container does not support writes")
		return item
	}

	tx, err := p.backups.Begin(ctx, path)
	if err != nil {
		if p.cfg.Backup.Strict {
			item.Status = StatusFailed
			item.Err = err
			return item
		}
		item.Warnings = append(item.Warnings, "proceeding without backup: "+err.Error())
		tx = nil
	}

	if err := p.tags.WriteFields(path, final); err != nil {
		if tx != nil {
			if rbErr := p.backups.Rollback(ctx, path); rbErr != nil {
				item.Warnings = append(item.Warnings, "rollback failed: "+rbErr.Error())
			}
		}
		item.Status = StatusFailed
		item.Err = err
		return item
	}

	if tx != nil {
		if err := p.backups.Finalize(ctx, tx, final); err != nil {
			item.Warnings = append(item.Warnings, "finalize failed: "+err.Error())
		}
		if err := p.backups.Commit(ctx, path); err != nil {
			item.Warnings = append(item.Warnings, "commit failed: "+err.Error())
		}
	}
	item.Status = StatusEnriched
	return item
}

// fillNewFields copies candidate fields that never conflicted because
// the file had nothing there. Protected and unprocessable fields stay
// untouched even when empty.
func (p *Pipeline) fillNewFields(final, current metadata.Fields, merged aggregate.Merged) {
	for name, value := range merged.Fields {
		if value.IsEmpty() {
			continue
		}
		if !p.policy.IsProcessable(name) || p.policy.IsProtected(name) {
			continue
		}
		existing, ok := current[name]
		if ok && existing.Text() != "" {
			continue
		}
		final[name] = value
	}
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, path := range paths {
		// Absolute paths keep changelog resources stable regardless of
		// the directory enrich was invoked from.
		path, err := filepath.Abs(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "enrich", "expand paths", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "enrich", "expand paths", path, err)
		}
		if !info.IsDir() {
			if tagstore.IsAudioFile(path) {
				if _, dup := seen[path]; !dup {
					seen[path] = struct{}{}
					files = append(files, path)
				}
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !tagstore.IsAudioFile(p) {
				return nil
			}
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, services.Wrap(services.ErrSource, "enrich", "scan directory", path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
