package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"retag/internal/conflict"
	"retag/internal/enrich"
	"retag/internal/sources"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun      bool
		interactive bool
		automatic   bool
		libraryPath string
	)

	cmd := &cobra.Command{
		Use:   "enrich <path>...",
		Short: "Enrich audio files with candidate metadata",
		Long: "Reads current tags, gathers candidates from the configured sources, " +
			"resolves conflicts, and writes the result under a backup transaction.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			srcs, err := buildSources(svc, libraryPath)
			if err != nil {
				return err
			}
			if len(srcs) == 0 {
				return fmt.Errorf("no metadata sources configured; pass --library or enable filename_guess")
			}

			opts := enrich.Options{DryRun: dryRun}
			wantInteractive := interactive || (!automatic && svc.cfg.Conflicts.Mode == "interactive")
			if wantInteractive {
				if terminalInput() {
					opts.Interactive = true
					opts.Prompter = conflict.NewConsolePrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "stdin is not a terminal; resolving conflicts automatically")
				}
			}

			pipeline := enrich.New(svc.cfg, svc.tags, svc.backups, svc.newResolver(), srcs, svc.logger)
			summary, err := pipeline.Run(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Processed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report changes without writing any file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for conflicting fields")
	cmd.Flags().BoolVar(&automatic, "auto", false, "Resolve conflicts without prompting")
	cmd.Flags().StringVar(&libraryPath, "library", "", "Path to a JSON metadata library used as a candidate source")
	cmd.MarkFlagsMutuallyExclusive("interactive", "auto")
	return cmd
}

func buildSources(svc *appServices, libraryPath string) ([]sources.Source, error) {
	var srcs []sources.Source
	if path := strings.TrimSpace(libraryPath); path != "" {
		library, err := sources.LoadStaticSource("library", 0.9, path)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, library)
	}
	if svc.cfg.Sources.FilenameGuess {
		srcs = append(srcs, sources.PathSource{})
	}
	return srcs, nil
}

func terminalInput() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printSummary(cmd *cobra.Command, summary *enrich.Summary) {
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		detail := strings.Join(item.Changed, ", ")
		if item.Err != nil {
			detail = item.Err.Error()
		} else if detail == "" && len(item.Warnings) > 0 {
			detail = item.Warnings[0]
		}
		rows = append(rows, []string{item.Path, string(item.Status), fmt.Sprintf("%d", item.Conflicts), detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"File", "Status", "Conflicts", "Details"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))

	fmt.Fprintf(out, "\nProcessed %d: %d enriched, %d unchanged, %d skipped, %d failed",
		summary.Processed, summary.Enriched, summary.Unchanged, summary.Skipped, summary.Failed)
	if summary.DryRun > 0 {
		fmt.Fprintf(out, " (%d dry-run)", summary.DryRun)
	}
	fmt.Fprintln(out)

	session := summary.Session
	if session.Total > 0 {
		fmt.Fprintf(out, "Conflicts: %d total, %d automatic, %d interactive, %d via rules (efficiency %.0f%%)\n",
			session.Total, session.ResolvedAutomatic, session.ResolvedInteractive,
			session.BatchRulesApplied, session.Efficiency()*100)
		if len(session.BySource) > 0 {
			names := make([]string, 0, len(session.BySource))
			for name := range session.BySource {
				names = append(names, name)
			}
			sort.Strings(names)
			parts := make([]string, 0, len(names))
			for _, name := range names {
				parts = append(parts, fmt.Sprintf("%s %d", name, session.BySource[name]))
			}
			fmt.Fprintf(out, "Conflicts by source: %s\n", strings.Join(parts, ", "))
		}
	}
}
