package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/store"
)

// CoverageOptions holds flags for the coverage command.
type CoverageOptions struct {
	*RootOptions
	Database string
	Run      string
}

// NewCoverageCommand creates the coverage command.
func NewCoverageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CoverageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Show the aggregated coverage report of a persisted run",
		Long: `Read the coverage rows a verify run stored and render the aggregated
region report. Without --run the most recent run is used.

Example:
  vex coverage --db vex.db
  vex coverage --db vex.db --run 0198f2a0-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoverage(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id (default: most recent)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCoverage(opts *CoverageOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, runID, err := openRun(cmd.Context(), formatter, opts.Database, opts.Run)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := st.ReadCoverage(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading coverage", err)
	}

	if opts.Format == "json" {
		return report.Encode(formatter.Writer)
	}
	return renderCoverageText(formatter, runID, report)
}

func renderCoverageText(formatter *OutputFormatter, runID string, report *coverage.Report) error {
	w := formatter.Writer
	fmt.Fprintf(w, "coverage for run %s (%d region(s))\n\n", runID, len(report.Regions))

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tSTATUS\tHITS\tSCOPE")
	var covered, partial int
	for _, r := range report.Regions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.Region, r.Status, r.Hits, r.Scope)
		switch r.Status {
		case coverage.StatusCovered:
			covered++
		case coverage.StatusPartial:
			partial++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d covered, %d partial, %d uncovered\n",
		covered, partial, len(report.Regions)-covered-partial)
	return nil
}

// openRun opens the database and resolves the target run id, defaulting
// to the most recent run.
func openRun(ctx context.Context, formatter *OutputFormatter, dbPath, runID string) (*store.Store, string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return nil, "", WrapExitError(ExitCommandError, "opening database", err)
	}

	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			st.Close()
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return nil, "", WrapExitError(ExitCommandError, "listing runs", err)
		}
		if len(runs) == 0 {
			st.Close()
			_ = formatter.Error(ErrCodeNoRun, "database holds no runs", nil)
			return nil, "", NewExitError(ExitCommandError, "database holds no runs")
		}
		return st, runs[0].ID, nil
	}

	if _, err := st.ReadRun(ctx, runID); err != nil {
		st.Close()
		code := ErrCodeStore
		if errors.Is(err, store.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return nil, "", WrapExitError(ExitCommandError, "resolving run", err)
	}
	return st, runID, nil
}
