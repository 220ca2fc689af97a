package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/compiler"
	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/oracle"
	"github.com/roach88/vex/internal/playback"
	"github.com/roach88/vex/internal/registry"
	"github.com/roach88/vex/internal/session"
	"github.com/roach88/vex/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Engine      string
	EngineArgs  []string
	Database    string
	Jobs        int
	Unwind      uint32
	Timeout     time.Duration
	Autoharness bool
	Include     []string
	Exclude     []string
	Overrides   string
	PlaybackDir string

	// Oracle overrides the engine subprocess driver (for testing).
	Oracle oracle.Oracle

	// RunIDs overrides the run-id generator (for testing).
	RunIDs session.RunIDGenerator
}

// HarnessOutcome is one harness's line in the verify payload.
type HarnessOutcome struct {
	Harness     string `json:"harness"`
	Kind        string `json:"kind"`
	Outcome     string `json:"outcome"`
	Expected    string `json:"expected"`
	Matched     bool   `json:"matched"`
	Violated    string `json:"violated,omitempty"`
	Unsupported int    `json:"unsupported,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Runtime     string `json:"runtime"`
	Error       string `json:"error,omitempty"`
}

// VerifyResult is the success payload of the verify command.
type VerifyResult struct {
	RunID        string           `json:"run_id"`
	Harnesses    []HarnessOutcome `json:"harnesses"`
	Skips        []SkipListing    `json:"skips,omitempty"`
	Mismatched   int              `json:"mismatched"`
	Inconclusive int              `json:"inconclusive"`
	Playback     []string         `json:"playback,omitempty"`
	Duration     string           `json:"duration"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return newVerifyCommand(&VerifyOptions{RootOptions: rootOpts})
}

func newVerifyCommand(opts *VerifyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <catalog.json>",
		Short: "Run every discovered harness through the engine",
		Long: `Discover harnesses from a catalog, build and instrument an IR unit per
harness, verify each through the engine subprocess, and print the batch
summary. Failures with counterexamples can be turned into replayable
Go tests with --playback-dir.

Example:
  vex verify --engine ./cbv catalog.json
  vex verify --engine ./cbv --db vex.db --autoharness --jobs 8 catalog.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Engine, "engine", "", "path to the verification engine binary")
	cmd.Flags().StringSliceVar(&opts.EngineArgs, "engine-arg", nil, "extra argument passed to the engine (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist the run to this SQLite database")
	cmd.Flags().IntVar(&opts.Jobs, "jobs", session.DefaultParallelism, "max concurrent harness runs")
	cmd.Flags().Uint32Var(&opts.Unwind, "unwind", 0, "override every harness's unwind bound")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "override every harness's engine timeout")
	cmd.Flags().BoolVar(&opts.Autoharness, "autoharness", false, "synthesize harnesses for eligible functions")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "restrict autoharness to matching function names")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "drop autoharness candidates with matching names")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "per-harness override file (YAML)")
	cmd.Flags().StringVar(&opts.PlaybackDir, "playback-dir", "", "write playback tests for failures into this directory")

	return cmd
}

func runVerify(opts *VerifyOptions, catalogPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{Level: logLevel}))

	cat, ov, err := loadInputs(formatter, catalogPath, opts.Overrides)
	if err != nil {
		return err
	}

	orc := opts.Oracle
	if orc == nil {
		if opts.Engine == "" {
			_ = formatter.Error(ErrCodeGeneric, "no engine binary given (--engine)", nil)
			return NewExitError(ExitCommandError, "no engine binary given")
		}
		orc = &oracle.Driver{Binary: opts.Engine, Args: opts.EngineArgs, Logger: logger}
	}

	discovery := registry.Options{
		Autoharness: opts.Autoharness,
		Include:     opts.Include,
		Exclude:     opts.Exclude,
		Unwind:      opts.Unwind,
		Timeout:     opts.Timeout,
	}
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithParallelism(opts.Jobs),
		session.WithDiscovery(discovery, ov),
		session.WithCatalogPath(catalogPath),
	}
	if opts.RunIDs != nil {
		sessOpts = append(sessOpts, session.WithRunIDs(opts.RunIDs))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "opening database", err)
		}
		defer st.Close()
		sessOpts = append(sessOpts, session.WithStore(st))
	}

	sum, err := session.New(cat, orc, sessOpts...).Run(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeRun, err.Error(), nil)
		return WrapExitError(ExitCommandError, "pipeline run failed", err)
	}

	result := summarize(sum)
	if opts.PlaybackDir != "" {
		written, err := emitPlaybackTests(opts.PlaybackDir, cat, sum)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing playback tests", err)
		}
		result.Playback = written
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if err := renderVerifyText(formatter, result); err != nil {
		return err
	}

	if !sum.Ok() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d mismatched, %d inconclusive", result.Mismatched, result.Inconclusive))
	}
	return nil
}

func summarize(sum *session.Summary) VerifyResult {
	result := VerifyResult{
		RunID:        sum.RunID,
		Mismatched:   len(sum.Mismatched()),
		Inconclusive: sum.Inconclusive(),
		Duration:     formatRuntime(sum.Duration),
	}
	for _, r := range sum.Reports {
		out := HarnessOutcome{
			Harness:     r.Harness.Name,
			Kind:        string(r.Harness.Kind),
			Outcome:     string(r.Result.Outcome),
			Expected:    string(r.Harness.Config.Expected),
			Matched:     r.Matched(),
			Unsupported: len(r.Result.Unsupported),
			Diagnostics: r.Result.Diagnostics,
			Runtime:     formatRuntime(r.Result.Runtime),
		}
		if r.Result.Violated != nil {
			out.Violated = r.Result.Violated.ID
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		result.Harnesses = append(result.Harnesses, out)
	}
	for _, sk := range sum.Skips {
		result.Skips = append(result.Skips, SkipListing{Function: sk.Function, Reason: string(sk.Reason)})
	}
	return result
}

func renderVerifyText(formatter *OutputFormatter, result VerifyResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "run %s\n\n", result.RunID)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HARNESS\tKIND\tOUTCOME\tEXPECTED\tMATCHED\tRUNTIME")
	for _, h := range result.Harnesses {
		matched := "yes"
		if !h.Matched {
			matched = "NO"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", h.Harness, h.Kind, h.Outcome, h.Expected, matched, h.Runtime)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, h := range result.Harnesses {
		if h.Violated != "" {
			fmt.Fprintf(w, "\n%s: violated %s", h.Harness, h.Violated)
			if h.Error != "" {
				fmt.Fprintf(w, " (counterexample withheld: %s)", h.Error)
			}
			fmt.Fprintln(w)
		}
		if h.Diagnostics != "" && h.Outcome != string(ir.OutcomeFailure) {
			fmt.Fprintf(w, "\n%s: %s\n", h.Harness, h.Diagnostics)
		}
	}

	if len(result.Skips) > 0 {
		fmt.Fprintf(w, "\n%d autoharness candidate(s) skipped\n", len(result.Skips))
	}
	for _, p := range result.Playback {
		fmt.Fprintf(w, "playback test written: %s\n", p)
	}
	fmt.Fprintf(w, "\n%d harness(es), %d mismatched, %d inconclusive in %s\n",
		len(result.Harnesses), result.Mismatched, result.Inconclusive, result.Duration)
	return nil
}

// emitPlaybackTests turns every failure that carries a counterexample
// into a playback test under dir. An artifact whose content already
// exists on disk is left alone, so re-running verify never churns
// generated files.
func emitPlaybackTests(dir string, cat *catalog.Catalog, sum *session.Summary) ([]string, error) {
	var written []string
	for _, r := range sum.Reports {
		if r.Result.Outcome != ir.OutcomeFailure || r.Result.Counterexample == nil || r.Result.Violated == nil {
			continue
		}
		unit, err := compiler.Build(r.Harness, cat)
		if err != nil {
			return written, fmt.Errorf("rebuilding %s: %w", r.Harness.Name, err)
		}
		unit, err = compiler.Instrument(unit)
		if err != nil {
			return written, fmt.Errorf("rebuilding %s: %w", r.Harness.Name, err)
		}
		pt, err := playback.Synthesize(unit, r.Result.Counterexample, r.Result.Violated)
		if err != nil {
			return written, fmt.Errorf("synthesizing playback for %s: %w", r.Harness.Name, err)
		}
		paths, err := writePlayback(dir, unit, pt)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	return written, nil
}

func writePlayback(dir string, unit *ir.Unit, pt *playback.Test) ([]string, error) {
	arts, err := pt.Emit(unit, filepath.Base(dir))
	if err != nil {
		return nil, err
	}
	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, arts.SourcePath), arts.Source},
		{filepath.Join(dir, arts.UnitPath), arts.Unit},
	}
	var written []string
	for _, f := range files {
		if existing, err := os.ReadFile(f.path); err == nil && string(existing) == string(f.data) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}

func formatRuntime(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
