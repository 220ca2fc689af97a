package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vex/internal/compiler"
	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/playback"
	"github.com/roach88/vex/internal/registry"
	"github.com/roach88/vex/internal/store"
)

// PlaybackOptions holds flags for the playback command.
type PlaybackOptions struct {
	*RootOptions
	Database    string
	Run         string
	Out         string
	Autoharness bool
	Include     []string
	Exclude     []string
	Overrides   string
	Unwind      uint32
}

// PlaybackResult is the success payload of the playback command.
type PlaybackResult struct {
	Harness  string   `json:"harness"`
	Property string   `json:"property"`
	Test     string   `json:"test"`
	Written  []string `json:"written"`
}

// NewPlaybackCommand creates the playback command.
func NewPlaybackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlaybackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "playback <catalog.json> <harness>",
		Short: "Turn a stored counterexample into a replayable Go test",
		Long: `Rebuild a harness's IR unit from the catalog, look up the
counterexample a verify run stored for it, and write a Go test that
deterministically re-triggers the violation. The substitution table is
validated against the rebuilt unit before anything is written; the
replayed execution must violate the same property the run reported.

Discovery flags must match the original verify invocation so the
rebuilt unit carries the same injection points.

Example:
  vex playback --db vex.db --out ./playback catalog.json check_divide`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlayback(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run id (default: most recent)")
	cmd.Flags().StringVar(&opts.Out, "out", "playback", "directory for the generated test")
	cmd.Flags().BoolVar(&opts.Autoharness, "autoharness", false, "synthesize harnesses for eligible functions")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "restrict autoharness to matching function names")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "drop autoharness candidates with matching names")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "per-harness override file (YAML)")
	cmd.Flags().Uint32Var(&opts.Unwind, "unwind", 0, "override every harness's unwind bound")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPlayback(opts *PlaybackOptions, catalogPath, harness string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, ov, err := loadInputs(formatter, catalogPath, opts.Overrides)
	if err != nil {
		return err
	}

	harnesses, _, err := registry.Discover(cat, registry.Options{
		Autoharness: opts.Autoharness,
		Include:     opts.Include,
		Exclude:     opts.Exclude,
		Unwind:      opts.Unwind,
	}, ov)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "harness discovery failed", err)
	}
	var target *ir.Harness
	for i := range harnesses {
		if harnesses[i].Name == harness {
			target = &harnesses[i]
			break
		}
	}
	if target == nil {
		msg := fmt.Sprintf("harness %q not found in catalog", harness)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, runID, err := openRun(cmd.Context(), formatter, opts.Database, opts.Run)
	if err != nil {
		return err
	}
	defer st.Close()

	property, cex, err := st.ReadCounterexample(cmd.Context(), runID, harness)
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, store.ErrNotFound) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "no counterexample stored", err)
	}
	formatter.VerboseLog("counterexample for %s in run %s: %d assignment(s), property %s",
		harness, runID, len(cex.Assignments), property)

	unit, err := compiler.Build(*target, cat)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "rebuilding unit", err)
	}
	unit, err = compiler.Instrument(unit)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "rebuilding unit", err)
	}

	violated := propertyByID(unit, property)
	if violated == nil {
		msg := fmt.Sprintf("stored property %q does not exist in the rebuilt unit; discovery flags may differ from the original run", property)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	pt, err := synthesizeVerified(unit, cex, violated)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "counterexample does not replay", err)
	}

	written, err := writePlayback(opts.Out, unit, pt)
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "writing playback test", err)
	}

	result := PlaybackResult{
		Harness:  harness,
		Property: property,
		Test:     pt.Name,
		Written:  written,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s replays %s\n", pt.Name, property)
	if len(written) == 0 {
		fmt.Fprintln(formatter.Writer, "artifacts already up to date")
	}
	for _, p := range written {
		fmt.Fprintf(formatter.Writer, "wrote %s\n", p)
	}
	return nil
}

func propertyByID(unit *ir.Unit, id string) *ir.PropertyRef {
	for i := range unit.Instrs {
		if p := unit.Instrs[i].Property; p != nil && p.ID == id {
			return p
		}
	}
	return nil
}

// synthesizeVerified builds the playback test and replays it through
// the evaluator before anything touches disk. A table that does not
// re-trigger the stored property is an error, never a stale artifact.
func synthesizeVerified(unit *ir.Unit, cex *ir.Counterexample, violated *ir.PropertyRef) (*playback.Test, error) {
	pt, err := playback.Synthesize(unit, cex, violated)
	if err != nil {
		return nil, err
	}
	if err := pt.Verify(unit); err != nil {
		return nil, err
	}
	return pt, nil
}
