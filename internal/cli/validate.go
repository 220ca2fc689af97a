package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/registry"
)

// ValidationSummary is the success payload of the validate command.
type ValidationSummary struct {
	Valid     bool `json:"valid"`
	Functions int  `json:"functions"`
	Harnesses int  `json:"harnesses"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog.json>",
		Short: "Validate a function catalog without running anything",
		Long: `Validate a catalog document against the embedded schema and check its
referential integrity (type ids, callees, contract symbols). Nothing is
built or verified; this is the fast feedback path for front ends.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, err := catalog.Load(path)
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog validation failed", err)
	}

	harnesses := 0
	for _, fn := range cat.Functions {
		if fn.Harness {
			harnesses++
		}
	}
	formatter.VerboseLog("catalog %s: %d functions, %d explicit harnesses", path, len(cat.Functions), harnesses)

	// Harness discovery re-checks contract lowering; a catalog that
	// passes schema checks can still carry a contract expression the
	// builder rejects.
	if _, _, err := registry.Discover(cat, registry.Options{}, nil); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "catalog validation failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationSummary{
			Valid:     true,
			Functions: len(cat.Functions),
			Harnesses: harnesses,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ catalog valid: %d function(s), %d explicit harness(es)\n", len(cat.Functions), harnesses)
	return nil
}
