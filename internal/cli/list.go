package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/registry"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Autoharness bool
	Include     []string
	Exclude     []string
	Overrides   string
	Unwind      uint32
	All         bool
}

// HarnessListing is one discovered harness in the list payload.
type HarnessListing struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	Unwind   uint32 `json:"unwind"`
	Timeout  string `json:"timeout"`
	Expected string `json:"expected"`
}

// SkipListing is one rejected autoharness candidate.
type SkipListing struct {
	Function string `json:"function"`
	Reason   string `json:"reason"`
}

// ListResult is the success payload of the list command.
type ListResult struct {
	Explicit    int              `json:"explicit"`
	Contract    int              `json:"contract"`
	Synthesized int              `json:"synthesized"`
	Harnesses   []HarnessListing `json:"harnesses"`
	Skips       []SkipListing    `json:"skips,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <catalog.json>",
		Short: "List the harnesses a run would schedule",
		Long: `Discover harnesses from a catalog and print them without verifying
anything: explicit harnesses, contract check harnesses, and - with
--autoharness - synthesized ones. --all also lists the functions
autoharness considered and skipped, with the reason for each.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Autoharness, "autoharness", false, "synthesize harnesses for eligible functions")
	cmd.Flags().StringSliceVar(&opts.Include, "include", nil, "restrict autoharness to matching function names")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "drop autoharness candidates with matching names")
	cmd.Flags().StringVar(&opts.Overrides, "overrides", "", "per-harness override file (YAML)")
	cmd.Flags().Uint32Var(&opts.Unwind, "unwind", 0, "override every harness's unwind bound")
	cmd.Flags().BoolVar(&opts.All, "all", false, "also list skipped autoharness candidates")

	return cmd
}

func runList(opts *ListOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cat, ov, err := loadInputs(formatter, path, opts.Overrides)
	if err != nil {
		return err
	}

	harnesses, skips, err := registry.Discover(cat, registry.Options{
		Autoharness: opts.Autoharness,
		Include:     opts.Include,
		Exclude:     opts.Exclude,
		Unwind:      opts.Unwind,
	}, ov)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "harness discovery failed", err)
	}

	explicit, contract, synthesized := registry.Summary(harnesses)
	result := ListResult{Explicit: explicit, Contract: contract, Synthesized: synthesized}
	for _, h := range harnesses {
		result.Harnesses = append(result.Harnesses, HarnessListing{
			Name:     h.Name,
			Kind:     string(h.Kind),
			Target:   h.Target,
			Unwind:   h.Config.Unwind,
			Timeout:  h.Config.Timeout.String(),
			Expected: string(h.Config.Expected),
		})
	}
	if opts.All {
		for _, sk := range skips {
			result.Skips = append(result.Skips, SkipListing{Function: sk.Function, Reason: string(sk.Reason)})
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return renderListText(formatter, result)
}

func renderListText(formatter *OutputFormatter, result ListResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "%d harness(es): %d explicit, %d contract, %d synthesized\n\n",
		len(result.Harnesses), result.Explicit, result.Contract, result.Synthesized)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tTARGET\tUNWIND\tTIMEOUT\tEXPECTED")
	for _, h := range result.Harnesses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", h.Name, h.Kind, h.Target, h.Unwind, h.Timeout, h.Expected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Skips) > 0 {
		fmt.Fprintf(w, "\n%d function(s) skipped by autoharness:\n", len(result.Skips))
		tw = tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FUNCTION\tREASON")
		for _, sk := range result.Skips {
			fmt.Fprintf(tw, "%s\t%s\n", sk.Function, sk.Reason)
		}
		return tw.Flush()
	}
	return nil
}

// loadInputs resolves the catalog and optional override file shared by
// list, verify, and playback.
func loadInputs(formatter *OutputFormatter, catalogPath, overridesPath string) (*catalog.Catalog, *registry.Overrides, error) {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		code := ErrCodeGeneric
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "loading catalog", err)
	}

	var ov *registry.Overrides
	if overridesPath != "" {
		ov, err = registry.LoadOverrides(overridesPath)
		if err != nil {
			_ = formatter.Error(ErrCodeOverrides, err.Error(), nil)
			return nil, nil, WrapExitError(ExitCommandError, "loading overrides", err)
		}
	}
	return cat, ov, nil
}
