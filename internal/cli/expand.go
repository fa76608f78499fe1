package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/project"
)

// ExpandOptions holds flags for the expand command.
type ExpandOptions struct {
	*RootOptions
	Modules    []string
	FrameWidth int
}

// ExpandResult is the JSON payload of the expand command.
type ExpandResult struct {
	*project.Expansion
	Source string `json:"source"`
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expand <document>",
		Short: "Print a program after import resolution and virtualization",
		Long: `Expand a single program document and print the rewritten program.

Imported routines appear under their qualified names, unreached routines are
dropped and routines using locals or return values are shown split into
their wrapper and inner halves.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Modules, "module", "m", nil, "module document or directory (repeatable)")
	cmd.Flags().IntVar(&opts.FrameWidth, "frame-width", config.DefaultFrameWidth, "minimum frame width of virtualized routines")

	return cmd
}

func runExpand(opts *ExpandOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	exp, err := project.Expand(path, opts.Modules, opts.FrameWidth, newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return fail(formatter, "expand failed", err)
	}
	formatter.VerboseLog("Compile set: %v", exp.Resolve.CompileSet)

	if formatter.Format == "json" {
		return formatter.Success(ExpandResult{Expansion: exp, Source: exp.Source()})
	}
	fmt.Fprint(formatter.Writer, exp.Source())
	for _, warning := range exp.Warnings {
		fmt.Fprintf(formatter.GetErrWriter(), "warning: %s\n", warning)
	}
	return nil
}
