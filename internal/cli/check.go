package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/project"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Config string
}

// CheckReport is the JSON payload of the check command.
type CheckReport struct {
	Targets  []*project.Analysis `json:"targets"`
	Warnings []string            `json:"warnings"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve and virtualize every target without writing output",
		Long: `Check the project without building it.

For every target, check lists the routines that will be compiled, the
imported modules, the routines moved onto the shared memory frames and any
recursive call groups.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "project file or directory (default: search upward for blockc.yaml)")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config, nil)
	if err != nil {
		return fail(formatter, "loading project", err)
	}
	w, err := project.Load(cfg)
	if err != nil {
		return fail(formatter, "loading sources", err)
	}
	analyses, err := w.Analyze(cmd.Context(), newLogger(opts.RootOptions, formatter.GetErrWriter()))
	if err != nil {
		return fail(formatter, "check failed", err)
	}

	report := CheckReport{Targets: analyses, Warnings: w.Warnings}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	renderCheck(formatter.Writer, report)
	return nil
}

func renderCheck(w io.Writer, report CheckReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Target", "Routines", "Modules", "Virtualized", "Frame"})

	var recursion []string
	for _, a := range report.Targets {
		name := a.Name
		if a.Stage {
			name += " (stage)"
		}
		frame := "-"
		if a.Virtualize.Injected {
			frame = fmt.Sprint(a.Virtualize.FrameWidth)
		}
		t.AppendRow(table.Row{
			name,
			list(a.Resolve.CompileSet),
			list(a.Resolve.Modules),
			list(a.Virtualize.Routines),
			frame,
		})
		for _, g := range a.Resolve.Recursion {
			recursion = append(recursion, fmt.Sprintf("%s: %s", a.Name, strings.Join(g.Path, " → ")))
		}
	}
	t.Render()

	if len(recursion) > 0 {
		fmt.Fprintln(w, "\nRecursive routines:")
		for _, r := range recursion {
			fmt.Fprintf(w, "  %s\n", r)
		}
	}
	if len(report.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		for _, warning := range report.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\n✓ %d target(s) OK\n", len(report.Targets))
}

// list renders names one per line inside a table cell.
func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "\n")
}
