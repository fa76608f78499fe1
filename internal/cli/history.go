package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/project"
	"github.com/roach88/blockc/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Config string
	Limit  int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "List recorded builds, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "project file or directory (default: search upward for blockc.yaml)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of builds to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config, nil)
	if err != nil {
		return fail(formatter, "loading project", err)
	}
	builds, err := project.History(cmd.Context(), cfg, opts.Limit)
	if err != nil {
		return failCode(formatter, ErrCodeCache, "reading history", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(builds)
	}
	renderHistory(formatter.Writer, builds)
	return nil
}

func renderHistory(w io.Writer, builds []store.BuildRecord) {
	if len(builds) == 0 {
		fmt.Fprintln(w, "No builds recorded")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Built", "Fingerprint", "Targets", "Blocks", "Warnings"})
	for _, b := range builds {
		blocks := 0
		for _, tr := range b.Targets {
			blocks += tr.Blocks
		}
		t.AppendRow(table.Row{
			b.Seq,
			b.BuiltAt.Local().Format(time.DateTime),
			short(b.Fingerprint),
			len(b.Targets),
			blocks,
			len(b.Warnings),
		})
	}
	t.Render()
}

// short abbreviates a fingerprint for display.
func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
