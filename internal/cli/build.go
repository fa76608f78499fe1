package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/project"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Config  string
	NoCache bool
	Watch   bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the project to an .sb3 archive",
		Long: `Compile every target of the project and write <name>.sb3 to the output
directory.

Values from blockc.yaml can be overridden with BLOCKC_ environment variables
(BLOCKC_PROJECT__OUTPUT=dist) or with the flags below.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "project file or directory (default: search upward for blockc.yaml)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "hash every asset and skip the build history")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "rebuild whenever a source changes (stop with Ctrl-C)")
	addProjectFlags(cmd)

	return cmd
}

// addProjectFlags registers the flags that override project settings.
// Their names are the ones config.Load maps onto config keys.
func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output directory")
	cmd.Flags().String("cache", "", "build cache database")
	cmd.Flags().Bool("debug", false, "also write project.json")
	cmd.Flags().Int("frame-width", config.DefaultFrameWidth, "minimum frame width of virtualized routines")
	cmd.Flags().String("extensions-dir", "", "directory of CUE extension definitions")
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if opts.Watch {
		return runWatch(opts, cmd, formatter)
	}

	cfg, err := config.Load(opts.Config, cmd.Flags())
	if err != nil {
		return fail(formatter, "loading project", err)
	}
	formatter.VerboseLog("Loaded %s (%d sprite(s))", cfg.File, len(cfg.Sprites))

	res, err := project.Build(cmd.Context(), cfg, project.Options{
		NoCache: opts.NoCache,
		Logger:  newLogger(opts.RootOptions, formatter.GetErrWriter()),
	})
	if err != nil {
		return fail(formatter, "build failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}

	renderBuild(formatter.Writer, res)
	return nil
}

// runWatch builds until the command's context is canceled. Each build is
// reported on its own; in JSON mode that is one response per line.
func runWatch(opts *BuildOptions, cmd *cobra.Command, formatter *OutputFormatter) error {
	load := func() (*config.Config, error) { return config.Load(opts.Config, cmd.Flags()) }
	popts := project.Options{
		NoCache: opts.NoCache,
		Logger:  newLogger(opts.RootOptions, formatter.GetErrWriter()),
	}

	err := project.Watch(cmd.Context(), load, popts, func(res *project.Result, err error) {
		switch {
		case err != nil:
			_ = fail(formatter, "build failed", err)
		case formatter.Format == "json":
			_ = formatter.Success(res)
		default:
			renderBuild(formatter.Writer, res)
		}
	})
	if err != nil {
		return fail(formatter, "loading project", err)
	}
	return nil
}

func renderBuild(w io.Writer, res *project.Result) {
	blocks := 0
	for _, t := range res.Targets {
		blocks += t.Blocks
	}
	fmt.Fprintf(w, "✓ Built %s: %d target(s), %d block(s)\n", res.Archive, len(res.Targets), blocks)
	if res.ProjectJSON != "" {
		fmt.Fprintf(w, "  Wrote %s\n", res.ProjectJSON)
	}
	if res.Unchanged {
		fmt.Fprintln(w, "  Unchanged since the previous build")
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings:\n")
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
	}
}
