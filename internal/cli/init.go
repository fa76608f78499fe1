package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/blockc/internal/project"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Dir string
}

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "init <name>",
		Short:         "Create a new project",
		Long:          "Create a starter project with a stage, one sprite and placeholder costumes.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", "", "directory to create the project in (default: ./<name>)")

	return cmd
}

func runInit(opts *InitOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dir := opts.Dir
	if dir == "" {
		dir = name
	}
	files, err := project.Scaffold(dir, filepath.Base(name))
	if err != nil {
		if errors.Is(err, project.ErrExists) {
			return failCode(formatter, ErrCodeExists, "init failed", err)
		}
		return fail(formatter, "init failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(InitResult{Dir: dir, Files: files})
	}
	fmt.Fprintf(formatter.Writer, "✓ Created project %s in %s\n", filepath.Base(name), dir)
	for _, f := range files {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
	fmt.Fprintf(formatter.Writer, "\nRun \"blockc build -c %s\" to compile it.\n", dir)
	return nil
}
