package config

import (
	"fmt"
	"os"
	"strings"
)

// Validation error codes (C100-C199)
const (
	ErrProjectName     = "C101" // project name empty or not a file name
	ErrStagePath       = "C102" // stage document missing
	ErrSpritePath      = "C103" // sprite document missing
	ErrDuplicateTarget = "C104" // two targets share a name
	ErrFrameWidth      = "C105" // frame width must be positive
	ErrExtension       = "C106" // empty extension id
	ErrPackagePath     = "C107" // package path missing
)

// ValidationError is one problem with a loaded project file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one project file.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid project file:\n  " + strings.Join(msgs, "\n  ")
}

// Validate checks a loaded config. Paths are expected to be resolved
// already. Returns all errors found (does not fail-fast).
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	// C101
	switch {
	case strings.TrimSpace(c.Project.Name) == "":
		add(ErrProjectName, "project.name", "name is required")
	case strings.ContainsAny(c.Project.Name, `/\`):
		add(ErrProjectName, "project.name", "%q must not contain path separators", c.Project.Name)
	}

	// C102, C103
	if !isFile(c.Stage.Path) {
		add(ErrStagePath, "stage.path", "stage document %q not found", c.Stage.Path)
	}
	for i, s := range c.Sprites {
		field := fmt.Sprintf("sprites[%d].path", i)
		if s.Path == "" {
			add(ErrSpritePath, field, "path is required")
		} else if !isFile(s.Path) {
			add(ErrSpritePath, field, "sprite document %q not found", s.Path)
		}
	}

	// C104: names must be unique across the stage and all sprites
	seen := map[string]string{c.Stage.Name: "stage.name"}
	for i, s := range c.Sprites {
		field := fmt.Sprintf("sprites[%d].name", i)
		if s.Name == "" {
			continue
		}
		if prev, ok := seen[s.Name]; ok {
			add(ErrDuplicateTarget, field, "%q already used by %s", s.Name, prev)
			continue
		}
		seen[s.Name] = field
	}

	// C105
	if c.Project.FrameWidth < 1 {
		add(ErrFrameWidth, "project.frame_width", "must be at least 1, got %d", c.Project.FrameWidth)
	}

	// C106
	for i, ext := range c.Project.Extensions {
		if strings.TrimSpace(ext) == "" {
			add(ErrExtension, fmt.Sprintf("project.extensions[%d]", i), "extension id is empty")
		}
	}

	// C107
	for i, p := range c.Project.Packages {
		if _, err := os.Stat(p); err != nil {
			add(ErrPackagePath, fmt.Sprintf("project.packages[%d]", i), "%q not found", p)
		}
	}

	return errs
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
