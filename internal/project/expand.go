package project

import (
	"fmt"
	"log/slog"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/source"
)

// Expansion is a single document after resolution and virtualization.
type Expansion struct {
	*Analysis
	Warnings []string `json:"warnings"`
}

// Expand resolves and virtualizes the program document at path outside of
// any project. modules lists package documents or directories to import
// from; every known extension counts as enabled.
func Expand(path string, modules []string, frameWidth int, log *slog.Logger) (*Expansion, error) {
	doc, err := source.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if doc.IsModule() {
		return nil, fmt.Errorf("%s: expected a program document, found module %s", path, doc.Module.Name)
	}
	reg, warnings, err := LoadModules(modules)
	if err != nil {
		return nil, err
	}
	for _, wr := range doc.Warnings {
		warnings = append(warnings, wr.String())
	}

	w := &Workspace{Modules: reg}
	if w.Extensions, err = LoadExtensions(""); err != nil {
		return nil, err
	}
	cat, err := w.fullCatalog()
	if err != nil {
		return nil, err
	}

	a, err := analyze(&Source{Name: path, Path: path, Program: doc.Program}, reg, cat, frameWidth, discardIfNil(log))
	if err != nil {
		return nil, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return &Expansion{Analysis: a, Warnings: warnings}, nil
}

// Source renders the expanded program as document text.
func (e *Expansion) Source() string {
	return ast.Print(e.Program)
}
