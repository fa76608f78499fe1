package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/resolve"
	"github.com/roach88/blockc/internal/virtualize"
)

// Analysis is one target after resolution and virtualization.
type Analysis struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Stage bool   `json:"stage"`

	Program    *ast.Program       `json:"-"`
	Resolve    *resolve.Report    `json:"resolve"`
	Virtualize *virtualize.Report `json:"virtualize"`

	resolved *ast.Program
}

// Analyze resolves and virtualizes every target, stage first. The frame
// heap is public and shared by every target, so all targets end up with
// the widest frame any of them needs.
func (w *Workspace) Analyze(ctx context.Context, log *slog.Logger) ([]*Analysis, error) {
	log = discardIfNil(log)
	cat, err := w.fullCatalog()
	if err != nil {
		return nil, err
	}

	out := make([]*Analysis, 0, len(w.Targets))
	for _, t := range w.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := analyze(t, w.Modules, cat, w.Config.Project.FrameWidth, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := unifyFrameWidth(out, log); err != nil {
		return nil, err
	}
	return out, nil
}

// unifyFrameWidth virtualizes again every target whose frames are narrower
// than the widest one. A frame freed by one target may be popped by any
// other, so a narrower frame would let the wider target write past its end.
func unifyFrameWidth(analyses []*Analysis, log *slog.Logger) error {
	width := 0
	for _, a := range analyses {
		width = max(width, a.Virtualize.FrameWidth)
	}
	for _, a := range analyses {
		if !a.Virtualize.Injected || a.Virtualize.FrameWidth == width {
			continue
		}
		log.Debug("widened frames", "target", a.Name, "from", a.Virtualize.FrameWidth, "to", width)
		virtual, vrep, err := virtualize.Virtualize(a.resolved, virtualize.Options{
			FrameWidth: width,
			Logger:     log.With("target", a.Name),
		})
		if err != nil {
			return fmt.Errorf("%s: %w", a.Path, err)
		}
		a.Program, a.Virtualize = virtual, vrep
	}
	return nil
}

func analyze(t *Source, reg resolve.Registry, cat *catalog.Catalog, frameWidth int, log *slog.Logger) (*Analysis, error) {
	log = log.With("target", t.Name)

	resolved, rrep, err := resolve.Resolve(t.Program, reg, cat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path, err)
	}
	virtual, vrep, err := virtualize.Virtualize(resolved, virtualize.Options{
		FrameWidth: frameWidth,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Path, err)
	}
	log.Debug("analyzed target",
		"routines", len(rrep.CompileSet),
		"modules", len(rrep.Modules),
		"virtualized", len(vrep.Routines))

	return &Analysis{
		Name:       t.Name,
		Path:       t.Path,
		Stage:      t.Stage,
		Program:    virtual,
		Resolve:    rrep,
		Virtualize: vrep,
		resolved:   resolved,
	}, nil
}

// EnabledExtensions is the sorted union of the configured extensions and
// those declared by imported modules, without the return capability.
func EnabledExtensions(configured []string, analyses []*Analysis) []string {
	set := make(map[string]bool)
	for _, id := range configured {
		set[id] = true
	}
	for _, a := range analyses {
		for _, id := range a.Resolve.Extensions {
			set[id] = true
		}
	}
	delete(set, catalog.ReturnCapability)

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// hoist returns a copy of stage with the public declarations of sprites
// prepended. A name the stage already declares, or an earlier sprite
// hoisted, is skipped. Conflicting types are reported as warnings.
func hoist(stage *ast.Program, sprites []*Analysis) (*ast.Program, []string) {
	declared := make(map[string]ast.Type)
	for _, it := range stage.Items {
		if v, ok := it.(*ast.VariableDecl); ok {
			declared[v.Name] = v.Type
		}
	}

	var hoisted []ast.Item
	var warnings []string
	for _, s := range sprites {
		for _, it := range s.Program.Items {
			v, ok := it.(*ast.VariableDecl)
			if !ok || !v.Public {
				continue
			}
			if prev, seen := declared[v.Name]; seen {
				if isList(prev) != isList(v.Type) {
					warnings = append(warnings, fmt.Sprintf(
						"sprite %s: public %s conflicts with an existing declaration of the same name", s.Name, v.Name))
				}
				continue
			}
			declared[v.Name] = v.Type
			hoisted = append(hoisted, v)
		}
	}
	if len(hoisted) == 0 {
		return stage, warnings
	}
	return &ast.Program{Items: append(hoisted, stage.Items...)}, warnings
}

func isList(t ast.Type) bool { return t == ast.TypeList }

func discardIfNil(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return log
}
