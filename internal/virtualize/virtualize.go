// Package virtualize retrofits local variables and value-returning calls
// onto a runtime whose routines have neither.
//
// Every routine that declares a local, returns a value, or consumes the
// value of another virtualized routine is split into a wrapper and an inner
// routine. The wrapper keeps the original name and parameters, allocates a
// frame in the shared memory list, and calls the inner routine with the
// frame base as an extra leading argument. Locals, return values and
// intermediate call results then live at fixed offsets from that base.
//
// A value routine's frame outlives its inner routine: the caller copies
// offset 0 out of the returned frame and then frees it. Void routines free
// their own frame on exit. Each allocation is therefore freed exactly once.
package virtualize

import (
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/blockc/internal/ast"
)

// Options configures Virtualize.
type Options struct {
	// FrameWidth is the minimum number of memory cells per frame. The width
	// grows in multiples of this value when a routine needs more slots.
	// Zero means DefaultFrameWidth.
	FrameWidth int

	Logger *slog.Logger
}

// Report describes what Virtualize changed.
type Report struct {
	// Injected is true when the shared memory state was added.
	Injected bool `json:"injected"`

	// FrameWidth is the width of every frame in the program.
	FrameWidth int `json:"frame_width,omitempty"`

	// Routines lists the routines split into wrapper and inner pairs.
	Routines []string `json:"routines"`

	// Handlers lists handlers whose body moved into a generated routine.
	Handlers []string `json:"handlers"`
}

type virtualizer struct {
	opts      Options
	log       *slog.Logger
	procs     map[string]*ast.ProcedureDef
	virtual   map[string]bool
	hoistable map[string]bool
}

// Virtualize rewrites prog so that locals and return values run on the
// shared memory list. When nothing in prog needs that, prog itself is
// returned and no state is injected.
func Virtualize(prog *ast.Program, opts Options) (*ast.Program, *Report, error) {
	if opts.FrameWidth <= 0 {
		opts.FrameWidth = DefaultFrameWidth
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	v := &virtualizer{
		opts:      opts,
		log:       log,
		procs:     make(map[string]*ast.ProcedureDef),
		virtual:   make(map[string]bool),
		hoistable: make(map[string]bool),
	}
	for _, it := range prog.Items {
		if p, ok := it.(*ast.ProcedureDef); ok {
			v.procs[p.Name] = p
		}
	}
	v.classify()

	if err := v.checkTopLevel(prog); err != nil {
		return nil, nil, err
	}
	if !v.needed(prog) {
		return prog, &Report{}, nil
	}
	out, rep := v.rewrite(prog)
	return out, rep, nil
}

// isValue reports whether p produces a value.
func isValue(p *ast.ProcedureDef) bool {
	return p.ReturnType != nil || ast.HasReturn(p.Body)
}

// classify computes the virtualized routines as a fixpoint: a routine
// qualifies through its own locals or returns, or by consuming the value
// of a routine that qualifies.
func (v *virtualizer) classify() {
	for name, p := range v.procs {
		if ast.HasLocal(p.Body) || ast.HasReturn(p.Body) {
			v.virtual[name] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for name, p := range v.procs {
			if v.virtual[name] {
				continue
			}
			for _, callee := range ast.CallNames(p.Body) {
				if q, ok := v.procs[callee]; ok && v.virtual[callee] && isValue(q) {
					v.virtual[name] = true
					changed = true
					break
				}
			}
		}
	}
	for name := range v.virtual {
		if isValue(v.procs[name]) {
			v.hoistable[name] = true
		}
	}
}

func (v *virtualizer) checkTopLevel(prog *ast.Program) error {
	for _, it := range prog.Items {
		s, ok := it.(*ast.StmtItem)
		if !ok {
			continue
		}
		if needsFrame([]ast.Stmt{s.Stmt}, v.hoistable) {
			return &Error{Code: CodeTopLevelFrame, Message: "top-level statements cannot declare locals or return, and may consume at most one value call outside a loop condition"}
		}
	}
	return nil
}

func (v *virtualizer) needed(prog *ast.Program) bool {
	if len(v.virtual) > 0 {
		return true
	}
	for _, it := range prog.Items {
		if h, ok := it.(*ast.Handler); ok && needsFrame(h.Body, v.hoistable) {
			return true
		}
	}
	return false
}

func (v *virtualizer) rewrite(prog *ast.Program) (*ast.Program, *Report) {
	rep := &Report{Injected: true}
	maxSlots := 1
	var items []ast.Item

	for _, it := range prog.Items {
		switch it := it.(type) {
		case *ast.ProcedureDef:
			if !v.virtual[it.Name] {
				items = append(items, it)
				continue
			}
			inner, slots := v.inner(it)
			maxSlots = max(maxSlots, slots)
			rep.Routines = append(rep.Routines, it.Name)
			v.log.Debug("virtualized routine", "procedure", it.Name, "count", slots)

			items = append(items, v.wrapper(it, inner.Name), inner)

		case *ast.Handler:
			switch {
			case needsFrame(it.Body, v.hoistable):
				inner, slots := v.script(it)
				maxSlots = max(maxSlots, slots)
				rep.Handlers = append(rep.Handlers, it.Name)
				v.log.Debug("moved handler body into routine", "procedure", inner.Name, "count", slots)

				items = append(items, v.launcher(it, inner.Name), inner)
			case usesHoistable(it.Body, v.hoistable):
				h := *it
				h.Body = newInPlaceRewriter(v.hoistable).body(it.Body)
				items = append(items, &h)
			default:
				items = append(items, it)
			}

		case *ast.StmtItem:
			if !usesHoistable([]ast.Stmt{it.Stmt}, v.hoistable) {
				items = append(items, it)
				continue
			}
			for _, s := range newInPlaceRewriter(v.hoistable).body([]ast.Stmt{it.Stmt}) {
				items = append(items, &ast.StmtItem{Stmt: s})
			}

		default:
			items = append(items, it)
		}
	}

	width := v.opts.FrameWidth
	for width < maxSlots {
		width += v.opts.FrameWidth
	}
	rep.FrameWidth = width
	sort.Strings(rep.Routines)
	sort.Strings(rep.Handlers)

	out := &ast.Program{Items: append(stateDecls(), allocRoutine(width))}
	out.Items = append(out.Items, items...)
	return out, rep
}

// inner builds the routine that holds p's body.
func (v *virtualizer) inner(p *ast.ProcedureDef) (*ast.ProcedureDef, int) {
	return v.innerRoutine(p, innerName(p), !isValue(p))
}

// innerRoutine lowers p's body onto a frame passed as the leading
// parameter. A routine that owns its frame frees it on exit; otherwise the
// caller frees it after reading the result.
func (v *virtualizer) innerRoutine(p *ast.ProcedureDef, name string, ownsFrame bool) (*ast.ProcedureDef, int) {
	r := newFrameRewriter(v.hoistable)
	body := r.body(p.Body)
	body = append(body, setReturn(ast.Var(FrameParam)))
	if ownsFrame {
		body = append(body, free(ast.Var(FrameParam)))
	}
	return &ast.ProcedureDef{
		Name:   name,
		Params: append([]ast.Param{{Name: FrameParam, Type: ast.TypeNumber}}, p.Params...),
		Body:   body,
		Warp:   p.Warp,
		Module: p.Module,
	}, r.slots()
}

// wrapper keeps p's name and parameters and forwards to the inner routine
// with a freshly allocated frame.
func (v *virtualizer) wrapper(p *ast.ProcedureDef, inner string) *ast.ProcedureDef {
	args := []ast.Expr{ast.Var(ReturnReg)}
	for _, prm := range p.Params {
		args = append(args, ast.Var(prm.Name))
	}
	return &ast.ProcedureDef{
		Name:    p.Name,
		Params:  append([]ast.Param(nil), p.Params...),
		Body:    []ast.Stmt{stmt(AllocRoutine), stmt(inner, args...)},
		Warp:    p.Warp,
		Format:  p.Format,
		Comment: p.Comment,
		Module:  p.Module,
	}
}

// script moves a handler body into a routine that owns its frame.
func (v *virtualizer) script(h *ast.Handler) (*ast.ProcedureDef, int) {
	p := &ast.ProcedureDef{Name: ScriptPrefix + h.Name, Params: h.Params, Body: h.Body, Warp: h.Warp}
	return v.innerRoutine(p, p.Name, true)
}

// launcher is the handler left behind when its body moves into a routine.
func (v *virtualizer) launcher(h *ast.Handler, inner string) *ast.Handler {
	args := []ast.Expr{ast.Var(ReturnReg)}
	for _, prm := range h.Params {
		args = append(args, ast.Var(prm.Name))
	}
	out := *h
	out.Body = []ast.Stmt{stmt(AllocRoutine), stmt(inner, args...)}
	return &out
}
