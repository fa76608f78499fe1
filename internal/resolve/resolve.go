// Package resolve computes which routines a target actually compiles.
//
// Resolution starts from the calls made by event handlers and top-level
// statements, follows `use` imports through the module registry, and
// closes over the call graph. Anything never reached is dropped, so unused
// imported routines never reach the block graph. Calls made inside an
// imported module are rewritten to their qualified `module::name` form,
// which is the only form later stages understand for imported routines.
package resolve

import (
	"sort"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
)

// Registry finds modules by name.
type Registry interface {
	Module(name string) (*ast.Module, bool)
}

// MapRegistry is a Registry backed by a map.
type MapRegistry map[string]*ast.Module

// Module implements Registry.
func (r MapRegistry) Module(name string) (*ast.Module, bool) {
	m, ok := r[name]
	return m, ok
}

// Builtins reports whether a name is provided by the block catalog.
// *catalog.Catalog satisfies it.
type Builtins interface {
	Has(name string) bool
}

// Report summarizes a resolution.
type Report struct {
	// CompileSet lists every compiled routine, sorted. Imported routines
	// appear in qualified form.
	CompileSet []string `json:"compile_set"`

	// Modules is the transitive import closure, sorted.
	Modules []string `json:"modules"`

	// Extensions is the sorted union of capability extensions declared by
	// the modules in the closure.
	Extensions []string `json:"extensions"`

	// Pruned lists the program's own routines that nothing reaches.
	Pruned []string `json:"pruned"`

	// Recursion lists groups of mutually or self-recursive routines.
	Recursion []RecursionGroup `json:"recursion"`
}

// routine is one entry of the availability map.
type routine struct {
	def      *ast.ProcedureDef
	module   string // "" for the program's own routines
	external bool
}

type resolver struct {
	prog      *ast.Program
	reg       Registry
	builtins  Builtins
	available map[string]*routine
	modules   map[string]*ast.Module
	order     []string
}

// Resolve prunes prog to the routines reachable from its handlers and
// top-level statements. The input is not modified.
//
// The returned program lists the compiled imported routines first, sorted
// by qualified name and with their Module field set, followed by the
// program's own items minus `use` items and unreached routines.
func Resolve(prog *ast.Program, reg Registry, builtins Builtins) (*ast.Program, *Report, error) {
	if reg == nil {
		reg = MapRegistry(nil)
	}
	if builtins == nil {
		builtins = catalog.New()
	}
	r := &resolver{
		prog:      prog,
		reg:       reg,
		builtins:  builtins,
		available: make(map[string]*routine),
		modules:   make(map[string]*ast.Module),
	}

	if err := r.closeImports(); err != nil {
		return nil, nil, err
	}
	if err := r.buildAvailability(); err != nil {
		return nil, nil, err
	}
	if err := r.checkCapabilities(); err != nil {
		return nil, nil, err
	}
	used, graph, err := r.closeCalls()
	if err != nil {
		return nil, nil, err
	}
	return r.emit(used), r.report(used, graph), nil
}

// closeImports computes the transitive closure of the program's imports.
// Cycles are harmless: a module is visited at most once.
func (r *resolver) closeImports() error {
	type pending struct{ name, importer string }
	var queue []pending
	for _, it := range r.prog.Items {
		if u, ok := it.(*ast.Use); ok {
			queue = append(queue, pending{name: u.Module})
		}
	}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := r.modules[next.name]; seen {
			continue
		}
		mod, ok := r.reg.Module(next.name)
		if !ok {
			return unresolvedModule(next.name, next.importer)
		}
		r.modules[next.name] = mod
		r.order = append(r.order, next.name)
		for _, dep := range mod.Dependencies {
			queue = append(queue, pending{name: dep, importer: next.name})
		}
	}
	return nil
}

func (r *resolver) buildAvailability() error {
	for _, it := range r.prog.Items {
		p, ok := it.(*ast.ProcedureDef)
		if !ok {
			continue
		}
		if _, dup := r.available[p.Name]; dup {
			return &Error{Code: CodeDuplicateRoutine, Routine: p.Name, Message: "routine " + p.Name + " defined twice"}
		}
		r.available[p.Name] = &routine{def: p}
	}
	for _, name := range r.order {
		for _, p := range r.modules[name].Procedures() {
			key := ast.Qualify(name, p.Name)
			if _, dup := r.available[key]; dup {
				return &Error{Code: CodeDuplicateRoutine, Module: name, Routine: p.Name, Message: "routine " + key + " defined twice"}
			}
			r.available[key] = &routine{def: p, module: name, external: true}
		}
	}
	return nil
}

// checkCapabilities rejects imported modules that return values without
// declaring the return extension.
func (r *resolver) checkCapabilities() error {
	for _, name := range r.order {
		mod := r.modules[name]
		if mod.HasExtension(catalog.ReturnCapability) {
			continue
		}
		for _, p := range mod.Procedures() {
			if ast.HasReturn(p.Body) {
				return missingCapability(name, p.Name, catalog.ReturnCapability)
			}
		}
	}
	return nil
}

// lookup resolves a call name made from inside module (empty for the
// program's own code). Bare names inside a module bind to that module's
// routines first. The empty key means the name is a builtin.
func (r *resolver) lookup(name, module string) (string, bool) {
	if module != "" {
		if _, qualified := splitModule(name); !qualified {
			key := ast.Qualify(module, name)
			if _, ok := r.available[key]; ok {
				return key, true
			}
		}
		if rt, ok := r.available[name]; ok && rt.external {
			return name, true
		}
	} else if _, ok := r.available[name]; ok {
		return name, true
	}
	if r.builtins.Has(name) {
		return "", true
	}
	return "", false
}

// closeCalls walks the call graph from the roots. It returns the set of
// reached routines and the edges between them.
func (r *resolver) closeCalls() (map[string]bool, callGraph, error) {
	used := make(map[string]bool)
	graph := make(callGraph)
	var work []string

	enqueue := func(key string) {
		if !used[key] {
			used[key] = true
			work = append(work, key)
		}
	}

	for _, it := range r.prog.Items {
		var body []ast.Stmt
		caller := ""
		switch it := it.(type) {
		case *ast.Handler:
			body, caller = it.Body, it.Name
		case *ast.StmtItem:
			body = []ast.Stmt{it.Stmt}
		default:
			continue
		}
		for _, name := range ast.CallNames(body) {
			key, ok := r.lookup(name, "")
			if !ok {
				return nil, nil, unknownRoutine(name, caller)
			}
			if key != "" {
				enqueue(key)
			}
		}
	}

	for len(work) > 0 {
		key := work[0]
		work = work[1:]
		rt := r.available[key]
		graph[key] = nil
		seen := make(map[string]bool)
		for _, name := range ast.CallNames(rt.def.Body) {
			callee, ok := r.lookup(name, rt.module)
			if !ok {
				e := unknownRoutine(name, key)
				e.Module = rt.module
				return nil, nil, e
			}
			if callee == "" {
				continue
			}
			if !seen[callee] {
				seen[callee] = true
				graph[key] = append(graph[key], callee)
			}
			enqueue(callee)
		}
		sort.Strings(graph[key])
	}
	return used, graph, nil
}

// emit builds the pruned program.
func (r *resolver) emit(used map[string]bool) *ast.Program {
	var external []string
	for key := range used {
		if r.available[key].external {
			external = append(external, key)
		}
	}
	sort.Strings(external)

	out := &ast.Program{}
	for _, key := range external {
		rt := r.available[key]
		def := *rt.def
		def.Name = key
		def.Module = rt.module
		def.Params = append([]ast.Param(nil), rt.def.Params...)
		def.Body = ast.RenameCalls(rt.def.Body, func(name string) string {
			if k, ok := r.lookup(name, rt.module); ok && k != "" {
				return k
			}
			return name
		})
		out.Items = append(out.Items, &def)
	}

	for _, it := range r.prog.Items {
		switch it := it.(type) {
		case *ast.Use:
			continue
		case *ast.ProcedureDef:
			if !used[it.Name] {
				continue
			}
		}
		out.Items = append(out.Items, it)
	}
	return out
}

func (r *resolver) report(used map[string]bool, graph callGraph) *Report {
	rep := &Report{
		CompileSet: sortedKeys(used),
		Modules:    append([]string(nil), r.order...),
		Recursion:  recursionGroups(graph),
	}
	sort.Strings(rep.Modules)

	exts := make(map[string]bool)
	for _, mod := range r.modules {
		for _, e := range mod.Extensions {
			exts[e] = true
		}
	}
	rep.Extensions = sortedKeys(exts)

	for _, it := range r.prog.Items {
		if p, ok := it.(*ast.ProcedureDef); ok && !used[p.Name] {
			rep.Pruned = append(rep.Pruned, p.Name)
		}
	}
	sort.Strings(rep.Pruned)
	return rep
}

func splitModule(name string) (string, bool) {
	mod, _ := ast.SplitQualified(name)
	return mod, mod != ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
