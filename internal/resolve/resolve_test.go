package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
)

func proc(name string, body ...ast.Stmt) *ast.ProcedureDef {
	return &ast.ProcedureDef{Name: name, Body: body}
}

func call(name string, args ...ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: ast.CallOf(name, args...)}
}

func flagHandler(body ...ast.Stmt) *ast.Handler {
	return &ast.Handler{Name: "main", Attributes: []ast.Attribute{{Name: "on_flag_clicked"}}, Body: body}
}

func names(items []ast.Item) []string {
	var out []string
	for _, it := range items {
		if p, ok := it.(*ast.ProcedureDef); ok {
			out = append(out, p.Name)
		}
	}
	return out
}

// TestResolve_PrunesUnreachable tests that only reachable local routines survive.
func TestResolve_PrunesUnreachable(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		proc("used", call("helper")),
		proc("helper", call("say", ast.Str("hi"))),
		proc("dead", call("used")),
		flagHandler(call("used")),
	}}

	out, rep, err := Resolve(prog, nil, catalog.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"used", "helper"}, names(out.Items))
	assert.Equal(t, []string{"helper", "used"}, rep.CompileSet)
	assert.Equal(t, []string{"dead"}, rep.Pruned)
	assert.Empty(t, rep.Recursion)
	assert.Len(t, prog.Items, 4, "input must not be modified")
}

// TestResolve_ImportClosureCycle tests that A->B->A terminates with both modules once.
func TestResolve_ImportClosureCycle(t *testing.T) {
	reg := MapRegistry{
		"a": {Name: "a", Dependencies: []string{"b"}, Items: []ast.Item{proc("f", call("b::g"))}},
		"b": {Name: "b", Dependencies: []string{"a"}, Items: []ast.Item{proc("g", call("a::f"))}},
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "a"},
		&ast.Use{Module: "b"},
		flagHandler(call("a::f")),
	}}

	out, rep, err := Resolve(prog, reg, catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rep.Modules)
	assert.Equal(t, []string{"a::f", "b::g"}, names(out.Items))
	require.Len(t, rep.Recursion, 1)
	assert.Equal(t, []string{"a::f", "b::g"}, rep.Recursion[0].Routines)
}

// TestResolve_BareNameDoesNotCrossModules tests that a bare call never binds
// to a routine of another module.
func TestResolve_BareNameDoesNotCrossModules(t *testing.T) {
	reg := MapRegistry{
		"a": {Name: "a", Dependencies: []string{"b"}, Items: []ast.Item{proc("f", call("g"))}},
		"b": {Name: "b", Items: []ast.Item{proc("g")}},
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "a"},
		flagHandler(call("a::f")),
	}}
	_, _, err := Resolve(prog, reg, catalog.Default())
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeUnknownRoutine, rerr.Code)
}

// TestResolve_SiblingFirst tests that bare names inside a module bind to its own routines.
func TestResolve_SiblingFirst(t *testing.T) {
	reg := MapRegistry{
		"math": {Name: "math", Items: []ast.Item{
			proc("square", call("mul")),
			proc("mul"),
			proc("unused"),
			// A module routine named like a builtin shadows the builtin.
			proc("say"),
			proc("shout", call("say", ast.Str("x"))),
		}},
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "math"},
		// A local routine with the same bare name must not capture math's call.
		proc("mul", call("say", ast.Str("local"))),
		flagHandler(call("math::square"), call("math::shout")),
	}}

	out, rep, err := Resolve(prog, reg, catalog.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"math::mul", "math::say", "math::shout", "math::square"}, names(out.Items))
	assert.Equal(t, []string{"mul"}, rep.Pruned)

	byName := make(map[string]*ast.ProcedureDef)
	for _, it := range out.Items {
		if p, ok := it.(*ast.ProcedureDef); ok {
			byName[p.Name] = p
		}
	}
	assert.Equal(t, "math", byName["math::square"].Module)
	assert.Equal(t, ast.CallOf("math::mul"), byName["math::square"].Body[0].(*ast.ExprStmt).X)
	assert.Equal(t, ast.CallOf("math::say", ast.Str("x")), byName["math::shout"].Body[0].(*ast.ExprStmt).X)

	// The registry's module is untouched.
	assert.Equal(t, ast.CallOf("mul"), reg["math"].Items[0].(*ast.ProcedureDef).Body[0].(*ast.ExprStmt).X)
}

// TestResolve_NoDanglingQualifiedCalls tests that every qualified call in the
// output names a compiled routine.
func TestResolve_NoDanglingQualifiedCalls(t *testing.T) {
	reg := MapRegistry{
		"geo": {Name: "geo", Dependencies: []string{"math"}, Items: []ast.Item{
			proc("dist", call("math::sqrt2"), call("helper")),
			proc("helper", call("move_steps", ast.Num(1))),
		}},
		"math": {Name: "math", Items: []ast.Item{
			proc("sqrt2", call("inner")),
			proc("inner"),
		}},
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "geo"},
		flagHandler(call("geo::dist")),
	}}

	out, rep, err := Resolve(prog, reg, catalog.Default())
	require.NoError(t, err)

	compiled := make(map[string]bool)
	for _, n := range rep.CompileSet {
		compiled[n] = true
	}
	for _, it := range out.Items {
		p, ok := it.(*ast.ProcedureDef)
		if !ok {
			continue
		}
		for _, n := range ast.CallNames(p.Body) {
			if mod, _ := ast.SplitQualified(n); mod != "" {
				assert.True(t, compiled[n], "dangling call %s in %s", n, p.Name)
			}
		}
	}
	assert.Equal(t, []string{"geo::dist", "geo::helper", "math::inner", "math::sqrt2"}, rep.CompileSet)
	assert.Equal(t, []string{"geo", "math"}, rep.Modules)
}

// TestResolve_UnresolvedModule tests E201.
func TestResolve_UnresolvedModule(t *testing.T) {
	reg := MapRegistry{"a": {Name: "a", Dependencies: []string{"ghost"}}}
	prog := &ast.Program{Items: []ast.Item{&ast.Use{Module: "a"}}}

	_, _, err := Resolve(prog, reg, catalog.Default())
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeUnresolvedModule, rerr.Code)
	assert.Equal(t, "ghost", rerr.Module)
	assert.Contains(t, rerr.Error(), `required by module "a"`)
}

// TestResolve_MissingReturnCapability tests that the offending module is named.
func TestResolve_MissingReturnCapability(t *testing.T) {
	reg := MapRegistry{
		"calc": {Name: "calc", Items: []ast.Item{
			proc("twice", &ast.Return{Value: ast.Num(2)}),
		}},
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "calc"},
		flagHandler(call("say", ast.CallOf("calc::twice"))),
	}}

	_, _, err := Resolve(prog, reg, catalog.Default())
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeMissingCapability, rerr.Code)
	assert.Equal(t, "calc", rerr.Module)
	assert.Contains(t, err.Error(), "calc")

	reg["calc"].Extensions = []string{catalog.ReturnCapability}
	_, rep, err := Resolve(prog, reg, catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.ReturnCapability}, rep.Extensions)
}

// TestResolve_UnknownRoutine tests E203 from roots and from module bodies.
func TestResolve_UnknownRoutine(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{flagHandler(call("fly"))}}
	_, _, err := Resolve(prog, nil, catalog.Default())
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeUnknownRoutine, rerr.Code)
	assert.Equal(t, "fly", rerr.Routine)

	reg := MapRegistry{"m": {Name: "m", Items: []ast.Item{proc("f", call("local_only"))}}}
	prog = &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "m"},
		proc("local_only"),
		flagHandler(call("m::f")),
	}}
	_, _, err = Resolve(prog, reg, catalog.Default())
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeUnknownRoutine, rerr.Code)
	assert.Equal(t, "m", rerr.Module)
}

// TestResolve_TopLevelStatementsAreRoots tests that top-level scripts keep their callees.
func TestResolve_TopLevelStatementsAreRoots(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		proc("setup"),
		&ast.StmtItem{Stmt: call("setup")},
	}}
	out, _, err := Resolve(prog, nil, catalog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{"setup"}, names(out.Items))
}

// TestResolve_DuplicateRoutine tests duplicate local definitions.
func TestResolve_DuplicateRoutine(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{proc("f"), proc("f")}}
	_, _, err := Resolve(prog, nil, catalog.Default())
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CodeDuplicateRoutine, rerr.Code)
}

// TestResolve_Recursion tests that recursive routines are reported, not rejected.
func TestResolve_Recursion(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		proc("fact", call("fact")),
		proc("even", call("odd")),
		proc("odd", call("even")),
		flagHandler(call("fact"), call("even")),
	}}
	_, rep, err := Resolve(prog, nil, catalog.Default())
	require.NoError(t, err)
	require.Len(t, rep.Recursion, 2)

	assert.Equal(t, []string{"even", "odd"}, rep.Recursion[0].Routines)
	assert.Equal(t, []string{"even", "odd", "even"}, rep.Recursion[0].Path)
	assert.Equal(t, []string{"fact"}, rep.Recursion[1].Routines)
	assert.Contains(t, rep.Recursion[1].Message, "self-recursive")
}

// TestResolve_UseItemsDropped tests that imports do not survive resolution.
func TestResolve_UseItemsDropped(t *testing.T) {
	reg := MapRegistry{"m": {Name: "m"}}
	prog := &ast.Program{Items: []ast.Item{
		&ast.Use{Module: "m"},
		&ast.VariableDecl{Name: "x"},
	}}
	out, _, err := Resolve(prog, reg, catalog.Default())
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.IsType(t, &ast.VariableDecl{}, out.Items[0])
}
