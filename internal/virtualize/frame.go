package virtualize

import (
	"github.com/roach88/blockc/internal/ast"
)

// rewriter lowers one body. In frame mode locals, returns and hoisted call
// results live in the activation's frame; in place mode (handlers and
// top-level statements that need no frame) a hoisted result is read straight
// from the return register.
type rewriter struct {
	hoistable map[string]bool
	framed    bool

	scopes []map[string]int
	// next is the next free frame offset. Offset 0 holds the return value,
	// and offsets are never reused within one activation.
	next int
}

func newFrameRewriter(hoistable map[string]bool) *rewriter {
	return &rewriter{hoistable: hoistable, framed: true, next: 1}
}

func newInPlaceRewriter(hoistable map[string]bool) *rewriter {
	return &rewriter{hoistable: hoistable}
}

// slots reports how many frame cells the rewritten body uses.
func (r *rewriter) slots() int {
	return r.next
}

func (r *rewriter) frame() ast.Expr {
	return ast.Var(FrameParam)
}

func (r *rewriter) alloc() int {
	off := r.next
	r.next++
	return off
}

func (r *rewriter) lookup(name string) (int, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if off, ok := r.scopes[i][name]; ok {
			return off, true
		}
	}
	return 0, false
}

func (r *rewriter) body(stmts []ast.Stmt) []ast.Stmt {
	if stmts == nil {
		return nil
	}
	r.scopes = append(r.scopes, make(map[string]int))
	defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()

	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, r.stmt(s)...)
	}
	return out
}

func (r *rewriter) stmt(s ast.Stmt) []ast.Stmt {
	var pre []ast.Stmt
	switch s := s.(type) {
	case *ast.ExprStmt:
		if c, ok := s.X.(*ast.Call); ok && r.hoistable[c.Name] {
			// A value call whose result is discarded still owns a frame.
			call := &ast.ExprStmt{Annotated: s.Annotated, X: &ast.Call{Name: c.Name, Args: r.exprs(c.Args, &pre)}}
			return append(pre, call, free(ast.Var(ReturnReg)))
		}
		x := r.expr(s.X, &pre)
		return append(pre, &ast.ExprStmt{Annotated: s.Annotated, X: x})

	case *ast.Assign:
		v := r.expr(s.Value, &pre)
		if off, ok := r.lookup(s.Name); ok {
			st := store(slot(r.frame(), off), v)
			st.Annotated = s.Annotated
			return append(pre, st)
		}
		return append(pre, &ast.Assign{Annotated: s.Annotated, Name: s.Name, Value: v})

	case *ast.LocalDecl:
		v := r.expr(s.Value, &pre)
		off := r.alloc()
		r.scopes[len(r.scopes)-1][s.Name] = off
		st := store(slot(r.frame(), off), v)
		st.Annotated = s.Annotated
		return append(pre, st)

	case *ast.Return:
		if s.Value != nil {
			v := r.expr(s.Value, &pre)
			pre = append(pre, store(r.frame(), v))
		}
		// Execution continues after a return; the last value stored wins.
		ret := setReturn(r.frame())
		ret.Annotated = s.Annotated
		return append(pre, ret)

	case *ast.If:
		cond := r.expr(s.Cond, &pre)
		return append(pre, &ast.If{Annotated: s.Annotated, Cond: cond, Then: r.body(s.Then), Else: r.body(s.Else)})

	case *ast.Repeat:
		times := r.expr(s.Times, &pre)
		return append(pre, &ast.Repeat{Annotated: s.Annotated, Times: times, Body: r.body(s.Body)})

	case *ast.Forever:
		return []ast.Stmt{&ast.Forever{Annotated: s.Annotated, Body: r.body(s.Body)}}

	case *ast.Until:
		cond := r.expr(s.Cond, &pre)
		body := r.body(s.Body)
		// The condition is checked before every iteration, so its hoisted
		// calls run again at the end of the body.
		body = append(body, ast.CloneStmts(pre)...)
		return append(pre, &ast.Until{Annotated: s.Annotated, Cond: cond, Body: body})

	case *ast.Match:
		m := &ast.Match{Annotated: s.Annotated, Subject: r.expr(s.Subject, &pre)}
		for _, arm := range s.Arms {
			var pat ast.Expr
			if arm.Pattern != nil {
				pat = r.expr(arm.Pattern, &pre)
			}
			m.Arms = append(m.Arms, ast.MatchArm{Pattern: pat, Body: r.body(arm.Body)})
		}
		return append(pre, m)

	case *ast.CBlock:
		args := r.exprs(s.Args, &pre)
		return append(pre, &ast.CBlock{Annotated: s.Annotated, Name: s.Name, Args: args, Body: r.body(s.Body)})

	default:
		return []ast.Stmt{s}
	}
}

func (r *rewriter) exprs(es []ast.Expr, pre *[]ast.Stmt) []ast.Expr {
	if es == nil {
		return nil
	}
	out := make([]ast.Expr, len(es))
	for i, e := range es {
		out[i] = r.expr(e, pre)
	}
	return out
}

// expr rewrites e, appending the statements that must run before it to pre.
// Arguments are rewritten before the call that consumes them.
func (r *rewriter) expr(e ast.Expr, pre *[]ast.Stmt) ast.Expr {
	switch e := e.(type) {
	case *ast.VarRef:
		if off, ok := r.lookup(e.Name); ok {
			return load(slot(r.frame(), off))
		}
		return &ast.VarRef{Name: e.Name}

	case *ast.Call:
		call := &ast.Call{Name: e.Name, Args: r.exprs(e.Args, pre)}
		if !r.hoistable[e.Name] {
			return call
		}
		*pre = append(*pre, &ast.ExprStmt{X: call})
		if !r.framed {
			// Nothing allocates between the free and the read that follows.
			*pre = append(*pre, free(ast.Var(ReturnReg)))
			return load(ast.Var(ReturnReg))
		}
		tmp := r.alloc()
		*pre = append(*pre,
			store(slot(r.frame(), tmp), load(ast.Var(ReturnReg))),
			free(ast.Var(ReturnReg)),
		)
		return load(slot(r.frame(), tmp))

	case *ast.Unary:
		return &ast.Unary{Op: e.Op, X: r.expr(e.X, pre)}

	case *ast.Binary:
		left := r.expr(e.Left, pre)
		right := r.expr(e.Right, pre)
		return &ast.Binary{Op: e.Op, Left: left, Right: right}

	case *ast.ListLit:
		return &ast.ListLit{Items: r.exprs(e.Items, pre)}

	default:
		return ast.CloneExpr(e)
	}
}

// hoistedCalls counts the hoistable calls a statement evaluates directly.
func hoistedCalls(s ast.Stmt, hoistable map[string]bool) int {
	n := 0
	for _, e := range ast.StmtExprs(s) {
		ast.InspectExpr(e, func(x ast.Expr) bool {
			if c, ok := x.(*ast.Call); ok && hoistable[c.Name] {
				n++
			}
			return true
		})
	}
	return n
}

// needsFrame reports whether a handler or top-level body can only be
// lowered with a frame of its own. A loop condition is evaluated after the
// loop yields, when another script may have reused the return register, so
// a value it consumes must be kept in a frame slot.
func needsFrame(body []ast.Stmt, hoistable map[string]bool) bool {
	if ast.HasLocal(body) || ast.HasReturn(body) {
		return true
	}
	found := false
	ast.InspectStmts(body, func(s ast.Stmt) bool {
		n := hoistedCalls(s, hoistable)
		if _, loop := s.(*ast.Until); n > 1 || (loop && n > 0) {
			found = true
		}
		return !found
	})
	return found
}

// usesHoistable reports whether body calls any hoistable routine.
func usesHoistable(body []ast.Stmt, hoistable map[string]bool) bool {
	for _, name := range ast.CallNames(body) {
		if hoistable[name] {
			return true
		}
	}
	return false
}
