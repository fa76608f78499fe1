package ast

// InspectStmts calls fn for every statement in body, depth first and in
// source order. Returning false from fn skips the statement's children.
func InspectStmts(body []Stmt, fn func(Stmt) bool) {
	for _, s := range body {
		if !fn(s) {
			continue
		}
		switch s := s.(type) {
		case *If:
			InspectStmts(s.Then, fn)
			InspectStmts(s.Else, fn)
		case *Repeat:
			InspectStmts(s.Body, fn)
		case *Forever:
			InspectStmts(s.Body, fn)
		case *Until:
			InspectStmts(s.Body, fn)
		case *Match:
			for _, arm := range s.Arms {
				InspectStmts(arm.Body, fn)
			}
		case *CBlock:
			InspectStmts(s.Body, fn)
		}
	}
}

// StmtExprs returns the expressions a statement evaluates directly, not
// counting those inside nested bodies.
func StmtExprs(s Stmt) []Expr {
	switch s := s.(type) {
	case *ExprStmt:
		return []Expr{s.X}
	case *Assign:
		return []Expr{s.Value}
	case *LocalDecl:
		return []Expr{s.Value}
	case *Return:
		if s.Value != nil {
			return []Expr{s.Value}
		}
	case *If:
		return []Expr{s.Cond}
	case *Repeat:
		return []Expr{s.Times}
	case *Until:
		return []Expr{s.Cond}
	case *Match:
		out := []Expr{s.Subject}
		for _, arm := range s.Arms {
			if arm.Pattern != nil {
				out = append(out, arm.Pattern)
			}
		}
		return out
	case *CBlock:
		return s.Args
	}
	return nil
}

// InspectExpr calls fn for e and every sub-expression, parents first.
func InspectExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *Call:
		for _, a := range e.Args {
			InspectExpr(a, fn)
		}
	case *Unary:
		InspectExpr(e.X, fn)
	case *Binary:
		InspectExpr(e.Left, fn)
		InspectExpr(e.Right, fn)
	case *ListLit:
		for _, it := range e.Items {
			InspectExpr(it, fn)
		}
	}
}

// CallNames returns the name of every call made anywhere in body, including
// C-block names, in first-seen order without duplicates.
func CallNames(body []Stmt) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	InspectStmts(body, func(s Stmt) bool {
		if cb, ok := s.(*CBlock); ok {
			add(cb.Name)
		}
		for _, e := range StmtExprs(s) {
			InspectExpr(e, func(x Expr) bool {
				if c, ok := x.(*Call); ok {
					add(c.Name)
				}
				return true
			})
		}
		return true
	})
	return out
}

// HasReturn reports whether body contains a return statement.
func HasReturn(body []Stmt) bool {
	found := false
	InspectStmts(body, func(s Stmt) bool {
		if _, ok := s.(*Return); ok {
			found = true
		}
		return !found
	})
	return found
}

// HasLocal reports whether body declares a local variable.
func HasLocal(body []Stmt) bool {
	found := false
	InspectStmts(body, func(s Stmt) bool {
		if _, ok := s.(*LocalDecl); ok {
			found = true
		}
		return !found
	})
	return found
}

// RenameCalls returns a deep copy of body in which every call or C-block
// name is passed through rename.
func RenameCalls(body []Stmt, rename func(string) string) []Stmt {
	c := cloner{rename: rename}
	return c.stmts(body)
}

// CloneStmts returns a deep copy of body.
func CloneStmts(body []Stmt) []Stmt {
	return cloner{}.stmts(body)
}

// CloneExpr returns a deep copy of e.
func CloneExpr(e Expr) Expr {
	return cloner{}.expr(e)
}

type cloner struct {
	rename func(string) string
}

func (c cloner) name(n string) string {
	if c.rename == nil {
		return n
	}
	return c.rename(n)
}

func (c cloner) stmts(body []Stmt) []Stmt {
	if body == nil {
		return nil
	}
	out := make([]Stmt, len(body))
	for i, s := range body {
		out[i] = c.stmt(s)
	}
	return out
}

func (c cloner) stmt(s Stmt) Stmt {
	switch s := s.(type) {
	case *ExprStmt:
		return &ExprStmt{Annotated: s.Annotated, X: c.expr(s.X)}
	case *Assign:
		return &Assign{Annotated: s.Annotated, Name: s.Name, Value: c.expr(s.Value)}
	case *LocalDecl:
		return &LocalDecl{Annotated: s.Annotated, Name: s.Name, Value: c.expr(s.Value)}
	case *Return:
		return &Return{Annotated: s.Annotated, Value: c.expr(s.Value)}
	case *If:
		return &If{Annotated: s.Annotated, Cond: c.expr(s.Cond), Then: c.stmts(s.Then), Else: c.stmts(s.Else)}
	case *Repeat:
		return &Repeat{Annotated: s.Annotated, Times: c.expr(s.Times), Body: c.stmts(s.Body)}
	case *Forever:
		return &Forever{Annotated: s.Annotated, Body: c.stmts(s.Body)}
	case *Until:
		return &Until{Annotated: s.Annotated, Cond: c.expr(s.Cond), Body: c.stmts(s.Body)}
	case *Match:
		arms := make([]MatchArm, len(s.Arms))
		for i, arm := range s.Arms {
			arms[i] = MatchArm{Pattern: c.expr(arm.Pattern), Body: c.stmts(arm.Body)}
		}
		return &Match{Annotated: s.Annotated, Subject: c.expr(s.Subject), Arms: arms}
	case *CBlock:
		return &CBlock{Annotated: s.Annotated, Name: c.name(s.Name), Args: c.exprs(s.Args), Body: c.stmts(s.Body)}
	case *CommentStmt:
		cp := *s
		return &cp
	case *BlankStmt:
		cp := *s
		return &cp
	}
	return s
}

func (c cloner) exprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = c.expr(e)
	}
	return out
}

func (c cloner) expr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *NumberLit:
		return &NumberLit{Value: e.Value}
	case *StringLit:
		return &StringLit{Value: e.Value}
	case *BoolLit:
		return &BoolLit{Value: e.Value}
	case *VarRef:
		return &VarRef{Name: e.Name}
	case *Call:
		return &Call{Name: c.name(e.Name), Args: c.exprs(e.Args)}
	case *Unary:
		return &Unary{Op: e.Op, X: c.expr(e.X)}
	case *Binary:
		return &Binary{Op: e.Op, Left: c.expr(e.Left), Right: c.expr(e.Right)}
	case *ListLit:
		return &ListLit{Items: c.exprs(e.Items)}
	}
	return e
}
