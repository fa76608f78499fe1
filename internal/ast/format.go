package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a program as source text. The output is meant for humans
// inspecting rewritten programs; it is not guaranteed to round-trip.
func Print(p *Program) string {
	var pr printer
	for _, it := range p.Items {
		pr.item(it)
	}
	return pr.String()
}

// FormatExpr renders a single expression.
func FormatExpr(e Expr) string {
	var pr printer
	pr.expr(e, 0)
	return pr.String()
}

type printer struct {
	strings.Builder
	depth int
}

func (p *printer) line(format string, args ...any) {
	p.WriteString(strings.Repeat("    ", p.depth))
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

func (p *printer) item(it Item) {
	switch it := it.(type) {
	case *Use:
		p.line("use %s;", it.Module)
	case *VariableDecl:
		vis := ""
		if it.Public {
			vis = "public "
		}
		if it.Init != nil {
			p.line("%svar %s: %s = %s;", vis, it.Name, it.Type, FormatExpr(it.Init))
		} else {
			p.line("%svar %s: %s;", vis, it.Name, it.Type)
		}
	case *AssetDecl:
		kind := "costume"
		if it.Kind == AssetSound {
			kind = "sound"
		}
		p.line("%s %s %q;", kind, it.Name, it.Path)
	case *Handler:
		for _, a := range it.Attributes {
			p.line("#[%s]", p.call(a.Name, a.Args))
		}
		p.routineHead("fn", it.Name, it.Params, it.Warp, nil)
		p.block(it.Body)
		p.WriteByte('\n')
	case *ProcedureDef:
		if it.Comment != "" {
			p.line("// %s", it.Comment)
		}
		p.routineHead("proc", it.Name, it.Params, it.Warp, it.ReturnType)
		p.block(it.Body)
		p.WriteByte('\n')
	case *CommentItem:
		p.line("// %s", it.Text)
	case *BatchBreak:
		p.WriteByte('\n')
	case *StmtItem:
		p.stmt(it.Stmt)
	}
}

func (p *printer) routineHead(kw, name string, params []Param, warp bool, ret *Type) {
	parts := make([]string, len(params))
	for i, prm := range params {
		parts[i] = prm.Name + ": " + prm.Type.String()
	}
	head := fmt.Sprintf("%s %s(%s)", kw, name, strings.Join(parts, ", "))
	if ret != nil {
		head += " -> " + ret.String()
	}
	if warp {
		head = "warp " + head
	}
	p.line("%s {", head)
}

func (p *printer) block(body []Stmt) {
	p.depth++
	for _, s := range body {
		p.stmt(s)
	}
	p.depth--
	p.line("}")
}

func (p *printer) stmt(s Stmt) {
	if n := s.Note(); n != "" {
		p.line("// %s", n)
	}
	switch s := s.(type) {
	case *ExprStmt:
		p.line("%s;", FormatExpr(s.X))
	case *Assign:
		p.line("%s = %s;", s.Name, FormatExpr(s.Value))
	case *LocalDecl:
		p.line("let %s = %s;", s.Name, FormatExpr(s.Value))
	case *Return:
		if s.Value == nil {
			p.line("return;")
		} else {
			p.line("return %s;", FormatExpr(s.Value))
		}
	case *If:
		p.line("if %s {", FormatExpr(s.Cond))
		p.depth++
		for _, t := range s.Then {
			p.stmt(t)
		}
		p.depth--
		if len(s.Else) > 0 {
			p.line("} else {")
			p.block(s.Else)
		} else {
			p.line("}")
		}
	case *Repeat:
		p.line("repeat %s {", FormatExpr(s.Times))
		p.block(s.Body)
	case *Forever:
		p.line("forever {")
		p.block(s.Body)
	case *Until:
		p.line("until %s {", FormatExpr(s.Cond))
		p.block(s.Body)
	case *Match:
		p.line("match %s {", FormatExpr(s.Subject))
		p.depth++
		for _, arm := range s.Arms {
			if arm.IsDefault() {
				p.line("_ => {")
			} else {
				p.line("%s => {", FormatExpr(arm.Pattern))
			}
			p.block(arm.Body)
		}
		p.depth--
		p.line("}")
	case *CBlock:
		p.line("%s {", p.call(s.Name, s.Args))
		p.block(s.Body)
	case *CommentStmt:
		p.line("// %s", s.Text)
	case *BlankStmt:
		p.WriteByte('\n')
	}
}

func (p *printer) call(name string, args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatExpr(a)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// precedence levels, loosest first.
func precedence(op BinaryOp) int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEq, OpNe:
		return 3
	case OpLt, OpGt, OpLe, OpGe:
		return 4
	case OpAdd, OpSub:
		return 5
	default:
		return 6
	}
}

func (p *printer) expr(e Expr, outer int) {
	switch e := e.(type) {
	case nil:
		p.WriteString("<nil>")
	case *NumberLit:
		p.WriteString(strconv.FormatFloat(e.Value, 'f', -1, 64))
	case *StringLit:
		p.WriteString(strconv.Quote(e.Value))
	case *BoolLit:
		p.WriteString(strconv.FormatBool(e.Value))
	case *VarRef:
		p.WriteString(e.Name)
	case *Call:
		p.WriteString(p.call(e.Name, e.Args))
	case *Unary:
		p.WriteString(e.Op.String())
		p.expr(e.X, 7)
	case *Binary:
		prec := precedence(e.Op)
		if prec < outer {
			p.WriteByte('(')
		}
		p.expr(e.Left, prec)
		p.WriteString(" " + e.Op.String() + " ")
		p.expr(e.Right, prec+1)
		if prec < outer {
			p.WriteByte(')')
		}
	case *ListLit:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = FormatExpr(it)
		}
		p.WriteString("[" + strings.Join(parts, ", ") + "]")
	}
}
