package codegen

import (
	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/ir"
)

// sequence lowers a body left to right, linking consecutive statements.
// It returns the first and last block of the chain, both empty when the
// body produced no blocks.
func (c *buildContext) sequence(body []ast.Stmt) (first, last ir.BlockID, err error) {
	for _, s := range body {
		f, l, err := c.stmt(s)
		if err != nil {
			return "", "", err
		}
		if f == "" {
			continue
		}
		if first == "" {
			first = f
		} else {
			c.link(last, f)
		}
		last = l
	}
	return first, last, nil
}

// substack lowers a nested body into b.Inputs[key].
func (c *buildContext) substack(b *ir.Block, key string, body []ast.Stmt) error {
	first, _, err := c.sequence(body)
	if err != nil {
		return err
	}
	if first != "" {
		b.Inputs[key] = ir.BlockInput(first)
	}
	return nil
}

type noted interface {
	Note() string
}

func (c *buildContext) stmt(s ast.Stmt) (first, last ir.BlockID, err error) {
	first, last, err = c.lower(s)
	if err != nil || first == "" {
		return first, last, err
	}
	if n, ok := s.(noted); ok && n.Note() != "" {
		c.note(first, n.Note())
	}
	return first, last, nil
}

func (c *buildContext) lower(s ast.Stmt) (first, last ir.BlockID, err error) {
	single := func(b *ir.Block, err error) (ir.BlockID, ir.BlockID, error) {
		if err != nil {
			return "", "", err
		}
		id := c.add(b)
		return id, id, nil
	}

	switch s := s.(type) {
	case *ast.ExprStmt:
		call, ok := s.X.(*ast.Call)
		if !ok {
			return "", "", c.errorf(CodeUnlowered, "expression %s is not a statement", ast.FormatExpr(s.X))
		}
		b, kind, err := c.call(call.Name, call.Args)
		if err != nil {
			return "", "", err
		}
		if kind == catalog.Hat {
			return "", "", c.errorf(CodeHatStatement, "event %q used as a statement", call.Name)
		}
		return single(b, nil)

	case *ast.Assign:
		id, ok := c.variable(s.Name)
		if !ok {
			c.warn("assignment to unknown variable %q was dropped", s.Name)
			return "", "", nil
		}
		value, err := c.input(s.Value)
		if err != nil {
			return "", "", err
		}
		b := ir.NewBlock("data_setvariableto")
		b.Fields["VARIABLE"] = ir.Field{Value: s.Name, ID: id}
		b.Inputs["VALUE"] = value
		return single(b, nil)

	case *ast.LocalDecl:
		return "", "", c.errorf(CodeUnlowered, "local %q outside a virtualized routine", s.Name)

	case *ast.Return:
		return "", "", c.errorf(CodeUnlowered, "return outside a virtualized routine")

	case *ast.If:
		cond, err := c.condition(s.Cond)
		if err != nil {
			return "", "", err
		}
		b := ir.NewBlock("control_if")
		b.Inputs["CONDITION"] = cond
		if err := c.substack(b, "SUBSTACK", s.Then); err != nil {
			return "", "", err
		}
		if s.Else != nil {
			b.Opcode = "control_if_else"
			if err := c.substack(b, "SUBSTACK2", s.Else); err != nil {
				return "", "", err
			}
		}
		return single(b, nil)

	case *ast.Repeat:
		times, err := c.input(s.Times)
		if err != nil {
			return "", "", err
		}
		b := ir.NewBlock("control_repeat")
		b.Inputs["TIMES"] = times
		return single(b, c.substack(b, "SUBSTACK", s.Body))

	case *ast.Forever:
		b := ir.NewBlock("control_forever")
		return single(b, c.substack(b, "SUBSTACK", s.Body))

	case *ast.Until:
		cond, err := c.condition(s.Cond)
		if err != nil {
			return "", "", err
		}
		b := ir.NewBlock("control_repeat_until")
		b.Inputs["CONDITION"] = cond
		return single(b, c.substack(b, "SUBSTACK", s.Body))

	case *ast.Match:
		return c.match(s)

	case *ast.CBlock:
		b, kind, err := c.call(s.Name, s.Args)
		if err != nil {
			return "", "", err
		}
		if kind == catalog.Hat {
			return "", "", c.errorf(CodeHatStatement, "event %q used as a statement", s.Name)
		}
		return single(b, c.substack(b, "SUBSTACK", s.Body))

	case *ast.CommentStmt:
		c.note("", s.Text)
		return "", "", nil

	case *ast.BlankStmt:
		return "", "", nil
	}
	return "", "", c.errorf(CodeUnlowered, "unsupported statement %T", s)
}

// match lowers to a chain of if/else blocks comparing the subject with each
// arm in order. With no arms besides the default, the default body runs
// unconditionally.
func (c *buildContext) match(s *ast.Match) (first, last ir.BlockID, err error) {
	var cases []ast.MatchArm
	var def []ast.Stmt
	hasDefault := false
	for _, arm := range s.Arms {
		if !arm.IsDefault() {
			cases = append(cases, arm)
			continue
		}
		if hasDefault {
			c.warn("duplicate default arm ignored")
			continue
		}
		def, hasDefault = arm.Body, true
	}
	if len(cases) == 0 {
		return c.sequence(def)
	}
	return c.lower(matchTree(s.Subject, cases, def))
}

func matchTree(subject ast.Expr, cases []ast.MatchArm, def []ast.Stmt) ast.Stmt {
	arm := cases[0]
	out := &ast.If{
		Cond: &ast.Binary{Op: ast.OpEq, Left: ast.CloneExpr(subject), Right: arm.Pattern},
		Then: arm.Body,
	}
	switch {
	case len(cases) > 1:
		out.Else = []ast.Stmt{matchTree(subject, cases[1:], def)}
	case len(def) > 0:
		out.Else = def
	}
	return out
}
