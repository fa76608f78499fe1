package virtualize

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/roach88/blockc/internal/ast"
)

// machine executes a lowered program the way the block runtime would:
// routines have parameters but no locals or return values, lists are
// 1-based, and every variable is global. It fails the test on anything the
// virtualizer should have lowered away.
type machine struct {
	t      *testing.T
	procs  map[string]*ast.ProcedureDef
	hands  map[string]*ast.Handler
	vars   map[string]any
	lists  map[string][]any
	out    []string
	allocs int
	frees  int
	steps  int
}

func newMachine(t *testing.T, prog *ast.Program) *machine {
	t.Helper()
	m := &machine{
		t:     t,
		procs: make(map[string]*ast.ProcedureDef),
		hands: make(map[string]*ast.Handler),
		vars:  make(map[string]any),
		lists: make(map[string][]any),
	}
	for _, it := range prog.Items {
		switch it := it.(type) {
		case *ast.ProcedureDef:
			m.procs[it.Name] = it
		case *ast.Handler:
			m.hands[it.Name] = it
		case *ast.VariableDecl:
			if it.Type == ast.TypeList {
				m.lists[it.Name] = nil
				continue
			}
			m.vars[it.Name] = float64(0)
			if it.Init != nil {
				m.vars[it.Name] = m.eval(it.Init, nil)
			}
		}
	}
	return m
}

func (m *machine) run(handler string) {
	m.t.Helper()
	h, ok := m.hands[handler]
	if !ok {
		m.t.Fatalf("no handler %q", handler)
	}
	m.exec(h.Body, nil)
}

// runStmts executes top-level statements.
func (m *machine) runStmts(prog *ast.Program) {
	for _, it := range prog.Items {
		if s, ok := it.(*ast.StmtItem); ok {
			m.exec([]ast.Stmt{s.Stmt}, nil)
		}
	}
}

func (m *machine) exec(body []ast.Stmt, env map[string]any) {
	for _, s := range body {
		m.steps++
		if m.steps > 1_000_000 {
			m.t.Fatalf("program did not terminate")
		}
		switch s := s.(type) {
		case *ast.ExprStmt:
			c, ok := s.X.(*ast.Call)
			if !ok {
				m.t.Fatalf("expression statement is not a call: %T", s.X)
			}
			m.call(c, env)
		case *ast.Assign:
			m.vars[s.Name] = m.eval(s.Value, env)
		case *ast.If:
			if truthy(m.eval(s.Cond, env)) {
				m.exec(s.Then, env)
			} else {
				m.exec(s.Else, env)
			}
		case *ast.Repeat:
			n := int(num(m.eval(s.Times, env)))
			for i := 0; i < n; i++ {
				m.exec(s.Body, env)
			}
		case *ast.Until:
			for !truthy(m.eval(s.Cond, env)) {
				m.exec(s.Body, env)
			}
		case *ast.Match:
			subject := m.eval(s.Subject, env)
			for _, arm := range s.Arms {
				if arm.IsDefault() || equal(subject, m.eval(arm.Pattern, env)) {
					m.exec(arm.Body, env)
					break
				}
			}
		case *ast.CommentStmt, *ast.BlankStmt:
		default:
			m.t.Fatalf("statement %T reached the runtime", s)
		}
	}
}

func (m *machine) list(e ast.Expr) string {
	v, ok := e.(*ast.VarRef)
	if !ok {
		m.t.Fatalf("list argument is %T", e)
	}
	if _, ok := m.lists[v.Name]; !ok {
		m.t.Fatalf("undeclared list %q", v.Name)
	}
	return v.Name
}

func (m *machine) index(list string, i any) int {
	n := int(num(i))
	if n < 1 || n > len(m.lists[list]) {
		m.t.Fatalf("index %d out of range for %s (len %d)", n, list, len(m.lists[list]))
	}
	return n - 1
}

func (m *machine) call(c *ast.Call, env map[string]any) any {
	switch c.Name {
	case "say":
		m.out = append(m.out, str(m.eval(c.Args[0], env)))
		return nil
	case "add_to_list":
		l := m.list(c.Args[0])
		v := m.eval(c.Args[1], env)
		if l == FreeList {
			for _, f := range m.lists[l] {
				if equal(f, v) {
					m.t.Fatalf("frame %v freed twice", v)
				}
			}
			m.frees++
		}
		m.lists[l] = append(m.lists[l], v)
		return nil
	case "replace_item_of_list":
		l := m.list(c.Args[0])
		i := m.index(l, m.eval(c.Args[1], env))
		m.lists[l][i] = m.eval(c.Args[2], env)
		return nil
	case "delete_of_list":
		l := m.list(c.Args[0])
		i := m.index(l, m.eval(c.Args[1], env))
		m.lists[l] = append(m.lists[l][:i], m.lists[l][i+1:]...)
		return nil
	case "item_of_list":
		l := m.list(c.Args[0])
		return m.lists[l][m.index(l, m.eval(c.Args[1], env))]
	case "length_of_list":
		return float64(len(m.lists[m.list(c.Args[0])]))
	case "join":
		s := ""
		for _, a := range c.Args {
			s += str(m.eval(a, env))
		}
		return s
	}

	p, ok := m.procs[c.Name]
	if !ok {
		m.t.Fatalf("unknown routine %q", c.Name)
	}
	if len(c.Args) != len(p.Params) {
		m.t.Fatalf("%s called with %d arguments, wants %d", c.Name, len(c.Args), len(p.Params))
	}
	if len(p.Params) > 0 && p.Params[0].Name == FrameParam {
		// Inner routines receive a fresh frame that is not on the free list.
		m.allocs++
	}
	frame := make(map[string]any, len(p.Params))
	for i, prm := range p.Params {
		frame[prm.Name] = m.eval(c.Args[i], env)
	}
	m.exec(p.Body, frame)
	return nil
}

func (m *machine) eval(e ast.Expr, env map[string]any) any {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value
	case *ast.StringLit:
		return e.Value
	case *ast.BoolLit:
		return e.Value
	case *ast.VarRef:
		if v, ok := env[e.Name]; ok {
			return v
		}
		if v, ok := m.vars[e.Name]; ok {
			return v
		}
		m.t.Fatalf("unknown variable %q", e.Name)
	case *ast.Call:
		if _, isProc := m.procs[e.Name]; isProc {
			m.t.Fatalf("routine %q used as a value", e.Name)
		}
		return m.call(e, env)
	case *ast.Unary:
		x := m.eval(e.X, env)
		if e.Op == ast.OpNot {
			return !truthy(x)
		}
		return -num(x)
	case *ast.Binary:
		l, r := m.eval(e.Left, env), m.eval(e.Right, env)
		switch e.Op {
		case ast.OpAdd:
			return num(l) + num(r)
		case ast.OpSub:
			return num(l) - num(r)
		case ast.OpMul:
			return num(l) * num(r)
		case ast.OpDiv:
			return num(l) / num(r)
		case ast.OpEq:
			return equal(l, r)
		case ast.OpNe:
			return !equal(l, r)
		case ast.OpLt:
			return num(l) < num(r)
		case ast.OpGt:
			return num(l) > num(r)
		case ast.OpLe:
			return num(l) <= num(r)
		case ast.OpGe:
			return num(l) >= num(r)
		case ast.OpAnd:
			return truthy(l) && truthy(r)
		case ast.OpOr:
			return truthy(l) || truthy(r)
		}
	}
	m.t.Fatalf("cannot evaluate %T", e)
	return nil
}

// balanced fails unless every allocated frame has been returned exactly once.
func (m *machine) balanced(width int) {
	m.t.Helper()
	if m.allocs != m.frees {
		m.t.Fatalf("%d frames allocated, %d freed", m.allocs, m.frees)
	}
	frames := int(num(m.vars[HighWater])-1) / width
	if got := len(m.lists[FreeList]); got != frames {
		m.t.Fatalf("free list holds %d frames, %d were ever created", got, frames)
	}
}

func num(v any) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func str(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	}
	return fmt.Sprint(v)
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0" && v != "false"
	}
	return false
}

func equal(a, b any) bool {
	return str(a) == str(b)
}
