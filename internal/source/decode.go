package source

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockc/internal/ast"
)

type decoder struct {
	path string
}

func (d *decoder) errorf(n *yaml.Node, format string, args ...any) error {
	e := &Error{Path: d.path, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mapping returns the entries of a mapping node keyed by name. Keys outside
// allowed are rejected so typos surface as errors.
func (d *decoder) mapping(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, d.errorf(k, "mapping keys must be scalars")
		}
		if _, dup := out[k.Value]; dup {
			return nil, d.errorf(k, "duplicate key %q", k.Value)
		}
		if len(allowed) > 0 && !contains(allowed, k.Value) {
			return nil, d.errorf(k, "unknown key %q", k.Value)
		}
		out[k.Value] = v
	}
	return out, nil
}

// primary picks the single key of fields that names the node's kind.
func (d *decoder) primary(n *yaml.Node, fields map[string]*yaml.Node, kinds []string) (string, error) {
	found := ""
	for _, k := range kinds {
		if _, ok := fields[k]; !ok {
			continue
		}
		if found != "" {
			return "", d.errorf(n, "ambiguous node: both %q and %q present", found, k)
		}
		found = k
	}
	if found == "" {
		return "", d.errorf(n, "expected one of %v", kinds)
	}
	return found, nil
}

func (d *decoder) sequence(n *yaml.Node) ([]*yaml.Node, error) {
	n = resolve(n)
	if n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, "expected a sequence")
	}
	return n.Content, nil
}

func (d *decoder) str(n *yaml.Node) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", d.errorf(n, "expected a scalar")
	}
	return n.Value, nil
}

func (d *decoder) name(n *yaml.Node) (string, error) {
	s, err := d.str(n)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", d.errorf(n, "name must not be empty")
	}
	return s, nil
}

func (d *decoder) boolean(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, d.errorf(n, "expected a boolean")
	}
	return b, nil
}

// strings accepts a sequence of scalars or a single scalar.
func (d *decoder) strings(n *yaml.Node) ([]string, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode {
		s, err := d.str(n)
		return []string{s}, err
	}
	nodes, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, c := range nodes {
		s, err := d.str(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) moduleHeader(n *yaml.Node) (*ast.Module, error) {
	f, err := d.mapping(n, "name", "extensions", "dependencies")
	if err != nil {
		return nil, err
	}
	mod := &ast.Module{}
	if mod.Name, err = d.name(f["name"]); err != nil {
		return nil, err
	}
	if mod.Extensions, err = d.strings(f["extensions"]); err != nil {
		return nil, err
	}
	if mod.Dependencies, err = d.strings(f["dependencies"]); err != nil {
		return nil, err
	}
	return mod, nil
}

var itemKinds = []string{"use", "var", "list", "costume", "sound", "proc", "handler", "comment", "blank", "stmt"}

func (d *decoder) items(n *yaml.Node) ([]ast.Item, error) {
	nodes, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Item, 0, len(nodes))
	for _, c := range nodes {
		it, err := d.item(c)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (d *decoder) item(n *yaml.Node) (ast.Item, error) {
	f, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	kind, err := d.primary(n, f, itemKinds)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "use":
		if _, err := d.mapping(n, "use"); err != nil {
			return nil, err
		}
		name, err := d.name(f["use"])
		return &ast.Use{Module: name}, err
	case "var", "list":
		return d.variable(n, kind)
	case "costume", "sound":
		if _, err := d.mapping(n, kind, "path"); err != nil {
			return nil, err
		}
		a := &ast.AssetDecl{Kind: ast.AssetCostume}
		if kind == "sound" {
			a.Kind = ast.AssetSound
		}
		if a.Name, err = d.name(f[kind]); err != nil {
			return nil, err
		}
		if a.Path, err = d.name(f["path"]); err != nil {
			return nil, err
		}
		return a, nil
	case "proc":
		return d.procedure(n)
	case "handler":
		return d.handler(n)
	case "comment":
		if _, err := d.mapping(n, "comment"); err != nil {
			return nil, err
		}
		text, err := d.str(f["comment"])
		return &ast.CommentItem{Text: text}, err
	case "blank":
		if _, err := d.mapping(n, "blank"); err != nil {
			return nil, err
		}
		return &ast.BatchBreak{}, nil
	default: // stmt
		if _, err := d.mapping(n, "stmt"); err != nil {
			return nil, err
		}
		s, err := d.stmt(f["stmt"])
		if err != nil {
			return nil, err
		}
		return &ast.StmtItem{Stmt: s}, nil
	}
}

func (d *decoder) variable(n *yaml.Node, kind string) (ast.Item, error) {
	f, err := d.mapping(n, kind, "type", "public", "value")
	if err != nil {
		return nil, err
	}
	v := &ast.VariableDecl{Type: ast.TypeUnknown}
	if v.Name, err = d.name(f[kind]); err != nil {
		return nil, err
	}
	if v.Public, err = d.boolean(f["public"]); err != nil {
		return nil, err
	}
	if kind == "list" {
		v.Type = ast.TypeList
		nodes, err := d.sequence(f["value"])
		if err != nil {
			return nil, err
		}
		lit := &ast.ListLit{}
		for _, c := range nodes {
			e, err := d.expr(c)
			if err != nil {
				return nil, err
			}
			lit.Items = append(lit.Items, e)
		}
		v.Init = lit
		return v, nil
	}
	if t, ok := f["type"]; ok {
		s, err := d.str(t)
		if err != nil {
			return nil, err
		}
		v.Type = ast.ParseType(s)
	}
	if init, ok := f["value"]; ok {
		if v.Init, err = d.expr(init); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (d *decoder) params(n *yaml.Node) ([]ast.Param, error) {
	nodes, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Param, 0, len(nodes))
	for _, c := range nodes {
		c = resolve(c)
		if c.Kind == yaml.ScalarNode {
			out = append(out, ast.Param{Name: c.Value, Type: ast.TypeUnknown})
			continue
		}
		if c.Kind != yaml.MappingNode || len(c.Content) != 2 {
			return nil, d.errorf(c, "parameter must be a name or a single name: type pair")
		}
		name, err := d.name(c.Content[0])
		if err != nil {
			return nil, err
		}
		typ, err := d.str(c.Content[1])
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Param{Name: name, Type: ast.ParseType(typ)})
	}
	return out, nil
}

func (d *decoder) procedure(n *yaml.Node) (*ast.ProcedureDef, error) {
	f, err := d.mapping(n, "proc", "params", "returns", "warp", "format", "note", "body")
	if err != nil {
		return nil, err
	}
	p := &ast.ProcedureDef{}
	if p.Name, err = d.name(f["proc"]); err != nil {
		return nil, err
	}
	if p.Params, err = d.params(f["params"]); err != nil {
		return nil, err
	}
	if p.Warp, err = d.boolean(f["warp"]); err != nil {
		return nil, err
	}
	if r, ok := f["returns"]; ok {
		s, err := d.str(r)
		if err != nil {
			return nil, err
		}
		t := ast.ParseType(s)
		p.ReturnType = &t
	}
	if fm, ok := f["format"]; ok {
		ff, err := d.mapping(fm, "template", "args")
		if err != nil {
			return nil, err
		}
		p.Format = &ast.Format{}
		if p.Format.Template, err = d.str(ff["template"]); err != nil {
			return nil, err
		}
		if p.Format.Args, err = d.strings(ff["args"]); err != nil {
			return nil, err
		}
	}
	if note, ok := f["note"]; ok {
		if p.Comment, err = d.str(note); err != nil {
			return nil, err
		}
	}
	if p.Body, err = d.stmts(f["body"]); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *decoder) handler(n *yaml.Node) (*ast.Handler, error) {
	f, err := d.mapping(n, "handler", "on", "params", "warp", "note", "body")
	if err != nil {
		return nil, err
	}
	h := &ast.Handler{}
	if h.Name, err = d.name(f["handler"]); err != nil {
		return nil, err
	}
	if h.Attributes, err = d.attributes(f["on"]); err != nil {
		return nil, err
	}
	if h.Params, err = d.params(f["params"]); err != nil {
		return nil, err
	}
	if h.Warp, err = d.boolean(f["warp"]); err != nil {
		return nil, err
	}
	if note, ok := f["note"]; ok {
		if h.Comment, err = d.str(note); err != nil {
			return nil, err
		}
	}
	if h.Body, err = d.stmts(f["body"]); err != nil {
		return nil, err
	}
	return h, nil
}

// attributes decodes `on:` entries: a bare name, or a single name: args pair
// whose value is one argument or a sequence of them.
func (d *decoder) attributes(n *yaml.Node) ([]ast.Attribute, error) {
	n = resolve(n)
	if n != nil && n.Kind != yaml.SequenceNode {
		n = &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{n}}
	}
	nodes, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Attribute, 0, len(nodes))
	for _, c := range nodes {
		c = resolve(c)
		if c.Kind == yaml.ScalarNode {
			out = append(out, ast.Attribute{Name: c.Value})
			continue
		}
		if c.Kind != yaml.MappingNode || len(c.Content) != 2 {
			return nil, d.errorf(c, "attribute must be a name or a single name: args pair")
		}
		name, err := d.name(c.Content[0])
		if err != nil {
			return nil, err
		}
		args, err := d.args(c.Content[1])
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Attribute{Name: name, Args: args})
	}
	return out, nil
}

// args decodes a call's argument list. A lone non-sequence value is a
// single argument.
func (d *decoder) args(n *yaml.Node) ([]ast.Expr, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		e, err := d.expr(n)
		if err != nil {
			return nil, err
		}
		return []ast.Expr{e}, nil
	}
	out := make([]ast.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) stmts(n *yaml.Node) ([]ast.Stmt, error) {
	nodes, err := d.sequence(n)
	if err != nil {
		return nil, err
	}
	out := make([]ast.Stmt, 0, len(nodes))
	for _, c := range nodes {
		s, err := d.stmt(c)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

var stmtKinds = []string{"call", "set", "let", "return", "if", "repeat", "forever", "until", "match", "block", "comment", "blank"}

func (d *decoder) stmt(n *yaml.Node) (ast.Stmt, error) {
	f, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	kind, err := d.primary(n, f, stmtKinds)
	if err != nil {
		return nil, err
	}

	var note ast.Annotated
	if nn, ok := f["note"]; ok {
		if note.Comment, err = d.str(nn); err != nil {
			return nil, err
		}
	}

	switch kind {
	case "call":
		if _, err := d.mapping(n, "call", "args", "note"); err != nil {
			return nil, err
		}
		c, err := d.call(f)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Annotated: note, X: c}, nil

	case "set":
		if _, err := d.mapping(n, "set", "to", "note"); err != nil {
			return nil, err
		}
		s := &ast.Assign{Annotated: note}
		if s.Name, err = d.name(f["set"]); err != nil {
			return nil, err
		}
		if s.Value, err = d.required(n, f, "to"); err != nil {
			return nil, err
		}
		return s, nil

	case "let":
		if _, err := d.mapping(n, "let", "value", "note"); err != nil {
			return nil, err
		}
		s := &ast.LocalDecl{Annotated: note}
		if s.Name, err = d.name(f["let"]); err != nil {
			return nil, err
		}
		if s.Value, err = d.required(n, f, "value"); err != nil {
			return nil, err
		}
		return s, nil

	case "return":
		if _, err := d.mapping(n, "return", "note"); err != nil {
			return nil, err
		}
		s := &ast.Return{Annotated: note}
		if v := resolve(f["return"]); v.Kind != yaml.ScalarNode || v.ShortTag() != "!!null" {
			if s.Value, err = d.expr(v); err != nil {
				return nil, err
			}
		}
		return s, nil

	case "if":
		if _, err := d.mapping(n, "if", "then", "else", "note"); err != nil {
			return nil, err
		}
		s := &ast.If{Annotated: note}
		if s.Cond, err = d.expr(f["if"]); err != nil {
			return nil, err
		}
		if s.Then, err = d.stmts(f["then"]); err != nil {
			return nil, err
		}
		if s.Else, err = d.stmts(f["else"]); err != nil {
			return nil, err
		}
		return s, nil

	case "repeat":
		if _, err := d.mapping(n, "repeat", "do", "note"); err != nil {
			return nil, err
		}
		s := &ast.Repeat{Annotated: note}
		if s.Times, err = d.expr(f["repeat"]); err != nil {
			return nil, err
		}
		if s.Body, err = d.stmts(f["do"]); err != nil {
			return nil, err
		}
		return s, nil

	case "forever":
		if _, err := d.mapping(n, "forever", "note"); err != nil {
			return nil, err
		}
		s := &ast.Forever{Annotated: note}
		if s.Body, err = d.stmts(f["forever"]); err != nil {
			return nil, err
		}
		return s, nil

	case "until":
		if _, err := d.mapping(n, "until", "do", "note"); err != nil {
			return nil, err
		}
		s := &ast.Until{Annotated: note}
		if s.Cond, err = d.expr(f["until"]); err != nil {
			return nil, err
		}
		if s.Body, err = d.stmts(f["do"]); err != nil {
			return nil, err
		}
		return s, nil

	case "match":
		if _, err := d.mapping(n, "match", "cases", "note"); err != nil {
			return nil, err
		}
		s := &ast.Match{Annotated: note}
		if s.Subject, err = d.expr(f["match"]); err != nil {
			return nil, err
		}
		cases, err := d.sequence(f["cases"])
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			arm, err := d.arm(c)
			if err != nil {
				return nil, err
			}
			s.Arms = append(s.Arms, arm)
		}
		return s, nil

	case "block":
		if _, err := d.mapping(n, "block", "args", "do", "note"); err != nil {
			return nil, err
		}
		s := &ast.CBlock{Annotated: note}
		if s.Name, err = d.name(f["block"]); err != nil {
			return nil, err
		}
		if s.Args, err = d.args(f["args"]); err != nil {
			return nil, err
		}
		if s.Body, err = d.stmts(f["do"]); err != nil {
			return nil, err
		}
		return s, nil

	case "comment":
		if _, err := d.mapping(n, "comment"); err != nil {
			return nil, err
		}
		text, err := d.str(f["comment"])
		return &ast.CommentStmt{Text: text}, err

	default: // blank
		if _, err := d.mapping(n, "blank"); err != nil {
			return nil, err
		}
		return &ast.BlankStmt{}, nil
	}
}

func (d *decoder) arm(n *yaml.Node) (ast.MatchArm, error) {
	f, err := d.mapping(n, "when", "do", "default")
	if err != nil {
		return ast.MatchArm{}, err
	}
	if def, ok := f["default"]; ok {
		if _, extra := f["when"]; extra {
			return ast.MatchArm{}, d.errorf(n, "a default arm takes no pattern")
		}
		body, err := d.stmts(def)
		return ast.MatchArm{Body: body}, err
	}
	pat, err := d.required(n, f, "when")
	if err != nil {
		return ast.MatchArm{}, err
	}
	body, err := d.stmts(f["do"])
	return ast.MatchArm{Pattern: pat, Body: body}, err
}

func (d *decoder) required(n *yaml.Node, f map[string]*yaml.Node, key string) (ast.Expr, error) {
	v, ok := f[key]
	if !ok {
		return nil, d.errorf(n, "missing %q", key)
	}
	return d.expr(v)
}

func (d *decoder) call(f map[string]*yaml.Node) (*ast.Call, error) {
	name, err := d.name(f["call"])
	if err != nil {
		return nil, err
	}
	args, err := d.args(f["args"])
	if err != nil {
		return nil, err
	}
	return &ast.Call{Name: name, Args: args}, nil
}

var exprKinds = []string{"var", "call", "op", "not", "neg", "list"}

func (d *decoder) expr(n *yaml.Node) (ast.Expr, error) {
	n = resolve(n)
	if n == nil {
		return nil, d.errorf(nil, "missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return d.literal(n)
	case yaml.MappingNode:
	default:
		return nil, d.errorf(n, "expected an expression")
	}

	f, err := d.mapping(n)
	if err != nil {
		return nil, err
	}
	kind, err := d.primary(n, f, exprKinds)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "var":
		if _, err := d.mapping(n, "var"); err != nil {
			return nil, err
		}
		name, err := d.name(f["var"])
		return &ast.VarRef{Name: name}, err
	case "call":
		if _, err := d.mapping(n, "call", "args"); err != nil {
			return nil, err
		}
		return d.call(f)
	case "op":
		if _, err := d.mapping(n, "op", "left", "right"); err != nil {
			return nil, err
		}
		text, err := d.str(f["op"])
		if err != nil {
			return nil, err
		}
		op, ok := ast.ParseBinaryOp(text)
		if !ok {
			return nil, d.errorf(f["op"], "unknown operator %q", text)
		}
		b := &ast.Binary{Op: op}
		if b.Left, err = d.required(n, f, "left"); err != nil {
			return nil, err
		}
		if b.Right, err = d.required(n, f, "right"); err != nil {
			return nil, err
		}
		return b, nil
	case "not", "neg":
		if _, err := d.mapping(n, kind); err != nil {
			return nil, err
		}
		u := &ast.Unary{Op: ast.OpNot}
		if kind == "neg" {
			u.Op = ast.OpNeg
		}
		if u.X, err = d.expr(f[kind]); err != nil {
			return nil, err
		}
		return u, nil
	default: // list
		if _, err := d.mapping(n, "list"); err != nil {
			return nil, err
		}
		items, err := d.args(f["list"])
		if err != nil {
			return nil, err
		}
		return &ast.ListLit{Items: items}, nil
	}
}

func (d *decoder) literal(n *yaml.Node) (ast.Expr, error) {
	switch n.ShortTag() {
	case "!!int", "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, d.errorf(n, "invalid number %q", n.Value)
		}
		return &ast.NumberLit{Value: v}, nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, d.errorf(n, "invalid boolean %q", n.Value)
		}
		return &ast.BoolLit{Value: v}, nil
	case "!!null":
		return nil, d.errorf(n, "missing expression")
	default:
		return &ast.StringLit{Value: n.Value}, nil
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
