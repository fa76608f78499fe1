// Package codegen lowers a resolved, virtualized program into the block
// graph of one target.
//
// Every block is created exactly once and linked by id. A block's inputs
// are lowered before the block itself is inserted, and inserting it points
// each child's parent at the new block, so parent links never dangle.
package codegen

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/ir"
)

// Layout constants for the editor canvas.
const (
	rowHeight      = 48
	scriptGap      = 96
	commentColumn  = 640
	commentSpacing = 220
	commentSize    = 200
)

// Globals are the stage tables a sprite may reference but never modifies,
// keyed by name.
type Globals struct {
	Variables  map[string]string
	Lists      map[string]string
	Broadcasts map[string]string
}

// Env carries everything Build needs besides the program.
type Env struct {
	// Name is the target name. Empty means "Stage" or "Sprite".
	Name  string
	Stage bool

	// Root is the directory asset paths are relative to.
	Root string

	Catalog *catalog.Catalog

	// Globals holds the finished stage's tables when building a sprite.
	Globals *Globals

	Assets AssetHasher
	IDs    IDGenerator
	Logger *slog.Logger
}

// Result is one compiled target.
type Result struct {
	Target     *ir.Target
	Assets     []ir.AssetInstruction
	Procedures map[string]*ProcedureInfo
	Warnings   []string
}

// Globals exports the target's tables for sprites to reference.
func (r *Result) Globals() *Globals {
	g := &Globals{
		Variables:  make(map[string]string, len(r.Target.Variables)),
		Lists:      make(map[string]string, len(r.Target.Lists)),
		Broadcasts: make(map[string]string, len(r.Target.Broadcasts)),
	}
	for id, v := range r.Target.Variables {
		g.Variables[v.Name] = id
	}
	for id, l := range r.Target.Lists {
		g.Lists[l.Name] = id
	}
	for id, name := range r.Target.Broadcasts {
		g.Broadcasts[name] = id
	}
	return g
}

// buildContext is owned by a single target build.
type buildContext struct {
	env    Env
	log    *slog.Logger
	target *ir.Target

	procs      map[string]*ProcedureInfo
	vars       map[string]string
	lists      map[string]string
	broadcasts map[string]string

	// args are the parameters of the routine whose body is being lowered.
	args map[string]ast.Type

	scripts  []ir.BlockID
	notes    int
	assets   []ir.AssetInstruction
	warnings []string
}

// Build compiles prog into a target. The stage must be built before any
// sprite, and sprites receive the stage's tables through env.Globals.
func Build(prog *ast.Program, env Env) (*Result, error) {
	if env.Name == "" {
		env.Name = "Sprite"
		if env.Stage {
			env.Name = "Stage"
		}
	}
	if env.Catalog == nil {
		env.Catalog = catalog.Default()
	}
	if env.Assets == nil {
		env.Assets = FileHasher{}
	}
	if env.IDs == nil {
		env.IDs = UUIDGenerator{}
	}
	log := env.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &buildContext{
		env:        env,
		log:        log.With("target", env.Name),
		target:     ir.NewTarget(env.Name, env.Stage),
		procs:      make(map[string]*ProcedureInfo),
		vars:       make(map[string]string),
		lists:      make(map[string]string),
		broadcasts: make(map[string]string),
	}
	if err := c.declare(prog); err != nil {
		return nil, err
	}
	for _, it := range prog.Items {
		if p, ok := it.(*ast.ProcedureDef); ok {
			c.procs[p.Name] = NewProcedureInfo(p, env.IDs)
		}
	}
	if err := c.items(prog); err != nil {
		return nil, err
	}
	c.layout()

	c.log.Debug("built target", "count", len(c.target.Blocks))
	return &Result{
		Target:     c.target,
		Assets:     c.assets,
		Procedures: c.procs,
		Warnings:   c.warnings,
	}, nil
}

func (c *buildContext) errorf(code, format string, args ...any) error {
	return &Error{Code: code, Target: c.env.Name, Message: fmt.Sprintf(format, args...)}
}

func (c *buildContext) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Warn(msg)
	c.warnings = append(c.warnings, msg)
}

// declare registers variables, lists and assets so that references resolve
// regardless of where the declaration appears.
func (c *buildContext) declare(prog *ast.Program) error {
	for _, it := range prog.Items {
		switch it := it.(type) {
		case *ast.VariableDecl:
			// Public declarations of a sprite live on the stage.
			if it.Public && !c.env.Stage {
				continue
			}
			if _, dup := c.vars[it.Name]; dup {
				c.warn("variable %q declared twice", it.Name)
				continue
			}
			if _, dup := c.lists[it.Name]; dup {
				c.warn("list %q declared twice", it.Name)
				continue
			}
			id := c.env.IDs.Generate()
			if it.Type == ast.TypeList {
				c.target.Lists[id] = ir.List{Name: it.Name, Items: listItems(it.Init)}
				c.lists[it.Name] = id
			} else {
				c.target.Variables[id] = ir.Variable{Name: it.Name, Value: literalValue(it.Init)}
				c.vars[it.Name] = id
			}
		case *ast.AssetDecl:
			if err := c.asset(it); err != nil {
				return err
			}
		}
	}
	return nil
}

func literalValue(e ast.Expr) any {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value
	case *ast.StringLit:
		return e.Value
	case *ast.BoolLit:
		return e.Value
	}
	return 0
}

func listItems(e ast.Expr) []any {
	l, ok := e.(*ast.ListLit)
	if !ok {
		return nil
	}
	var out []any
	for _, it := range l.Items {
		switch it.(type) {
		case *ast.NumberLit, *ast.StringLit, *ast.BoolLit:
			out = append(out, literalValue(it))
		}
	}
	return out
}

func (c *buildContext) asset(a *ast.AssetDecl) error {
	src := a.Path
	if c.env.Root != "" && !filepath.IsAbs(src) {
		src = filepath.Join(c.env.Root, src)
	}
	sum, err := c.env.Assets.Digest(src)
	if err != nil {
		return fmt.Errorf("asset %q: %w", a.Name, err)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")

	var dest string
	switch a.Kind {
	case ast.AssetSound:
		if ext == "" {
			ext = "wav"
		}
		dest = sum + "." + ext
		c.target.Sounds = append(c.target.Sounds, ir.Sound{
			Name: a.Name, AssetID: sum, MD5Ext: dest, DataFormat: ext, Rate: 44100,
		})
	default:
		if ext == "" {
			ext = "svg"
		}
		dest = sum + "." + ext
		c.target.Costumes = append(c.target.Costumes, ir.Costume{
			Name: a.Name, AssetID: sum, MD5Ext: dest, DataFormat: ext, BitmapResolution: 1,
		})
	}
	c.assets = append(c.assets, ir.AssetInstruction{Source: src, Destination: dest})
	return nil
}

// items lowers every routine, handler and top-level statement. Top-level
// statements chain into one script until a comment, a blank line or a
// routine breaks the chain.
func (c *buildContext) items(prog *ast.Program) error {
	var chain ir.BlockID
	for _, it := range prog.Items {
		switch it := it.(type) {
		case *ast.ProcedureDef:
			if err := c.procedure(it); err != nil {
				return err
			}
			chain = ""
		case *ast.Handler:
			if err := c.handler(it); err != nil {
				return err
			}
			chain = ""
		case *ast.CommentItem:
			c.note("", it.Text)
			chain = ""
		case *ast.BatchBreak:
			chain = ""
		case *ast.StmtItem:
			first, last, err := c.stmt(it.Stmt)
			if err != nil {
				return err
			}
			if first == "" {
				continue
			}
			if chain == "" {
				c.script(first)
			} else {
				c.link(chain, first)
			}
			chain = last
		case *ast.VariableDecl, *ast.AssetDecl, *ast.Use:
		}
	}
	return nil
}

// add inserts b and points the parent of every block in its inputs at it.
func (c *buildContext) add(b *ir.Block) ir.BlockID {
	id := ir.BlockID(c.env.IDs.Generate())
	c.target.Blocks[id] = b
	for _, child := range b.Children() {
		if cb, ok := c.target.Blocks[child]; ok {
			cb.Parent = id
		}
	}
	return id
}

func (c *buildContext) link(prev, next ir.BlockID) {
	c.target.Blocks[prev].Next = next
	c.target.Blocks[next].Parent = prev
}

func (c *buildContext) script(head ir.BlockID) {
	c.target.Blocks[head].TopLevel = true
	c.scripts = append(c.scripts, head)
}

// note adds a comment, attached to block when it is set and floating
// otherwise.
func (c *buildContext) note(block ir.BlockID, text string) {
	id := ir.CommentID(c.env.IDs.Generate())
	cm := ir.Comment{BlockID: block, Width: commentSize, Height: commentSize, Text: text}
	if block == "" {
		cm.X = commentColumn
		cm.Y = float64(c.notes * commentSpacing)
		c.notes++
	} else {
		c.target.Blocks[block].Comment = id
	}
	c.target.Comments[id] = cm
}

// layout stacks the scripts in one column in source order.
func (c *buildContext) layout() {
	y := 0.0
	for _, head := range c.scripts {
		c.target.Blocks[head].Position = &ir.Position{X: 0, Y: y}
		y += float64(c.stackHeight(head)*rowHeight + scriptGap)
	}
}

func (c *buildContext) stackHeight(id ir.BlockID) int {
	n := 0
	for id != "" {
		b := c.target.Blocks[id]
		n++
		for _, key := range []string{"SUBSTACK", "SUBSTACK2"} {
			if in, ok := b.Inputs[key]; ok {
				n += c.stackHeight(in.Block)
			}
		}
		id = b.Next
	}
	return n
}

// procedure emits the prototype and definition of p and threads its body
// from the definition.
func (c *buildContext) procedure(p *ast.ProcedureDef) error {
	info := c.procs[p.Name]

	proto := ir.NewBlock("procedures_prototype")
	proto.Shadow = true
	for i, argID := range info.ArgumentIDs {
		r := ir.NewBlock(argumentOpcode(info.ArgumentTypes[i]))
		r.Shadow = true
		r.Fields["VALUE"] = ir.Field{Value: info.ArgumentNames[i]}
		proto.Inputs[argID] = ir.ShadowBlock(c.add(r))
	}
	proto.Mutation = info.prototypeMutation()
	protoID := c.add(proto)

	def := ir.NewBlock("procedures_definition")
	def.Inputs["custom_block"] = ir.ShadowBlock(protoID)
	defID := c.add(def)
	c.script(defID)
	if p.Comment != "" {
		c.note(defID, p.Comment)
	}

	if err := c.body(defID, p.Params, p.Body); err != nil {
		return err
	}
	c.log.Debug("compiled procedure", "procedure", p.Name, "count", len(info.ArgumentIDs))
	return nil
}

// handler emits the hat selected by h's first attribute followed by its
// body. A handler without attributes can never run and is dropped.
func (c *buildContext) handler(h *ast.Handler) error {
	if len(h.Attributes) == 0 {
		c.warn("handler %q has no event attribute and was dropped", h.Name)
		return nil
	}
	attr := h.Attributes[0]
	entry, ok := c.env.Catalog.Lookup(attr.Name, len(attr.Args))
	if !ok {
		return c.errorf(CodeUnknownCall, "handler %q: unknown event %q", h.Name, attr.Name)
	}
	if entry.Kind != catalog.Hat {
		return c.errorf(CodeUnknownCall, "handler %q: %q is not an event", h.Name, attr.Name)
	}
	hat, err := c.catalogBlock(entry, attr.Args)
	if err != nil {
		return err
	}
	id := c.add(hat)
	c.script(id)
	if h.Comment != "" {
		c.note(id, h.Comment)
	}
	return c.body(id, h.Params, h.Body)
}

func (c *buildContext) body(head ir.BlockID, params []ast.Param, body []ast.Stmt) error {
	c.args = make(map[string]ast.Type, len(params))
	for _, prm := range params {
		c.args[prm.Name] = prm.Type
	}
	defer func() { c.args = nil }()

	first, _, err := c.sequence(body)
	if err != nil {
		return err
	}
	if first != "" {
		c.link(head, first)
	}
	return nil
}

func argumentOpcode(t ast.Type) string {
	if t == ast.TypeBoolean {
		return "argument_reporter_boolean"
	}
	return "argument_reporter_string_number"
}
