package codegen

import (
	"strconv"
	"strings"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/ir"
)

type binaryOpcode struct {
	opcode string
	// negate wraps the block in operator_not.
	negate bool
	// numeric blocks name their inputs NUM1/NUM2 instead of OPERAND1/OPERAND2.
	numeric bool
	// logical operands are lowered in boolean context.
	logical bool
}

var binaryOpcodes = map[ast.BinaryOp]binaryOpcode{
	ast.OpAdd: {opcode: "operator_add", numeric: true},
	ast.OpSub: {opcode: "operator_subtract", numeric: true},
	ast.OpMul: {opcode: "operator_multiply", numeric: true},
	ast.OpDiv: {opcode: "operator_divide", numeric: true},
	ast.OpMod: {opcode: "operator_mod", numeric: true},
	ast.OpEq:  {opcode: "operator_equals"},
	ast.OpNe:  {opcode: "operator_equals", negate: true},
	ast.OpLt:  {opcode: "operator_lt"},
	ast.OpGt:  {opcode: "operator_gt"},
	ast.OpLe:  {opcode: "operator_gt", negate: true},
	ast.OpGe:  {opcode: "operator_lt", negate: true},
	ast.OpAnd: {opcode: "operator_and", logical: true},
	ast.OpOr:  {opcode: "operator_or", logical: true},
}

func emptyString() ir.Input {
	return ir.ShadowLiteral(ir.StringPrim(""))
}

func (c *buildContext) variable(name string) (string, bool) {
	if id, ok := c.vars[name]; ok {
		return id, true
	}
	if c.env.Globals != nil {
		if id, ok := c.env.Globals.Variables[name]; ok {
			return id, true
		}
	}
	return "", false
}

func (c *buildContext) list(name string) (string, bool) {
	if id, ok := c.lists[name]; ok {
		return id, true
	}
	if c.env.Globals != nil {
		if id, ok := c.env.Globals.Lists[name]; ok {
			return id, true
		}
	}
	return "", false
}

// broadcast returns the id of the named broadcast, creating it in this
// target's table on first use.
func (c *buildContext) broadcast(name string) string {
	if id, ok := c.broadcasts[name]; ok {
		return id
	}
	if c.env.Globals != nil {
		if id, ok := c.env.Globals.Broadcasts[name]; ok {
			return id
		}
	}
	id := c.env.IDs.Generate()
	c.broadcasts[name] = id
	c.target.Broadcasts[id] = name
	return id
}

// input lowers e into a value input.
func (c *buildContext) input(e ast.Expr) (ir.Input, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		return ir.ShadowLiteral(ir.NumberPrim(e.Value)), nil
	case *ast.StringLit:
		return ir.ShadowLiteral(ir.StringPrim(e.Value)), nil
	case *ast.BoolLit:
		// Boolean slots hold no literal shadow, so the value becomes a
		// comparison that evaluates to it.
		return c.truth(e.Value), nil
	case *ast.VarRef:
		return c.reference(e.Name), nil
	case *ast.Call:
		b, kind, err := c.call(e.Name, e.Args)
		if err != nil {
			return ir.Input{}, err
		}
		if !kind.IsValue() {
			return ir.Input{}, c.errorf(CodeNotAValue, "%s block %q used as a value", kind, e.Name)
		}
		return ir.BlockInput(c.add(b)), nil
	case *ast.Binary:
		return c.binary(e)
	case *ast.Unary:
		return c.unary(e)
	case *ast.ListLit:
		return emptyString(), nil
	}
	return ir.Input{}, c.errorf(CodeUnlowered, "unsupported expression %T", e)
}

// reference resolves a name to a variable, then a list, then a parameter of
// the routine being lowered. Anything else becomes an empty string.
func (c *buildContext) reference(name string) ir.Input {
	if id, ok := c.variable(name); ok {
		return ir.ObscuredRef(ir.Primitive{Type: ir.PrimVariable, Name: name, ID: id})
	}
	if id, ok := c.list(name); ok {
		return ir.ObscuredRef(ir.Primitive{Type: ir.PrimList, Name: name, ID: id})
	}
	if t, ok := c.args[name]; ok {
		b := ir.NewBlock(argumentOpcode(t))
		b.Fields["VALUE"] = ir.Field{Value: name}
		return ir.BlockInput(c.add(b))
	}
	c.log.Debug("unresolved name lowered to empty string", "name", name)
	return emptyString()
}

func (c *buildContext) equals(left, right ir.Input) ir.Input {
	b := ir.NewBlock("operator_equals")
	b.Inputs["OPERAND1"] = left
	b.Inputs["OPERAND2"] = right
	return ir.BlockInput(c.add(b))
}

// truth builds a comparison that is always v.
func (c *buildContext) truth(v bool) ir.Input {
	want := "0"
	if v {
		want = "1"
	}
	return c.equals(ir.ShadowLiteral(ir.StringPrim("1")), ir.ShadowLiteral(ir.StringPrim(want)))
}

func truthy(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value != 0
	case *ast.StringLit:
		return e.Value != "" && e.Value != "0" && !strings.EqualFold(e.Value, "false")
	}
	return false
}

// condition lowers e into a boolean input. Literals become a comparison
// with their truth value and variables a comparison with "true".
func (c *buildContext) condition(e ast.Expr) (ir.Input, error) {
	switch e := e.(type) {
	case *ast.NumberLit, *ast.StringLit:
		return c.truth(truthy(e)), nil
	case *ast.VarRef:
		_, isVar := c.variable(e.Name)
		if t, isArg := c.args[e.Name]; !isVar && isArg && t == ast.TypeBoolean {
			return c.reference(e.Name), nil
		}
		return c.equals(c.reference(e.Name), ir.ShadowLiteral(ir.StringPrim("true"))), nil
	}
	return c.input(e)
}

func (c *buildContext) binary(e *ast.Binary) (ir.Input, error) {
	op, ok := binaryOpcodes[e.Op]
	if !ok {
		return ir.Input{}, c.errorf(CodeUnlowered, "unsupported operator %s", e.Op)
	}
	operand := c.input
	if op.logical {
		operand = c.condition
	}
	left, err := operand(e.Left)
	if err != nil {
		return ir.Input{}, err
	}
	right, err := operand(e.Right)
	if err != nil {
		return ir.Input{}, err
	}

	b := ir.NewBlock(op.opcode)
	if op.numeric {
		b.Inputs["NUM1"], b.Inputs["NUM2"] = left, right
	} else {
		b.Inputs["OPERAND1"], b.Inputs["OPERAND2"] = left, right
	}
	id := c.add(b)
	if op.negate {
		not := ir.NewBlock("operator_not")
		not.Inputs["OPERAND"] = ir.BlockInput(id)
		id = c.add(not)
	}
	return ir.BlockInput(id), nil
}

func (c *buildContext) unary(e *ast.Unary) (ir.Input, error) {
	if e.Op == ast.OpNot {
		x, err := c.condition(e.X)
		if err != nil {
			return ir.Input{}, err
		}
		b := ir.NewBlock("operator_not")
		b.Inputs["OPERAND"] = x
		return ir.BlockInput(c.add(b)), nil
	}
	x, err := c.input(e.X)
	if err != nil {
		return ir.Input{}, err
	}
	b := ir.NewBlock("operator_subtract")
	b.Inputs["NUM1"] = ir.ShadowLiteral(ir.NumberPrim(0))
	b.Inputs["NUM2"] = x
	return ir.BlockInput(c.add(b)), nil
}

// call builds the block for a call without inserting it. Compiled routines
// take precedence over catalog entries of the same name.
func (c *buildContext) call(name string, args []ast.Expr) (*ir.Block, catalog.Kind, error) {
	if info, ok := c.procs[name]; ok {
		return c.procedureCall(info, args)
	}
	entry, ok := c.env.Catalog.Lookup(name, len(args))
	if !ok {
		return nil, 0, c.errorf(CodeUnknownCall, "unknown block %q", name)
	}
	if !entry.Accepts(len(args)) {
		return nil, 0, c.errorf(CodeUnknownCall, "%q takes %d arguments, got %d", name, entry.Arity, len(args))
	}
	if entry.Variadic {
		b, err := c.join(args)
		return b, entry.Kind, err
	}
	b, err := c.catalogBlock(entry, args)
	return b, entry.Kind, err
}

// procedureCall addresses the callee's parameters by their slot ids.
func (c *buildContext) procedureCall(info *ProcedureInfo, args []ast.Expr) (*ir.Block, catalog.Kind, error) {
	if len(args) != len(info.ParamIDs) {
		return nil, 0, c.errorf(CodeUnknownCall, "%q takes %d arguments, got %d", info.Name, len(info.ParamIDs), len(args))
	}
	b := ir.NewBlock("procedures_call")
	for i, arg := range args {
		lower := c.input
		if info.ParamTypes[i] == ast.TypeBoolean {
			lower = c.condition
		}
		in, err := lower(arg)
		if err != nil {
			return nil, 0, err
		}
		b.Inputs[info.ParamIDs[i]] = in
	}
	b.Mutation = info.callMutation()

	kind := catalog.Command
	if info.Reports() {
		kind = catalog.Reporter
		if *info.ReturnType == ast.TypeBoolean {
			kind = catalog.Boolean
		}
	}
	return b, kind, nil
}

// join folds any number of arguments into a right-leaning chain of
// two-input join blocks.
func (c *buildContext) join(args []ast.Expr) (*ir.Block, error) {
	b := ir.NewBlock("operator_join")
	switch len(args) {
	case 0:
		b.Inputs["STRING1"], b.Inputs["STRING2"] = emptyString(), emptyString()
		return b, nil
	case 1:
		in, err := c.input(args[0])
		if err != nil {
			return nil, err
		}
		b.Inputs["STRING1"], b.Inputs["STRING2"] = in, emptyString()
		return b, nil
	}

	rest, err := c.input(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	for i := len(args) - 2; i >= 1; i-- {
		left, err := c.input(args[i])
		if err != nil {
			return nil, err
		}
		inner := ir.NewBlock("operator_join")
		inner.Inputs["STRING1"], inner.Inputs["STRING2"] = left, rest
		rest = ir.BlockInput(c.add(inner))
	}
	first, err := c.input(args[0])
	if err != nil {
		return nil, err
	}
	b.Inputs["STRING1"], b.Inputs["STRING2"] = first, rest
	return b, nil
}

// catalogBlock fills a catalog entry's inputs and fields from args.
func (c *buildContext) catalogBlock(entry *catalog.Block, args []ast.Expr) (*ir.Block, error) {
	b := ir.NewBlock(entry.Opcode)
	for _, slot := range entry.Inputs {
		if slot.Arg < 0 || slot.Arg >= len(args) {
			continue
		}
		in, err := c.slotInput(slot, args[slot.Arg])
		if err != nil {
			return nil, err
		}
		b.Inputs[slot.Name] = in
	}
	for _, slot := range entry.Fields {
		f, ok := c.field(entry, slot, args)
		if ok {
			b.Fields[slot.Name] = f
		}
	}
	return b, nil
}

func (c *buildContext) slotInput(slot catalog.InputSlot, arg ast.Expr) (ir.Input, error) {
	switch slot.Shape {
	case catalog.ShapeCondition:
		return c.condition(arg)
	case catalog.ShapeMenu:
		text, ok := literalText(arg)
		if !ok || slot.Menu == nil {
			return c.input(arg)
		}
		m := ir.NewBlock(slot.Menu.Opcode)
		m.Shadow = true
		m.Fields[slot.Menu.Field] = ir.Field{Value: slot.Menu.Resolve(text)}
		return ir.ShadowBlock(c.add(m)), nil
	case catalog.ShapeBroadcast:
		text, ok := literalText(arg)
		if !ok {
			return c.input(arg)
		}
		return ir.ShadowLiteral(ir.Primitive{Type: ir.PrimBroadcast, Name: text, ID: c.broadcast(text)}), nil
	}
	return c.input(arg)
}

func (c *buildContext) field(entry *catalog.Block, slot catalog.FieldSlot, args []ast.Expr) (ir.Field, bool) {
	if slot.Source == catalog.FieldConstant {
		return ir.Field{Value: slot.Value}, true
	}
	if slot.Arg < 0 || slot.Arg >= len(args) {
		return ir.Field{}, false
	}
	arg := args[slot.Arg]

	switch slot.Source {
	case catalog.FieldVariable, catalog.FieldList:
		name, ok := refName(arg)
		if !ok {
			c.warn("%s: field %s needs a name", entry.Name, slot.Name)
			return ir.Field{}, false
		}
		lookup, kind := c.variable, "variable"
		if slot.Source == catalog.FieldList {
			lookup, kind = c.list, "list"
		}
		id, found := lookup(name)
		if !found {
			c.warn("%s: unknown %s %q", entry.Name, kind, name)
		}
		return ir.Field{Value: name, ID: id}, true
	}

	text, ok := literalText(arg)
	if !ok {
		c.warn("%s: field %s needs a literal", entry.Name, slot.Name)
		return ir.Field{}, false
	}
	if slot.Source == catalog.FieldBroadcast {
		return ir.Field{Value: text, ID: c.broadcast(text)}, true
	}
	if slot.Upper {
		text = strings.ToUpper(text)
	}
	return ir.Field{Value: text}, true
}

func literalText(e ast.Expr) (string, bool) {
	switch e := e.(type) {
	case *ast.StringLit:
		return e.Value, true
	case *ast.NumberLit:
		return strconv.FormatFloat(e.Value, 'f', -1, 64), true
	}
	return "", false
}

func refName(e ast.Expr) (string, bool) {
	switch e := e.(type) {
	case *ast.VarRef:
		return e.Name, true
	case *ast.StringLit:
		return e.Value, true
	}
	return "", false
}
