package codegen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/ir"
	"github.com/roach88/blockc/internal/testutil"
	"github.com/roach88/blockc/internal/virtualize"
)

func call(name string, args ...ast.Expr) ast.Stmt {
	return &ast.ExprStmt{X: ast.CallOf(name, args...)}
}

func say(e ast.Expr) ast.Stmt { return call("say", e) }

func flag(body ...ast.Stmt) *ast.Handler {
	return &ast.Handler{Name: "main", Attributes: []ast.Attribute{{Name: "on_flag_clicked"}}, Body: body}
}

func program(items ...ast.Item) *ast.Program {
	return &ast.Program{Items: items}
}

func testEnv() Env {
	return Env{Stage: true, IDs: testutil.NewSequentialIDs("id"), Assets: testutil.StaticDigests{}}
}

func build(t *testing.T, prog *ast.Program) *Result {
	t.Helper()
	res, err := Build(prog, testEnv())
	require.NoError(t, err)
	return res
}

// byOpcode returns the ids of every block with the given opcode, sorted.
func byOpcode(target *ir.Target, opcode string) []ir.BlockID {
	var out []ir.BlockID
	for _, id := range target.BlockIDs() {
		if target.Blocks[id].Opcode == opcode {
			out = append(out, id)
		}
	}
	return out
}

func only(t *testing.T, target *ir.Target, opcode string) (ir.BlockID, *ir.Block) {
	t.Helper()
	ids := byOpcode(target, opcode)
	require.Len(t, ids, 1, "blocks with opcode %s", opcode)
	return ids[0], target.Blocks[ids[0]]
}

func literal(t *testing.T, in ir.Input) any {
	t.Helper()
	require.Equal(t, ir.InputShadow, in.Kind)
	require.NotNil(t, in.Literal)
	return in.Literal.Value
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var cerr *Error
	require.True(t, errors.As(err, &cerr), "expected *Error, got %v", err)
	return cerr.Code
}

// assertParentsConsistent checks that every referenced block points back at
// its referrer.
func assertParentsConsistent(t *testing.T, target *ir.Target) {
	t.Helper()
	for id, b := range target.Blocks {
		for _, child := range b.Children() {
			cb, ok := target.Blocks[child]
			require.True(t, ok, "%s references missing block %s", id, child)
			assert.Equal(t, id, cb.Parent, "parent of %s", child)
		}
		if b.Next != "" {
			assert.Equal(t, id, target.Blocks[b.Next].Parent, "parent of next %s", b.Next)
		}
	}
}

// TestBuild_HandlerScript tests that a handler becomes a hat followed by its body.
func TestBuild_HandlerScript(t *testing.T) {
	res := build(t, program(flag(say(ast.Str("hi")), call("move_steps", ast.Num(10)))))

	hatID, hat := only(t, res.Target, "event_whenflagclicked")
	assert.True(t, hat.TopLevel)
	require.NotNil(t, hat.Position)
	assert.Equal(t, ir.BlockID(""), hat.Parent)

	sayBlock := res.Target.Blocks[hat.Next]
	require.NotNil(t, sayBlock)
	assert.Equal(t, "looks_say", sayBlock.Opcode)
	assert.Equal(t, hatID, sayBlock.Parent)
	assert.Equal(t, "hi", literal(t, sayBlock.Inputs["MESSAGE"]))

	move := res.Target.Blocks[sayBlock.Next]
	assert.Equal(t, "motion_movesteps", move.Opcode)
	assert.Equal(t, 10.0, literal(t, move.Inputs["STEPS"]))
	assert.Equal(t, ir.BlockID(""), move.Next)

	assert.Equal(t, []ir.BlockID{hatID}, res.Target.TopLevel())
	assertParentsConsistent(t, res.Target)
}

// TestBuild_BooleanLiteralCondition tests that if(true) compares two literals.
func TestBuild_BooleanLiteralCondition(t *testing.T) {
	res := build(t, program(flag(&ast.If{
		Cond: &ast.BoolLit{Value: true},
		Then: []ast.Stmt{say(ast.Str("yes"))},
		Else: []ast.Stmt{say(ast.Str("no"))},
	})))

	ifID, ifBlock := only(t, res.Target, "control_if_else")
	cond := ifBlock.Inputs["CONDITION"]
	require.Equal(t, ir.InputBlock, cond.Kind)

	eq := res.Target.Blocks[cond.Block]
	assert.Equal(t, "operator_equals", eq.Opcode)
	assert.Equal(t, ifID, eq.Parent)
	assert.Equal(t, "1", literal(t, eq.Inputs["OPERAND1"]))
	assert.Equal(t, "1", literal(t, eq.Inputs["OPERAND2"]))

	then := res.Target.Blocks[ifBlock.Inputs["SUBSTACK"].Block]
	els := res.Target.Blocks[ifBlock.Inputs["SUBSTACK2"].Block]
	assert.Equal(t, "yes", literal(t, then.Inputs["MESSAGE"]))
	assert.Equal(t, "no", literal(t, els.Inputs["MESSAGE"]))
	assert.Equal(t, ifID, then.Parent)
	assert.Equal(t, ifID, els.Parent)
	assertParentsConsistent(t, res.Target)
}

// TestBuild_LiteralConditions tests truthiness of number and string conditions.
func TestBuild_LiteralConditions(t *testing.T) {
	tests := []struct {
		name string
		cond ast.Expr
		want string
	}{
		{"zero", ast.Num(0), "0"},
		{"nonzero", ast.Num(3), "1"},
		{"empty string", ast.Str(""), "0"},
		{"false string", ast.Str("False"), "0"},
		{"zero string", ast.Str("0"), "0"},
		{"text", ast.Str("yes"), "1"},
		{"false", &ast.BoolLit{Value: false}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := build(t, program(flag(&ast.Until{Cond: tt.cond})))
			_, loop := only(t, res.Target, "control_repeat_until")
			eq := res.Target.Blocks[loop.Inputs["CONDITION"].Block]
			assert.Equal(t, "operator_equals", eq.Opcode)
			assert.Equal(t, tt.want, literal(t, eq.Inputs["OPERAND2"]))
		})
	}
}

// TestBuild_VariableCondition tests that variables are compared with "true".
func TestBuild_VariableCondition(t *testing.T) {
	res := build(t, program(
		&ast.VariableDecl{Name: "ready", Type: ast.TypeBoolean},
		flag(&ast.If{Cond: ast.Var("ready"), Then: []ast.Stmt{say(ast.Str("go"))}}),
	))

	_, ifBlock := only(t, res.Target, "control_if")
	eq := res.Target.Blocks[ifBlock.Inputs["CONDITION"].Block]
	assert.Equal(t, "operator_equals", eq.Opcode)

	ref := eq.Inputs["OPERAND1"]
	assert.Equal(t, ir.InputObscured, ref.Kind)
	require.NotNil(t, ref.Ref)
	assert.Equal(t, ir.PrimVariable, ref.Ref.Type)
	assert.Equal(t, "ready", ref.Ref.Name)
	assert.Equal(t, "true", literal(t, eq.Inputs["OPERAND2"]))
}

// TestBuild_BooleanParameterCondition tests that boolean parameters plug in directly.
func TestBuild_BooleanParameterCondition(t *testing.T) {
	res := build(t, program(&ast.ProcedureDef{
		Name:   "check",
		Params: []ast.Param{{Name: "ok", Type: ast.TypeBoolean}},
		Body:   []ast.Stmt{&ast.If{Cond: ast.Var("ok"), Then: []ast.Stmt{say(ast.Str("fine"))}}},
	}))

	_, ifBlock := only(t, res.Target, "control_if")
	arg := res.Target.Blocks[ifBlock.Inputs["CONDITION"].Block]
	assert.Equal(t, "argument_reporter_boolean", arg.Opcode)
	assert.False(t, arg.Shadow)
	assert.Equal(t, ir.Field{Value: "ok"}, arg.Fields["VALUE"])
}

// TestBuild_JoinChain tests that join folds into right-leaning pairs.
func TestBuild_JoinChain(t *testing.T) {
	res := build(t, program(flag(say(ast.CallOf("join", ast.Str("a"), ast.Str("b"), ast.Str("c"))))))

	joins := byOpcode(res.Target, "operator_join")
	require.Len(t, joins, 2)

	_, sayBlock := only(t, res.Target, "looks_say")
	outer := res.Target.Blocks[sayBlock.Inputs["MESSAGE"].Block]
	assert.Equal(t, "a", literal(t, outer.Inputs["STRING1"]))

	inner := res.Target.Blocks[outer.Inputs["STRING2"].Block]
	assert.Equal(t, "operator_join", inner.Opcode)
	assert.Equal(t, "b", literal(t, inner.Inputs["STRING1"]))
	assert.Equal(t, "c", literal(t, inner.Inputs["STRING2"]))
	assertParentsConsistent(t, res.Target)
}

// TestBuild_JoinArity tests join with fewer than two arguments.
func TestBuild_JoinArity(t *testing.T) {
	res := build(t, program(flag(
		say(ast.CallOf("join")),
		say(ast.CallOf("join", ast.Str("x"))),
	)))

	joins := byOpcode(res.Target, "operator_join")
	require.Len(t, joins, 2)
	var seen []any
	for _, id := range joins {
		b := res.Target.Blocks[id]
		seen = append(seen, literal(t, b.Inputs["STRING1"]))
		assert.Equal(t, "", literal(t, b.Inputs["STRING2"]))
	}
	assert.ElementsMatch(t, []any{"", "x"}, seen)
}

// TestBuild_Operators tests operator lowering, including the negated comparisons.
func TestBuild_Operators(t *testing.T) {
	tests := []struct {
		name   string
		op     ast.BinaryOp
		outer  string
		inner  string
		inputs [2]string
	}{
		{"add", ast.OpAdd, "operator_add", "", [2]string{"NUM1", "NUM2"}},
		{"mod", ast.OpMod, "operator_mod", "", [2]string{"NUM1", "NUM2"}},
		{"less", ast.OpLt, "operator_lt", "", [2]string{"OPERAND1", "OPERAND2"}},
		{"not equal", ast.OpNe, "operator_not", "operator_equals", [2]string{"OPERAND1", "OPERAND2"}},
		{"at least", ast.OpGe, "operator_not", "operator_lt", [2]string{"OPERAND1", "OPERAND2"}},
		{"at most", ast.OpLe, "operator_not", "operator_gt", [2]string{"OPERAND1", "OPERAND2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := &ast.Binary{Op: tt.op, Left: ast.Num(1), Right: ast.Num(2)}
			res := build(t, program(flag(say(expr))))

			_, sayBlock := only(t, res.Target, "looks_say")
			b := res.Target.Blocks[sayBlock.Inputs["MESSAGE"].Block]
			assert.Equal(t, tt.outer, b.Opcode)
			if tt.inner != "" {
				b = res.Target.Blocks[b.Inputs["OPERAND"].Block]
				assert.Equal(t, tt.inner, b.Opcode)
			}
			assert.Equal(t, 1.0, literal(t, b.Inputs[tt.inputs[0]]))
			assert.Equal(t, 2.0, literal(t, b.Inputs[tt.inputs[1]]))
			assertParentsConsistent(t, res.Target)
		})
	}
}

// TestBuild_LogicalOperands tests that and/or operands are lowered as conditions.
func TestBuild_LogicalOperands(t *testing.T) {
	expr := &ast.Binary{Op: ast.OpAnd, Left: &ast.BoolLit{Value: true}, Right: &ast.Unary{Op: ast.OpNot, X: ast.Num(0)}}
	res := build(t, program(flag(&ast.If{Cond: expr})))

	_, and := only(t, res.Target, "operator_and")
	left := res.Target.Blocks[and.Inputs["OPERAND1"].Block]
	assert.Equal(t, "operator_equals", left.Opcode)

	not := res.Target.Blocks[and.Inputs["OPERAND2"].Block]
	assert.Equal(t, "operator_not", not.Opcode)
	inner := res.Target.Blocks[not.Inputs["OPERAND"].Block]
	assert.Equal(t, "operator_equals", inner.Opcode)
	assert.Equal(t, "0", literal(t, inner.Inputs["OPERAND2"]))
}

// TestBuild_Negation tests that unary minus subtracts from zero.
func TestBuild_Negation(t *testing.T) {
	res := build(t, program(flag(say(&ast.Unary{Op: ast.OpNeg, X: ast.Num(4)}))))

	_, sub := only(t, res.Target, "operator_subtract")
	assert.Equal(t, 0.0, literal(t, sub.Inputs["NUM1"]))
	assert.Equal(t, 4.0, literal(t, sub.Inputs["NUM2"]))
}

// TestBuild_TopLevelScripts tests that blank lines split top-level statements into scripts.
func TestBuild_TopLevelScripts(t *testing.T) {
	res := build(t, program(
		&ast.StmtItem{Stmt: say(ast.Str("a"))},
		&ast.StmtItem{Stmt: say(ast.Str("b"))},
		&ast.BatchBreak{},
		&ast.StmtItem{Stmt: say(ast.Str("c"))},
	))

	tops := res.Target.TopLevel()
	require.Len(t, tops, 2)

	first, second := res.Target.Blocks[tops[0]], res.Target.Blocks[tops[1]]
	if literal(t, first.Inputs["MESSAGE"]) != "a" {
		first, second = second, first
	}
	assert.Equal(t, "a", literal(t, first.Inputs["MESSAGE"]))
	assert.Equal(t, "b", literal(t, res.Target.Blocks[first.Next].Inputs["MESSAGE"]))
	assert.Equal(t, "c", literal(t, second.Inputs["MESSAGE"]))
	assert.Equal(t, ir.BlockID(""), second.Next)

	assert.Equal(t, 0.0, first.Position.Y)
	assert.Equal(t, float64(2*rowHeight+scriptGap), second.Position.Y)
}

// TestBuild_Procedure tests prototype, definition and call wiring.
func TestBuild_Procedure(t *testing.T) {
	res := build(t, program(
		&ast.ProcedureDef{
			Name:   "show_sum",
			Params: []ast.Param{{Name: "a", Type: ast.TypeNumber}, {Name: "b", Type: ast.TypeNumber}},
			Body:   []ast.Stmt{say(&ast.Binary{Op: ast.OpAdd, Left: ast.Var("a"), Right: ast.Var("b")})},
			Warp:   true,
		},
		flag(call("show_sum", ast.Num(2), ast.Num(3))),
	))

	defID, def := only(t, res.Target, "procedures_definition")
	assert.True(t, def.TopLevel)

	protoID, proto := only(t, res.Target, "procedures_prototype")
	assert.True(t, proto.Shadow)
	assert.Equal(t, protoID, def.Inputs["custom_block"].Block)
	assert.Equal(t, defID, proto.Parent)
	require.NotNil(t, proto.Mutation)
	assert.Equal(t, "show_sum %n %n", proto.Mutation.ProcCode)
	assert.Equal(t, []string{"a", "b"}, proto.Mutation.ArgumentNames)
	assert.Equal(t, []string{"", ""}, proto.Mutation.ArgumentDefaults)
	assert.True(t, proto.Mutation.Warp)
	assert.False(t, proto.Mutation.Return)

	for _, argID := range proto.Mutation.ArgumentIDs {
		r := res.Target.Blocks[proto.Inputs[argID].Block]
		assert.Equal(t, "argument_reporter_string_number", r.Opcode)
		assert.True(t, r.Shadow)
	}

	_, callBlock := only(t, res.Target, "procedures_call")
	require.NotNil(t, callBlock.Mutation)
	assert.Equal(t, proto.Mutation.ProcCode, callBlock.Mutation.ProcCode)
	assert.Equal(t, proto.Mutation.ArgumentIDs, callBlock.Mutation.ArgumentIDs)
	assert.Nil(t, callBlock.Mutation.ArgumentNames)
	assert.Equal(t, 2.0, literal(t, callBlock.Inputs[proto.Mutation.ArgumentIDs[0]]))
	assert.Equal(t, 3.0, literal(t, callBlock.Inputs[proto.Mutation.ArgumentIDs[1]]))

	body := res.Target.Blocks[def.Next]
	assert.Equal(t, "looks_say", body.Opcode)
	sum := res.Target.Blocks[body.Inputs["MESSAGE"].Block]
	a := res.Target.Blocks[sum.Inputs["NUM1"].Block]
	assert.Equal(t, "argument_reporter_string_number", a.Opcode)
	assert.False(t, a.Shadow)
	assert.Equal(t, "a", a.Fields["VALUE"].Value)

	info := res.Procedures["show_sum"]
	require.NotNil(t, info)
	assert.Equal(t, info.ParamIDs, proto.Mutation.ArgumentIDs)
	assertParentsConsistent(t, res.Target)
}

// TestBuild_ReportingProcedure tests that value routines without locals compile to reporters.
func TestBuild_ReportingProcedure(t *testing.T) {
	boolType := ast.TypeBoolean
	res := build(t, program(
		&ast.ProcedureDef{Name: "always", ReturnType: &boolType},
		flag(&ast.If{Cond: ast.CallOf("always")}),
	))

	_, callBlock := only(t, res.Target, "procedures_call")
	assert.True(t, callBlock.Mutation.Return)
	_, proto := only(t, res.Target, "procedures_prototype")
	assert.True(t, proto.Mutation.Return)
	assert.Equal(t, []string{}, proto.Mutation.ArgumentNames)
}

// TestBuild_VirtualizedRoutine tests the compiled output of a virtualized value routine.
func TestBuild_VirtualizedRoutine(t *testing.T) {
	number := ast.TypeNumber
	prog := program(
		&ast.ProcedureDef{
			Name:       "add",
			Params:     []ast.Param{{Name: "a", Type: ast.TypeNumber}, {Name: "b", Type: ast.TypeNumber}},
			ReturnType: &number,
			Body:       []ast.Stmt{&ast.Return{Value: &ast.Binary{Op: ast.OpAdd, Left: ast.Var("a"), Right: ast.Var("b")}}},
		},
		flag(say(ast.CallOf("add", ast.Num(2), ast.Num(3)))),
	)
	virt, _, err := virtualize.Virtualize(prog, virtualize.Options{})
	require.NoError(t, err)

	res, err := Build(virt, testEnv())
	require.NoError(t, err)

	assert.Len(t, byOpcode(res.Target, "procedures_definition"), 2)
	require.Contains(t, res.Procedures, "add")
	assert.Equal(t, "add %n %n", res.Procedures["add"].ProcCode)

	var calls int
	for _, id := range byOpcode(res.Target, "procedures_call") {
		m := res.Target.Blocks[id].Mutation
		if m.ProcCode == "add %n %n" {
			calls++
			assert.Len(t, m.ArgumentIDs, 2)
			assert.False(t, m.Return)
		}
	}
	assert.Equal(t, 1, calls)

	names := make(map[string]bool)
	for _, l := range res.Target.Lists {
		names[l.Name] = true
	}
	assert.True(t, names[virtualize.MemoryList])
	assert.True(t, names[virtualize.FreeList])
	assertParentsConsistent(t, res.Target)
}

// TestBuild_Errors tests the error codes reported for misplaced blocks.
func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		body []ast.Stmt
		code string
	}{
		{"command as value", []ast.Stmt{say(ast.CallOf("show"))}, CodeNotAValue},
		{"hat as statement", []ast.Stmt{call("on_flag_clicked")}, CodeHatStatement},
		{"unknown call", []ast.Stmt{call("does_not_exist")}, CodeUnknownCall},
		{"wrong arity", []ast.Stmt{call("say", ast.Str("a"), ast.Str("b"))}, CodeUnknownCall},
		{"local", []ast.Stmt{&ast.LocalDecl{Name: "x", Value: ast.Num(1)}}, CodeUnlowered},
		{"return", []ast.Stmt{&ast.Return{}}, CodeUnlowered},
		{"bare expression", []ast.Stmt{&ast.ExprStmt{X: ast.Num(1)}}, CodeUnlowered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(program(flag(tt.body...)), testEnv())
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(t, err))
		})
	}
}

// TestBuild_HandlerEvents tests hat selection and rejection.
func TestBuild_HandlerEvents(t *testing.T) {
	res := build(t, program(&ast.Handler{
		Name:       "keys",
		Attributes: []ast.Attribute{{Name: "on_key_pressed", Args: []ast.Expr{ast.Str("space")}}},
	}))
	_, hat := only(t, res.Target, "event_whenkeypressed")
	assert.Equal(t, ir.Field{Value: "space"}, hat.Fields["KEY_OPTION"])

	_, err := Build(program(&ast.Handler{Name: "bad", Attributes: []ast.Attribute{{Name: "say", Args: []ast.Expr{ast.Str("x")}}}}), testEnv())
	assert.Equal(t, CodeUnknownCall, codeOf(t, err))

	_, err = Build(program(&ast.Handler{Name: "bad", Attributes: []ast.Attribute{{Name: "on_nothing"}}}), testEnv())
	assert.Equal(t, CodeUnknownCall, codeOf(t, err))

	res = build(t, program(&ast.Handler{Name: "idle", Body: []ast.Stmt{say(ast.Str("x"))}}))
	assert.Empty(t, res.Target.Blocks)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "idle")
}

// TestBuild_Match tests lowering of match into nested if/else blocks.
func TestBuild_Match(t *testing.T) {
	res := build(t, program(
		&ast.VariableDecl{Name: "n", Type: ast.TypeNumber},
		flag(&ast.Match{
			Subject: ast.Var("n"),
			Arms: []ast.MatchArm{
				{Pattern: ast.Num(1), Body: []ast.Stmt{say(ast.Str("one"))}},
				{Pattern: ast.Num(2), Body: []ast.Stmt{say(ast.Str("two"))}},
				{Body: []ast.Stmt{say(ast.Str("other"))}},
				{Body: []ast.Stmt{say(ast.Str("ignored"))}},
			},
		}),
	))

	ifs := byOpcode(res.Target, "control_if_else")
	require.Len(t, ifs, 2)
	assert.Len(t, byOpcode(res.Target, "looks_say"), 3)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "duplicate default")

	_, hat := only(t, res.Target, "event_whenflagclicked")
	outer := res.Target.Blocks[hat.Next]
	assert.Equal(t, "control_if_else", outer.Opcode)
	eq := res.Target.Blocks[outer.Inputs["CONDITION"].Block]
	assert.Equal(t, "n", eq.Inputs["OPERAND1"].Ref.Name)
	assert.Equal(t, 1.0, literal(t, eq.Inputs["OPERAND2"]))

	inner := res.Target.Blocks[outer.Inputs["SUBSTACK2"].Block]
	assert.Equal(t, "control_if_else", inner.Opcode)
	other := res.Target.Blocks[inner.Inputs["SUBSTACK2"].Block]
	assert.Equal(t, "other", literal(t, other.Inputs["MESSAGE"]))
	assertParentsConsistent(t, res.Target)
}

// TestBuild_MatchDefaultOnly tests that a lone default arm runs unconditionally.
func TestBuild_MatchDefaultOnly(t *testing.T) {
	res := build(t, program(flag(&ast.Match{
		Subject: ast.Num(1),
		Arms:    []ast.MatchArm{{Body: []ast.Stmt{say(ast.Str("always"))}}},
	})))

	assert.Empty(t, byOpcode(res.Target, "control_if"))
	assert.Empty(t, byOpcode(res.Target, "control_if_else"))
	_, hat := only(t, res.Target, "event_whenflagclicked")
	assert.Equal(t, "looks_say", res.Target.Blocks[hat.Next].Opcode)
}

// TestBuild_Loops tests repeat, forever and catalog C blocks.
func TestBuild_Loops(t *testing.T) {
	res := build(t, program(
		&ast.VariableDecl{Name: "i", Type: ast.TypeNumber},
		flag(
			&ast.Repeat{Times: ast.Num(3), Body: []ast.Stmt{call("move_steps", ast.Num(1))}},
			&ast.CBlock{Name: "for_each", Args: []ast.Expr{ast.Var("i"), ast.Num(5)}, Body: []ast.Stmt{say(ast.Var("i"))}},
			&ast.Forever{Body: []ast.Stmt{call("next_costume")}},
		),
	))

	repeatID, repeat := only(t, res.Target, "control_repeat")
	assert.Equal(t, 3.0, literal(t, repeat.Inputs["TIMES"]))
	assert.Equal(t, repeatID, res.Target.Blocks[repeat.Inputs["SUBSTACK"].Block].Parent)

	_, each := only(t, res.Target, "control_for_each")
	assert.Equal(t, "i", each.Fields["VARIABLE"].Value)
	assert.NotEmpty(t, each.Fields["VARIABLE"].ID)
	assert.Equal(t, 5.0, literal(t, each.Inputs["VALUE"]))
	assert.Equal(t, "looks_say", res.Target.Blocks[each.Inputs["SUBSTACK"].Block].Opcode)

	_, forever := only(t, res.Target, "control_forever")
	assert.Equal(t, "looks_nextcostume", res.Target.Blocks[forever.Inputs["SUBSTACK"].Block].Opcode)
	assert.Equal(t, ir.BlockID(""), forever.Next)
	assertParentsConsistent(t, res.Target)
}

// TestBuild_Menus tests menu shadows and alias resolution.
func TestBuild_Menus(t *testing.T) {
	res := build(t, program(flag(
		call("go_to", ast.Str("mouse-pointer")),
		call("go_to", ast.Num(1), ast.Num(2)),
		call("switch_costume_to", ast.Str("cat-b")),
	)))

	gotoID, gotoBlock := only(t, res.Target, "motion_goto")
	in := gotoBlock.Inputs["TO"]
	assert.Equal(t, ir.InputShadow, in.Kind)
	menu := res.Target.Blocks[in.Block]
	assert.Equal(t, "motion_goto_menu", menu.Opcode)
	assert.True(t, menu.Shadow)
	assert.Equal(t, gotoID, menu.Parent)
	assert.Equal(t, ir.Field{Value: "_mouse_"}, menu.Fields["TO"])

	_, xy := only(t, res.Target, "motion_gotoxy")
	assert.Equal(t, 1.0, literal(t, xy.Inputs["X"]))

	_, costume := only(t, res.Target, "looks_costume")
	assert.Equal(t, ir.Field{Value: "cat-b"}, costume.Fields["COSTUME"])
}

// TestBuild_MenuWithExpression tests that a computed menu argument becomes a plain input.
func TestBuild_MenuWithExpression(t *testing.T) {
	res := build(t, program(flag(call("switch_costume_to", &ast.Binary{Op: ast.OpAdd, Left: ast.Num(1), Right: ast.Num(1)}))))

	_, sw := only(t, res.Target, "looks_switchcostumeto")
	assert.Equal(t, ir.InputBlock, sw.Inputs["COSTUME"].Kind)
	assert.Empty(t, byOpcode(res.Target, "looks_costume"))
}

// TestBuild_Fields tests argument, constant and variable fields.
func TestBuild_Fields(t *testing.T) {
	res := build(t, program(
		&ast.VariableDecl{Name: "score", Type: ast.TypeNumber, Init: ast.Num(0)},
		&ast.VariableDecl{Name: "items", Type: ast.TypeList},
		flag(
			call("change_effect_by", ast.Str("color"), ast.Num(25)),
			call("go_to_front_layer"),
			call("change_variable_by", ast.Var("score"), ast.Num(1)),
			call("add_to_list", ast.Str("items"), ast.Str("apple")),
			call("show_variable", ast.Var("missing")),
		),
	))

	_, effect := only(t, res.Target, "looks_changeeffectby")
	assert.Equal(t, ir.Field{Value: "COLOR"}, effect.Fields["EFFECT"])

	_, layer := only(t, res.Target, "looks_gotofrontback")
	assert.Equal(t, ir.Field{Value: "front"}, layer.Fields["FRONT_BACK"])

	_, change := only(t, res.Target, "data_changevariableby")
	var scoreID string
	for id, v := range res.Target.Variables {
		if v.Name == "score" {
			scoreID = id
		}
	}
	assert.Equal(t, ir.Field{Value: "score", ID: scoreID}, change.Fields["VARIABLE"])

	_, add := only(t, res.Target, "data_addtolist")
	assert.Equal(t, "items", add.Fields["LIST"].Value)
	assert.NotEmpty(t, add.Fields["LIST"].ID)

	_, show := only(t, res.Target, "data_showvariable")
	assert.Equal(t, ir.Field{Value: "missing"}, show.Fields["VARIABLE"])
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "missing")
}

// TestBuild_Broadcasts tests that broadcasts share one table entry per name.
func TestBuild_Broadcasts(t *testing.T) {
	res := build(t, program(
		flag(call("broadcast", ast.Str("go")), call("broadcast_and_wait", ast.Str("go"))),
		&ast.Handler{Name: "on_go", Attributes: []ast.Attribute{{Name: "on_broadcast_received", Args: []ast.Expr{ast.Str("go")}}}},
	))

	require.Len(t, res.Target.Broadcasts, 1)
	var goID string
	for id, name := range res.Target.Broadcasts {
		assert.Equal(t, "go", name)
		goID = id
	}

	_, send := only(t, res.Target, "event_broadcast")
	in := send.Inputs["BROADCAST_INPUT"]
	require.NotNil(t, in.Literal)
	assert.Equal(t, ir.PrimBroadcast, in.Literal.Type)
	assert.Equal(t, "go", in.Literal.Name)
	assert.Equal(t, goID, in.Literal.ID)

	_, recv := only(t, res.Target, "event_whenbroadcastreceived")
	assert.Equal(t, ir.Field{Value: "go", ID: goID}, recv.Fields["BROADCAST_OPTION"])
}

// TestBuild_SpriteUsesGlobals tests that a sprite references the stage tables.
func TestBuild_SpriteUsesGlobals(t *testing.T) {
	env := testEnv()
	env.Stage = false
	env.Name = "Cat"
	env.Globals = &Globals{
		Variables:  map[string]string{"score": "v1"},
		Lists:      map[string]string{"__mem": "l1"},
		Broadcasts: map[string]string{"go": "b1"},
	}
	res, err := Build(program(
		&ast.VariableDecl{Name: "score", Type: ast.TypeNumber, Public: true},
		flag(
			say(ast.Var("score")),
			&ast.Assign{Name: "score", Value: ast.Num(2)},
			call("broadcast", ast.Str("go")),
			call("delete_all_of_list", ast.Var("__mem")),
		),
	), env)
	require.NoError(t, err)

	assert.Equal(t, "Cat", res.Target.Name)
	assert.Empty(t, res.Target.Variables)
	assert.Empty(t, res.Target.Broadcasts)

	_, sayBlock := only(t, res.Target, "looks_say")
	assert.Equal(t, "v1", sayBlock.Inputs["MESSAGE"].Ref.ID)

	_, set := only(t, res.Target, "data_setvariableto")
	assert.Equal(t, ir.Field{Value: "score", ID: "v1"}, set.Fields["VARIABLE"])

	_, send := only(t, res.Target, "event_broadcast")
	assert.Equal(t, "b1", send.Inputs["BROADCAST_INPUT"].Literal.ID)

	_, del := only(t, res.Target, "data_deletealloflist")
	assert.Equal(t, "l1", del.Fields["LIST"].ID)
}

// TestBuild_Declarations tests variable, list and duplicate declarations.
func TestBuild_Declarations(t *testing.T) {
	res := build(t, program(
		&ast.VariableDecl{Name: "name", Type: ast.TypeString, Init: ast.Str("cat")},
		&ast.VariableDecl{Name: "lives", Type: ast.TypeNumber},
		&ast.VariableDecl{Name: "lives", Type: ast.TypeNumber, Init: ast.Num(9)},
		&ast.VariableDecl{Name: "bag", Type: ast.TypeList, Init: &ast.ListLit{Items: []ast.Expr{ast.Num(1), ast.Str("two"), ast.Var("skip")}}},
		flag(&ast.Assign{Name: "nowhere", Value: ast.Num(1)}),
	))

	values := make(map[string]any)
	for _, v := range res.Target.Variables {
		values[v.Name] = v.Value
	}
	assert.Equal(t, map[string]any{"name": "cat", "lives": 0}, values)

	require.Len(t, res.Target.Lists, 1)
	for _, l := range res.Target.Lists {
		assert.Equal(t, []any{1.0, "two"}, l.Items)
	}

	assert.Empty(t, byOpcode(res.Target, "data_setvariableto"))
	assert.Len(t, res.Warnings, 2)
}

// TestBuild_UnresolvedNameIsEmpty tests that unknown names become empty strings.
func TestBuild_UnresolvedNameIsEmpty(t *testing.T) {
	res := build(t, program(flag(say(ast.Var("ghost")), say(&ast.ListLit{}))))

	for _, id := range byOpcode(res.Target, "looks_say") {
		assert.Equal(t, "", literal(t, res.Target.Blocks[id].Inputs["MESSAGE"]))
	}
}

// TestBuild_Assets tests costume and sound registration.
func TestBuild_Assets(t *testing.T) {
	env := testEnv()
	env.Root = "/proj"
	env.Assets = testutil.StaticDigests{
		"/proj/art/cat.PNG": "aaa",
		"/abs/pop":          "bbb",
	}
	res, err := Build(program(
		&ast.AssetDecl{Kind: ast.AssetCostume, Name: "cat", Path: "art/cat.PNG"},
		&ast.AssetDecl{Kind: ast.AssetSound, Name: "pop", Path: "/abs/pop"},
	), env)
	require.NoError(t, err)

	require.Len(t, res.Target.Costumes, 1)
	c := res.Target.Costumes[0]
	assert.Equal(t, "cat", c.Name)
	assert.Equal(t, "aaa", c.AssetID)
	assert.Equal(t, "aaa.png", c.MD5Ext)
	assert.Equal(t, "png", c.DataFormat)

	require.Len(t, res.Target.Sounds, 1)
	s := res.Target.Sounds[0]
	assert.Equal(t, "bbb.wav", s.MD5Ext)
	assert.Equal(t, "wav", s.DataFormat)

	assert.Equal(t, []ir.AssetInstruction{
		{Source: "/proj/art/cat.PNG", Destination: "aaa.png"},
		{Source: "/abs/pop", Destination: "bbb.wav"},
	}, res.Assets)

	_, err = Build(program(&ast.AssetDecl{Name: "gone", Path: "gone.svg"}), testEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
}

// TestBuild_Comments tests attached and floating comments.
func TestBuild_Comments(t *testing.T) {
	h := flag(&ast.ExprStmt{Annotated: ast.Annotated{Comment: "greet"}, X: ast.CallOf("say", ast.Str("hi"))})
	h.Comment = "entry point"
	res := build(t, program(
		&ast.CommentItem{Text: "first"},
		h,
		&ast.CommentItem{Text: "second"},
	))

	require.Len(t, res.Target.Comments, 4)

	hatID, hat := only(t, res.Target, "event_whenflagclicked")
	hatNote := res.Target.Comments[hat.Comment]
	assert.Equal(t, "entry point", hatNote.Text)
	assert.Equal(t, hatID, hatNote.BlockID)

	sayID, sayBlock := only(t, res.Target, "looks_say")
	assert.Equal(t, sayID, res.Target.Comments[sayBlock.Comment].BlockID)

	floating := make(map[string]float64)
	for _, cm := range res.Target.Comments {
		if cm.BlockID == "" {
			assert.Equal(t, float64(commentColumn), cm.X)
			floating[cm.Text] = cm.Y
		}
	}
	assert.Equal(t, map[string]float64{"first": 0, "second": commentSpacing}, floating)
}
