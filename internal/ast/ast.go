package ast

import "strings"

// QualifierSep separates a module name from a routine name in a qualified
// reference ("math::add").
const QualifierSep = "::"

// Qualify returns the module-qualified form of name.
func Qualify(module, name string) string {
	if module == "" {
		return name
	}
	return module + QualifierSep + name
}

// SplitQualified splits "module::name" into its parts.
// Unqualified names return an empty module.
func SplitQualified(name string) (module, base string) {
	if i := strings.Index(name, QualifierSep); i >= 0 {
		return name[:i], name[i+len(QualifierSep):]
	}
	return "", name
}

// Type is a declared value type.
type Type int

const (
	TypeUnknown Type = iota
	TypeNumber
	TypeString
	TypeBoolean
	TypeList
)

func (t Type) String() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeList:
		return "list"
	default:
		return "unknown"
	}
}

// ParseType maps a type keyword to a Type. Unrecognised keywords yield
// TypeUnknown.
func ParseType(s string) Type {
	switch strings.ToLower(s) {
	case "number", "num", "int", "float":
		return TypeNumber
	case "string", "str", "text":
		return TypeString
	case "boolean", "bool":
		return TypeBoolean
	case "list":
		return TypeList
	default:
		return TypeUnknown
	}
}

// Program is one target's worth of source.
type Program struct {
	Items []Item
}

// Module is an importable package of routines. Its procedures are visible
// to importers only under their qualified names.
type Module struct {
	Name         string
	Extensions   []string
	Dependencies []string
	Items        []Item
}

// HasExtension reports whether the module declares capability ext.
func (m *Module) HasExtension(ext string) bool {
	for _, e := range m.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Procedures returns the module's procedure definitions in source order.
func (m *Module) Procedures() []*ProcedureDef {
	var out []*ProcedureDef
	for _, it := range m.Items {
		if p, ok := it.(*ProcedureDef); ok {
			out = append(out, p)
		}
	}
	return out
}

// Item is a top-level program element.
type Item interface {
	item()
}

// VariableDecl declares a variable or, when Type is TypeList, a list.
// Public declarations made by sprites are hoisted to the stage.
type VariableDecl struct {
	Name   string
	Type   Type
	Public bool
	Init   Expr
}

// AssetKind distinguishes costumes from sounds.
type AssetKind int

const (
	AssetCostume AssetKind = iota
	AssetSound
)

// AssetDecl names an image or audio file bundled with the target.
type AssetDecl struct {
	Kind AssetKind
	Name string
	Path string
}

// Attribute is an event-handler trigger, e.g. on_key_pressed("space").
type Attribute struct {
	Name string
	Args []Expr
}

// Handler is an event-handler routine. Its attributes select the hat block;
// a handler without attributes compiles to nothing.
type Handler struct {
	Name       string
	Attributes []Attribute
	Params     []Param
	Body       []Stmt
	Warp       bool
	Comment    string
}

// Param is a routine parameter.
type Param struct {
	Name string
	Type Type
}

// Format customises a procedure's display pattern. Template holds "{}"
// placeholders that are filled, in order, by the named parameters in Args.
type Format struct {
	Template string
	Args     []string
}

// ProcedureDef is a callable routine.
type ProcedureDef struct {
	Name       string
	Params     []Param
	Body       []Stmt
	Warp       bool
	ReturnType *Type
	Format     *Format
	Comment    string

	// Module is the defining module for imported routines and empty for
	// routines declared by the program itself.
	Module string
}

// Returns reports whether the procedure declares a return type.
func (p *ProcedureDef) Returns() bool {
	return p.ReturnType != nil
}

// CommentItem is a floating comment between scripts.
type CommentItem struct {
	Text string
}

// BatchBreak is the blank-line marker separating top-level scripts.
type BatchBreak struct{}

// StmtItem is a statement written at the top level of a program.
type StmtItem struct {
	Stmt Stmt
}

// Use imports a module into the program.
type Use struct {
	Module string
}

func (*VariableDecl) item() {}
func (*AssetDecl) item()    {}
func (*Handler) item()      {}
func (*ProcedureDef) item() {}
func (*CommentItem) item()  {}
func (*BatchBreak) item()   {}
func (*StmtItem) item()     {}
func (*Use) item()          {}

// Stmt is a statement inside a routine body.
type Stmt interface {
	stmt()
	// Note returns the comment attached to the statement, if any.
	Note() string
}

// Annotated carries the optional comment attached to a statement.
type Annotated struct {
	Comment string
}

// Note implements Stmt.
func (a Annotated) Note() string { return a.Comment }

type (
	// ExprStmt evaluates a call for its effect.
	ExprStmt struct {
		Annotated
		X Expr
	}

	// Assign stores a value into a variable.
	Assign struct {
		Annotated
		Name  string
		Value Expr
	}

	// LocalDecl declares a routine-local variable.
	LocalDecl struct {
		Annotated
		Name  string
		Value Expr
	}

	// Return stores the routine's result. Value may be nil.
	Return struct {
		Annotated
		Value Expr
	}

	// If is a conditional with an optional else branch.
	If struct {
		Annotated
		Cond Expr
		Then []Stmt
		Else []Stmt
	}

	// Repeat runs Body a fixed number of times.
	Repeat struct {
		Annotated
		Times Expr
		Body  []Stmt
	}

	// Forever runs Body until the script is stopped.
	Forever struct {
		Annotated
		Body []Stmt
	}

	// Until runs Body until Cond holds. The condition is checked before
	// each iteration.
	Until struct {
		Annotated
		Cond Expr
		Body []Stmt
	}

	// Match compares Subject against each arm in order.
	Match struct {
		Annotated
		Subject Expr
		Arms    []MatchArm
	}

	// CBlock invokes a C-shaped catalog block wrapping Body.
	CBlock struct {
		Annotated
		Name string
		Args []Expr
		Body []Stmt
	}

	// CommentStmt is a comment written among statements.
	CommentStmt struct {
		Annotated
		Text string
	}

	// BlankStmt is a blank line inside a body.
	BlankStmt struct {
		Annotated
	}
)

// MatchArm is one case of a Match. A nil Pattern marks the default arm.
type MatchArm struct {
	Pattern Expr
	Body    []Stmt
}

// IsDefault reports whether the arm is a default arm.
func (a MatchArm) IsDefault() bool { return a.Pattern == nil }

func (*ExprStmt) stmt()    {}
func (*Assign) stmt()      {}
func (*LocalDecl) stmt()   {}
func (*Return) stmt()      {}
func (*If) stmt()          {}
func (*Repeat) stmt()      {}
func (*Forever) stmt()     {}
func (*Until) stmt()       {}
func (*Match) stmt()       {}
func (*CBlock) stmt()      {}
func (*CommentStmt) stmt() {}
func (*BlankStmt) stmt()   {}

// Expr is a value-producing expression.
type Expr interface {
	expr()
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (op UnaryOp) String() string {
	if op == OpNot {
		return "!"
	}
	return "-"
}

// BinaryOp is an infix operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
)

var binaryOpText = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
	OpAnd: "&&", OpOr: "||",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// ParseBinaryOp maps operator text to a BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for i, text := range binaryOpText {
		if text == s {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

type (
	NumberLit struct{ Value float64 }
	StringLit struct{ Value string }
	BoolLit   struct{ Value bool }

	// VarRef names a variable, list, parameter or local.
	VarRef struct{ Name string }

	// Call invokes a builtin or a procedure.
	Call struct {
		Name string
		Args []Expr
	}

	Unary struct {
		Op UnaryOp
		X  Expr
	}

	Binary struct {
		Op          BinaryOp
		Left, Right Expr
	}

	ListLit struct{ Items []Expr }
)

func (*NumberLit) expr() {}
func (*StringLit) expr() {}
func (*BoolLit) expr()   {}
func (*VarRef) expr()    {}
func (*Call) expr()      {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*ListLit) expr()   {}

// Num, Str, Var and CallOf are shorthands used by rewriting passes.
func Num(v float64) *NumberLit { return &NumberLit{Value: v} }
func Str(s string) *StringLit  { return &StringLit{Value: s} }
func Var(name string) *VarRef  { return &VarRef{Name: name} }

func CallOf(name string, args ...Expr) *Call {
	return &Call{Name: name, Args: args}
}
