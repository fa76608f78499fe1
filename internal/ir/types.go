package ir

import (
	"encoding/json"
	"fmt"
)

// BlockID identifies a block within a target. The empty id means "none".
type BlockID string

// CommentID identifies a comment within a target.
type CommentID string

// MarshalJSON encodes the empty id as null.
func (id BlockID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// Position is a script's location on the editor canvas.
type Position struct {
	X float64
	Y float64
}

// Block is a single node of the block graph.
type Block struct {
	Opcode   string
	Next     BlockID
	Parent   BlockID
	Inputs   map[string]Input
	Fields   map[string]Field
	Shadow   bool
	TopLevel bool
	Position *Position
	Mutation *Mutation
	Comment  CommentID
}

// NewBlock returns a block with empty input and field maps.
func NewBlock(opcode string) *Block {
	return &Block{
		Opcode: opcode,
		Inputs: make(map[string]Input),
		Fields: make(map[string]Field),
	}
}

type blockJSON struct {
	Opcode   string           `json:"opcode"`
	Next     BlockID          `json:"next"`
	Parent   BlockID          `json:"parent"`
	Inputs   map[string]Input `json:"inputs"`
	Fields   map[string]Field `json:"fields"`
	Shadow   bool             `json:"shadow"`
	TopLevel bool             `json:"topLevel"`
	X        *float64         `json:"x,omitempty"`
	Y        *float64         `json:"y,omitempty"`
	Mutation *Mutation        `json:"mutation,omitempty"`
	Comment  CommentID        `json:"comment,omitempty"`
}

// MarshalJSON encodes the block in project.json layout.
func (b *Block) MarshalJSON() ([]byte, error) {
	out := blockJSON{
		Opcode:   b.Opcode,
		Next:     b.Next,
		Parent:   b.Parent,
		Inputs:   b.Inputs,
		Fields:   b.Fields,
		Shadow:   b.Shadow,
		TopLevel: b.TopLevel,
		Mutation: b.Mutation,
		Comment:  b.Comment,
	}
	if out.Inputs == nil {
		out.Inputs = map[string]Input{}
	}
	if out.Fields == nil {
		out.Fields = map[string]Field{}
	}
	if b.Position != nil {
		out.X, out.Y = &b.Position.X, &b.Position.Y
	}
	return json.Marshal(out)
}

// Children returns the ids of every block referenced from b's inputs, in
// sorted input-name order.
func (b *Block) Children() []BlockID {
	var out []BlockID
	for _, name := range sortedKeys(b.Inputs) {
		if id := b.Inputs[name].Child(); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Primitive type codes used inside input arrays.
const (
	PrimNumber    = 4
	PrimString    = 10
	PrimBroadcast = 11
	PrimVariable  = 12
	PrimList      = 13
)

// Primitive is a literal or reference value embedded in an input array.
type Primitive struct {
	Type  int
	Value any    // number or string literal
	Name  string // variable, list or broadcast name
	ID    string // variable, list or broadcast id
}

// MarshalJSON encodes [type, value] or [type, name, id].
func (p Primitive) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PrimVariable, PrimList, PrimBroadcast:
		return json.Marshal([]any{p.Type, p.Name, p.ID})
	default:
		return json.Marshal([]any{p.Type, p.Value})
	}
}

// NumberPrim and StringPrim build literal primitives.
func NumberPrim(v float64) Primitive { return Primitive{Type: PrimNumber, Value: v} }
func StringPrim(s string) Primitive  { return Primitive{Type: PrimString, Value: s} }

// InputKind is the leading shadow marker of an input array.
type InputKind int

const (
	// InputShadow holds only a shadow: a literal or a menu shadow block.
	InputShadow InputKind = 1
	// InputBlock holds a block with no shadow behind it.
	InputBlock InputKind = 2
	// InputObscured holds a block or reference covering a shadow literal.
	InputObscured InputKind = 3
)

// Input is the value plugged into a block's input slot.
//
// Exactly one of Block or Ref is set for InputBlock and InputObscured.
// InputShadow uses Literal, or Block for a menu shadow block.
type Input struct {
	Kind    InputKind
	Block   BlockID
	Ref     *Primitive
	Literal *Primitive
}

// ShadowLiteral returns an input holding a literal shadow.
func ShadowLiteral(p Primitive) Input {
	return Input{Kind: InputShadow, Literal: &p}
}

// ShadowBlock returns an input holding a menu shadow block.
func ShadowBlock(id BlockID) Input {
	return Input{Kind: InputShadow, Block: id}
}

// BlockInput returns an input holding a non-shadow block.
func BlockInput(id BlockID) Input {
	return Input{Kind: InputBlock, Block: id}
}

// ObscuredRef returns a variable/list reporter covering an empty string.
func ObscuredRef(p Primitive) Input {
	shadow := StringPrim("")
	return Input{Kind: InputObscured, Ref: &p, Literal: &shadow}
}

// Child returns the id of the block this input references, if any.
func (in Input) Child() BlockID {
	return in.Block
}

// MarshalJSON encodes the positional input array.
func (in Input) MarshalJSON() ([]byte, error) {
	switch in.Kind {
	case InputShadow:
		if in.Block != "" {
			return json.Marshal([]any{1, in.Block})
		}
		if in.Literal == nil {
			return nil, fmt.Errorf("shadow input without value")
		}
		return json.Marshal([]any{1, *in.Literal})
	case InputBlock:
		return json.Marshal([]any{2, in.Block})
	case InputObscured:
		var covering any = in.Block
		if in.Ref != nil {
			covering = *in.Ref
		}
		shadow := StringPrim("")
		if in.Literal != nil {
			shadow = *in.Literal
		}
		return json.Marshal([]any{3, covering, shadow})
	}
	return nil, fmt.Errorf("unknown input kind %d", in.Kind)
}

// Field is a [value, id] pair. ID is empty for plain dropdown values.
type Field struct {
	Value string
	ID    string
}

// MarshalJSON encodes [value, id|null].
func (f Field) MarshalJSON() ([]byte, error) {
	var id any
	if f.ID != "" {
		id = f.ID
	}
	return json.Marshal([]any{f.Value, id})
}

// Mutation carries custom-procedure metadata on prototypes and calls.
type Mutation struct {
	ProcCode         string
	ArgumentIDs      []string
	ArgumentNames    []string // prototypes only
	ArgumentDefaults []string // prototypes only
	Warp             bool
	Return           bool
}

// MarshalJSON encodes the mutation. Argument arrays are JSON strings nested
// inside the document, as the runtime expects.
func (m *Mutation) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"tagName":  "mutation",
		"children": []any{},
		"proccode": m.ProcCode,
		"warp":     fmt.Sprintf("%t", m.Warp),
	}
	ids, err := encodeStrings(m.ArgumentIDs)
	if err != nil {
		return nil, err
	}
	out["argumentids"] = ids
	if m.ArgumentNames != nil {
		names, err := encodeStrings(m.ArgumentNames)
		if err != nil {
			return nil, err
		}
		out["argumentnames"] = names
	}
	if m.ArgumentDefaults != nil {
		defaults, err := encodeStrings(m.ArgumentDefaults)
		if err != nil {
			return nil, err
		}
		out["argumentdefaults"] = defaults
	}
	if m.Return {
		out["return"] = "1"
	}
	return json.Marshal(out)
}

func encodeStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Comment is a workspace comment, attached to a block or floating.
type Comment struct {
	BlockID   BlockID `json:"blockId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Minimized bool    `json:"minimized"`
	Text      string  `json:"text"`
}
