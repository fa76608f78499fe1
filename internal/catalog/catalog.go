// Package catalog maps source-level builtin names to target opcodes.
//
// Each entry declares the block kind, which argument feeds which input or
// field slot, and how literal arguments turn into menu shadow blocks. The
// builder in package codegen interprets entries generically; nothing in
// the catalog emits blocks itself.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies where a block may appear.
type Kind int

const (
	Command Kind = iota
	Reporter
	Boolean
	Hat
	CShape
)

var kindNames = map[Kind]string{
	Command:  "command",
	Reporter: "reporter",
	Boolean:  "boolean",
	Hat:      "hat",
	CShape:   "cshape",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown block kind %q", s)
}

// IsValue reports whether blocks of this kind produce a value.
func (k Kind) IsValue() bool {
	return k == Reporter || k == Boolean
}

// Shape selects how an input slot is filled.
type Shape int

const (
	// ShapeValue compiles the argument as an ordinary value input.
	ShapeValue Shape = iota
	// ShapeCondition compiles the argument in boolean context.
	ShapeCondition
	// ShapeMenu turns a string literal into a menu shadow block.
	ShapeMenu
	// ShapeBroadcast turns a string literal into a broadcast primitive
	// referencing the target's broadcast table.
	ShapeBroadcast
)

// Menu describes the shadow block used for a menu input.
type Menu struct {
	Opcode  string
	Field   string
	Aliases map[string]string
}

// Resolve maps a literal written in source to the value the runtime expects.
func (m *Menu) Resolve(v string) string {
	if alias, ok := m.Aliases[v]; ok {
		return alias
	}
	return v
}

// InputSlot binds argument Arg to input Name.
type InputSlot struct {
	Name  string
	Arg   int
	Shape Shape
	Menu  *Menu
}

// FieldSource selects where a field's value comes from.
type FieldSource int

const (
	// FieldArg takes the field value from a string or number literal argument.
	FieldArg FieldSource = iota
	// FieldConstant always uses Value.
	FieldConstant
	// FieldVariable resolves the argument as a variable name.
	FieldVariable
	// FieldList resolves the argument as a list name.
	FieldList
	// FieldBroadcast resolves the argument as a broadcast name, creating
	// the broadcast when needed.
	FieldBroadcast
)

// FieldSlot binds a field.
type FieldSlot struct {
	Name   string
	Arg    int
	Source FieldSource
	Value  string
	Upper  bool
}

// Block is one catalog entry.
type Block struct {
	Name   string
	Opcode string
	Kind   Kind

	// Arity is the exact argument count this entry accepts, or -1 for any.
	// A name may have several entries that differ only in arity.
	Arity int

	// Variadic marks string concatenation, which folds any number of
	// arguments into a chain of two-input blocks.
	Variadic bool

	Inputs []InputSlot
	Fields []FieldSlot

	// Extension is the owning extension id, empty for builtins.
	Extension string
}

// Accepts reports whether the entry can be called with argc arguments.
func (b *Block) Accepts(argc int) bool {
	return b.Arity < 0 || b.Arity == argc
}

// Catalog is an immutable-after-construction set of entries. Lookups are
// safe for concurrent use once construction is finished.
type Catalog struct {
	blocks     map[string][]*Block
	extensions map[string]*Extension
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		blocks:     make(map[string][]*Block),
		extensions: make(map[string]*Extension),
	}
}

// Add registers an entry. Entries with the same name must differ in arity.
func (c *Catalog) Add(b *Block) error {
	if b.Name == "" || b.Opcode == "" {
		return fmt.Errorf("catalog entry needs a name and an opcode")
	}
	for _, existing := range c.blocks[b.Name] {
		if existing.Arity == b.Arity || existing.Arity < 0 || b.Arity < 0 {
			return fmt.Errorf("duplicate catalog entry %q", b.Name)
		}
	}
	c.blocks[b.Name] = append(c.blocks[b.Name], b)
	return nil
}

// Lookup returns the entry for name accepting argc arguments. When no entry
// matches the arity, the first entry for the name is returned so callers
// can still report a useful error.
func (c *Catalog) Lookup(name string, argc int) (*Block, bool) {
	entries := c.blocks[name]
	if len(entries) == 0 {
		return nil, false
	}
	for _, b := range entries {
		if b.Accepts(argc) {
			return b, true
		}
	}
	return entries[0], true
}

// Has reports whether any entry exists for name.
func (c *Catalog) Has(name string) bool {
	return len(c.blocks[name]) > 0
}

// Names returns every entry name in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.blocks))
	for n := range c.blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extension returns a registered extension by id.
func (c *Catalog) Extension(id string) (*Extension, bool) {
	ext, ok := c.extensions[id]
	return ext, ok
}

// Clone returns a catalog sharing entries with c that can be extended
// without affecting c.
func (c *Catalog) Clone() *Catalog {
	out := New()
	for n, bs := range c.blocks {
		out.blocks[n] = append([]*Block(nil), bs...)
	}
	for id, ext := range c.extensions {
		out.extensions[id] = ext
	}
	return out
}
