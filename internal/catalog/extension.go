package catalog

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// ReturnCapability is the capability a module must declare before it may
// contain return statements. It contributes no blocks.
const ReturnCapability = "return"

// vanilla lists extension ids the stock runtime loads without a URL.
var vanilla = map[string]bool{
	"pen": true, "music": true, "videoSensing": true, "text2speech": true, "translate": true,
}

// Extension is an externally supplied block catalog.
type Extension struct {
	ID        string
	ProjectID string
	URL       string
	Blocks    []*Block
}

// Vanilla reports whether the runtime ships the extension itself.
func (e *Extension) Vanilla() bool {
	return vanilla[e.ProjectID]
}

// ExtensionError reports a malformed extension definition.
type ExtensionError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ExtensionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

//go:embed extensions/*.cue
var bundled embed.FS

// AddExtension registers ext and its blocks.
func (c *Catalog) AddExtension(ext *Extension) error {
	if _, dup := c.extensions[ext.ID]; dup {
		return fmt.Errorf("extension %q registered twice", ext.ID)
	}
	for _, b := range ext.Blocks {
		if err := c.Add(b); err != nil {
			return fmt.Errorf("extension %s: %w", ext.ID, err)
		}
	}
	c.extensions[ext.ID] = ext
	return nil
}

// Bundled returns the extensions compiled into the binary, sorted by id.
func Bundled() ([]*Extension, error) {
	entries, err := bundled.ReadDir("extensions")
	if err != nil {
		return nil, err
	}
	ctx := cuecontext.New()
	var out []*Extension
	for _, e := range entries {
		name := path.Join("extensions", e.Name())
		data, err := bundled.ReadFile(name)
		if err != nil {
			return nil, err
		}
		v := ctx.CompileBytes(data, cue.Filename(name))
		exts, err := ParseExtensions(v)
		if err != nil {
			return nil, err
		}
		out = append(out, exts...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadDir loads every extension defined by the CUE files in dir. The files
// are unified into one value, so a package clause is optional and an
// extension may be spread over several files.
func LoadDir(dir string) ([]*Extension, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("extensions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files in %s", dir)
	}
	sort.Strings(files)

	ctx := cuecontext.New()
	var v cue.Value
	for i, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("loading CUE files: %w", err)
		}
		fv := ctx.CompileBytes(data, cue.Filename(name))
		if err := fv.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if i == 0 {
			v = fv
			continue
		}
		v = v.Unify(fv)
	}
	return ParseExtensions(v)
}

// ParseExtensions decodes the `extension` struct of a CUE value:
//
//	extension: pen: {
//		project_id: "pen"
//		blocks: pen_down: {opcode: "pen_penDown", kind: "command"}
//	}
func ParseExtensions(v cue.Value) ([]*Extension, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	root := v.LookupPath(cue.ParsePath("extension"))
	if !root.Exists() {
		return nil, nil
	}
	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []*Extension
	for iter.Next() {
		ext, err := parseExtension(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, nil
}

func parseExtension(id string, v cue.Value) (*Extension, error) {
	ext := &Extension{ID: id, ProjectID: id}
	if s, ok, err := optionalString(v, "project_id"); err != nil {
		return nil, err
	} else if ok {
		ext.ProjectID = s
	}
	if s, ok, err := optionalString(v, "url"); err != nil {
		return nil, err
	} else if ok {
		ext.URL = s
	}

	blocksVal := v.LookupPath(cue.ParsePath("blocks"))
	if !blocksVal.Exists() {
		return ext, nil
	}
	iter, err := blocksVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		b, err := parseBlock(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		b.Extension = id
		ext.Blocks = append(ext.Blocks, b)
	}
	return ext, nil
}

func parseBlock(name string, v cue.Value) (*Block, error) {
	opcode, ok, err := optionalString(v, "opcode")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ExtensionError{Field: name + ".opcode", Message: "opcode is required", Pos: v.Pos()}
	}
	b := &Block{Name: name, Opcode: opcode, Kind: Command, Arity: -1}

	if s, ok, err := optionalString(v, "kind"); err != nil {
		return nil, err
	} else if ok {
		k, err := ParseKind(s)
		if err != nil {
			return nil, &ExtensionError{Field: name + ".kind", Message: err.Error(), Pos: v.Pos()}
		}
		b.Kind = k
	}

	maxArg := -1
	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if inputsVal.Exists() {
		iter, err := inputsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			slot, err := parseInput(name, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			maxArg = max(maxArg, slot.Arg)
			b.Inputs = append(b.Inputs, slot)
		}
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			slot, err := parseField(name, iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			maxArg = max(maxArg, slot.Arg)
			b.Fields = append(b.Fields, slot)
		}
	}

	b.Arity = maxArg + 1
	if n, ok, err := optionalInt(v, "arity"); err != nil {
		return nil, err
	} else if ok {
		b.Arity = n
	}
	return b, nil
}

func parseInput(block, slot string, v cue.Value) (InputSlot, error) {
	in := InputSlot{Name: slot}
	arg, ok, err := optionalInt(v, "arg")
	if err != nil {
		return in, err
	}
	if !ok {
		return in, &ExtensionError{Field: block + ".inputs." + slot, Message: "arg is required", Pos: v.Pos()}
	}
	in.Arg = arg

	shape, _, err := optionalString(v, "shape")
	if err != nil {
		return in, err
	}
	switch shape {
	case "", "value":
	case "condition":
		in.Shape = ShapeCondition
	case "menu":
		in.Shape = ShapeMenu
		opcode, _, err := optionalString(v, "menu.opcode")
		if err != nil {
			return in, err
		}
		field, _, err := optionalString(v, "menu.field")
		if err != nil {
			return in, err
		}
		if opcode == "" || field == "" {
			return in, &ExtensionError{Field: block + ".inputs." + slot + ".menu", Message: "menu needs opcode and field", Pos: v.Pos()}
		}
		in.Menu = &Menu{Opcode: opcode, Field: field}
	default:
		return in, &ExtensionError{Field: block + ".inputs." + slot + ".shape", Message: fmt.Sprintf("unknown shape %q", shape), Pos: v.Pos()}
	}
	return in, nil
}

func parseField(block, slot string, v cue.Value) (FieldSlot, error) {
	f := FieldSlot{Name: slot, Arg: -1}
	if s, ok, err := optionalString(v, "value"); err != nil {
		return f, err
	} else if ok {
		f.Source = FieldConstant
		f.Value = s
		return f, nil
	}
	arg, ok, err := optionalInt(v, "arg")
	if err != nil {
		return f, err
	}
	if !ok {
		return f, &ExtensionError{Field: block + ".fields." + slot, Message: "field needs arg or value", Pos: v.Pos()}
	}
	f.Arg = arg
	f.Source = FieldArg
	return f, nil
}

func optionalString(v cue.Value, p string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(p))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func optionalInt(v cue.Value, p string) (int, bool, error) {
	fv := v.LookupPath(cue.ParsePath(p))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	return int(n), true, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	pos := first.Position()
	format, args := first.Msg()
	return &ExtensionError{
		Field:   "cue",
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}
