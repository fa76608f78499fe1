package codegen

import (
	"slices"
	"strings"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/ir"
)

// FormatPlaceholder marks where an argument goes in a custom display template.
const FormatPlaceholder = "{}"

// ProcedureInfo is the call shape of one compiled routine. It is computed
// once per routine, before any call site is lowered, so that the
// definition and every call agree on the proccode and argument ids.
type ProcedureInfo struct {
	Name     string
	ProcCode string

	// ArgumentIDs, ArgumentNames and ArgumentTypes follow the order of the
	// placeholders in ProcCode.
	ArgumentIDs   []string
	ArgumentNames []string
	ArgumentTypes []ast.Type

	// ParamIDs holds the argument id of each declared parameter, in
	// declaration order. Call sites key their inputs by these ids.
	ParamIDs   []string
	ParamTypes []ast.Type

	Warp       bool
	ReturnType *ast.Type
}

func placeholder(t ast.Type) string {
	switch t {
	case ast.TypeBoolean:
		return "%b"
	case ast.TypeNumber:
		return "%n"
	default:
		return "%s"
	}
}

// NewProcedureInfo computes p's call shape, drawing fresh argument ids
// from ids.
//
// Without a custom format the proccode is the routine name followed by one
// placeholder per parameter. With one, each "{}" in the template takes the
// parameter named at the same position in the format's argument list, and
// parameters the template never mentions are appended at the end. Imported
// routines with a custom format are prefixed with their qualified name in
// brackets so they never read the same as a local routine.
func NewProcedureInfo(p *ast.ProcedureDef, ids IDGenerator) *ProcedureInfo {
	info := &ProcedureInfo{
		Name:       p.Name,
		Warp:       p.Warp,
		ReturnType: p.ReturnType,
	}
	for _, prm := range p.Params {
		info.ParamIDs = append(info.ParamIDs, ids.Generate())
		info.ParamTypes = append(info.ParamTypes, prm.Type)
	}

	var code strings.Builder
	used := make([]bool, len(p.Params))
	addParam := func(i int) {
		code.WriteString(placeholder(p.Params[i].Type))
		info.ArgumentIDs = append(info.ArgumentIDs, info.ParamIDs[i])
		info.ArgumentNames = append(info.ArgumentNames, p.Params[i].Name)
		info.ArgumentTypes = append(info.ArgumentTypes, p.Params[i].Type)
		used[i] = true
	}

	if p.Format == nil {
		code.WriteString(p.Name)
	} else {
		if p.Module != "" {
			code.WriteString("[" + p.Name + "] ")
		}
		parts := strings.Split(p.Format.Template, FormatPlaceholder)
		for i, part := range parts {
			code.WriteString(part)
			if i == len(parts)-1 || i >= len(p.Format.Args) {
				continue
			}
			name := p.Format.Args[i]
			idx := slices.IndexFunc(p.Params, func(prm ast.Param) bool { return prm.Name == name })
			if idx >= 0 && !used[idx] {
				addParam(idx)
				continue
			}
			// A label the routine does not declare still gets a slot so
			// the template renders.
			code.WriteString("%s")
			info.ArgumentIDs = append(info.ArgumentIDs, ids.Generate())
			info.ArgumentNames = append(info.ArgumentNames, name)
			info.ArgumentTypes = append(info.ArgumentTypes, ast.TypeString)
		}
	}
	for i := range p.Params {
		if !used[i] {
			code.WriteByte(' ')
			addParam(i)
		}
	}
	info.ProcCode = code.String()
	return info
}

// Reports reports whether calls to the routine produce a value.
func (pi *ProcedureInfo) Reports() bool {
	return pi.ReturnType != nil
}

func (pi *ProcedureInfo) prototypeMutation() *ir.Mutation {
	return &ir.Mutation{
		ProcCode:         pi.ProcCode,
		ArgumentIDs:      append([]string{}, pi.ArgumentIDs...),
		ArgumentNames:    append([]string{}, pi.ArgumentNames...),
		ArgumentDefaults: make([]string, len(pi.ArgumentIDs)),
		Warp:             pi.Warp,
		Return:           pi.Reports(),
	}
}

func (pi *ProcedureInfo) callMutation() *ir.Mutation {
	return &ir.Mutation{
		ProcCode:    pi.ProcCode,
		ArgumentIDs: append([]string{}, pi.ArgumentIDs...),
		Warp:        pi.Warp,
		Return:      pi.Reports(),
	}
}
