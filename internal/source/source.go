// Package source decodes AST documents into ast values.
//
// An AST document is a YAML file produced by the external parser. A program
// document holds a top-level `items:` sequence; a module document also has a
// `module:` header naming the module, its capability extensions, and its
// dependencies. Only the first YAML document of a file is decoded. Any text
// after it is reported as a warning, mirroring a parser that stopped before
// consuming its whole input.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockc/internal/ast"
)

// PreviewLen is the number of characters of unconsumed input quoted in the
// parser-stopped warning.
const PreviewLen = 50

// Error reports a malformed AST document. Line and Column are 1-based and
// zero when unknown.
type Error struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Path    string
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.Path, w.Line, w.Message)
}

// Document is one decoded AST document. Exactly one of Program and Module
// is set.
type Document struct {
	Path     string
	Program  *ast.Program
	Module   *ast.Module
	Warnings []Warning
}

// IsModule reports whether the document declared a module header.
func (d *Document) IsModule() bool {
	return d.Module != nil
}

// ReadFile reads and decodes the document at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data. path is used only for diagnostics.
func Parse(path string, data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Path: path, Message: "empty document"}
		}
		return nil, &Error{Path: path, Message: err.Error()}
	}

	d := &decoder{path: path}
	doc := &Document{Path: path}

	body := &root
	if body.Kind == yaml.DocumentNode && len(body.Content) > 0 {
		body = body.Content[0]
	}
	fields, err := d.mapping(body, "items", "module")
	if err != nil {
		return nil, err
	}

	items, err := d.items(fields["items"])
	if err != nil {
		return nil, err
	}
	if hdr, ok := fields["module"]; ok {
		mod, err := d.moduleHeader(hdr)
		if err != nil {
			return nil, err
		}
		mod.Items = items
		doc.Module = mod
	} else {
		doc.Program = &ast.Program{Items: items}
	}

	var rest yaml.Node
	if err := dec.Decode(&rest); err == nil {
		line := rest.Line
		if len(rest.Content) > 0 {
			line = rest.Content[0].Line
		}
		doc.Warnings = append(doc.Warnings, Warning{
			Path:    path,
			Line:    line,
			Message: "parser stopped early; unconsumed input: " + preview(data, line),
		})
	} else if !errors.Is(err, io.EOF) {
		doc.Warnings = append(doc.Warnings, Warning{
			Path:    path,
			Message: "parser stopped early: " + err.Error(),
		})
	}
	return doc, nil
}

// ParseProgram decodes a program document.
func ParseProgram(path string, data []byte) (*ast.Program, []Warning, error) {
	doc, err := Parse(path, data)
	if err != nil {
		return nil, nil, err
	}
	if doc.IsModule() {
		return nil, nil, &Error{Path: path, Message: "expected a program document, found module " + doc.Module.Name}
	}
	return doc.Program, doc.Warnings, nil
}

// ParseModule decodes a module document.
func ParseModule(path string, data []byte) (*ast.Module, []Warning, error) {
	doc, err := Parse(path, data)
	if err != nil {
		return nil, nil, err
	}
	if !doc.IsModule() {
		return nil, nil, &Error{Path: path, Message: "expected a module document"}
	}
	return doc.Module, doc.Warnings, nil
}

// preview returns up to PreviewLen characters of data starting at line.
func preview(data []byte, line int) string {
	lines := strings.Split(string(data), "\n")
	start := max(line-1, 0)
	// Include the document separator that introduced the trailing input.
	if start > 0 && strings.HasPrefix(strings.TrimSpace(lines[start-1]), "---") {
		start--
	}
	if start >= len(lines) {
		return ""
	}
	text := strings.TrimSpace(strings.Join(lines[start:], "\n"))
	r := []rune(text)
	if len(r) > PreviewLen {
		return string(r[:PreviewLen]) + "..."
	}
	return text
}
