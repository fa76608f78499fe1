// Package project turns a loaded blockc.yaml into a Scratch project.
//
// A build runs in three phases. Every target is first resolved and
// virtualized on its own. The public variables of the sprites are then
// hoisted into the stage program and the stage is compiled. Finally the
// sprites are compiled concurrently against the stage's frozen tables, and
// the targets are packed into an .sb3 archive.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/blockc/internal/ast"
	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/resolve"
	"github.com/roach88/blockc/internal/source"
)

// Source is one target's decoded program.
type Source struct {
	Name    string
	Path    string
	Stage   bool
	Program *ast.Program
}

// Workspace holds every document of a project, decoded but not compiled.
type Workspace struct {
	Config *config.Config

	// Targets lists the stage first, then the sprites in file order.
	Targets []*Source

	Modules resolve.MapRegistry

	// Extensions holds every extension that may be enabled, by id.
	Extensions map[string]*catalog.Extension

	// Warnings collects the non-fatal diagnostics of all documents.
	Warnings []string
}

// Load reads every document named by cfg.
func Load(cfg *config.Config) (*Workspace, error) {
	w := &Workspace{Config: cfg}

	mods, warnings, err := LoadModules(cfg.Project.Packages)
	if err != nil {
		return nil, err
	}
	w.Modules = mods
	w.Warnings = append(w.Warnings, warnings...)

	if w.Extensions, err = LoadExtensions(cfg.Project.ExtensionsDir); err != nil {
		return nil, err
	}

	for i, t := range cfg.Targets() {
		doc, err := source.ReadFile(t.Path)
		if err != nil {
			return nil, err
		}
		if doc.IsModule() {
			return nil, fmt.Errorf("%s: target %s must be a program document, found module %s", t.Path, t.Name, doc.Module.Name)
		}
		for _, wr := range doc.Warnings {
			w.Warnings = append(w.Warnings, wr.String())
		}
		w.Targets = append(w.Targets, &Source{
			Name:    t.Name,
			Path:    t.Path,
			Stage:   i == 0,
			Program: doc.Program,
		})
	}
	return w, nil
}

// LoadModules decodes the module documents at paths. A directory
// contributes every .yaml and .yml file directly inside it. Two documents
// declaring the same module name are an error.
func LoadModules(paths []string) (resolve.MapRegistry, []string, error) {
	reg := make(resolve.MapRegistry)
	origin := make(map[string]string)
	var warnings []string

	for _, p := range paths {
		files, err := moduleFiles(p)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range files {
			doc, err := source.ReadFile(f)
			if err != nil {
				return nil, nil, err
			}
			if !doc.IsModule() {
				return nil, nil, fmt.Errorf("%s: package documents need a module header", f)
			}
			name := doc.Module.Name
			if prev, dup := origin[name]; dup {
				return nil, nil, fmt.Errorf("module %s declared by both %s and %s", name, prev, f)
			}
			origin[name] = f
			reg[name] = doc.Module
			for _, wr := range doc.Warnings {
				warnings = append(warnings, wr.String())
			}
		}
	}
	return reg, warnings, nil
}

func moduleFiles(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("package: %w", err)
	}
	if !info.IsDir() {
		return []string{p}, nil
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("package: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadExtensions returns the bundled extensions plus those defined in dir,
// by id. An empty dir loads only the bundled set.
func LoadExtensions(dir string) (map[string]*catalog.Extension, error) {
	exts, err := catalog.Bundled()
	if err != nil {
		return nil, fmt.Errorf("bundled extensions: %w", err)
	}
	if dir != "" {
		extra, err := catalog.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		exts = append(exts, extra...)
	}
	out := make(map[string]*catalog.Extension, len(exts))
	for _, e := range exts {
		if _, dup := out[e.ID]; dup {
			return nil, fmt.Errorf("extension %q defined twice", e.ID)
		}
		out[e.ID] = e
	}
	return out, nil
}

// Catalog returns the builtin catalog extended with the named extensions.
// The return capability is accepted and contributes nothing.
func Catalog(exts map[string]*catalog.Extension, enabled []string) (*catalog.Catalog, error) {
	cat := catalog.Default().Clone()
	for _, id := range enabled {
		if id == catalog.ReturnCapability {
			continue
		}
		ext, ok := exts[id]
		if !ok {
			return nil, fmt.Errorf("unknown extension %q", id)
		}
		if err := cat.AddExtension(ext); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// fullCatalog enables every known extension. Resolution uses it so that
// extension blocks count as builtins before the enabled set is known.
func (w *Workspace) fullCatalog() (*catalog.Catalog, error) {
	ids := make([]string, 0, len(w.Extensions))
	for id := range w.Extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Catalog(w.Extensions, ids)
}
