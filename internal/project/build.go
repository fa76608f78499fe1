package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/blockc/internal/catalog"
	"github.com/roach88/blockc/internal/codegen"
	"github.com/roach88/blockc/internal/config"
	"github.com/roach88/blockc/internal/ir"
	"github.com/roach88/blockc/internal/store"
)

// Options tune a build. The zero value is a normal build.
type Options struct {
	// NoCache skips the build cache: assets are hashed from disk and the
	// build is not recorded.
	NoCache bool

	// IDs returns the id generator for one target. Nil means UUIDs.
	IDs func(target string) codegen.IDGenerator

	// Now stamps the build record. Nil means time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Result describes a finished build.
type Result struct {
	Project *ir.Project `json:"-"`

	// Archive is the .sb3 file written.
	Archive string `json:"archive"`

	// ProjectJSON is set when the project document was also written.
	ProjectJSON string `json:"project_json,omitempty"`

	Fingerprint string               `json:"fingerprint"`
	Targets     []store.TargetRecord `json:"targets"`
	Warnings    []string             `json:"warnings"`

	// Seq is the history entry of this build, 0 when uncached.
	Seq int64 `json:"seq,omitempty"`

	// Unchanged is true when the previous recorded build produced the same
	// fingerprint.
	Unchanged bool `json:"unchanged"`
}

// Build compiles the project described by cfg and writes its archive.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if opts.IDs == nil {
		opts.IDs = func(string) codegen.IDGenerator { return codegen.UUIDGenerator{} }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := discardIfNil(opts.Logger).With("project", cfg.Project.Name)

	w, err := Load(cfg)
	if err != nil {
		return nil, err
	}

	var (
		db     *store.Store
		hasher codegen.AssetHasher = codegen.FileHasher{}
	)
	if !opts.NoCache {
		if db, err = openCache(cfg.Project.Cache); err != nil {
			return nil, err
		}
		defer db.Close()
		cached := NewCachedHasher(ctx, db)
		hasher = cached
		defer func() {
			hits, misses := cached.Stats()
			log.Debug("asset cache", "hits", hits, "misses", misses)
		}()
	}

	res, assets, err := w.compile(ctx, hasher, opts, log)
	if err != nil {
		return nil, err
	}

	doc, err := ir.MarshalCanonical(res.Project)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	res.Archive = cfg.ArchivePath()
	if err := writeArchive(res.Archive, doc, assets); err != nil {
		return nil, err
	}
	if cfg.Project.Debug {
		res.ProjectJSON = filepath.Join(cfg.Project.Output, projectEntry)
		if err := os.WriteFile(res.ProjectJSON, doc, 0o644); err != nil {
			return nil, fmt.Errorf("write project.json: %w", err)
		}
	}
	log.Info("wrote archive", "path", res.Archive, "targets", len(res.Targets))

	if db != nil {
		if err := record(ctx, db, cfg, res, opts.Now()); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// compile runs the compiler over every target and assembles the project.
// It touches the disk only to hash assets.
func (w *Workspace) compile(ctx context.Context, hasher codegen.AssetHasher, opts Options, log *slog.Logger) (*Result, []ir.AssetInstruction, error) {
	analyses, err := w.Analyze(ctx, log)
	if err != nil {
		return nil, nil, err
	}
	res := &Result{Warnings: append([]string{}, w.Warnings...)}

	enabled := EnabledExtensions(w.Config.Project.Extensions, analyses)
	cat, err := Catalog(w.Extensions, enabled)
	if err != nil {
		return nil, nil, err
	}

	stageProg, warnings := hoist(analyses[0].Program, analyses[1:])
	res.Warnings = append(res.Warnings, warnings...)

	env := func(a *Analysis) codegen.Env {
		return codegen.Env{
			Name:    a.Name,
			Stage:   a.Stage,
			Root:    filepath.Dir(a.Path),
			Catalog: cat,
			Assets:  hasher,
			IDs:     opts.IDs(a.Name),
			Logger:  log,
		}
	}

	stage, err := codegen.Build(stageProg, env(analyses[0]))
	if err != nil {
		return nil, nil, err
	}
	globals := stage.Globals()

	// The stage is finished; sprites only read its tables from here on.
	sprites := make([]*codegen.Result, len(analyses)-1)
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range analyses[1:] {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e := env(a)
			e.Globals = globals
			r, err := codegen.Build(a.Program, e)
			if err != nil {
				return err
			}
			sprites[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	results := append([]*codegen.Result{stage}, sprites...)
	p := ir.NewProject(ir.Agent)
	var assets []ir.AssetInstruction
	for i, r := range results {
		r.Target.LayerOrder = i
		p.Targets = append(p.Targets, r.Target)
		assets = append(assets, r.Assets...)
		res.Warnings = append(res.Warnings, r.Warnings...)

		hash, err := ir.TargetHash(r.Target)
		if err != nil {
			return nil, nil, err
		}
		res.Targets = append(res.Targets, store.TargetRecord{
			Name:   r.Target.Name,
			Hash:   hash,
			Blocks: len(r.Target.Blocks),
		})
	}
	res.Warnings = append(res.Warnings, addExtensions(p, cat, enabled)...)

	if res.Fingerprint, err = ir.ProjectHash(p); err != nil {
		return nil, nil, err
	}
	res.Project = p
	return res, assets, nil
}

// addExtensions lists the enabled extensions on p. Extensions the stock
// runtime does not ship are loaded from their URL and produce a warning.
func addExtensions(p *ir.Project, cat *catalog.Catalog, enabled []string) []string {
	var warnings []string
	for _, id := range enabled {
		ext, ok := cat.Extension(id)
		if !ok {
			continue
		}
		p.Extensions = append(p.Extensions, ext.ProjectID)
		if ext.Vanilla() {
			continue
		}
		if ext.URL != "" {
			if p.ExtensionURLs == nil {
				p.ExtensionURLs = make(map[string]string)
			}
			p.ExtensionURLs[ext.ProjectID] = ext.URL
		}
		warnings = append(warnings, fmt.Sprintf(
			"extension %s is not built into the stock editor; open the project in an editor that can load it", id))
	}
	return warnings
}

func openCache(path string) (*store.Store, error) {
	if path != config.MemoryCache {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open build cache: %w", err)
	}
	return db, nil
}

func record(ctx context.Context, db *store.Store, cfg *config.Config, res *Result, at time.Time) error {
	prev, err := db.LatestBuild(ctx, cfg.Project.Name)
	switch {
	case err == nil:
		res.Unchanged = prev.Fingerprint == res.Fingerprint
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	res.Seq, err = db.RecordBuild(ctx, store.BuildRecord{
		Project:     cfg.Project.Name,
		Fingerprint: res.Fingerprint,
		Output:      res.Archive,
		Targets:     res.Targets,
		Warnings:    res.Warnings,
		BuiltAt:     at,
	})
	return err
}

// History returns the recorded builds of cfg's project, newest first.
func History(ctx context.Context, cfg *config.Config, limit int) ([]store.BuildRecord, error) {
	if cfg.Project.Cache == config.MemoryCache {
		return []store.BuildRecord{}, nil
	}
	if _, err := os.Stat(cfg.Project.Cache); errors.Is(err, os.ErrNotExist) {
		return []store.BuildRecord{}, nil
	}
	db, err := store.Open(cfg.Project.Cache)
	if err != nil {
		return nil, fmt.Errorf("open build cache: %w", err)
	}
	defer db.Close()
	return db.ReadBuilds(ctx, cfg.Project.Name, limit)
}
