package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AssetDigest is the cached md5 of one asset file.
type AssetDigest struct {
	Path    string
	Size    int64
	ModTime time.Time
	Digest  string
}

// TargetRecord is the fingerprint of one compiled target.
type TargetRecord struct {
	Name   string `json:"name"`
	Hash   string `json:"hash"`
	Blocks int    `json:"blocks"`
}

// BuildRecord is one entry of the build history.
type BuildRecord struct {
	// Seq is assigned by RecordBuild.
	Seq         int64          `json:"seq"`
	Project     string         `json:"project"`
	Fingerprint string         `json:"fingerprint"`
	Output      string         `json:"output"`
	Targets     []TargetRecord `json:"targets"`
	Warnings    []string       `json:"warnings"`
	BuiltAt     time.Time      `json:"built_at"`
}

// PutDigest stores or replaces the digest cached for d.Path.
func (s *Store) PutDigest(ctx context.Context, d AssetDigest) error {
	if d.Path == "" || d.Digest == "" {
		return errors.New("put digest: path and digest are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_digests (path, size, mod_time, digest)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			digest = excluded.digest
	`,
		d.Path,
		d.Size,
		d.ModTime.UnixNano(),
		d.Digest,
	)
	if err != nil {
		return fmt.Errorf("put digest: %w", err)
	}
	return nil
}

// RecordBuild appends rec to the history and returns its sequence number.
// The build and its targets are written in one transaction.
func (s *Store) RecordBuild(ctx context.Context, rec BuildRecord) (int64, error) {
	warnings, err := marshalWarnings(rec.Warnings)
	if err != nil {
		return 0, fmt.Errorf("record build: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record build: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO builds (project, fingerprint, output, warnings, built_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Project,
		rec.Fingerprint,
		rec.Output,
		warnings,
		formatTime(rec.BuiltAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record build: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record build: last insert id: %w", err)
	}

	for _, t := range rec.Targets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO build_targets (build_seq, name, hash, blocks)
			VALUES (?, ?, ?, ?)
		`, seq, t.Name, t.Hash, t.Blocks)
		if err != nil {
			return 0, fmt.Errorf("record build target %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record build: commit: %w", err)
	}
	return seq, nil
}

// PruneBuilds deletes all but the newest keep builds of project and
// returns how many were removed.
func (s *Store) PruneBuilds(ctx context.Context, project string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM builds
		WHERE project = ? AND seq NOT IN (
			SELECT seq FROM builds WHERE project = ? ORDER BY seq DESC LIMIT ?
		)
	`, project, project, keep)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	return n, nil
}
