package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LookupDigest returns the cached digest of path. The entry only counts as
// a hit when size and modTime match what was recorded.
func (s *Store) LookupDigest(ctx context.Context, path string, size int64, modTime time.Time) (string, bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, `
		SELECT digest FROM asset_digests
		WHERE path = ? AND size = ? AND mod_time = ?
	`, path, size, modTime.UnixNano()).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup digest: %w", err)
	}
	return digest, true, nil
}

// ReadBuilds returns the history, newest first. A non-positive limit
// returns every build. An empty project matches all projects.
//
// Returns an empty slice (not nil) when nothing was recorded.
func (s *Store) ReadBuilds(ctx context.Context, project string, limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, project, fingerprint, output, warnings, built_at
		FROM builds
		WHERE ? = '' OR project = ?
		ORDER BY seq DESC
		LIMIT ?
	`, project, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []BuildRecord{}
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}

	for i := range builds {
		targets, err := s.readTargets(ctx, builds[i].Seq)
		if err != nil {
			return nil, err
		}
		builds[i].Targets = targets
	}
	return builds, nil
}

// LatestBuild returns the most recent build of project.
// Returns sql.ErrNoRows if the project was never built.
func (s *Store) LatestBuild(ctx context.Context, project string) (BuildRecord, error) {
	builds, err := s.ReadBuilds(ctx, project, 1)
	if err != nil {
		return BuildRecord{}, err
	}
	if len(builds) == 0 {
		return BuildRecord{}, sql.ErrNoRows
	}
	return builds[0], nil
}

func (s *Store) readTargets(ctx context.Context, seq int64) ([]TargetRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, hash, blocks
		FROM build_targets
		WHERE build_seq = ?
		ORDER BY name COLLATE BINARY ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query build targets: %w", err)
	}
	defer rows.Close()

	targets := []TargetRecord{}
	for rows.Next() {
		var t TargetRecord
		if err := rows.Scan(&t.Name, &t.Hash, &t.Blocks); err != nil {
			return nil, fmt.Errorf("scan build target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build targets: %w", err)
	}
	return targets, nil
}

func scanBuild(rows *sql.Rows) (BuildRecord, error) {
	var rec BuildRecord
	var warnings, builtAt string
	if err := rows.Scan(&rec.Seq, &rec.Project, &rec.Fingerprint, &rec.Output, &warnings, &builtAt); err != nil {
		return BuildRecord{}, fmt.Errorf("scan build: %w", err)
	}
	var err error
	if rec.Warnings, err = unmarshalWarnings(warnings); err != nil {
		return BuildRecord{}, err
	}
	if rec.BuiltAt, err = parseTime(builtAt); err != nil {
		return BuildRecord{}, err
	}
	return rec, nil
}
