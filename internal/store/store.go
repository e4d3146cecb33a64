// Package store owns the export directory: write-once registration,
// enumeration, read-back, and age-based eviction of produced artifacts.
//
// Files on disk are authoritative. A sqlite index alongside the directory
// carries per-artifact metadata (size, creation time) for listing surfaces
// and is reconciled against the directory on open.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/diwenne/clutch-shot-searcher/internal/types"
)

// ErrNotFound is returned on any artifact retrieval miss.
var ErrNotFound = errors.New("artifact not found")

const (
	indexFile  = ".index.db"
	scratchDir = ".tmp"
)

// CleanupStats reports one sweep: counts are over files actually visited
// in the snapshot taken at sweep start.
type CleanupStats struct {
	Deleted   int `json:"deleted"`
	Remaining int `json:"remaining"`
}

type Store struct {
	dir    string
	db     *sql.DB
	logger zerolog.Logger

	// Put and Delete take the read side so concurrent per-shot writers
	// (which target distinct filenames by construction) never block each
	// other; Cleanup takes the write side so a sweep cannot overlap an
	// in-flight registration.
	mu sync.RWMutex
}

// Open prepares dir (and its scratch subdirectory) and opens the index.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, scratchDir), 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		dir:    dir,
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS artifacts (
		filename   TEXT PRIMARY KEY,
		size_bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}
	return s.reconcile(ctx)
}

// reconcile brings the index in line with the directory: files without a
// row are adopted (mtime as creation time), rows without a file dropped.
func (s *Store) reconcile(ctx context.Context) error {
	names, err := s.List()
	if err != nil {
		return err
	}
	onDisk := make(map[string]bool, len(names))
	for _, name := range names {
		onDisk[name] = true
		st, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO artifacts (filename, size_bytes, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(filename) DO UPDATE SET size_bytes = excluded.size_bytes`,
			name, st.Size(), st.ModTime().UTC().Unix(),
		); err != nil {
			return fmt.Errorf("index %s: %w", name, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM artifacts`)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		if !onDisk[name] {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE filename = ?`, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dir is the export directory path.
func (s *Store) Dir() string { return s.dir }

// Scratch returns the staging path for filename. Writers produce their
// output there; Put moves it into the directory, so partially written
// files never show up in listings.
func (s *Store) Scratch(filename string) string {
	return filepath.Join(s.dir, scratchDir, filename)
}

// Put registers a just-written file under filename. An existing artifact
// with the same name is overwritten; that matches the engine's own
// overwrite behaviour and keeps re-exports idempotent.
func (s *Store) Put(ctx context.Context, filename, srcPath string) (types.Artifact, error) {
	if err := validName(filename); err != nil {
		return types.Artifact{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dst := filepath.Join(s.dir, filename)
	if err := os.Rename(srcPath, dst); err != nil {
		return types.Artifact{}, fmt.Errorf("register %s: %w", filename, err)
	}
	st, err := os.Stat(dst)
	if err != nil {
		return types.Artifact{}, err
	}

	created := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (filename, size_bytes, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET size_bytes = excluded.size_bytes, created_at = excluded.created_at`,
		filename, st.Size(), created.Unix(),
	); err != nil {
		return types.Artifact{}, fmt.Errorf("index %s: %w", filename, err)
	}
	if err := s.Commit(ctx); err != nil {
		return types.Artifact{}, err
	}

	s.logger.Info().Str("filename", filename).Int64("size_bytes", st.Size()).Msg("artifact stored")
	return types.Artifact{
		Filename:  filename,
		SizeBytes: st.Size(),
		CreatedAt: created,
		Path:      dst,
	}, nil
}

// List returns current artifact filenames in directory iteration order.
// No order is guaranteed; callers requiring one must sort.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Artifacts returns indexed metadata for every artifact, by filename.
func (s *Store) Artifacts(ctx context.Context) ([]types.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, size_bytes, created_at FROM artifacts ORDER BY filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Artifact
	for rows.Next() {
		var a types.Artifact
		var created int64
		if err := rows.Scan(&a.Filename, &a.SizeBytes, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		a.Path = filepath.Join(s.dir, a.Filename)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Get reads an artifact's bytes.
func (s *Store) Get(filename string) ([]byte, error) {
	if err := validName(filename); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return b, err
}

// Open opens an artifact for streaming reads, along with its metadata.
// The caller owns the returned file.
func (s *Store) Open(filename string) (*os.File, types.Artifact, error) {
	if err := validName(filename); err != nil {
		return nil, types.Artifact{}, err
	}
	path := filepath.Join(s.dir, filename)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, types.Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, types.Artifact{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, types.Artifact{}, err
	}
	return f, types.Artifact{
		Filename:  filename,
		SizeBytes: st.Size(),
		CreatedAt: st.ModTime().UTC(),
		Path:      path,
	}, nil
}

// Delete removes one artifact by name.
func (s *Store) Delete(ctx context.Context, filename string) error {
	if err := validName(filename); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE filename = ?`, filename); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// Cleanup deletes every artifact whose mtime is older than maxAge. The
// sweep works over one snapshot of the listing; files created while it
// runs are not considered. Deletion is best-effort per file: a failing
// delete is logged and counted as remaining, never aborts the sweep.
// Running it twice with no new files is a no-op the second time.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (CleanupStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.List()
	if err != nil {
		return CleanupStats{}, err
	}

	now := time.Now()
	var stats CleanupStats
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(st.ModTime()) <= maxAge {
			stats.Remaining++
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("filename", name).Msg("cleanup: delete failed")
			stats.Remaining++
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE filename = ?`, name); err != nil {
			s.logger.Warn().Err(err).Str("filename", name).Msg("cleanup: index delete failed")
		}
		stats.Deleted++
	}

	if err := s.Commit(ctx); err != nil {
		return stats, err
	}
	s.logger.Info().Int("deleted", stats.Deleted).Int("remaining", stats.Remaining).Msg("cleanup swept")
	return stats, nil
}

// Commit is the durability barrier: the index is checkpointed and the
// directory fsynced. Every mutating operation above ends with it, so a
// state the caller has observed survives a crash of the volume underneath.
func (s *Store) Commit(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("checkpoint index: %w", err)
	}
	d, err := os.Open(s.dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync export directory: %w", err)
	}
	return nil
}

func validName(filename string) error {
	if filename == "" {
		return errors.New("filename is empty")
	}
	if strings.HasPrefix(filename, ".") {
		return fmt.Errorf("invalid filename %q", filename)
	}
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid filename %q", filename)
	}
	return nil
}
