// Package snapshot produces transactionally consistent copies of a live
// SQLite database. The copy uses VACUUM INTO, the engine's online-backup
// primitive, so a source under concurrent WAL writes still yields a clean
// point-in-time file. Raw file copies are never used.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"snapvault/internal/logger"
)

var (
	// ErrSourceMissing means the configured database file does not exist.
	ErrSourceMissing = errors.New("source database does not exist")

	// ErrSourceEmpty means the database file exists but holds zero bytes.
	ErrSourceEmpty = errors.New("source database is empty")

	// ErrIntegrityCheck means the database reported itself as damaged.
	ErrIntegrityCheck = errors.New("integrity check failed")

	// ErrValidationTool means the integrity check could not be executed.
	// Distinct from ErrIntegrityCheck so a transient tool problem is not
	// mistaken for a corrupt database.
	ErrValidationTool = errors.New("integrity check could not run")

	// ErrSnapshotCopy means the online-backup copy itself failed.
	ErrSnapshotCopy = errors.New("snapshot copy failed")
)

// Snapshot is an ephemeral local artifact. Callers must Remove it on every
// exit path; snapshots are never meant to accumulate across runs.
type Snapshot struct {
	SourcePath string
	Path       string
	Filename   string
	SizeBytes  int64
	CreatedAt  time.Time
}

// Open returns a reader over the snapshot file.
func (s *Snapshot) Open() (*os.File, error) {
	return os.Open(s.Path)
}

// Remove deletes the snapshot file from local disk.
func (s *Snapshot) Remove() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Engine creates snapshots into a dedicated scratch directory.
type Engine struct {
	scratchDir string
	log        logger.Logger
}

// NewEngine creates a snapshot engine writing into scratchDir.
func NewEngine(scratchDir string, log logger.Logger) *Engine {
	return &Engine{scratchDir: scratchDir, log: log}
}

// CreateSnapshot validates the source database and produces a consistent
// copy of it in the scratch directory.
func (e *Engine) CreateSnapshot(ctx context.Context, sourcePath string) (*Snapshot, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, sourcePath)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSourceEmpty, sourcePath)
	}

	if err := IntegrityCheck(ctx, sourcePath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.scratchDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create scratch directory: %v", ErrSnapshotCopy, err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("snapshot-%s-%s.db",
		now.Format("20060102T150405Z"), uuid.NewString()[:8])
	destPath := filepath.Join(e.scratchDir, filename)

	if err := e.copyOnline(ctx, sourcePath, destPath); err != nil {
		// Never leave a torn copy behind.
		os.Remove(destPath)
		return nil, err
	}

	copied, err := os.Stat(destPath)
	if err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: stat copy: %v", ErrSnapshotCopy, err)
	}

	e.log.Debug("Snapshot created", "path", destPath, "size_bytes", copied.Size())

	return &Snapshot{
		SourcePath: sourcePath,
		Path:       destPath,
		Filename:   filename,
		SizeBytes:  copied.Size(),
		CreatedAt:  now,
	}, nil
}

// copyOnline runs VACUUM INTO over a read-only connection to the source.
// The connection is closed before any error is surfaced so a failed copy
// leaves no open handles on the live database.
func (e *Engine) copyOnline(ctx context.Context, sourcePath, destPath string) error {
	db, err := openReadOnly(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", ErrSnapshotCopy, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCopy, err)
	}
	return nil
}

// IntegrityCheck opens path read-only and requires PRAGMA integrity_check
// to report the canonical "ok" row.
func IntegrityCheck(ctx context.Context, path string) error {
	db, err := openReadOnly(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationTool, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationTool, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrIntegrityCheck, result)
	}
	return nil
}

func openReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	// Force the connection open now so path problems surface here,
	// not inside the first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
