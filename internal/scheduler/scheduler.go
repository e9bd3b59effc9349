// Package scheduler runs the backup cycle, either on demand or once daily
// at a fixed local time. Scheduled failures are isolated: they go to the
// alert sink and never take down the process or the schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"snapvault/internal/alert"
	"snapvault/internal/credstore"
	"snapvault/internal/drive"
	"snapvault/internal/logger"
	"snapvault/internal/snapshot"
)

// Snapshotter produces local snapshots of the source database.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, sourcePath string) (*snapshot.Snapshot, error)
}

// RemoteClient is the remote-store surface one backup cycle needs.
type RemoteClient interface {
	ResolveBackupFolder(ctx context.Context) (string, error)
	Upload(ctx context.Context, folderID, name string, r io.Reader) (drive.Entry, error)
	EnforceRetention(ctx context.Context, folderID string) ([]drive.Entry, error)
}

// CredentialReader reads the stored credential record.
type CredentialReader interface {
	Get() (credstore.Record, error)
}

// Options configures a Scheduler.
type Options struct {
	DBPath     string
	Hour       int
	Minute     int
	Location   *time.Location
	MaxBackups int

	Engine    Snapshotter
	NewClient func(ctx context.Context) (RemoteClient, error)
	Creds     CredentialReader
	Sink      *alert.Sink
	Log       logger.Logger
}

// Status is a point-in-time view of the scheduler. Pure read, no side
// effects.
type Status struct {
	Running    bool
	Configured bool
	Schedule   string
	MaxBackups int
	LastRun    time.Time
	LastError  string
}

// Scheduler owns the daily trigger and the backup cycle pipeline.
type Scheduler struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	handle  *Handle
	lastRun time.Time
	lastErr error

	// cycleMu serializes cycles: a manual trigger during a scheduled run
	// waits instead of running in parallel.
	cycleMu sync.Mutex
}

// Handle is the owned lifecycle token for an active schedule. Stop cancels
// the recurring trigger and waits for the loop to exit.
type Handle struct {
	s      *Scheduler
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the schedule. Safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done

	h.s.mu.Lock()
	if h.s.handle == h {
		h.s.handle = nil
	}
	h.s.mu.Unlock()
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{opts: opts, now: time.Now}
}

// Start registers the daily trigger. Starting an already-running scheduler
// is a no-op returning the existing handle.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return s.handle
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{s: s, cancel: cancel, done: make(chan struct{})}
	s.handle = h

	go s.loop(ctx, h.done)

	s.opts.Log.Info("Backup schedule started",
		"time", fmt.Sprintf("%02d:%02d", s.opts.Hour, s.opts.Minute),
		"timezone", s.opts.Location.String())
	return h
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastFired time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now().In(s.opts.Location)
			if now.Hour() != s.opts.Hour || now.Minute() != s.opts.Minute {
				continue
			}
			// A minute ticker can land twice inside the same minute.
			if !lastFired.IsZero() && now.Sub(lastFired) < time.Minute {
				continue
			}
			lastFired = now
			s.runScheduled(ctx)
		}
	}
}

// runScheduled executes one cycle with full failure isolation.
func (s *Scheduler) runScheduled(ctx context.Context) {
	err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, drive.ErrNotAuthorized):
		// Setup was simply never completed; not worth alerting on.
		s.opts.Log.Debug("Skipping scheduled backup: remote storage not authorized")
	default:
		s.opts.Sink.Failure("scheduled-backup", err, map[string]any{
			"db_path": s.opts.DBPath,
		})
	}
}

// RunOnce executes one full backup cycle synchronously: snapshot, upload,
// retention, local cleanup. The local snapshot is removed on every exit
// path, success or not.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	defer func() {
		s.mu.Lock()
		s.lastRun = s.now()
		s.lastErr = err
		s.mu.Unlock()
	}()

	op := s.opts.Log.StartOperation("backup")

	snap, err := s.opts.Engine.CreateSnapshot(ctx, s.opts.DBPath)
	if err != nil {
		op.Fail("snapshot", "error", err)
		return err
	}
	defer func() {
		if rmErr := snap.Remove(); rmErr != nil {
			s.opts.Log.Warn("Failed to remove local snapshot", "path", snap.Path, "error", rmErr)
		}
	}()

	client, err := s.opts.NewClient(ctx)
	if err != nil {
		if !errors.Is(err, drive.ErrNotAuthorized) {
			op.Fail("remote client", "error", err)
		}
		return err
	}

	folderID, err := client.ResolveBackupFolder(ctx)
	if err != nil {
		op.Fail("resolve folder", "error", err)
		return err
	}

	file, err := snap.Open()
	if err != nil {
		op.Fail("open snapshot", "error", err)
		return fmt.Errorf("open snapshot: %w", err)
	}
	entry, err := client.Upload(ctx, folderID, snap.Filename, file)
	file.Close()
	if err != nil {
		op.Fail("upload", "error", err)
		return err
	}
	op.Update("uploaded", "name", entry.Name, "size_bytes", snap.SizeBytes)

	// Retention trouble never turns a stored backup into a failure.
	if _, err := client.EnforceRetention(ctx, folderID); err != nil {
		s.opts.Log.Warn("Retention enforcement failed", "error", err)
		s.opts.Sink.Notice("retention", err.Error(), map[string]any{"folder_id": folderID})
	}

	op.Complete("backup stored", "name", entry.Name)
	return nil
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.handle != nil
	lastRun := s.lastRun
	lastErr := s.lastErr
	s.mu.Unlock()

	configured := false
	if rec, err := s.opts.Creds.Get(); err == nil {
		configured = rec.IsActive()
	}

	st := Status{
		Running:    running,
		Configured: configured,
		Schedule:   fmt.Sprintf("daily at %02d:%02d %s", s.opts.Hour, s.opts.Minute, s.opts.Location.String()),
		MaxBackups: s.opts.MaxBackups,
		LastRun:    lastRun,
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}
