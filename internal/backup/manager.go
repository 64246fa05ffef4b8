// ABOUTME: Consistent on-demand and scheduled backups of the SQLite database file
// ABOUTME: Checkpoints the WAL, copies the file, verifies the copy and prunes old backups

package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/2389/chatvault/internal/store"
	_ "modernc.org/sqlite"
)

// ErrInProgress is returned when a backup is requested while another
// one is still running. The caller should retry later; backups are
// never queued.
var ErrInProgress = errors.New("backup already in progress")

// ErrFailed is returned when a backup could not be produced or did not
// pass verification. No partial backup file is left behind.
var ErrFailed = errors.New("backup failed")

const (
	filePrefix = "chatvault_backup_"
	fileSuffix = ".db"

	// defaultRetention is how many backups survive pruning when the
	// manager is configured with a non-positive retention count.
	defaultRetention = 5

	// copyAttempts bounds retries of the checkpoint+copy+verify step.
	// A driver auto-checkpoint firing mid-copy can tear the copy; the
	// tear is caught by verification and the next attempt starts from
	// a fresh checkpoint.
	copyAttempts = 3
)

// Info describes one backup file on disk.
type Info struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Manager produces consistent point-in-time copies of the live
// database file. At most one backup runs at a time; a second request
// fails fast with ErrInProgress instead of queueing.
type Manager struct {
	store     *store.SQLiteStore
	dir       string
	retention int
	running   atomic.Bool
	logger    *slog.Logger
}

// NewManager creates a backup manager writing into dir. A retention of
// zero or less falls back to keeping the last five backups.
func NewManager(s *store.SQLiteStore, dir string, retention int) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: backup directory is required", ErrFailed)
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w: %v", ErrFailed, err)
	}
	return &Manager{
		store:     s,
		dir:       dir,
		retention: retention,
		logger:    slog.Default().With("component", "backup"),
	}, nil
}

// Create produces one backup: checkpoint the WAL so the main file is
// complete, copy it under a timestamped name, verify the copy with
// quick_check, then prune old backups. The live database stays
// writable for the whole copy; only the checkpoint itself briefly
// blocks writers.
func (m *Manager) Create(ctx context.Context) (*Info, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer m.running.Store(false)

	start := time.Now()
	name := fmt.Sprintf("%s%s_%d%s", filePrefix, start.UTC().Format("20060102T150405"), start.UnixNano(), fileSuffix)
	dest := filepath.Join(m.dir, name)

	var size int64
	var lastErr error
	for attempt := 1; attempt <= copyAttempts; attempt++ {
		if err := m.store.Checkpoint(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailed, err)
		}

		var err error
		size, err = copyFile(m.store.Path(), dest)
		if err != nil {
			os.Remove(dest)
			return nil, fmt.Errorf("copying database file: %w: %v", ErrFailed, err)
		}

		lastErr = verify(ctx, dest)
		if lastErr == nil {
			break
		}
		os.Remove(dest)
		m.logger.Warn("backup verification failed, retrying", "attempt", attempt, "error", lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if err := m.prune(); err != nil {
		m.logger.Warn("pruning old backups failed", "error", err)
	}

	info := &Info{
		Name:      name,
		Path:      dest,
		Size:      size,
		CreatedAt: start.UTC(),
	}
	m.logger.Info("backup created",
		"name", name,
		"size_bytes", size,
		"duration", time.Since(start).Round(time.Millisecond))
	return info, nil
}

// List returns the backups on disk, most recent first. Files in the
// backup directory that the manager did not produce are ignored.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w: %v", ErrFailed, err)
	}

	backups := []*Info{}
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, &Info{
			Name:      entry.Name(),
			Path:      filepath.Join(m.dir, entry.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
	}

	// Names embed the creation nanos, so name order is creation order.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// Run creates a backup every interval until ctx is cancelled. Failures
// are logged and the loop keeps going; one bad cycle must not stop
// scheduled backups.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	m.logger.Info("backup scheduler started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := m.Create(ctx); err != nil && !errors.Is(err, ErrInProgress) {
				m.logger.Error("scheduled backup failed", "error", err)
			}
		}
	}
}

// prune removes the oldest backups beyond the retention count.
func (m *Manager) prune() error {
	backups, err := m.List()
	if err != nil {
		return err
	}
	for _, old := range backups[min(m.retention, len(backups)):] {
		if err := os.Remove(old.Path); err != nil {
			return fmt.Errorf("removing %s: %w", old.Name, err)
		}
		m.logger.Debug("pruned old backup", "name", old.Name)
	}
	return nil
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// verify opens the copy read-only and runs quick_check. A backup that
// does not come back "ok" is useless and gets deleted by the caller.
func verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("opening backup for verification: %w: %v", ErrFailed, err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&result); err != nil {
		return fmt.Errorf("verifying backup: %w: %v", ErrFailed, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: integrity check reported %q", ErrFailed, result)
	}
	return nil
}

func copyFile(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
