// Package backup takes periodic snapshots of the library database and
// prunes old ones.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-server/internal/config"
)

const (
	snapshotPrefix = "library-"
	snapshotExt    = ".db"
)

// Snapshotter is the piece of the store the backup service needs.
type Snapshotter interface {
	BackupTo(ctx context.Context, path string) error
}

// Service snapshots the database on a fixed interval.
type Service struct {
	cfg    config.BackupConfig
	store  Snapshotter
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a backup service. The caller decides whether to Start it.
func New(cfg config.BackupConfig, store Snapshotter, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, store: store, logger: logger}
}

// Start begins the snapshot loop. The first snapshot is taken immediately
// so a fresh deployment has one before the first interval elapses.
func (s *Service) Start() error {
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.runOnce(ctx)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
	return nil
}

// Stop halts the loop and waits for an in-flight snapshot to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Service) runOnce(ctx context.Context) {
	path := filepath.Join(s.cfg.Dir, snapshotName(time.Now()))
	if err := s.Snapshot(ctx, path); err != nil {
		s.logger.Error("database snapshot failed", "path", path, "error", err)
		return
	}
	s.logger.Info("database snapshot written", "path", path)

	if err := s.prune(); err != nil {
		s.logger.Warn("snapshot pruning failed", "error", err)
	}
}

// Snapshot writes one snapshot to path. A half-written file from an earlier
// crash is removed first; VACUUM INTO refuses to overwrite.
func (s *Service) Snapshot(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale snapshot: %w", err)
		}
	}
	return s.store.BackupTo(ctx, path)
}

// prune deletes the oldest snapshots beyond the configured keep count.
func (s *Service) prune() error {
	if s.cfg.Keep <= 0 {
		return nil
	}
	names, err := s.listSnapshots()
	if err != nil {
		return err
	}
	if len(names) <= s.cfg.Keep {
		return nil
	}
	for _, name := range names[:len(names)-s.cfg.Keep] {
		if err := os.Remove(filepath.Join(s.cfg.Dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// listSnapshots returns snapshot file names sorted oldest first. The
// timestamp format sorts lexically.
func (s *Service) listSnapshots() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotExt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func snapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format("20060102-150405") + snapshotExt
}
