package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vanish-leaderboard/internal/config"
	"github.com/vanish-leaderboard/internal/domain"
	"github.com/vanish-leaderboard/internal/postgres"
	"github.com/vanish-leaderboard/internal/store"
)

// SnapshotWorker periodically copies the active leaderboard blobs into the
// PostgreSQL archive and, on startup, restores archived blobs that are
// missing from the store (recovery after blob-store data loss).
type SnapshotWorker struct {
	blobs   store.BlobStore
	archive *postgres.Archive
	config  *config.SnapshotConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSnapshotWorker creates a new snapshot worker
func NewSnapshotWorker(
	blobs store.BlobStore,
	archive *postgres.Archive,
	cfg *config.SnapshotConfig,
	logger *slog.Logger,
) *SnapshotWorker {
	return &SnapshotWorker{
		blobs:   blobs,
		archive: archive,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background snapshot process
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("snapshot worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background snapshot process
func (w *SnapshotWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("snapshot worker stopped")
	return nil
}

// run is the main worker loop
func (w *SnapshotWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.snapshotAll(ctx)
		}
	}
}

// activeKeys lists every blob key that can currently receive writes: the
// static category keys, today's daily keys, and the legacy hard daily blob.
func activeKeys(now time.Time) []string {
	today := now.UTC().Format("2006-01-02")
	seen := make(map[string]bool)
	var keys []string

	add := func(key string) {
		if key != "" && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	for _, cat := range domain.Categories {
		add(cat.BlobKey(today))
		add(cat.LegacyBlobKey())
	}
	return keys
}

// snapshotAll copies every active blob into the archive
func (w *SnapshotWorker) snapshotAll(ctx context.Context) {
	w.logger.Info("starting snapshot cycle")
	startTime := time.Now()

	snapshotCount := 0
	errorCount := 0

	for _, key := range activeKeys(time.Now()) {
		data, err := w.blobs.Get(ctx, key)
		if err == store.ErrBlobNotFound {
			continue
		}
		if err != nil {
			w.logger.Error("failed to read blob for snapshot", "key", key, "error", err)
			errorCount++
			continue
		}

		if err := w.archive.UpsertSnapshot(ctx, key, data); err != nil {
			w.logger.Error("failed to archive snapshot", "key", key, "error", err)
			errorCount++
			continue
		}
		snapshotCount++
	}

	w.logger.Info("snapshot cycle completed",
		"duration", time.Since(startTime),
		"snapshots", snapshotCount,
		"errors", errorCount,
	)
}

// RestoreMissing writes every archived blob back into the store if the
// store no longer has it. Blobs present in the store always win: the store
// is authoritative and the archive may lag one snapshot interval.
func (w *SnapshotWorker) RestoreMissing(ctx context.Context) error {
	snapshots, err := w.archive.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for _, snap := range snapshots {
		_, err := w.blobs.Get(ctx, snap.Key)
		if err == nil {
			continue
		}
		if err != store.ErrBlobNotFound {
			w.logger.Error("failed to check blob during restore", "key", snap.Key, "error", err)
			continue
		}

		if err := w.blobs.Put(ctx, snap.Key, snap.Data); err != nil {
			w.logger.Error("failed to restore blob", "key", snap.Key, "error", err)
			continue
		}
		restored++
	}

	w.logger.Info("restore completed", "archived", len(snapshots), "restored", restored)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SnapshotWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single snapshot cycle (useful for manual triggers)
func (w *SnapshotWorker) RunOnce(ctx context.Context) {
	w.snapshotAll(ctx)
}
