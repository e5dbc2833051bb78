// Package janitor removes artifact bundles that no task record owns.
//
// The registry lives in memory, so a restart leaves every earlier bundle on
// disk without an owner. Bundle paths derive from task IDs, which makes the
// check a diff between the storage root and the registry.
package janitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/docmine-api/internal/store"
)

// TaskIndex reports whether a task record exists.
type TaskIndex interface {
	Contains(id uuid.UUID) bool
}

// BundleStore lists and deletes artifact bundles.
type BundleStore interface {
	ListBundles(ctx context.Context) ([]store.BundleInfo, error)
	DeleteBundle(ctx context.Context, id uuid.UUID) error
}

// Config controls sweeping.
type Config struct {
	// Interval between sweeps after the initial one. Zero disables periodic sweeps.
	Interval time.Duration
	// GracePeriod skips bundles modified more recently than this.
	GracePeriod time.Duration
}

// Janitor deletes orphaned bundles.
type Janitor struct {
	index   TaskIndex
	bundles BundleStore
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Janitor.
func New(index TaskIndex, bundles BundleStore, config Config, logger *slog.Logger) (*Janitor, error) {
	if index == nil {
		return nil, errors.New("task index cannot be nil")
	}
	if bundles == nil {
		return nil, errors.New("bundle store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.Interval < 0 || config.GracePeriod < 0 {
		return nil, errors.New("janitor durations cannot be negative")
	}

	return &Janitor{
		index:   index,
		bundles: bundles,
		config:  config,
		logger:  logger.With("component", "janitor"),
		now:     time.Now,
	}, nil
}

// Sweep deletes every bundle that has no task record and is older than the
// grace period. It returns how many bundles were removed. Individual delete
// failures are logged and joined into the returned error.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	found, err := j.bundles.ListBundles(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.config.GracePeriod)
	removed := 0
	var errs []error
	for _, b := range found {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if j.index.Contains(b.TaskID) || b.ModTime.After(cutoff) {
			continue
		}

		if err := j.bundles.DeleteBundle(ctx, b.TaskID); err != nil {
			j.logger.ErrorContext(ctx, "failed to delete orphaned bundle", "task_id", b.TaskID, "error", err)
			errs = append(errs, err)
			continue
		}
		removed++
		j.logger.InfoContext(ctx, "deleted orphaned bundle", "task_id", b.TaskID, "modified_at", b.ModTime)
	}

	j.logger.DebugContext(ctx, "orphan sweep finished", "bundles", len(found), "removed", removed)
	return removed, errors.Join(errs...)
}

// Run sweeps once, then on every interval until ctx is done. With a zero
// interval it returns after the first sweep. Sweep errors are logged, not
// returned, so one bad bundle does not stop the loop.
func (j *Janitor) Run(ctx context.Context) error {
	j.sweepAndLog(ctx)

	if j.config.Interval == 0 {
		return nil
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.sweepAndLog(ctx)
		}
	}
}

func (j *Janitor) sweepAndLog(ctx context.Context) {
	if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
		j.logger.WarnContext(ctx, "orphan sweep incomplete", "error", err)
	}
}
