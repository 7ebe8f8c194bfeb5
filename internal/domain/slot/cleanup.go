package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"httpupload/internal/metrics"
	"httpupload/internal/storage/blob"
)

// CleanupOptions selects what a cleanup run removes.
type CleanupOptions struct {
	// ReclaimReserved deletes reservations older than the put timeout.
	ReclaimReserved bool
	// ExpireStored deletes slots, with their files, older than the share
	// timeout or Retention when set.
	ExpireStored bool
	Retention    time.Duration
}

// CleanupResult summarizes one cleanup run.
type CleanupResult struct {
	Reclaimed int64
	Expired   int
	Failed    int
	Duration  time.Duration
}

// CleanupService removes expired reservations and aged-out uploads.
type CleanupService struct {
	repo     Repository
	store    *blob.Store
	settings Settings
	now      func() time.Time

	mu sync.Mutex // serializes runs
}

func NewCleanupService(repo Repository, store *blob.Store, settings Settings) *CleanupService {
	return &CleanupService{
		repo:     repo,
		store:    store,
		settings: settings.withDefaults(),
		now:      utcNow,
	}
}

// WithClock replaces the time source, for tests.
func (c *CleanupService) WithClock(now func() time.Time) *CleanupService {
	c.now = now
	return c
}

// Run performs one cleanup pass. A failure on one slot is logged and counted
// without stopping the rest; the returned error joins those that prevented a
// whole phase from running.
func (c *CleanupService) Run(ctx context.Context, opts CleanupOptions) (*CleanupResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	now := c.now()
	result := &CleanupResult{}
	var errs []error

	if opts.ReclaimReserved {
		n, err := c.repo.DeleteReservedBefore(ctx, now.Add(-c.settings.PutTimeout))
		if err != nil {
			errs = append(errs, fmt.Errorf("reclaim reservations: %w", err))
		}
		result.Reclaimed = n
		metrics.CleanupDeleted.WithLabelValues("reserved").Add(float64(n))
	}

	if opts.ExpireStored {
		retention := c.settings.ShareTimeout
		if opts.Retention > 0 {
			retention = opts.Retention
		}
		expired, failed, err := c.expire(ctx, now.Add(-retention))
		if err != nil {
			errs = append(errs, err)
		}
		result.Expired = expired
		result.Failed = failed
		metrics.CleanupDeleted.WithLabelValues("expired").Add(float64(expired))
		metrics.CleanupFailures.Add(float64(failed))
	}

	result.Duration = time.Since(start)
	metrics.CleanupDuration.Observe(result.Duration.Seconds())

	log.Info().
		Int64("reclaimed", result.Reclaimed).
		Int("expired", result.Expired).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("cleanup completed")

	return result, errors.Join(errs...)
}

func (c *CleanupService) expire(ctx context.Context, cutoff time.Time) (int, int, error) {
	slots, err := c.repo.ListCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("list expired slots: %w", err)
	}

	var expired, failed int
	for _, s := range slots {
		if err := ctx.Err(); err != nil {
			return expired, failed, err
		}
		if err := c.remove(ctx, s); err != nil {
			failed++
			log.Error().Err(err).Str("token", s.Token).Str("name", s.Name).Msg("cleanup of slot failed")
			continue
		}
		expired++
	}
	return expired, failed, nil
}

// remove deletes the blob first, then its directory if empty, then the record.
func (c *CleanupService) remove(ctx context.Context, s *Slot) error {
	if s.File != "" {
		if err := c.store.Delete(s.File); err != nil {
			return err
		}
		if _, err := c.store.RemoveDirIfEmpty(c.store.Dir(s.File)); err != nil {
			return err
		}
	} else if _, err := c.store.RemoveDirIfEmpty(c.store.FullPath(s.Token)); err != nil {
		return err
	}
	return c.repo.Delete(ctx, s.ID)
}

// Schedule runs cleanup on a cron spec such as "@every 10m" until the
// returned cron is stopped. Overlapping runs are skipped.
func (c *CleanupService) Schedule(spec string, opts CleanupOptions) (*cron.Cron, error) {
	logger := cronLogger{}
	cr := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	_, err := cr.AddFunc(spec, func() {
		if _, err := c.Run(context.Background(), opts); err != nil {
			log.Error().Err(err).Msg("scheduled cleanup failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	cr.Start()
	log.Info().Str("schedule", spec).Msg("scheduled cleanup started")
	return cr, nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
