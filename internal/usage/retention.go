package usage

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultRetentionInterval = 6 * time.Hour
	defaultDeleteBatchSize   = 5000
	maxDeleteBatchesPerRun   = 2000
)

// PurgeStore deletes expired rows in bounded batches.
type PurgeStore interface {
	DeleteUsageBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error)
}

// RetentionCleaner periodically deletes old usage logs and expired sessions.
type RetentionCleaner struct {
	store            PurgeStore
	usageRetention   int // days; zero keeps usage forever
	sessionRetention time.Duration
	interval         time.Duration
	batchSize        int
	now              func() time.Time
}

// NewRetentionCleaner builds a cleaner. A non-positive interval uses the
// default of six hours.
func NewRetentionCleaner(s PurgeStore, usageRetentionDays int, sessionRetention, interval time.Duration) *RetentionCleaner {
	if s == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	return &RetentionCleaner{
		store:            s,
		usageRetention:   usageRetentionDays,
		sessionRetention: sessionRetention,
		interval:         interval,
		batchSize:        defaultDeleteBatchSize,
		now:              time.Now,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *RetentionCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go c.run(ctx)
	log.Infof("retention cleaner started (interval=%s usage_days=%d sessions=%s)", c.interval, c.usageRetention, c.sessionRetention)
}

func (c *RetentionCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.cleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (c *RetentionCleaner) cleanupOnce(ctx context.Context) {
	now := c.now().UTC()
	if c.usageRetention > 0 {
		cutoff := now.AddDate(0, 0, -c.usageRetention)
		if n := c.purge(ctx, "usage logs", cutoff, c.store.DeleteUsageBefore); n > 0 {
			log.Infof("retention cleaner: deleted %d usage logs (cutoff=%s)", n, cutoff.Format(time.RFC3339))
		}
	}
	if c.sessionRetention > 0 {
		cutoff := now.Add(-c.sessionRetention)
		if n := c.purge(ctx, "sessions", cutoff, c.store.DeleteSessionsBefore); n > 0 {
			log.Infof("retention cleaner: deleted %d sessions (cutoff=%s)", n, cutoff.Format(time.RFC3339))
		}
	}
}

func (c *RetentionCleaner) purge(ctx context.Context, what string, cutoff time.Time, deleteBatch func(context.Context, time.Time, int) (int64, error)) int64 {
	var total int64
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return total
		}
		n, err := deleteBatch(ctx, cutoff, c.batchSize)
		if err != nil {
			log.WithError(err).Warnf("retention cleaner: delete %s batch failed", what)
			return total
		}
		if n <= 0 {
			return total
		}
		total += n
	}
	return total
}
