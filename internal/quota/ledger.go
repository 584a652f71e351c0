// Package quota enforces per-key daily request limits.
//
// Days are UTC calendar days. A key's counter belongs to the day recorded in
// last_reset_date; a counter from an earlier day is read as zero and is
// restarted by the first request of the new day (lazy rollover). Counters are
// never cached in process: every decision is one conditional UPDATE in the
// store, so concurrent requests and multiple gateway instances cannot lose
// increments.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apigate-dev/restgateway/internal/metrics"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/store"
)

// dayLayout formats a UTC calendar day.
const dayLayout = "2006-01-02"

// Ledger errors.
var (
	// ErrStoreUnavailable wraps any store failure. Callers must reject the
	// request; a failed check is never an implicit allow.
	ErrStoreUnavailable = errors.New("quota: store unavailable")
	// ErrKeyNotFound is returned when the key row does not exist.
	ErrKeyNotFound = errors.New("quota: api key not found")
	// ErrInvalidLimit is returned for negative limits.
	ErrInvalidLimit = errors.New("quota: daily limit must not be negative")
)

// KeyStore is the part of the credential store the ledger needs.
type KeyStore interface {
	ConsumeQuota(ctx context.Context, id uint64, today string, now time.Time) (store.QuotaCounter, bool, error)
	FindAPIKeyByID(ctx context.Context, id uint64) (*models.APIKey, error)
	SetAPIKeyLimit(ctx context.Context, id uint64, limit int) error
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Used      int
	ResetDate string    // Next UTC day, YYYY-MM-DD.
	ResetAt   time.Time // Next UTC midnight.
}

// Ledger answers "may this key make one more request today?".
type Ledger struct {
	store KeyStore
	now   func() time.Time
}

// NewLedger builds a ledger over s. now defaults to time.Now.
func NewLedger(s KeyStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: s, now: now}
}

// Day returns the UTC calendar day of t.
func Day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// NextReset returns the next UTC midnight after t.
func NextReset(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// CheckAndConsume consumes one unit of today's quota for key id if any is
// left. Exactly one increment is attempted per call and a denied call never
// changes the counter.
func (l *Ledger) CheckAndConsume(ctx context.Context, id uint64) (Decision, error) {
	now := l.now().UTC()
	today := Day(now)

	counter, ok, errConsume := l.store.ConsumeQuota(ctx, id, today, now)
	if errConsume != nil {
		metrics.QuotaDecisions.WithLabelValues("error").Inc()
		return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, errConsume)
	}
	if ok {
		metrics.QuotaDecisions.WithLabelValues("allowed").Inc()
		return newDecision(true, counter.DailyLimit, counter.RequestsToday, now), nil
	}

	key, errFind := l.store.FindAPIKeyByID(ctx, id)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			return Decision{}, ErrKeyNotFound
		}
		metrics.QuotaDecisions.WithLabelValues("error").Inc()
		return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, errFind)
	}
	metrics.QuotaDecisions.WithLabelValues("denied").Inc()
	decision := Snapshot(key, now)
	decision.Allowed = false
	decision.Remaining = 0
	return decision, nil
}

// Peek reports the current quota state of key id without consuming any.
func (l *Ledger) Peek(ctx context.Context, id uint64) (Decision, error) {
	key, errFind := l.store.FindAPIKeyByID(ctx, id)
	if errFind != nil {
		if errors.Is(errFind, store.ErrNotFound) {
			return Decision{}, ErrKeyNotFound
		}
		return Decision{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, errFind)
	}
	return Snapshot(key, l.now()), nil
}

// SetLimit changes the daily limit of key id. Today's usage is kept.
func (l *Ledger) SetLimit(ctx context.Context, id uint64, limit int) error {
	if limit < 0 {
		return ErrInvalidLimit
	}
	if errSet := l.store.SetAPIKeyLimit(ctx, id, limit); errSet != nil {
		if errors.Is(errSet, store.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, errSet)
	}
	return nil
}

// Snapshot computes the quota state of an already loaded key at now,
// honoring lazy rollover. Allowed reports whether a request would be admitted.
func Snapshot(key *models.APIKey, now time.Time) Decision {
	used := key.RequestsToday
	if key.LastResetDate < Day(now) {
		used = 0
	}
	return newDecision(used < key.DailyLimit, key.DailyLimit, used, now)
}

func newDecision(allowed bool, limit, used int, now time.Time) Decision {
	resetAt := NextReset(now)
	return Decision{
		Allowed:   allowed,
		Limit:     limit,
		Used:      used,
		Remaining: max(limit-used, 0),
		ResetDate: resetAt.Format(dayLayout),
		ResetAt:   resetAt,
	}
}
