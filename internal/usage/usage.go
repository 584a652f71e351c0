// Package usage records one log row per API-key request and aggregates them
// for reporting. Recording is asynchronous and never fails the request.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apigate-dev/restgateway/internal/metrics"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/apigate-dev/restgateway/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	defaultQueueSize  = 1024
	writeTimeout      = 5 * time.Second
	maxMessageRunes   = 512
	maxStatsWindowDay = 365
)

// ErrInvalidWindow is returned for a non-positive stats window.
var ErrInvalidWindow = errors.New("usage: window must be between 1 and 365 days")

// Store is the part of the credential store the recorder needs.
type Store interface {
	AppendUsage(ctx context.Context, entry *models.UsageLog) error
	DailyUsageSince(ctx context.Context, userID uint64, since time.Time) ([]store.DailyUsage, error)
	CountUsageSince(ctx context.Context, userID uint64, since time.Time) (int64, error)
}

// Entry describes one completed API-key request.
type Entry struct {
	UserID       uint64
	APIKeyID     uint64
	Endpoint     string
	Method       string
	StatusCode   int
	ResponseTime time.Duration
	IPAddress    string
	RequestID    string
	ErrorMessage string // Envelope message for failed requests.
	At           time.Time
}

// DailyStat is one UTC day of usage.
type DailyStat struct {
	Date            string  `json:"date"`
	TotalRequests   int64   `json:"total_requests"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// Summary totals a user's requests over fixed windows.
type Summary struct {
	Today   int64 `json:"today"`
	Last7d  int64 `json:"last_7_days"`
	Last30d int64 `json:"last_30_days"`
}

// Recorder appends usage rows from a bounded queue drained by one worker.
type Recorder struct {
	store Store
	now   func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
}

// NewRecorder starts a recorder with the given queue size.
func NewRecorder(s Store, queueSize int, now func() time.Time) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if now == nil {
		now = time.Now
	}
	r := &Recorder{
		store: s,
		now:   now,
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e. When the queue is full, or the recorder is closed, the
// row is written inline on a detached context instead.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	if e.At.IsZero() {
		e.At = r.now()
	}
	r.mu.RLock()
	if !r.closed {
		select {
		case r.queue <- e:
			r.mu.RUnlock()
			return
		default:
		}
	}
	r.mu.RUnlock()
	r.write(e)
}

// Close stops accepting queued entries and waits until the queue is drained.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	row := buildUsageLog(e)
	if errAppend := r.store.AppendUsage(ctx, row); errAppend != nil {
		metrics.UsageRecordFailures.Inc()
		log.WithError(errAppend).WithFields(log.Fields{
			"user_id":    e.UserID,
			"api_key_id": e.APIKeyID,
			"endpoint":   e.Endpoint,
		}).Warn("usage recorder: append failed")
	}
}

func buildUsageLog(e Entry) *models.UsageLog {
	row := &models.UsageLog{
		UserID:         e.UserID,
		Endpoint:       util.Truncate(e.Endpoint, 255),
		Method:         e.Method,
		StatusCode:     e.StatusCode,
		ResponseTimeMs: e.ResponseTime.Milliseconds(),
		IPAddress:      e.IPAddress,
		RequestID:      e.RequestID,
		ErrorDetail:    buildErrorDetail(e.StatusCode, e.ErrorMessage),
		CreatedAt:      e.At.UTC(),
	}
	if e.APIKeyID != 0 {
		keyID := e.APIKeyID
		row.APIKeyID = &keyID
	}
	return row
}

type usageErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// buildErrorDetail returns nil for successful requests.
func buildErrorDetail(statusCode int, message string) datatypes.JSON {
	if statusCode < http.StatusBadRequest {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	payload, errMarshal := json.Marshal(usageErrorDetail{
		StatusCode: statusCode,
		Message:    util.Truncate(message, maxMessageRunes),
	})
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(payload)
}

// StatsForUser returns per-day totals for the last windowDays UTC days
// (today included), newest first. Days without traffic are omitted.
func (r *Recorder) StatsForUser(ctx context.Context, userID uint64, windowDays int) ([]DailyStat, error) {
	if windowDays <= 0 || windowDays > maxStatsWindowDay {
		return nil, ErrInvalidWindow
	}
	rows, errDaily := r.store.DailyUsageSince(ctx, userID, startOfDay(r.now()).AddDate(0, 0, -(windowDays-1)))
	if errDaily != nil {
		return nil, errDaily
	}
	out := make([]DailyStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, DailyStat{
			Date:            row.Day,
			TotalRequests:   row.TotalRequests,
			AvgResponseTime: row.AvgResponseTime,
		})
	}
	return out, nil
}

// Summary counts the user's requests today, over 7 days and over 30 days.
func (r *Recorder) Summary(ctx context.Context, userID uint64) (Summary, error) {
	today := startOfDay(r.now())
	var out Summary
	for _, window := range []struct {
		days int
		dst  *int64
	}{{1, &out.Today}, {7, &out.Last7d}, {30, &out.Last30d}} {
		n, errCount := r.store.CountUsageSince(ctx, userID, today.AddDate(0, 0, -(window.days-1)))
		if errCount != nil {
			return Summary{}, errCount
		}
		*window.dst = n
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
