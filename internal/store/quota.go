package store

import (
	"context"
	"time"
)

// QuotaCounter is the counter state after an admitted request.
type QuotaCounter struct {
	RequestsToday int
	DailyLimit    int
}

// consumeQuotaSQL admits one request for a key in a single statement. The
// counter restarts at 1 when last_reset_date is before today; otherwise it
// is incremented only while below daily_limit. No row means not admitted.
const consumeQuotaSQL = `UPDATE api_keys
SET requests_today = CASE WHEN last_reset_date < @today THEN 1 ELSE requests_today + 1 END,
	last_reset_date = CASE WHEN last_reset_date < @today THEN @today ELSE last_reset_date END,
	last_used_at = @now
WHERE id = @id
	AND ((last_reset_date < @today AND daily_limit >= 1)
		OR (last_reset_date >= @today AND requests_today < daily_limit))
RETURNING requests_today, daily_limit`

// ConsumeQuota runs the conditional increment for key id on day today
// (YYYY-MM-DD). ok is false when the key is at its limit or does not exist.
func (s *Store) ConsumeQuota(ctx context.Context, id uint64, today string, now time.Time) (QuotaCounter, bool, error) {
	var rows []QuotaCounter
	errScan := s.db.WithContext(ctx).Raw(consumeQuotaSQL, map[string]any{
		"id":    id,
		"today": today,
		"now":   now.UTC(),
	}).Scan(&rows).Error
	if errScan != nil {
		return QuotaCounter{}, false, wrap("consume quota", errScan)
	}
	if len(rows) == 0 {
		return QuotaCounter{}, false, nil
	}
	return rows[0], true, nil
}
