package store

import (
	"context"
	"time"

	"github.com/apigate-dev/restgateway/internal/db"
	"github.com/apigate-dev/restgateway/internal/models"
)

// DailyUsage is one UTC day of a user's usage.
type DailyUsage struct {
	Day             string
	TotalRequests   int64
	AvgResponseTime float64
}

// AppendUsage inserts one usage log row.
func (s *Store) AppendUsage(ctx context.Context, entry *models.UsageLog) error {
	return wrap("append usage", s.db.WithContext(ctx).Create(entry).Error)
}

// CountUsageSince counts a user's usage rows created at or after since.
func (s *Store) CountUsageSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.UsageLog{}).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Count(&count).Error
	if errCount != nil {
		return 0, wrap("count usage", errCount)
	}
	return count, nil
}

// DailyUsageSince aggregates a user's usage by UTC day, newest first.
func (s *Store) DailyUsageSince(ctx context.Context, userID uint64, since time.Time) ([]DailyUsage, error) {
	dayExpr := db.UTCDayExpr(s.db, "created_at")
	var rows []DailyUsage
	errScan := s.db.WithContext(ctx).Model(&models.UsageLog{}).
		Select(dayExpr+" AS day, COUNT(*) AS total_requests, AVG(response_time_ms) AS avg_response_time").
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Group(dayExpr).
		Order("day DESC").
		Scan(&rows).Error
	if errScan != nil {
		return nil, wrap("daily usage", errScan)
	}
	return rows, nil
}

// DeleteUsageBefore removes up to batch usage rows created before cutoff.
func (s *Store) DeleteUsageBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		"DELETE FROM usage_logs WHERE id IN (SELECT id FROM usage_logs WHERE created_at < ? ORDER BY id LIMIT ?)",
		cutoff.UTC(), batch,
	)
	if res.Error != nil {
		return 0, wrap("delete old usage", res.Error)
	}
	return res.RowsAffected, nil
}
