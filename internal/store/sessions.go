package store

import (
	"context"
	"time"

	"github.com/apigate-dev/restgateway/internal/models"
)

// CreateSession inserts a login session.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	return wrap("create session", s.db.WithContext(ctx).Create(session).Error)
}

// FindSession returns the session with id.
func (s *Store) FindSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; errFind != nil {
		return nil, wrap("find session", errFind)
	}
	return &session, nil
}

// DeleteSession removes the session with id. Deleting a missing session is
// not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return wrap("delete session", s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error)
}

// DeleteSessionsBefore removes up to batch sessions created before cutoff.
func (s *Store) DeleteSessionsBefore(ctx context.Context, cutoff time.Time, batch int) (int64, error) {
	res := s.db.WithContext(ctx).Exec(
		"DELETE FROM sessions WHERE id IN (SELECT id FROM sessions WHERE created_at < ? ORDER BY created_at LIMIT ?)",
		cutoff.UTC(), batch,
	)
	if res.Error != nil {
		return 0, wrap("delete old sessions", res.Error)
	}
	return res.RowsAffected, nil
}
