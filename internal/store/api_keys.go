package store

import (
	"context"
	"time"

	"github.com/apigate-dev/restgateway/internal/models"
)

// CreateAPIKey inserts key.
func (s *Store) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	return wrap("create api key", s.db.WithContext(ctx).Create(key).Error)
}

// FindAPIKeyByKey resolves a presented key string.
func (s *Store) FindAPIKeyByKey(ctx context.Context, apiKey string) (*models.APIKey, error) {
	var key models.APIKey
	if errFind := s.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&key).Error; errFind != nil {
		return nil, wrap("find api key", errFind)
	}
	return &key, nil
}

// FindAPIKeyByID returns the key with id.
func (s *Store) FindAPIKeyByID(ctx context.Context, id uint64) (*models.APIKey, error) {
	var key models.APIKey
	if errFind := s.db.WithContext(ctx).First(&key, id).Error; errFind != nil {
		return nil, wrap("find api key", errFind)
	}
	return &key, nil
}

// FindUserAPIKey returns the key with id only if userID owns it.
func (s *Store) FindUserAPIKey(ctx context.Context, userID, id uint64) (*models.APIKey, error) {
	var key models.APIKey
	if errFind := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&key).Error; errFind != nil {
		return nil, wrap("find api key", errFind)
	}
	return &key, nil
}

// ListAPIKeysByUser returns every key owned by userID, newest first.
func (s *Store) ListAPIKeysByUser(ctx context.Context, userID uint64) ([]models.APIKey, error) {
	var keys []models.APIKey
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&keys).Error; errFind != nil {
		return nil, wrap("list api keys", errFind)
	}
	return keys, nil
}

// ListAPIKeys pages through all keys, optionally for one user.
func (s *Store) ListAPIKeys(ctx context.Context, userID uint64, page, pageSize int) ([]models.APIKey, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.APIKey{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, wrap("count api keys", errCount)
	}
	var keys []models.APIKey
	if errFind := q.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&keys).Error; errFind != nil {
		return nil, 0, wrap("list api keys", errFind)
	}
	return keys, total, nil
}

// CountAPIKeysByUser returns how many keys userID owns.
func (s *Store) CountAPIKeysByUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).Model(&models.APIKey{}).Where("user_id = ?", userID).Count(&count).Error; errCount != nil {
		return 0, wrap("count api keys", errCount)
	}
	return count, nil
}

// RevokeAPIKey deactivates a key owned by userID.
func (s *Store) RevokeAPIKey(ctx context.Context, userID, id uint64, now time.Time) error {
	revokedAt := now.UTC()
	return s.updateAPIKey(ctx, "revoke api key", map[string]any{
		"active":     false,
		"revoked_at": &revokedAt,
	}, "id = ? AND user_id = ?", id, userID)
}

// SetAPIKeyActive enables or disables any key. Enabling clears revocation.
func (s *Store) SetAPIKeyActive(ctx context.Context, id uint64, active bool, now time.Time) error {
	updates := map[string]any{"active": active}
	if active {
		updates["revoked_at"] = nil
	} else {
		revokedAt := now.UTC()
		updates["revoked_at"] = &revokedAt
	}
	return s.updateAPIKey(ctx, "set api key active", updates, "id = ?", id)
}

// RegenerateAPIKey swaps the secret of a key owned by userID. Quota state
// stays with the key row.
func (s *Store) RegenerateAPIKey(ctx context.Context, userID, id uint64, newKey string) error {
	return s.updateAPIKey(ctx, "regenerate api key", map[string]any{"api_key": newKey}, "id = ? AND user_id = ?", id, userID)
}

// SetAPIKeyLimit changes the daily limit of a key.
func (s *Store) SetAPIKeyLimit(ctx context.Context, id uint64, limit int) error {
	return s.updateAPIKey(ctx, "set api key limit", map[string]any{"daily_limit": limit}, "id = ?", id)
}

// DeleteAPIKey removes a key owned by userID.
func (s *Store) DeleteAPIKey(ctx context.Context, userID, id uint64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.APIKey{})
	if res.Error != nil {
		return wrap("delete api key", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) updateAPIKey(ctx context.Context, op string, updates map[string]any, query string, args ...any) error {
	res := s.db.WithContext(ctx).Model(&models.APIKey{}).Where(query, args...).Updates(updates)
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
