package store

import (
	"context"

	"github.com/apigate-dev/restgateway/internal/models"
	"gorm.io/gorm"
)

// DeleteAccount removes a user and every row that belongs to it in one
// transaction: sessions, reset tokens, usage logs, api keys, then the user.
// Any failure rolls the whole deletion back.
func (s *Store) DeleteAccount(ctx context.Context, userID uint64) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		children := []any{
			&models.Session{},
			&models.PasswordResetToken{},
			&models.UsageLog{},
			&models.APIKey{},
		}
		for _, model := range children {
			if errDelete := tx.Where("user_id = ?", userID).Delete(model).Error; errDelete != nil {
				return errDelete
			}
		}
		res := tx.Delete(&models.User{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return wrap("delete account", errTx)
}
