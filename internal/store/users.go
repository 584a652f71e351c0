package store

import (
	"context"

	"github.com/apigate-dev/restgateway/internal/db"
	"github.com/apigate-dev/restgateway/internal/models"
	"gorm.io/gorm"
)

// CreateUserWithKey inserts user and its first API key in one transaction.
// key.UserID is filled in from the created user.
func (s *Store) CreateUserWithKey(ctx context.Context, user *models.User, key *models.APIKey) error {
	user.Email = NormalizeEmail(user.Email)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return ErrDuplicateEmail
		}
		if errCreate := tx.Create(user).Error; errCreate != nil {
			if isUniqueViolation(errCreate) {
				return ErrDuplicateEmail
			}
			return errCreate
		}
		key.UserID = user.ID
		return tx.Create(key).Error
	})
	return wrap("create user", errTx)
}

// FindUserByID returns the user with id.
func (s *Store) FindUserByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		return nil, wrap("find user", errFind)
	}
	return &user, nil
}

// FindUserByEmail returns the user registered with email, case-insensitively.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; errFind != nil {
		return nil, wrap("find user by email", errFind)
	}
	return &user, nil
}

// UpdateProfile changes the display name and, when non-empty, the email.
func (s *Store) UpdateProfile(ctx context.Context, id uint64, name, email string) (*models.User, error) {
	updates := map[string]any{"name": name}
	if normalized := NormalizeEmail(email); normalized != "" {
		var count int64
		if errCount := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", normalized, id).Count(&count).Error; errCount != nil {
			return nil, wrap("update profile", errCount)
		}
		if count > 0 {
			return nil, ErrDuplicateEmail
		}
		updates["email"] = normalized
	}
	if errUpdate := s.updateUser(ctx, id, updates); errUpdate != nil {
		if isUniqueViolation(errUpdate) {
			return nil, ErrDuplicateEmail
		}
		return nil, wrap("update profile", errUpdate)
	}
	return s.FindUserByID(ctx, id)
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return wrap("update password", s.updateUser(ctx, id, map[string]any{"password": hash}))
}

// SetUserActive enables or disables an account.
func (s *Store) SetUserActive(ctx context.Context, id uint64, active bool) error {
	return wrap("set user active", s.updateUser(ctx, id, map[string]any{"active": active}))
}

// SetTOTPSecret stores the TOTP secret; an empty secret disables MFA.
func (s *Store) SetTOTPSecret(ctx context.Context, id uint64, secret string) error {
	return wrap("set totp secret", s.updateUser(ctx, id, map[string]any{"totp_secret": secret}))
}

// UpdatePlan moves a user to plan and resets every key's daily limit to
// dailyLimit, atomically.
func (s *Store) UpdatePlan(ctx context.Context, id uint64, plan string, dailyLimit int) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Update("plan", plan)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.APIKey{}).Where("user_id = ?", id).Update("daily_limit", dailyLimit).Error
	})
	return wrap("update plan", errTx)
}

// ListUsers pages through users, optionally filtered by an email or name
// substring.
func (s *Store) ListUsers(ctx context.Context, query string, page, pageSize int) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if query != "" {
		pattern := db.NormalizeLikePattern(s.db, "%"+query+"%")
		q = q.Where("("+db.CaseInsensitiveLikeExpr(s.db, "email")+" OR "+db.CaseInsensitiveLikeExpr(s.db, "name")+")", pattern, pattern)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, wrap("count users", errCount)
	}
	var users []models.User
	if errFind := q.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; errFind != nil {
		return nil, 0, wrap("list users", errFind)
	}
	return users, total, nil
}

func (s *Store) updateUser(ctx context.Context, id uint64, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
