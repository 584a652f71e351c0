package models

import "time"

// APIKey is a metered credential owned by exactly one user. RequestsToday is
// only meaningful while LastResetDate (UTC, YYYY-MM-DD) equals the current day.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	Name   string `gorm:"type:varchar(255);not null;default:''"` // Display name for the key.
	APIKey string `gorm:"type:varchar(128);not null;uniqueIndex"` // Full API key string.

	Active bool `gorm:"not null;default:true"` // Whether the key is enabled.

	DailyLimit    int    `gorm:"not null;default:0"`                   // Requests allowed per UTC day.
	RequestsToday int    `gorm:"not null;default:0"`                   // Requests consumed on LastResetDate.
	LastResetDate string `gorm:"type:varchar(10);not null;default:''"` // UTC day the counter belongs to.

	ExpiresAt  *time.Time // Optional expiration timestamp.
	RevokedAt  *time.Time // Revocation timestamp when disabled.
	LastUsedAt *time.Time // Last request admitted by the ledger.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Status returns the key status at now.
func (k *APIKey) Status(now time.Time) string {
	if k.RevokedAt != nil {
		return "revoked"
	}
	if k.IsExpired(now) {
		return "expired"
	}
	if !k.Active {
		return "inactive"
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now.AddDate(0, 0, 7)) {
		return "expiring"
	}
	return "active"
}

// IsExpired reports whether the key's expiry has passed at now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
