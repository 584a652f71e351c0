package models

import "time"

// User is an account holder. Email is stored lowercased and trimmed.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:varchar(255);not null;uniqueIndex"` // Normalized login email.
	Password string `gorm:"type:text;not null"`                     // Bcrypt password hash.
	Name     string `gorm:"type:varchar(255);not null;default:''"`  // Display name.

	Plan string `gorm:"type:varchar(32);not null;default:'free';index"` // Billing plan, see Plan* constants.

	Active   bool `gorm:"not null;default:true"` // Whether the account may authenticate.
	Verified bool `gorm:"not null;default:true"` // Always true; there is no verification flow.

	TOTPSecret string `gorm:"type:text"` // TOTP secret when MFA is enabled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// MFAEnabled reports whether login requires a TOTP code.
func (u *User) MFAEnabled() bool {
	return u != nil && u.TOTPSecret != ""
}
