package models

import "time"

// PasswordResetToken is part of the schema only. No code path issues tokens.
type PasswordResetToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	Token     string    `gorm:"type:varchar(128);not null;uniqueIndex"` // Opaque reset token.
	ExpiresAt time.Time `gorm:"not null"`                               // Expiry timestamp.
	Used      bool      `gorm:"not null;default:false"`                 // Whether the token was consumed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
