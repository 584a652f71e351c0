package models

import "time"

// Session is the audit and logout record for an issued bearer token. Its ID
// is the token's jti claim.
type Session struct {
	ID string `gorm:"primaryKey;type:varchar(64)"` // Session UUID.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	IPAddress string `gorm:"type:varchar(64)"` // Client IP at login.
	UserAgent string `gorm:"type:text"`        // Client user agent at login.

	CreatedAt time.Time `gorm:"not null;index"` // Login timestamp.
}
