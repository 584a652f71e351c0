package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageLog records one API-key authenticated request. Rows are append-only.
type UsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                                // Owning user ID.
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user.

	APIKeyID *uint64 `gorm:"index"` // API key that authenticated the request.

	Endpoint       string `gorm:"type:varchar(255);not null"` // Request path.
	Method         string `gorm:"type:varchar(16);not null"`  // HTTP method.
	StatusCode     int    `gorm:"not null;index"`             // Observed HTTP status.
	ResponseTimeMs int64  `gorm:"not null;default:0"`         // Handler latency in milliseconds.
	IPAddress      string `gorm:"type:varchar(64)"`           // Caller IP.
	RequestID      string `gorm:"type:varchar(64)"`           // Request ID header value.

	ErrorDetail datatypes.JSON // Structured error detail for failed requests.

	CreatedAt time.Time `gorm:"not null;index"` // Request timestamp (UTC).
}
