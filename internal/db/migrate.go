package db

import (
	"fmt"

	"github.com/apigate-dev/restgateway/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the gateway schema. Children follow users so
// their foreign keys can be created.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.Session{},
		&models.UsageLog{},
		&models.PasswordResetToken{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
