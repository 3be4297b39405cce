package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"paybridge/internal/models"
)

// Migrate ensures the schema for all persisted entities exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Charge{},
		&models.Refund{},
		&models.GatewayAccount{},
		&models.NotificationLog{},
	}
}
