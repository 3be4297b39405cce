package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"paybridge/internal/models"
)

// NotificationLogRepository persists notification processing outcomes.
type NotificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Record writes one log row. Failures here are reported to the caller but
// must not block notification processing.
func (r *NotificationLogRepository) Record(ctx context.Context, gatewayName, transactionID, nativeStatus, outcome, detail string) error {
	row := &models.NotificationLog{
		GatewayName:   gatewayName,
		TransactionID: transactionID,
		NativeStatus:  nativeStatus,
		Outcome:       outcome,
		Detail:        detail,
		CreatedAt:     time.Now(),
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// RecentByTransaction returns the latest log rows for a transaction id.
func (r *NotificationLogRepository) RecentByTransaction(ctx context.Context, gatewayName, transactionID string, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.NotificationLog
	err := r.db.WithContext(ctx).
		Where("gateway_name = ? AND transaction_id = ?", gatewayName, transactionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
