package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"paybridge/internal/models"
)

// RefundRepository handles refund database operations.
type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// FindByGatewayReference resolves a gateway refund reference to the owning
// refund. Missing refunds are not errors, same as charge lookup.
func (r *RefundRepository) FindByGatewayReference(ctx context.Context, gatewayName, referenceID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Where("gateway_name = ? AND gateway_reference_id = ?", gatewayName, referenceID).
		First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// TransitionStatus conditionally moves a refund between statuses, mirroring
// the charge transition semantics.
func (r *RefundRepository) TransitionStatus(ctx context.Context, refundID uint, from, to models.RefundStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", refundID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
