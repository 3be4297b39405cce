package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"paybridge/internal/models"
)

// ChargeRepository handles charge database operations.
type ChargeRepository struct {
	db *gorm.DB
}

func NewChargeRepository(db *gorm.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

// Create creates a new charge.
func (r *ChargeRepository) Create(ctx context.Context, charge *models.Charge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

// FindByExternalID returns a charge by its merchant-facing id.
func (r *ChargeRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&charge).Error
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// FindByGatewayTransactionID resolves a gateway transaction id (plus gateway
// name) to the owning charge. A missing charge is not an error: notifications
// routinely refer to charges owned by other account partitions.
func (r *ChargeRepository) FindByGatewayTransactionID(ctx context.Context, gatewayName, transactionID string) (*models.Charge, error) {
	var charge models.Charge
	err := r.db.WithContext(ctx).
		Where("gateway_name = ? AND gateway_transaction_id = ?", gatewayName, transactionID).
		First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &charge, nil
}

// TransitionStatus applies a canonical status transition conditionally: the
// row is updated only while it still holds the expected current status, which
// gives racing notifications "last valid transition wins, others drop"
// semantics. Returns false when the charge had already moved on.
func (r *ChargeRepository) TransitionStatus(ctx context.Context, chargeID uint, from, to models.ChargeStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ? AND status = ?", chargeID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetGatewayTransactionID records the gateway-side reference after authorise.
func (r *ChargeRepository) SetGatewayTransactionID(ctx context.Context, chargeID uint, transactionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ?", chargeID).
		Update("gateway_transaction_id", transactionID).Error
}

// SetFee records the fee a gateway reported on capture.
func (r *ChargeRepository) SetFee(ctx context.Context, chargeID uint, fee int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ?", chargeID).
		Update("fee_amount", fee).Error
}

// FindReadyForCapture returns charges approved for capture, oldest first.
func (r *ChargeRepository) FindReadyForCapture(ctx context.Context, limit int) ([]models.Charge, error) {
	if limit <= 0 {
		limit = 20
	}
	var charges []models.Charge
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ChargeCaptureApproved).
		Order("updated_at ASC").
		Limit(limit).
		Find(&charges).Error
	return charges, err
}
