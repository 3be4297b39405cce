package repository

import (
	"context"

	"gorm.io/gorm"

	"paybridge/internal/models"
)

// GatewayAccountRepository handles gateway account database operations.
type GatewayAccountRepository struct {
	db *gorm.DB
}

func NewGatewayAccountRepository(db *gorm.DB) *GatewayAccountRepository {
	return &GatewayAccountRepository{db: db}
}

// FindByID returns a gateway account by primary key.
func (r *GatewayAccountRepository) FindByID(ctx context.Context, id uint) (*models.GatewayAccount, error) {
	var acct models.GatewayAccount
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

// FindByExternalID returns a gateway account by its external id.
func (r *GatewayAccountRepository) FindByExternalID(ctx context.Context, externalID string) (*models.GatewayAccount, error) {
	var acct models.GatewayAccount
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}
