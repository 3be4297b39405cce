package models

import "time"

// GatewayAccount maps to the `gateway_accounts` table. Credentials are stored
// as a flat JSON object; the keys are gateway-specific (merchant codes, API
// keys, notification passwords).
type GatewayAccount struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID      string    `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	GatewayName     string    `gorm:"column:gateway_name;size:50;index" json:"gateway_name"`
	AccountType     string    `gorm:"column:account_type;size:10" json:"account_type"` // test or live
	CredentialsJSON string    `gorm:"column:credentials;type:text" json:"-"`
	Requires3DS     bool      `gorm:"column:requires_3ds" json:"requires_3ds"`
	AllowMoto       bool      `gorm:"column:allow_moto" json:"allow_moto"`
	WebhookSecrets  string    `gorm:"column:webhook_secrets;type:text" json:"-"` // comma-separated, newest first
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (GatewayAccount) TableName() string {
	return "gateway_accounts"
}
