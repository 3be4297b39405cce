package models

import "time"

// Notification processing outcomes recorded in the log.
const (
	NotificationApplied       = "applied"
	NotificationIgnored       = "ignored"
	NotificationNotApplicable = "not_applicable"
	NotificationNotFound      = "not_found"
	NotificationUnknownStatus = "unknown_status"
	NotificationParseFailed   = "parse_failed"
	NotificationRejected      = "rejected"
)

// NotificationLog maps to the `notification_logs` table. One row per logical
// notification processed, whatever the outcome.
type NotificationLog struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GatewayName   string    `gorm:"column:gateway_name;size:50;index" json:"gateway_name"`
	TransactionID string    `gorm:"column:transaction_id;size:255;index" json:"transaction_id"`
	NativeStatus  string    `gorm:"column:native_status;size:100" json:"native_status"`
	Outcome       string    `gorm:"column:outcome;size:50" json:"outcome"`
	Detail        string    `gorm:"column:detail;size:500" json:"detail"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}
