package models

import "time"

// RefundStatus is the canonical lifecycle state of a refund.
type RefundStatus string

const (
	RefundCreated   RefundStatus = "CREATED"
	RefundSubmitted RefundStatus = "SUBMITTED"
	Refunded        RefundStatus = "REFUNDED"
	RefundError     RefundStatus = "REFUND_ERROR"
)

var refundTransitions = map[RefundStatus][]RefundStatus{
	RefundCreated:   {RefundSubmitted, Refunded, RefundError},
	RefundSubmitted: {Refunded, RefundError},
}

// CanTransitionRefund reports whether a refund may move between two statuses.
func CanTransitionRefund(from, to RefundStatus) bool {
	for _, next := range refundTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Refund maps to the `refunds` table.
type Refund struct {
	ID                 uint         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID         string       `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	ChargeID           uint         `gorm:"column:charge_id;index" json:"charge_id"`
	GatewayName        string       `gorm:"column:gateway_name;size:50" json:"gateway_name"`
	GatewayReferenceID string       `gorm:"column:gateway_reference_id;size:255;index" json:"gateway_reference_id"`
	Amount             int64        `gorm:"column:amount" json:"amount"`
	Status             RefundStatus `gorm:"column:status;size:50;index" json:"status"`
	CreatedAt          time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Refund) TableName() string {
	return "refunds"
}
