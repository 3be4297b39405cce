package models

import "time"

// ChargeStatus is the canonical, gateway-independent lifecycle state of a charge.
type ChargeStatus string

const (
	ChargeCreated                ChargeStatus = "CREATED"
	ChargeAuthorisationReady     ChargeStatus = "AUTHORISATION_READY"
	ChargeAwaiting3DS            ChargeStatus = "AWAITING_3DS"
	ChargeAuthorisationSuccess   ChargeStatus = "AUTHORISATION_SUCCESS"
	ChargeAuthorisationRejected  ChargeStatus = "AUTHORISATION_REJECTED"
	ChargeAuthorisationError     ChargeStatus = "AUTHORISATION_ERROR"
	ChargeAuthorisationCancelled ChargeStatus = "AUTHORISATION_CANCELLED"
	ChargeCaptureApproved        ChargeStatus = "CAPTURE_APPROVED"
	ChargeCaptureSubmitted       ChargeStatus = "CAPTURE_SUBMITTED"
	ChargeCaptured               ChargeStatus = "CAPTURED"
	ChargeCaptureError           ChargeStatus = "CAPTURE_ERROR"
	ChargeExpired                ChargeStatus = "EXPIRED"
	ChargeCancelled              ChargeStatus = "CANCELLED"
)

// chargeTransitions is the closed graph of legal charge status transitions.
// Built once at init, read-only afterwards.
var chargeTransitions = map[ChargeStatus][]ChargeStatus{
	ChargeCreated:              {ChargeAuthorisationReady, ChargeExpired, ChargeCancelled},
	ChargeAuthorisationReady:   {ChargeAwaiting3DS, ChargeAuthorisationSuccess, ChargeAuthorisationRejected, ChargeAuthorisationError, ChargeAuthorisationCancelled, ChargeExpired},
	ChargeAwaiting3DS:          {ChargeAuthorisationSuccess, ChargeAuthorisationRejected, ChargeAuthorisationError, ChargeAuthorisationCancelled, ChargeExpired},
	ChargeAuthorisationSuccess: {ChargeCaptureApproved, ChargeCancelled, ChargeExpired},
	ChargeCaptureApproved:      {ChargeCaptureSubmitted, ChargeCaptured, ChargeCaptureError},
	ChargeCaptureSubmitted:     {ChargeCaptured, ChargeCaptureError},
}

// CanTransition reports whether a charge may move from one canonical status
// to another. Transitions absent from the graph are illegal, including
// self-transitions, which is what makes replayed notifications inert.
func CanTransition(from, to ChargeStatus) bool {
	for _, next := range chargeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsFinished reports whether the charge status is terminal.
func (s ChargeStatus) IsFinished() bool {
	return len(chargeTransitions[s]) == 0
}

// Charge maps to the `charges` table.
type Charge struct {
	ID                   uint         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID           string       `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	GatewayAccountID     uint         `gorm:"column:gateway_account_id;index" json:"gateway_account_id"`
	GatewayName          string       `gorm:"column:gateway_name;size:50" json:"gateway_name"`
	GatewayTransactionID string       `gorm:"column:gateway_transaction_id;size:255;index" json:"gateway_transaction_id"`
	Amount               int64        `gorm:"column:amount" json:"amount"`
	Currency             string       `gorm:"column:currency;size:3" json:"currency"`
	Description          string       `gorm:"column:description;size:255" json:"description"`
	Reference            string       `gorm:"column:reference;size:255" json:"reference"`
	Status               ChargeStatus `gorm:"column:status;size:50;index" json:"status"`
	FeeAmount            *int64       `gorm:"column:fee_amount" json:"fee_amount,omitempty"`
	RefundedAmount       int64        `gorm:"column:refunded_amount" json:"refunded_amount"`
	CreatedAt            time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Charge) TableName() string {
	return "charges"
}
