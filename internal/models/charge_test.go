package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    ChargeStatus
		to      ChargeStatus
		allowed bool
	}{
		{"created to ready", ChargeCreated, ChargeAuthorisationReady, true},
		{"ready to awaiting 3ds", ChargeAuthorisationReady, ChargeAwaiting3DS, true},
		{"ready to authorised", ChargeAuthorisationReady, ChargeAuthorisationSuccess, true},
		{"awaiting 3ds to authorised", ChargeAwaiting3DS, ChargeAuthorisationSuccess, true},
		{"awaiting 3ds to rejected", ChargeAwaiting3DS, ChargeAuthorisationRejected, true},
		{"authorised to capture approved", ChargeAuthorisationSuccess, ChargeCaptureApproved, true},
		{"capture approved to submitted", ChargeCaptureApproved, ChargeCaptureSubmitted, true},
		{"capture submitted to captured", ChargeCaptureSubmitted, ChargeCaptured, true},
		{"capture approved straight to captured", ChargeCaptureApproved, ChargeCaptured, true},
		{"authorised to cancelled", ChargeAuthorisationSuccess, ChargeCancelled, true},

		{"captured is terminal", ChargeCaptured, ChargeCancelled, false},
		{"rejected is terminal", ChargeAuthorisationRejected, ChargeAuthorisationSuccess, false},
		{"no capture before authorisation", ChargeAuthorisationReady, ChargeCaptured, false},
		{"no backwards move", ChargeCaptured, ChargeAuthorisationSuccess, false},
		{"unknown status", ChargeStatus("BOGUS"), ChargeCaptured, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

// A status never transitions to itself, so a re-delivered notification that
// maps to the current status is inert.
func TestCanTransitionSelfIsIllegal(t *testing.T) {
	for from := range chargeTransitions {
		assert.False(t, CanTransition(from, from), "self transition allowed for %s", from)
	}
}

func TestCanTransitionRefund(t *testing.T) {
	assert.True(t, CanTransitionRefund(RefundCreated, RefundSubmitted))
	assert.True(t, CanTransitionRefund(RefundSubmitted, Refunded))
	assert.True(t, CanTransitionRefund(RefundSubmitted, RefundError))
	assert.False(t, CanTransitionRefund(Refunded, RefundError))
	assert.False(t, CanTransitionRefund(Refunded, Refunded))
}
