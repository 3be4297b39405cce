package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/models"
)

type stubProvider struct{ name string }

func (p stubProvider) Name() string { return p.name }
func (p stubProvider) Authorise(context.Context, AccountContext, AuthoriseRequest) AuthoriseResult {
	return AuthoriseResult{}
}
func (p stubProvider) Authorise3DS(context.Context, AccountContext, Auth3DSRequest) AuthoriseResult {
	return AuthoriseResult{}
}
func (p stubProvider) Capture(context.Context, AccountContext, CaptureRequest) CaptureResult {
	return CaptureResult{}
}
func (p stubProvider) Refund(context.Context, AccountContext, RefundRequest) RefundResult {
	return RefundResult{}
}
func (p stubProvider) Cancel(context.Context, AccountContext, CancelRequest) CancelResult {
	return CancelResult{}
}
func (p stubProvider) Query(context.Context, AccountContext, QueryRequest) QueryResult {
	return QueryResult{}
}
func (p stubProvider) GenerateTransactionID() string { return "tx" }
func (p stubProvider) RefundAvailability(*models.Charge) RefundAvailability {
	return RefundAvailabilityUnavailable
}

func TestRegistryProvider(t *testing.T) {
	r := NewRegistry(stubProvider{name: "worldpay"}, stubProvider{name: "stripe"})

	p, err := r.Provider("worldpay")
	require.NoError(t, err)
	assert.Equal(t, "worldpay", p.Name())

	_, err = r.Provider("epdq")
	assert.EqualError(t, err, `no provider registered for gateway "epdq"`)

	assert.Equal(t, []string{"stripe", "worldpay"}, r.Names())
}

func TestComputeRefundAvailability(t *testing.T) {
	tests := []struct {
		name   string
		charge models.Charge
		want   RefundAvailability
	}{
		{"captured and untouched", models.Charge{Status: models.ChargeCaptured, Amount: 1000}, RefundAvailabilityAvailable},
		{"captured and partially refunded", models.Charge{Status: models.ChargeCaptured, Amount: 1000, RefundedAmount: 400}, RefundAvailabilityAvailable},
		{"fully refunded", models.Charge{Status: models.ChargeCaptured, Amount: 1000, RefundedAmount: 1000}, RefundAvailabilityFull},
		{"capture in flight", models.Charge{Status: models.ChargeCaptureSubmitted, Amount: 1000}, RefundAvailabilityPending},
		{"capture approved", models.Charge{Status: models.ChargeCaptureApproved, Amount: 1000}, RefundAvailabilityPending},
		{"only authorised", models.Charge{Status: models.ChargeAuthorisationSuccess, Amount: 1000}, RefundAvailabilityUnavailable},
		{"rejected", models.Charge{Status: models.ChargeAuthorisationRejected, Amount: 1000}, RefundAvailabilityUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeRefundAvailability(&tt.charge))
		})
	}
}
