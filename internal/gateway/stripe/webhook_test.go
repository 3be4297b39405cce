package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
	"paybridge/internal/notification"
)

func testNotifications() *Notifications {
	return NewNotifications(config.StripeConfig{
		WebhookSecrets:     []string{"whsec_new", "whsec_old"},
		SignatureTolerance: 5 * time.Minute,
	})
}

func TestNotificationsVerify(t *testing.T) {
	n := testNotifications()
	payload := []byte(`{"type":"payment_intent.succeeded"}`)

	header := notification.SignPayload(payload, "whsec_old", time.Now())
	assert.True(t, n.Verify(payload, header), "older rotation secret must stay valid")

	assert.False(t, n.Verify(payload, "t=1,v1=deadbeef"))
	assert.False(t, n.Verify(payload, ""))
}

func TestNotificationsParseIntentEvent(t *testing.T) {
	n := testNotifications()
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded"}}}`)

	envs, err := n.Parse(body)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "pi_123", envs[0].TransactionID)
	assert.Equal(t, "payment_intent.succeeded", envs[0].NativeStatus)
	assert.Empty(t, envs[0].RefundReference)
}

// Refund events compose the object status into the native token so the rule
// table can tell a succeeded refund from a failed one.
func TestNotificationsParseRefundEvent(t *testing.T) {
	n := testNotifications()
	body := []byte(`{"id":"evt_2","type":"charge.refund.updated","data":{"object":{"id":"re_9","object":"refund","status":"succeeded","payment_intent":"pi_123"}}}`)

	envs, err := n.Parse(body)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "pi_123", envs[0].TransactionID)
	assert.Equal(t, "re_9", envs[0].RefundReference)
	assert.Equal(t, "charge.refund.updated:succeeded", envs[0].NativeStatus)
}

func TestNotificationsParseRejectsGarbage(t *testing.T) {
	n := testNotifications()

	_, err := n.Parse([]byte("not json"))
	assert.Error(t, err)

	_, err = n.Parse([]byte(`{"id":"evt_3"}`))
	assert.Error(t, err, "an event without a type is malformed")

	_, err = n.Parse([]byte(`{"id":"evt_4","type":"payment_intent.succeeded","data":{"object":{}}}`))
	assert.Error(t, err, "an intent event without an object id is malformed")
}

func TestWebhookStatusMapper(t *testing.T) {
	m := testNotifications().Mapper()

	tests := []struct {
		name    string
		native  string
		current models.ChargeStatus
		want    gateway.Interpreted
	}{
		{"3ds completion", "payment_intent.amount_capturable_updated", models.ChargeAwaiting3DS,
			gateway.Interpreted{Kind: gateway.InterpretedCharge, ChargeStatus: models.ChargeAuthorisationSuccess}},
		{"capturable echo outside challenge", "payment_intent.amount_capturable_updated", models.ChargeAuthorisationSuccess,
			gateway.Interpreted{Kind: gateway.InterpretedUnknown}},
		{"3ds failure", "payment_intent.payment_failed", models.ChargeAwaiting3DS,
			gateway.Interpreted{Kind: gateway.InterpretedCharge, ChargeStatus: models.ChargeAuthorisationRejected}},
		{"captured", "payment_intent.succeeded", models.ChargeCaptureSubmitted,
			gateway.Interpreted{Kind: gateway.InterpretedCharge, ChargeStatus: models.ChargeCaptured}},
		{"canceled", "payment_intent.canceled", models.ChargeAuthorisationSuccess,
			gateway.Interpreted{Kind: gateway.InterpretedCharge, ChargeStatus: models.ChargeCancelled}},
		{"created is inert", "payment_intent.created", models.ChargeCreated,
			gateway.Interpreted{Kind: gateway.InterpretedIgnored}},
		{"refund succeeded", "charge.refund.updated:succeeded", models.ChargeCaptured,
			gateway.Interpreted{Kind: gateway.InterpretedRefund, RefundStatus: models.Refunded}},
		{"refund failed", "charge.refund.updated:failed", models.ChargeCaptured,
			gateway.Interpreted{Kind: gateway.InterpretedRefund, RefundStatus: models.RefundError}},
		{"refund pending is inert", "charge.refund.updated:pending", models.ChargeCaptured,
			gateway.Interpreted{Kind: gateway.InterpretedIgnored}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Interpret(tt.native, tt.current))
		})
	}
}
