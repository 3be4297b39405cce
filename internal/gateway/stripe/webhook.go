package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
	"paybridge/internal/notification"
)

// event mirrors the envelope Stripe posts to webhook endpoints.
type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type eventIntent struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Status string `json:"status"`
}

type eventRefund struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Status        string `json:"status"`
	PaymentIntent string `json:"payment_intent"`
}

// Notifications implements notification.GatewayNotifications for Stripe.
// Payloads are authenticated against the configured signing secrets before
// anything else happens; the secret list supports rotation.
type Notifications struct {
	secrets   []string
	tolerance time.Duration
	now       func() time.Time
	mapper    *gateway.StatusMapper
}

func NewNotifications(cfg config.StripeConfig) *Notifications {
	return &Notifications{
		secrets:   cfg.WebhookSecrets,
		tolerance: cfg.SignatureTolerance,
		now:       time.Now,
		mapper:    buildStatusMapper(),
	}
}

func (n *Notifications) Name() string {
	return Name
}

func (n *Notifications) Verify(body []byte, signatureHeader string) bool {
	return notification.VerifySignature(body, signatureHeader, n.secrets, n.tolerance, n.now())
}

func (n *Notifications) Mapper() *gateway.StatusMapper {
	return n.mapper
}

// Parse extracts one logical notification per event. Refund events compose
// the object status into the native token, so the rule table can distinguish
// a succeeded refund from a failed one.
func (n *Notifications) Parse(body []byte) ([]notification.Envelope, error) {
	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("stripe event has no type")
	}

	env := notification.Envelope{
		EventType:    ev.Type,
		NativeStatus: ev.Type,
		Raw:          body,
	}

	var refund eventRefund
	if err := json.Unmarshal(ev.Data.Object, &refund); err == nil && refund.Object == "refund" {
		env.TransactionID = refund.PaymentIntent
		env.RefundReference = refund.ID
		env.NativeStatus = ev.Type + ":" + refund.Status
		return []notification.Envelope{env}, nil
	}

	var intent eventIntent
	if err := json.Unmarshal(ev.Data.Object, &intent); err != nil || intent.ID == "" {
		return nil, fmt.Errorf("stripe event %s has no usable object", ev.Type)
	}
	env.TransactionID = intent.ID
	return []notification.Envelope{env}, nil
}

func buildStatusMapper() *gateway.StatusMapper {
	return gateway.NewStatusMapperBuilder().
		// The intent reaching capturable while the charge awaits its
		// challenge is the 3DS completion signal.
		MapChargeWhen("payment_intent.amount_capturable_updated", models.ChargeAwaiting3DS, models.ChargeAuthorisationSuccess).
		MapChargeWhen("payment_intent.payment_failed", models.ChargeAwaiting3DS, models.ChargeAuthorisationRejected).
		MapCharge("payment_intent.succeeded", models.ChargeCaptured).
		MapCharge("payment_intent.canceled", models.ChargeCancelled).
		Ignore("payment_intent.created").
		Ignore("payment_intent.processing").
		Ignore("charge.succeeded").
		Ignore("charge.updated").
		MapRefund("charge.refund.updated:succeeded", models.Refunded).
		MapRefund("charge.refund.updated:failed", models.RefundError).
		Ignore("charge.refund.updated:pending").
		Build()
}
