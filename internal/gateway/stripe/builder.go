package stripe

import (
	"fmt"
	"net/url"
	"strconv"

	"paybridge/internal/gateway"
)

// IdempotencyKey derives the deterministic key attached to mutating Stripe
// requests: the same logical operation always yields the same key, so a
// transport-level retry is recognised as a retry and not a second operation.
func IdempotencyKey(externalID string, op gateway.Operation) string {
	return fmt.Sprintf("pb-%s-%s", externalID, op)
}

// PaymentIntentBuilder assembles the form-encoded authorise payload.
// Optional fields are only included when set, so absent values never reach
// Stripe as empty keys.
type PaymentIntentBuilder struct {
	externalID  string
	amount      int64
	currency    string
	description string
	reference   string
	returnURL   string
	moto        bool
	card        *gateway.CardDetails
}

func NewPaymentIntentBuilder() *PaymentIntentBuilder {
	return &PaymentIntentBuilder{}
}

func (b *PaymentIntentBuilder) WithExternalID(id string) *PaymentIntentBuilder {
	b.externalID = id
	return b
}

func (b *PaymentIntentBuilder) WithAmount(amount int64, currency string) *PaymentIntentBuilder {
	b.amount = amount
	b.currency = currency
	return b
}

func (b *PaymentIntentBuilder) WithDescription(d string) *PaymentIntentBuilder {
	b.description = d
	return b
}

func (b *PaymentIntentBuilder) WithReference(r string) *PaymentIntentBuilder {
	b.reference = r
	return b
}

func (b *PaymentIntentBuilder) WithReturnURL(u string) *PaymentIntentBuilder {
	b.returnURL = u
	return b
}

func (b *PaymentIntentBuilder) WithMoto(moto bool) *PaymentIntentBuilder {
	b.moto = moto
	return b
}

func (b *PaymentIntentBuilder) WithCard(card gateway.CardDetails) *PaymentIntentBuilder {
	b.card = &card
	return b
}

func (b *PaymentIntentBuilder) Build() (gateway.Order, error) {
	if b.externalID == "" || b.amount <= 0 || b.currency == "" {
		return gateway.Order{}, fmt.Errorf("stripe payment intent requires external id, amount and currency")
	}
	if b.card == nil {
		return gateway.Order{}, fmt.Errorf("stripe payment intent requires card details")
	}

	values := url.Values{}
	values.Set("amount", strconv.FormatInt(b.amount, 10))
	values.Set("currency", b.currency)
	values.Set("confirm", "true")
	values.Set("capture_method", "manual")
	values.Set("payment_method_data[type]", "card")
	values.Set("payment_method_data[card][number]", b.card.Number)
	values.Set("payment_method_data[card][exp_month]", b.card.ExpiryMonth)
	values.Set("payment_method_data[card][exp_year]", b.card.ExpiryYear)
	values.Set("payment_method_data[card][cvc]", b.card.CVC)
	if b.description != "" {
		values.Set("description", b.description)
	}
	if b.reference != "" {
		values.Set("metadata[reference]", b.reference)
	}
	if b.returnURL != "" {
		values.Set("return_url", b.returnURL)
	}
	if b.moto {
		values.Set("payment_method_options[card][moto]", "true")
	}

	return formOrder(gateway.OperationAuthorise, values, IdempotencyKey(b.externalID, gateway.OperationAuthorise)), nil
}

// BuildCaptureOrder assembles the capture payload for a payment intent.
func BuildCaptureOrder(externalID string, amount int64) gateway.Order {
	values := url.Values{}
	if amount > 0 {
		values.Set("amount_to_capture", strconv.FormatInt(amount, 10))
	}
	return formOrder(gateway.OperationCapture, values, IdempotencyKey(externalID, gateway.OperationCapture))
}

// BuildRefundOrder assembles the refund payload.
func BuildRefundOrder(refundExternalID, paymentIntentID string, amount int64) (gateway.Order, error) {
	if refundExternalID == "" || paymentIntentID == "" {
		return gateway.Order{}, fmt.Errorf("stripe refund requires refund external id and payment intent id")
	}
	values := url.Values{}
	values.Set("payment_intent", paymentIntentID)
	if amount > 0 {
		values.Set("amount", strconv.FormatInt(amount, 10))
	}
	return formOrder(gateway.OperationRefund, values, IdempotencyKey(refundExternalID, gateway.OperationRefund)), nil
}

// BuildCancelOrder assembles the cancel payload.
func BuildCancelOrder(externalID string) gateway.Order {
	values := url.Values{}
	values.Set("cancellation_reason", "requested_by_customer")
	return formOrder(gateway.OperationCancel, values, IdempotencyKey(externalID, gateway.OperationCancel))
}

func formOrder(op gateway.Operation, values url.Values, idempotencyKey string) gateway.Order {
	return gateway.Order{
		Operation:   op,
		Payload:     values.Encode(),
		ContentType: "application/x-www-form-urlencoded",
		Headers: map[string]string{
			"Idempotency-Key": idempotencyKey,
		},
	}
}
