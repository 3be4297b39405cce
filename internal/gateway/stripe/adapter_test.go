package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	timeouts := config.OperationTimeouts{
		Authorise: 2 * time.Second,
		Capture:   2 * time.Second,
		Refund:    2 * time.Second,
		Cancel:    2 * time.Second,
		Query:     2 * time.Second,
	}
	return New(config.StripeConfig{BaseURL: srv.URL, Timeouts: timeouts}, zap.NewNop())
}

func stripeAccount() gateway.AccountContext {
	return gateway.AccountContext{
		GatewayName: Name,
		AccountType: "test",
		Credentials: map[string]string{"api_key": "sk_test_123"},
	}
}

func authoriseReq() gateway.AuthoriseRequest {
	return gateway.AuthoriseRequest{
		ExternalID: "ch-42",
		Amount:     2500,
		Currency:   "gbp",
		Card:       &gateway.CardDetails{Number: "4242424242424242", ExpiryMonth: "9", ExpiryYear: "2027", CVC: "123"},
	}
}

func TestAdapterAuthorise(t *testing.T) {
	var gotAuth, gotIdem string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		w.Write([]byte(`{"id":"pi_123","status":"requires_capture"}`))
	})

	result := adapter.Authorise(context.Background(), stripeAccount(), authoriseReq())

	require.Nil(t, result.Err)
	assert.Equal(t, gateway.AuthoriseAuthorised, result.Outcome)
	assert.Equal(t, "pi_123", result.TransactionID)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
	assert.Equal(t, "pb-ch-42-authorise", gotIdem)
}

func TestAdapterAuthoriseRequiresAction(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_123","status":"requires_action","next_action":{"type":"redirect_to_url","redirect_to_url":{"url":"https://hooks.stripe.com/3ds"}}}`))
	})

	result := adapter.Authorise(context.Background(), stripeAccount(), authoriseReq())

	require.Nil(t, result.Err)
	assert.Equal(t, gateway.AuthoriseRequires3DS, result.Outcome)
	assert.Equal(t, "https://hooks.stripe.com/3ds", result.Challenge["redirect_url"])
}

func TestAdapterAuthoriseCardDeclined(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds.","payment_intent":{"id":"pi_declined_7","status":"requires_payment_method"}}}`))
	})

	result := adapter.Authorise(context.Background(), stripeAccount(), authoriseReq())

	assert.Nil(t, result.Err, "a decline is a business outcome, not a failure")
	assert.Equal(t, gateway.AuthoriseRejected, result.Outcome)
	assert.Equal(t, "pi_declined_7", result.TransactionID, "the declined intent id still identifies the attempt")
}

func TestAdapterAuthoriseUpstreamFailureIsNotADecline(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"api_error"}}`, http.StatusInternalServerError)
	})

	result := adapter.Authorise(context.Background(), stripeAccount(), authoriseReq())

	require.NotNil(t, result.Err)
	assert.Equal(t, gateway.AuthoriseError, result.Outcome)
	assert.Equal(t, gateway.ErrorUpstream, result.Err.Kind)
}

func TestAdapterCaptureCompletesWithFee(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v1/payment_intents/pi_123/capture")
		w.Write([]byte(`{"id":"pi_123","status":"succeeded","application_fee_amount":87}`))
	})

	result := adapter.Capture(context.Background(), stripeAccount(), gateway.CaptureRequest{
		ExternalID:    "ch-42",
		TransactionID: "pi_123",
		Amount:        2500,
	})

	require.Nil(t, result.Err)
	assert.Equal(t, gateway.CaptureComplete, result.State)
	require.NotNil(t, result.Fee)
	assert.Equal(t, int64(87), *result.Fee)
}

func TestAdapterRefundPending(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"re_9","status":"pending"}`))
	})

	result := adapter.Refund(context.Background(), stripeAccount(), gateway.RefundRequest{
		RefundExternalID: "rf-7",
		TransactionID:    "pi_123",
		Amount:           500,
	})

	require.Nil(t, result.Err)
	assert.Equal(t, gateway.RefundPending, result.State)
	assert.Equal(t, "re_9", result.ReferenceID)
}

func TestAdapterCancel(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_123","status":"canceled"}`))
	})

	result := adapter.Cancel(context.Background(), stripeAccount(), gateway.CancelRequest{
		ExternalID:    "ch-42",
		TransactionID: "pi_123",
	})

	require.Nil(t, result.Err)
	assert.True(t, result.Cancelled)
}

func TestAdapterQueryNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such payment_intent"}}`))
	})

	result := adapter.Query(context.Background(), stripeAccount(), gateway.QueryRequest{TransactionID: "pi_missing"})

	require.Nil(t, result.Err)
	assert.False(t, result.Found)
}

func TestAdapterQueryFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_123","status":"requires_capture"}`))
	})

	result := adapter.Query(context.Background(), stripeAccount(), gateway.QueryRequest{TransactionID: "pi_123"})

	require.Nil(t, result.Err)
	assert.True(t, result.Found)
	assert.Equal(t, "requires_capture", result.NativeStatus)
}
