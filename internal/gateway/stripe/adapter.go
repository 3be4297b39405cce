// Package stripe integrates the Stripe REST API: form-encoded requests,
// JSON responses, signed webhooks and deterministic idempotency keys.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
)

const Name = "stripe"

const credAPIKey = "api_key"

// Intent statuses this adapter acts on.
const (
	intentRequiresCapture = "requires_capture"
	intentRequiresAction  = "requires_action"
	intentProcessing      = "processing"
	intentSucceeded       = "succeeded"
	intentCanceled        = "canceled"
)

type paymentIntent struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	ApplicationFeeAmount *int64 `json:"application_fee_amount"`
	NextAction           *struct {
		Type          string `json:"type"`
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
}

type refundObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type apiError struct {
	Error struct {
		Type          string `json:"type"`
		Code          string `json:"code"`
		DeclineCode   string `json:"decline_code"`
		Message       string `json:"message"`
		PaymentIntent struct {
			ID string `json:"id"`
		} `json:"payment_intent"`
	} `json:"error"`
}

// Adapter implements gateway.PaymentProvider for Stripe.
type Adapter struct {
	cfg        config.StripeConfig
	transports map[gateway.Operation]*gateway.Transport
	logger     *zap.Logger
}

func New(cfg config.StripeConfig, logger *zap.Logger) *Adapter {
	transports := map[gateway.Operation]*gateway.Transport{}
	for _, op := range []gateway.Operation{
		gateway.OperationAuthorise,
		gateway.OperationCapture,
		gateway.OperationRefund,
		gateway.OperationCancel,
		gateway.OperationQuery,
	} {
		transports[op] = gateway.NewTransport(Name, op, cfg.Timeouts.For(string(op)), logger)
	}
	return &Adapter{cfg: cfg, transports: transports, logger: logger}
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) GenerateTransactionID() string {
	return uuid.NewString()
}

func (a *Adapter) RefundAvailability(charge *models.Charge) gateway.RefundAvailability {
	return gateway.ComputeRefundAvailability(charge)
}

func (a *Adapter) authHeaders(account gateway.AccountContext) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + account.Credential(credAPIKey),
	}
}

func (a *Adapter) Authorise(ctx context.Context, account gateway.AccountContext, req gateway.AuthoriseRequest) gateway.AuthoriseResult {
	if req.Card == nil {
		return authError("", gateway.NewUnsupportedOperationError(Name, gateway.OperationAuthorise))
	}

	order, err := NewPaymentIntentBuilder().
		WithExternalID(req.ExternalID).
		WithAmount(req.Amount, req.Currency).
		WithDescription(req.Description).
		WithReference(req.Reference).
		WithReturnURL(req.ReturnURL).
		WithMoto(req.Moto).
		WithCard(*req.Card).
		Build()
	if err != nil {
		return authError("", gateway.NewGenericError(err.Error()))
	}

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx,
		a.cfg.BaseURL+"/v1/payment_intents", account, order, a.authHeaders(account))
	if gerr != nil {
		// Card declines surface as HTTP 402 carrying a card_error body.
		if decline := declineOf(gerr); decline != nil {
			a.logger.Info("stripe card declined",
				zap.String("transaction_id", decline.intentID),
				zap.String("decline_code", decline.code))
			return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRejected, TransactionID: decline.intentID}
		}
		return authError("", gerr)
	}
	return a.interpretIntent(resp.Body)
}

// Authorise3DS re-confirms the intent after the payer returned from the
// challenge. Stripe reports "processing" while the challenge outcome is
// still settling; the charge stays awaiting in that case.
func (a *Adapter) Authorise3DS(ctx context.Context, account gateway.AccountContext, req gateway.Auth3DSRequest) gateway.AuthoriseResult {
	order := formOrder(gateway.OperationAuthorise, nil, IdempotencyKey(req.ExternalID, "authorise-3ds"))

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx,
		fmt.Sprintf("%s/v1/payment_intents/%s/confirm", a.cfg.BaseURL, req.TransactionID),
		account, order, a.authHeaders(account))
	if gerr != nil {
		if decline := declineOf(gerr); decline != nil {
			a.logger.Info("stripe card declined after challenge",
				zap.String("transaction_id", req.TransactionID),
				zap.String("decline_code", decline.code))
			return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRejected, TransactionID: req.TransactionID}
		}
		return authError(req.TransactionID, gerr)
	}
	return a.interpretIntent(resp.Body)
}

func (a *Adapter) interpretIntent(body []byte) gateway.AuthoriseResult {
	var intent paymentIntent
	if err := json.Unmarshal(body, &intent); err != nil || intent.ID == "" {
		return authError("", gateway.NewMalformedResponseError("stripe intent response not parseable"))
	}

	switch intent.Status {
	case intentRequiresCapture:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseAuthorised, TransactionID: intent.ID}
	case intentRequiresAction:
		challenge := map[string]string{}
		if intent.NextAction != nil && intent.NextAction.RedirectToURL != nil {
			challenge["redirect_url"] = intent.NextAction.RedirectToURL.URL
		}
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRequires3DS, TransactionID: intent.ID, Challenge: challenge}
	case intentProcessing:
		// Challenge outcome not yet known.
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRequires3DS, TransactionID: intent.ID}
	case intentCanceled:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseCancelled, TransactionID: intent.ID}
	default:
		return authError(intent.ID, gateway.NewMalformedResponseError("unexpected intent status "+intent.Status))
	}
}

// Capture settles synchronously on Stripe: a succeeded intent is Complete,
// and the fee is reported inline when the account is configured for it.
func (a *Adapter) Capture(ctx context.Context, account gateway.AccountContext, req gateway.CaptureRequest) gateway.CaptureResult {
	order := BuildCaptureOrder(req.ExternalID, req.Amount)

	resp, gerr := a.transports[gateway.OperationCapture].Send(ctx,
		fmt.Sprintf("%s/v1/payment_intents/%s/capture", a.cfg.BaseURL, req.TransactionID),
		account, order, a.authHeaders(account))
	if gerr != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gerr}
	}

	var intent paymentIntent
	if err := json.Unmarshal(resp.Body, &intent); err != nil || intent.ID == "" {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewMalformedResponseError("stripe capture response not parseable")}
	}
	if intent.Status != intentSucceeded {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewGenericError("stripe capture left intent in " + intent.Status)}
	}
	return gateway.CaptureResult{
		State:         gateway.CaptureComplete,
		TransactionID: intent.ID,
		Fee:           intent.ApplicationFeeAmount,
	}
}

func (a *Adapter) Refund(ctx context.Context, account gateway.AccountContext, req gateway.RefundRequest) gateway.RefundResult {
	order, err := BuildRefundOrder(req.RefundExternalID, req.TransactionID, req.Amount)
	if err != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationRefund].Send(ctx,
		a.cfg.BaseURL+"/v1/refunds", account, order, a.authHeaders(account))
	if gerr != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gerr}
	}

	var refund refundObject
	if err := json.Unmarshal(resp.Body, &refund); err != nil || refund.ID == "" {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewMalformedResponseError("stripe refund response not parseable")}
	}
	switch refund.Status {
	case "succeeded":
		return gateway.RefundResult{State: gateway.RefundComplete, ReferenceID: refund.ID}
	case "pending":
		return gateway.RefundResult{State: gateway.RefundPending, ReferenceID: refund.ID}
	default:
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewGenericError("stripe refund in status " + refund.Status)}
	}
}

func (a *Adapter) Cancel(ctx context.Context, account gateway.AccountContext, req gateway.CancelRequest) gateway.CancelResult {
	order := BuildCancelOrder(req.ExternalID)

	resp, gerr := a.transports[gateway.OperationCancel].Send(ctx,
		fmt.Sprintf("%s/v1/payment_intents/%s/cancel", a.cfg.BaseURL, req.TransactionID),
		account, order, a.authHeaders(account))
	if gerr != nil {
		return gateway.CancelResult{Err: gerr}
	}

	var intent paymentIntent
	if err := json.Unmarshal(resp.Body, &intent); err != nil || intent.Status != intentCanceled {
		return gateway.CancelResult{Err: gateway.NewMalformedResponseError("stripe cancel did not report canceled")}
	}
	return gateway.CancelResult{Cancelled: true}
}

// Query fetches the intent. A 404 means Stripe has no record of the id,
// reported as not-found rather than a failure.
func (a *Adapter) Query(ctx context.Context, account gateway.AccountContext, req gateway.QueryRequest) gateway.QueryResult {
	resp, gerr := a.transports[gateway.OperationQuery].Get(ctx,
		fmt.Sprintf("%s/v1/payment_intents/%s", a.cfg.BaseURL, req.TransactionID),
		account, a.authHeaders(account))
	if gerr != nil {
		if gerr.Kind == gateway.ErrorUpstream && gerr.HTTPStatus == http.StatusNotFound {
			return gateway.QueryResult{Found: false}
		}
		return gateway.QueryResult{Err: gerr}
	}

	var intent paymentIntent
	if err := json.Unmarshal(resp.Body, &intent); err != nil || intent.ID == "" {
		return gateway.QueryResult{Err: gateway.NewMalformedResponseError("stripe query response not parseable")}
	}
	return gateway.QueryResult{Found: true, NativeStatus: intent.Status}
}

type declineDetail struct {
	intentID string
	code     string
}

// declineOf extracts a card decline from an upstream error body, when that
// is what the error is. Anything else stays a classified failure.
func declineOf(gerr *gateway.Error) *declineDetail {
	if gerr.Kind != gateway.ErrorUpstream || gerr.HTTPStatus != http.StatusPaymentRequired {
		return nil
	}
	var apiErr apiError
	if err := json.Unmarshal([]byte(gerr.Body), &apiErr); err != nil {
		return nil
	}
	if apiErr.Error.Type != "card_error" {
		return nil
	}
	return &declineDetail{
		intentID: apiErr.Error.PaymentIntent.ID,
		code:     apiErr.Error.DeclineCode,
	}
}

func authError(transactionID string, err *gateway.Error) gateway.AuthoriseResult {
	return gateway.AuthoriseResult{
		Outcome:       gateway.AuthoriseError,
		TransactionID: transactionID,
		Err:           err,
	}
}
