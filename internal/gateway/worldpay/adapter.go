// Package worldpay integrates the Worldpay XML payment service: payloads are
// rendered from per-operation templates, responses and notifications arrive
// as paymentService XML documents.
package worldpay

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
)

const Name = "worldpay"

// credential keys expected in the gateway account credentials map.
const (
	credMerchantCode = "merchant_code"
)

// Adapter implements gateway.PaymentProvider for Worldpay.
type Adapter struct {
	cfg        config.WorldpayConfig
	transports map[gateway.Operation]*gateway.Transport
	logger     *zap.Logger
}

func New(cfg config.WorldpayConfig, logger *zap.Logger) *Adapter {
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

func (a *Adapter) url(account gateway.AccountContext) string {
	if account.IsLive() {
		return a.cfg.LiveURL
	}
	return a.cfg.TestURL
}

func (a *Adapter) GenerateTransactionID() string {
	return uuid.NewString()
}

func (a *Adapter) RefundAvailability(charge *models.Charge) gateway.RefundAvailability {
	return gateway.ComputeRefundAvailability(charge)
}

func (a *Adapter) Authorise(ctx context.Context, account gateway.AccountContext, req gateway.AuthoriseRequest) gateway.AuthoriseResult {
	if req.Card == nil {
		return authError(req.ExternalID, gateway.NewUnsupportedOperationError(Name, gateway.OperationAuthorise))
	}

	order, err := NewAuthoriseOrderBuilder().
		WithMerchantCode(account.Credential(credMerchantCode)).
		WithTransactionID(req.ExternalID).
		WithDescription(req.Description).
		WithAmount(req.Amount, req.Currency).
		WithCard(*req.Card).
		WithSessionID(req.ExternalID).
		Build()
	if err != nil {
		return authError(req.ExternalID, gateway.NewGenericError(err.Error()))
	}

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return authError(req.ExternalID, gerr)
	}
	return a.interpretAuthoriseReply(resp, req.ExternalID)
}

func (a *Adapter) Authorise3DS(ctx context.Context, account gateway.AccountContext, req gateway.Auth3DSRequest) gateway.AuthoriseResult {
	order, err := NewAuth3DSOrderBuilder().
		WithMerchantCode(account.Credential(credMerchantCode)).
		WithTransactionID(req.TransactionID).
		WithPaResponse(req.ChallengeResult["pa_response"]).
		WithSessionID(req.ExternalID).
		Build()
	if err != nil {
		return authError(req.TransactionID, gateway.NewGenericError(err.Error()))
	}

	// The machine cookie from the original authorise pins the continuation
	// to the same Worldpay node.
	for name, value := range req.SessionCookies {
		order.Cookies = append(order.Cookies, cookie(name, value))
	}

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return authError(req.TransactionID, gerr)
	}
	return a.interpretAuthoriseReply(resp, req.TransactionID)
}

// interpretAuthoriseReply maps the synchronous authorise reply onto the
// canonical outcome set. A reply carrying request3DSecure means the payer
// must complete a challenge; a reply with no payment element on a 3DS
// continuation means the result is not yet known and the charge stays
// awaiting.
func (a *Adapter) interpretAuthoriseReply(resp *gateway.Response, transactionID string) gateway.AuthoriseResult {
	reply, err := parseReply(resp.Body)
	if err != nil {
		return authError(transactionID, gateway.NewMalformedResponseError(err.Error()))
	}
	if reply.Reply.Error != nil {
		return authError(transactionID, gateway.NewGenericError(reply.Reply.Error.String()))
	}
	status := reply.Reply.OrderStatus
	if status == nil {
		return authError(transactionID, gateway.NewMalformedResponseError("worldpay reply has no orderStatus"))
	}
	if status.Error != nil {
		return authError(transactionID, gateway.NewGenericError(status.Error.String()))
	}
	if status.Request3DSecure != nil {
		challenge := map[string]string{
			"pa_request": status.Request3DSecure.PaRequest,
			"issuer_url": status.Request3DSecure.IssuerURL,
		}
		return gateway.AuthoriseResult{
			Outcome:       gateway.AuthoriseRequires3DS,
			TransactionID: transactionID,
			Challenge:     challenge,
		}
	}
	if status.Payment == nil {
		// Challenge outcome not yet known; the charge stays awaiting.
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRequires3DS, TransactionID: transactionID}
	}

	switch status.Payment.LastEvent {
	case eventAuthorised:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseAuthorised, TransactionID: transactionID}
	case eventRefused:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRejected, TransactionID: transactionID}
	case eventCancelled:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseCancelled, TransactionID: transactionID}
	case eventError:
		return authError(transactionID, gateway.NewGenericError("worldpay reported payment error"))
	default:
		return authError(transactionID, gateway.NewMalformedResponseError("unexpected lastEvent "+status.Payment.LastEvent))
	}
}

// Capture submits the capture modification. Worldpay settles asynchronously,
// so acceptance is always Pending; the CAPTURED notification confirms it.
func (a *Adapter) Capture(ctx context.Context, account gateway.AccountContext, req gateway.CaptureRequest) gateway.CaptureResult {
	order, err := buildModifyOrder(gateway.OperationCapture, captureTemplate,
		account.Credential(credMerchantCode), req.TransactionID, req.Currency, "", req.Amount)
	if err != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationCapture].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gerr}
	}

	reply, perr := parseReply(resp.Body)
	if perr != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewMalformedResponseError(perr.Error())}
	}
	if reply.Reply.Error != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewGenericError(reply.Reply.Error.String())}
	}
	if reply.Reply.OK == nil || reply.Reply.OK.CaptureReceived == nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewMalformedResponseError("worldpay reply missing captureReceived")}
	}
	return gateway.CaptureResult{State: gateway.CapturePending, TransactionID: req.TransactionID}
}

func (a *Adapter) Refund(ctx context.Context, account gateway.AccountContext, req gateway.RefundRequest) gateway.RefundResult {
	order, err := buildModifyOrder(gateway.OperationRefund, refundTemplate,
		account.Credential(credMerchantCode), req.TransactionID, req.Currency, req.RefundExternalID, req.Amount)
	if err != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationRefund].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gerr}
	}

	reply, perr := parseReply(resp.Body)
	if perr != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewMalformedResponseError(perr.Error())}
	}
	if reply.Reply.Error != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewGenericError(reply.Reply.Error.String())}
	}
	if reply.Reply.OK == nil || reply.Reply.OK.RefundReceived == nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewMalformedResponseError("worldpay reply missing refundReceived")}
	}
	return gateway.RefundResult{State: gateway.RefundPending, ReferenceID: req.RefundExternalID}
}

func (a *Adapter) Cancel(ctx context.Context, account gateway.AccountContext, req gateway.CancelRequest) gateway.CancelResult {
	order, err := buildModifyOrder(gateway.OperationCancel, cancelTemplate,
		account.Credential(credMerchantCode), req.TransactionID, "", "", 0)
	if err != nil {
		return gateway.CancelResult{Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationCancel].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return gateway.CancelResult{Err: gerr}
	}

	reply, perr := parseReply(resp.Body)
	if perr != nil {
		return gateway.CancelResult{Err: gateway.NewMalformedResponseError(perr.Error())}
	}
	if reply.Reply.Error != nil {
		return gateway.CancelResult{Err: gateway.NewGenericError(reply.Reply.Error.String())}
	}
	if reply.Reply.OK == nil || reply.Reply.OK.CancelReceived == nil {
		return gateway.CancelResult{Err: gateway.NewMalformedResponseError("worldpay reply missing cancelReceived")}
	}
	return gateway.CancelResult{Cancelled: true}
}

// Query runs an order inquiry. Error code 5 means Worldpay has no record of
// the order at all, which is reported as not-found rather than a failure.
func (a *Adapter) Query(ctx context.Context, account gateway.AccountContext, req gateway.QueryRequest) gateway.QueryResult {
	order, err := buildInquiryOrder(account.Credential(credMerchantCode), req.TransactionID)
	if err != nil {
		return gateway.QueryResult{Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationQuery].Send(ctx, a.url(account), account, order, nil)
	if gerr != nil {
		return gateway.QueryResult{Err: gerr}
	}

	reply, perr := parseReply(resp.Body)
	if perr != nil {
		return gateway.QueryResult{Err: gateway.NewMalformedResponseError(perr.Error())}
	}
	if e := replyErrorOf(reply); e != nil {
		if e.Code == errorCodeOrderNotFound {
			return gateway.QueryResult{Found: false}
		}
		return gateway.QueryResult{Err: gateway.NewGenericError(e.String())}
	}
	status := reply.Reply.OrderStatus
	if status == nil || status.Payment == nil {
		return gateway.QueryResult{Err: gateway.NewMalformedResponseError("worldpay inquiry reply missing payment")}
	}
	return gateway.QueryResult{Found: true, NativeStatus: status.Payment.LastEvent}
}

func replyErrorOf(reply *paymentServiceReply) *replyError {
	if reply.Reply.Error != nil {
		return reply.Reply.Error
	}
	if reply.Reply.OrderStatus != nil {
		return reply.Reply.OrderStatus.Error
	}
	return nil
}

func authError(transactionID string, err *gateway.Error) gateway.AuthoriseResult {
	return gateway.AuthoriseResult{
		Outcome:       gateway.AuthoriseError,
		TransactionID: transactionID,
		Err:           err,
	}
}
