package smartpay

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
)

const Name = "smartpay"

// credential keys expected in the gateway account credentials map. The
// username and password pair is consumed by the transport for basic auth.
const (
	credMerchantAccount = "merchant_account"
)

// resultCode values returned by the synchronous API.
const (
	resultAuthorised      = "Authorised"
	resultRefused         = "Refused"
	resultRedirectShopper = "RedirectShopper"
	resultCancelled       = "Cancelled"
	resultError           = "Error"
)

type apiResponse struct {
	PspReference  string `json:"pspReference"`
	ResultCode    string `json:"resultCode"`
	RefusalReason string `json:"refusalReason"`
	Response      string `json:"response"`
	IssuerURL     string `json:"issuerUrl"`
	PaRequest     string `json:"paRequest"`
	MD            string `json:"md"`
}

// Adapter implements gateway.PaymentProvider for Smartpay.
type Adapter struct {
	cfg        config.SmartpayConfig
	transports map[gateway.Operation]*gateway.Transport
	logger     *zap.Logger
}

func New(cfg config.SmartpayConfig, logger *zap.Logger) *Adapter {
	transports := map[gateway.Operation]*gateway.Transport{}
	for _, op := range []gateway.Operation{
		gateway.OperationAuthorise,
		gateway.OperationCapture,
		gateway.OperationRefund,
		gateway.OperationCancel,
	} {
		transports[op] = gateway.NewTransport(Name, op, cfg.Timeouts.For(string(op)), logger)
	}
	return &Adapter{cfg: cfg, transports: transports, logger: logger}
}

func (a *Adapter) Name() string {
	return Name
}

func (a *Adapter) baseURL(account gateway.AccountContext) string {
	if account.IsLive() {
		return a.cfg.LiveURL
	}
	return a.cfg.TestURL
}

func (a *Adapter) endpoint(account gateway.AccountContext, path string) string {
	return strings.TrimRight(a.baseURL(account), "/") + path
}

func (a *Adapter) GenerateTransactionID() string {
	return uuid.NewString()
}

func (a *Adapter) RefundAvailability(charge *models.Charge) gateway.RefundAvailability {
	return gateway.ComputeRefundAvailability(charge)
}

func (a *Adapter) Authorise(ctx context.Context, account gateway.AccountContext, req gateway.AuthoriseRequest) gateway.AuthoriseResult {
	order, err := BuildAuthoriseOrder(account.Credential(credMerchantAccount), req)
	if err != nil {
		return authError("", gateway.NewGenericError(err.Error()))
	}

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx, a.endpoint(account, "/authorise"), account, order, nil)
	if gerr != nil {
		return authError("", gerr)
	}
	return a.interpretAuthoriseResponse(resp)
}

func (a *Adapter) Authorise3DS(ctx context.Context, account gateway.AccountContext, req gateway.Auth3DSRequest) gateway.AuthoriseResult {
	order, err := BuildAuthorise3DOrder(account.Credential(credMerchantAccount), req)
	if err != nil {
		return authError(req.TransactionID, gateway.NewGenericError(err.Error()))
	}

	resp, gerr := a.transports[gateway.OperationAuthorise].Send(ctx, a.endpoint(account, "/authorise3d"), account, order, nil)
	if gerr != nil {
		return authError(req.TransactionID, gerr)
	}
	return a.interpretAuthoriseResponse(resp)
}

func (a *Adapter) interpretAuthoriseResponse(resp *gateway.Response) gateway.AuthoriseResult {
	var body apiResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return authError("", gateway.NewMalformedResponseError(err.Error()))
	}

	switch body.ResultCode {
	case resultAuthorised:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseAuthorised, TransactionID: body.PspReference}
	case resultRefused:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseRejected, TransactionID: body.PspReference}
	case resultCancelled:
		return gateway.AuthoriseResult{Outcome: gateway.AuthoriseCancelled, TransactionID: body.PspReference}
	case resultRedirectShopper:
		return gateway.AuthoriseResult{
			Outcome:       gateway.AuthoriseRequires3DS,
			TransactionID: body.PspReference,
			Challenge: map[string]string{
				"pa_request": body.PaRequest,
				"issuer_url": body.IssuerURL,
				"md":         body.MD,
			},
		}
	case resultError:
		return authError(body.PspReference, gateway.NewGenericError("smartpay reported error: "+body.RefusalReason))
	default:
		return authError(body.PspReference, gateway.NewMalformedResponseError("unexpected resultCode "+body.ResultCode))
	}
}

// Capture submits the modification. Smartpay settles asynchronously: the
// synchronous reply only acknowledges receipt, the CAPTURE notification
// carries the outcome.
func (a *Adapter) Capture(ctx context.Context, account gateway.AccountContext, req gateway.CaptureRequest) gateway.CaptureResult {
	order, err := BuildCaptureOrder(account.Credential(credMerchantAccount), req)
	if err != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationCapture].Send(ctx, a.endpoint(account, "/capture"), account, order, nil)
	if gerr != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: gerr}
	}
	if merr := expectAck(resp, "[capture-received]"); merr != nil {
		return gateway.CaptureResult{State: gateway.CaptureFailed, Err: merr}
	}
	return gateway.CaptureResult{State: gateway.CapturePending, TransactionID: req.TransactionID}
}

func (a *Adapter) Refund(ctx context.Context, account gateway.AccountContext, req gateway.RefundRequest) gateway.RefundResult {
	order, err := BuildRefundOrder(account.Credential(credMerchantAccount), req)
	if err != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationRefund].Send(ctx, a.endpoint(account, "/refund"), account, order, nil)
	if gerr != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gerr}
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return gateway.RefundResult{State: gateway.RefundFailed, Err: gateway.NewMalformedResponseError(err.Error())}
	}
	if body.Response != "[refund-received]" {
		return gateway.RefundResult{State: gateway.RefundFailed,
			Err: gateway.NewMalformedResponseError("unexpected smartpay response " + body.Response)}
	}
	// The refund's own pspReference is what REFUND notifications carry.
	return gateway.RefundResult{State: gateway.RefundPending, ReferenceID: body.PspReference}
}

func (a *Adapter) Cancel(ctx context.Context, account gateway.AccountContext, req gateway.CancelRequest) gateway.CancelResult {
	order, err := BuildCancelOrder(account.Credential(credMerchantAccount), req)
	if err != nil {
		return gateway.CancelResult{Err: gateway.NewGenericError(err.Error())}
	}

	resp, gerr := a.transports[gateway.OperationCancel].Send(ctx, a.endpoint(account, "/cancel"), account, order, nil)
	if gerr != nil {
		return gateway.CancelResult{Err: gerr}
	}
	if merr := expectAck(resp, "[cancel-received]"); merr != nil {
		return gateway.CancelResult{Err: merr}
	}
	return gateway.CancelResult{Cancelled: true}
}

// Query is not part of the Smartpay API surface; reconciliation relies on
// notifications alone.
func (a *Adapter) Query(ctx context.Context, account gateway.AccountContext, req gateway.QueryRequest) gateway.QueryResult {
	return gateway.QueryResult{Err: gateway.NewUnsupportedOperationError(Name, gateway.OperationQuery)}
}

func expectAck(resp *gateway.Response, want string) *gateway.Error {
	var body apiResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return gateway.NewMalformedResponseError(err.Error())
	}
	if body.Response != want {
		return gateway.NewMalformedResponseError("unexpected smartpay response " + body.Response)
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
