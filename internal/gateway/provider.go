package gateway

import (
	"context"

	"paybridge/internal/models"
)

// CardDetails carries the card fields needed to authorise a payment.
type CardDetails struct {
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVC         string
	HolderName  string
	Address     string
	City        string
	Postcode    string
	CountryCode string
}

// AuthoriseRequest carries the canonical fields for an authorisation.
type AuthoriseRequest struct {
	ExternalID  string // merchant-side charge id, used for idempotency keys
	Amount      int64  // minor units
	Currency    string
	Description string
	Reference   string
	Card        *CardDetails
	ReturnURL   string // where the payer lands after a 3DS challenge
	Moto        bool
}

// Auth3DSRequest completes a previously started 3-D Secure challenge.
type Auth3DSRequest struct {
	ExternalID    string
	TransactionID string
	// ChallengeResult carries the gateway-specific continuation fields
	// (PaRes/MD for the XML acquirer, nothing for intent-based gateways).
	ChallengeResult map[string]string
	SessionCookies  map[string]string
}

// CaptureRequest captures a previously authorised charge.
type CaptureRequest struct {
	ExternalID    string
	TransactionID string
	Amount        int64
	Currency      string
}

// RefundRequest refunds part or all of a captured charge.
type RefundRequest struct {
	RefundExternalID string
	ChargeExternalID string
	TransactionID    string
	Amount           int64
	Currency         string
}

// CancelRequest cancels an authorised but uncaptured charge.
type CancelRequest struct {
	ExternalID    string
	TransactionID string
}

// QueryRequest asks the gateway for its record of a transaction.
type QueryRequest struct {
	ExternalID    string
	TransactionID string
}

// AuthoriseOutcome is the closed set of authorisation results.
type AuthoriseOutcome int

const (
	AuthoriseAuthorised AuthoriseOutcome = iota
	AuthoriseRequires3DS
	AuthoriseRejected
	AuthoriseCancelled
	AuthoriseError
)

func (o AuthoriseOutcome) String() string {
	switch o {
	case AuthoriseAuthorised:
		return "authorised"
	case AuthoriseRequires3DS:
		return "requires_3ds"
	case AuthoriseRejected:
		return "rejected"
	case AuthoriseCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// AuthoriseResult is the canonical outcome of an authorise or 3DS
// continuation call. Err is set only when Outcome is AuthoriseError.
// Challenge carries the opaque parameters the caller needs to drive the
// payer through a 3-D Secure step.
type AuthoriseResult struct {
	Outcome       AuthoriseOutcome
	TransactionID string
	Challenge     map[string]string
	Err           *Error
}

// CaptureState is the closed set of capture results.
type CaptureState int

const (
	// CaptureComplete means the gateway settled synchronously.
	CaptureComplete CaptureState = iota
	// CapturePending means the gateway accepted the capture and settles
	// asynchronously; a notification will confirm it.
	CapturePending
	CaptureFailed
)

// CaptureResult is the canonical outcome of a capture. Failure is a value,
// never a panic or error return, because capture is driven by retrying
// workers.
type CaptureResult struct {
	State         CaptureState
	TransactionID string
	Fee           *int64 // minor units, only for gateways that report one
	Err           *Error
}

// RefundState mirrors CaptureState for refunds.
type RefundState int

const (
	RefundComplete RefundState = iota
	RefundPending
	RefundFailed
)

// RefundResult is the canonical outcome of a refund.
type RefundResult struct {
	State       RefundState
	ReferenceID string // gateway refund/reference id, used to match notifications
	Err         *Error
}

// CancelResult is the canonical outcome of a cancel.
type CancelResult struct {
	Cancelled bool
	Err       *Error
}

// QueryResult reports the gateway's record of a transaction. Found is false
// when the gateway has no record at all, which callers use to distinguish
// "never reached the gateway" from "gateway says rejected".
type QueryResult struct {
	Found        bool
	NativeStatus string
	Err          *Error
}

// RefundAvailability is the closed set of refundability answers.
type RefundAvailability int

const (
	RefundAvailabilityAvailable RefundAvailability = iota
	RefundAvailabilityUnavailable
	RefundAvailabilityPending
	RefundAvailabilityFull
)

// PaymentProvider is the canonical operation set every gateway adapter
// implements. All operations are safe to call concurrently for different
// charges; adapters hold no per-call mutable state.
//
// Capture, Refund, Cancel and Query never propagate failures as Go errors:
// the classified failure travels inside the result so retrying workers can
// treat it as data.
type PaymentProvider interface {
	Name() string

	Authorise(ctx context.Context, account AccountContext, req AuthoriseRequest) AuthoriseResult
	Authorise3DS(ctx context.Context, account AccountContext, req Auth3DSRequest) AuthoriseResult
	Capture(ctx context.Context, account AccountContext, req CaptureRequest) CaptureResult
	Refund(ctx context.Context, account AccountContext, req RefundRequest) RefundResult
	Cancel(ctx context.Context, account AccountContext, req CancelRequest) CancelResult
	Query(ctx context.Context, account AccountContext, req QueryRequest) QueryResult

	// GenerateTransactionID produces the merchant-side transaction reference
	// sent to the gateway on authorise.
	GenerateTransactionID() string

	// RefundAvailability answers whether the charge can currently be
	// refunded, from its canonical status and refunded amount.
	RefundAvailability(charge *models.Charge) RefundAvailability
}

// ComputeRefundAvailability is the shared availability rule used by gateways
// that support refunds: only captured charges are refundable, and only until
// the full amount has been refunded.
func ComputeRefundAvailability(charge *models.Charge) RefundAvailability {
	switch charge.Status {
	case models.ChargeCaptured:
		if charge.RefundedAmount >= charge.Amount {
			return RefundAvailabilityFull
		}
		return RefundAvailabilityAvailable
	case models.ChargeCaptureSubmitted, models.ChargeCaptureApproved:
		return RefundAvailabilityPending
	default:
		return RefundAvailabilityUnavailable
	}
}
