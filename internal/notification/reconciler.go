package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paybridge/internal/gateway"
	"paybridge/internal/models"
)

// ErrAuthentication marks a notification that failed signature or credential
// verification. The HTTP layer translates it into an error status so the
// gateway does not consider the webhook delivered.
var ErrAuthentication = errors.New("notification authentication failed")

// Envelope is one logical notification after gateway-specific parsing.
type Envelope struct {
	EventType       string
	NativeStatus    string
	TransactionID   string
	RefundReference string // set when the event concerns a refund
	Raw             []byte
}

// GatewayNotifications is implemented once per gateway: it authenticates the
// raw callback, splits it into logical envelopes, and owns the status rule
// table used to interpret them.
type GatewayNotifications interface {
	Name() string
	// Verify authenticates the raw payload. The header is whatever the
	// gateway sends for that purpose: an HMAC signature, a basic-auth
	// header, or nothing for gateways authenticated upstream.
	Verify(body []byte, authHeader string) bool
	// Parse splits the payload into logical notifications. One physical
	// delivery may fan out into many.
	Parse(body []byte) ([]Envelope, error)
	Mapper() *gateway.StatusMapper
}

// ChargeStore is the narrow charge collaborator the reconciler needs.
type ChargeStore interface {
	FindByGatewayTransactionID(ctx context.Context, gatewayName, transactionID string) (*models.Charge, error)
	TransitionStatus(ctx context.Context, chargeID uint, from, to models.ChargeStatus, at time.Time) (bool, error)
}

// RefundStore is the narrow refund collaborator the reconciler needs.
type RefundStore interface {
	FindByGatewayReference(ctx context.Context, gatewayName, referenceID string) (*models.Refund, error)
	TransitionStatus(ctx context.Context, refundID uint, from, to models.RefundStatus, at time.Time) (bool, error)
}

// OutcomeLog records the outcome of every processed notification.
type OutcomeLog interface {
	Record(ctx context.Context, gatewayName, transactionID, nativeStatus, outcome, detail string) error
}

// Reconciler applies asynchronous gateway callbacks to previously created
// charges and refunds: Received -> Authenticated -> Parsed -> Applicable,
// Ignored or Rejected. Duplicate and out-of-order deliveries are defused by
// the applicability gate, a conditional check against the charge's current
// persisted status.
type Reconciler struct {
	handlers map[string]GatewayNotifications
	charges  ChargeStore
	refunds  RefundStore
	outcomes OutcomeLog
	logger   *zap.Logger
}

func NewReconciler(charges ChargeStore, refunds RefundStore, outcomes OutcomeLog, logger *zap.Logger, handlers ...GatewayNotifications) *Reconciler {
	m := make(map[string]GatewayNotifications, len(handlers))
	for _, h := range handlers {
		m[h.Name()] = h
	}
	return &Reconciler{
		handlers: m,
		charges:  charges,
		refunds:  refunds,
		outcomes: outcomes,
		logger:   logger,
	}
}

// Handle processes one physical notification delivery. It returns
// ErrAuthentication on verification failure, a transient error when applying
// a status could not be persisted (the gateway should retry delivery), and
// nil otherwise — parse failures, unmatched charges and inapplicable events
// are logged and acknowledged so the gateway stops retrying payloads this
// system will never act on.
func (r *Reconciler) Handle(ctx context.Context, gatewayName string, body []byte, authHeader string) error {
	h, ok := r.handlers[gatewayName]
	if !ok {
		return fmt.Errorf("no notification handler for gateway %q", gatewayName)
	}

	// Fail closed before any parsing or lookup happens.
	if !h.Verify(body, authHeader) {
		r.logger.Warn("notification rejected: authentication failed",
			zap.String("gateway", gatewayName))
		r.record(ctx, gatewayName, "", "", models.NotificationRejected, "authentication failed")
		return ErrAuthentication
	}

	envelopes, err := h.Parse(body)
	if err != nil {
		r.logger.Warn("notification dropped: malformed payload",
			zap.String("gateway", gatewayName),
			zap.Error(err))
		r.record(ctx, gatewayName, "", "", models.NotificationParseFailed, err.Error())
		return nil
	}

	// Each logical item goes through the pipeline independently; a failure
	// in one must not abort the others.
	var transient error
	for _, env := range envelopes {
		if err := r.process(ctx, h, env); err != nil {
			r.logger.Error("notification apply failed",
				zap.String("gateway", gatewayName),
				zap.String("transaction_id", env.TransactionID),
				zap.String("native_status", env.NativeStatus),
				zap.Error(err))
			transient = err
		}
	}
	return transient
}

func (r *Reconciler) process(ctx context.Context, h GatewayNotifications, env Envelope) error {
	gatewayName := h.Name()

	if env.TransactionID == "" {
		r.logger.Warn("notification dropped: no transaction id",
			zap.String("gateway", gatewayName),
			zap.String("event_type", env.EventType))
		r.record(ctx, gatewayName, "", env.NativeStatus, models.NotificationParseFailed, "missing transaction id")
		return nil
	}

	charge, err := r.charges.FindByGatewayTransactionID(ctx, gatewayName, env.TransactionID)
	if err != nil {
		return fmt.Errorf("charge lookup: %w", err)
	}
	if charge == nil {
		// Expected for charges owned elsewhere or long expunged.
		r.logger.Info("notification dropped: charge not found",
			zap.String("gateway", gatewayName),
			zap.String("transaction_id", env.TransactionID))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationNotFound, "")
		return nil
	}

	interpreted := h.Mapper().Interpret(env.NativeStatus, charge.Status)
	switch interpreted.Kind {
	case gateway.InterpretedIgnored:
		r.logger.Debug("notification ignored by rule table",
			zap.String("gateway", gatewayName),
			zap.String("native_status", env.NativeStatus))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationIgnored, "")
		return nil

	case gateway.InterpretedUnknown:
		// Error level: operators need to notice gateway vocabulary drift.
		r.logger.Error("notification status not recognised",
			zap.String("gateway", gatewayName),
			zap.String("native_status", env.NativeStatus),
			zap.String("transaction_id", env.TransactionID))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationUnknownStatus, "")
		return nil

	case gateway.InterpretedCharge:
		return r.applyCharge(ctx, gatewayName, env, charge, interpreted.ChargeStatus)

	case gateway.InterpretedRefund:
		return r.applyRefund(ctx, gatewayName, env, interpreted.RefundStatus)
	}
	return nil
}

func (r *Reconciler) applyCharge(ctx context.Context, gatewayName string, env Envelope, charge *models.Charge, to models.ChargeStatus) error {
	if !models.CanTransition(charge.Status, to) {
		// The idempotency and out-of-order defense: a re-delivered or late
		// notification for a charge that has moved on lands here.
		r.logger.Info("notification not applicable for current charge status",
			zap.String("gateway", gatewayName),
			zap.String("transaction_id", env.TransactionID),
			zap.String("current_status", string(charge.Status)),
			zap.String("mapped_status", string(to)))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationNotApplicable,
			fmt.Sprintf("charge in %s", charge.Status))
		return nil
	}

	applied, err := r.charges.TransitionStatus(ctx, charge.ID, charge.Status, to, time.Now())
	if err != nil {
		return fmt.Errorf("charge transition: %w", err)
	}
	if !applied {
		// Lost the race to a concurrent notification; that one won legally.
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationNotApplicable, "charge moved on concurrently")
		return nil
	}

	r.logger.Info("notification applied",
		zap.String("gateway", gatewayName),
		zap.String("transaction_id", env.TransactionID),
		zap.String("from", string(charge.Status)),
		zap.String("to", string(to)))
	r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationApplied, string(to))
	return nil
}

func (r *Reconciler) applyRefund(ctx context.Context, gatewayName string, env Envelope, to models.RefundStatus) error {
	reference := env.RefundReference
	if reference == "" {
		reference = env.TransactionID
	}

	refund, err := r.refunds.FindByGatewayReference(ctx, gatewayName, reference)
	if err != nil {
		return fmt.Errorf("refund lookup: %w", err)
	}
	if refund == nil {
		r.logger.Info("notification dropped: refund not found",
			zap.String("gateway", gatewayName),
			zap.String("reference", reference))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationNotFound, "refund "+reference)
		return nil
	}

	if !models.CanTransitionRefund(refund.Status, to) {
		r.logger.Info("notification not applicable for current refund status",
			zap.String("gateway", gatewayName),
			zap.String("reference", reference),
			zap.String("current_status", string(refund.Status)),
			zap.String("mapped_status", string(to)))
		r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, models.NotificationNotApplicable,
			fmt.Sprintf("refund in %s", refund.Status))
		return nil
	}

	applied, err := r.refunds.TransitionStatus(ctx, refund.ID, refund.Status, to, time.Now())
	if err != nil {
		return fmt.Errorf("refund transition: %w", err)
	}
	outcome := models.NotificationApplied
	if !applied {
		outcome = models.NotificationNotApplicable
	}
	r.record(ctx, gatewayName, env.TransactionID, env.NativeStatus, outcome, string(to))
	return nil
}

// record persists the outcome; log failures are reported but never block the
// pipeline.
func (r *Reconciler) record(ctx context.Context, gatewayName, transactionID, nativeStatus, outcome, detail string) {
	if r.outcomes == nil {
		return
	}
	if err := r.outcomes.Record(ctx, gatewayName, transactionID, nativeStatus, outcome, detail); err != nil {
		r.logger.Warn("failed to record notification outcome", zap.Error(err))
	}
}
