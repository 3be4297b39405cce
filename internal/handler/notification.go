// Package handler holds the thin HTTP layer: it moves bytes and headers
// between echo and the reconciliation pipeline, and translates pipeline
// outcomes into the responses each gateway expects.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paybridge/internal/gateway/smartpay"
	"paybridge/internal/gateway/stripe"
	"paybridge/internal/gateway/worldpay"
	"paybridge/internal/notification"
)

// Acknowledgement bodies the gateways expect on successful receipt.
const (
	WorldpayAck = "[OK]"
	SmartpayAck = "[accepted]"
	StripeAck   = ""
)

// NotificationHandler receives gateway webhooks and hands them to the
// reconciler. Response codes matter: a 2xx stops the gateway's redelivery,
// anything else keeps it retrying.
type NotificationHandler struct {
	reconciler *notification.Reconciler
	logger     *zap.Logger
}

func NewNotificationHandler(reconciler *notification.Reconciler, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{reconciler: reconciler, logger: logger}
}

func (h *NotificationHandler) Worldpay(c echo.Context) error {
	// Worldpay payloads are unsigned; the source allowlist upstream is the
	// authentication.
	return h.handle(c, worldpay.Name, "", WorldpayAck)
}

func (h *NotificationHandler) Stripe(c echo.Context) error {
	return h.handle(c, stripe.Name, c.Request().Header.Get("Stripe-Signature"), StripeAck)
}

func (h *NotificationHandler) Smartpay(c echo.Context) error {
	return h.handle(c, smartpay.Name, c.Request().Header.Get(echo.HeaderAuthorization), SmartpayAck)
}

func (h *NotificationHandler) handle(c echo.Context, gatewayName, authHeader, ack string) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn("failed to read notification body",
			zap.String("gateway", gatewayName),
			zap.Error(err))
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.reconciler.Handle(c.Request().Context(), gatewayName, body, authHeader); err != nil {
		if errors.Is(err, notification.ErrAuthentication) {
			return c.NoContent(http.StatusUnauthorized)
		}
		// Transient persistence failure: answer 503 so the gateway
		// redelivers, the applicability gate makes the retry safe.
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.String(http.StatusOK, ack)
}
