package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paybridge/internal/config"
	"paybridge/internal/gateway/smartpay"
	"paybridge/internal/gateway/stripe"
	"paybridge/internal/gateway/worldpay"
	"paybridge/internal/handler"
	"paybridge/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	cfg *config.Config,
	notifications *handler.NotificationHandler,
	deduper middleware.NotificationDeduper,
) {
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// One route per gateway. The dedup middleware short-circuits
	// byte-identical redeliveries with the gateway's own acknowledgement.
	worldpayGroup := e.Group("/notifications/worldpay")
	worldpayGroup.Use(middleware.SourceIPAllowlist(cfg.Gateways.Worldpay.NotificationCIDRs))
	worldpayGroup.Use(middleware.NotificationDedup(deduper, worldpay.Name, handler.WorldpayAck))
	worldpayGroup.POST("", notifications.Worldpay)

	stripeGroup := e.Group("/notifications/stripe")
	stripeGroup.Use(middleware.NotificationDedup(deduper, stripe.Name, handler.StripeAck))
	stripeGroup.POST("", notifications.Stripe)

	smartpayGroup := e.Group("/notifications/smartpay")
	smartpayGroup.Use(middleware.NotificationDedup(deduper, smartpay.Name, handler.SmartpayAck))
	smartpayGroup.POST("", notifications.Smartpay)
}
