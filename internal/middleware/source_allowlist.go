package middleware

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SourceIPAllowlist restricts a route to the given CIDR ranges. Gateways
// that post unsigned notifications publish the ranges they send from; this
// is the only authentication those notifications get. An empty list allows
// everything, for local development.
func SourceIPAllowlist(cidrs []string) echo.MiddlewareFunc {
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, network)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(nets) == 0 {
				return next(c)
			}
			ip := net.ParseIP(c.RealIP())
			if ip != nil {
				for _, network := range nets {
					if network.Contains(ip) {
						return next(c)
					}
				}
			}
			return c.String(http.StatusForbidden, "Forbidden")
		}
	}
}
