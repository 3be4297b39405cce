package gateway

import "net/http"

// Operation selects the per-operation timeout and endpoint configuration.
type Operation string

const (
	OperationAuthorise Operation = "authorise"
	OperationCapture   Operation = "capture"
	OperationRefund    Operation = "refund"
	OperationCancel    Operation = "cancel"
	OperationQuery     Operation = "query"
)

// Order is the gateway-specific wire payload produced by a builder and
// consumed by the transport. It is a plain value: fully determined by its
// inputs, safe to rebuild and resend.
type Order struct {
	Operation   Operation
	Payload     string
	ContentType string
	Headers     map[string]string
	Cookies     []*http.Cookie
}
