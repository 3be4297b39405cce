package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"paybridge/internal/metrics"
)

// Response is the result of a successful HTTP round trip. It lives only for
// the duration of response parsing.
type Response struct {
	StatusCode int
	Body       []byte
	Cookies    []*http.Cookie
}

// Transport performs one HTTP exchange for a gateway order. One instance per
// (gateway, operation): each carries its own read timeout and shares the
// gateway's pooled connections. No retries happen here; only the caller
// knows whether the operation is idempotent.
type Transport struct {
	gatewayName string
	operation   Operation
	client      *resty.Client
	logger      *zap.Logger
}

// NewTransport creates a transport for one (gateway, operation) pair.
func NewTransport(gatewayName string, op Operation, timeout time.Duration, logger *zap.Logger) *Transport {
	client := resty.New().
		SetTimeout(timeout).
		SetCloseConnection(false)
	client.GetClient().Transport = &http.Transport{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Transport{
		gatewayName: gatewayName,
		operation:   op,
		client:      client,
		logger:      logger,
	}
}

// Send posts the order payload and classifies the outcome. A non-200 status
// comes back as an upstream error carrying the raw body; some gateways signal
// business failure inside a 200 body, so only the adapter can decide what a
// given status means.
func (t *Transport) Send(ctx context.Context, endpoint string, account AccountContext, order Order, extraHeaders map[string]string) (*Response, *Error) {
	start := time.Now()
	resp, err := t.request(ctx, account, order.Headers, extraHeaders, order.Cookies).
		SetHeader("Content-Type", order.ContentType).
		SetBody(order.Payload).
		Post(endpoint)
	return t.finish(account, start, resp, err)
}

// Get performs a GET exchange, used by query-style operations.
func (t *Transport) Get(ctx context.Context, endpoint string, account AccountContext, extraHeaders map[string]string) (*Response, *Error) {
	start := time.Now()
	resp, err := t.request(ctx, account, nil, extraHeaders, nil).Get(endpoint)
	return t.finish(account, start, resp, err)
}

func (t *Transport) request(ctx context.Context, account AccountContext, headers, extra map[string]string, cookies []*http.Cookie) *resty.Request {
	req := t.client.R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	for k, v := range extra {
		req.SetHeader(k, v)
	}
	if len(cookies) > 0 {
		req.SetCookies(cookies)
	}
	if user := account.Credential("username"); user != "" {
		req.SetBasicAuth(user, account.Credential("password"))
	}
	return req
}

func (t *Transport) finish(account AccountContext, start time.Time, resp *resty.Response, err error) (*Response, *Error) {
	var gerr *Error
	var out *Response

	switch {
	case err != nil:
		gerr = classifyTransportError(err)
	case resp.StatusCode() != http.StatusOK:
		gerr = NewUpstreamError("unexpected HTTP status from gateway", resp.StatusCode(), string(resp.Body()))
	default:
		out = &Response{
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
			Cookies:    resp.Cookies(),
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveGatewayCall(t.gatewayName, account.AccountType, string(t.operation), elapsed)
	if gerr != nil {
		metrics.IncGatewayFailure(t.gatewayName, account.AccountType, string(t.operation))
		t.logger.Warn("gateway call failed",
			zap.String("gateway", t.gatewayName),
			zap.String("operation", string(t.operation)),
			zap.String("kind", gerr.Kind.String()),
			zap.Int("http_status", gerr.HTTPStatus),
			zap.Duration("elapsed", elapsed),
			zap.String("message", gerr.Message),
		)
	}
	return out, gerr
}

// classifyTransportError maps an I/O failure onto exactly one taxonomy kind.
func classifyTransportError(err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err.Error())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewConnectionError(urlErr.Error(), 0)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewConnectionError(opErr.Error(), 0)
	}
	return NewGenericError(err.Error())
}
