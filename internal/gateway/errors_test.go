package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"timeout", NewTimeoutError("read timeout"), true},
		{"connection", NewConnectionError("connection refused", 0), true},
		{"upstream 503", NewUpstreamError("unavailable", 503, ""), true},
		{"upstream 500", NewUpstreamError("boom", 500, ""), true},
		{"upstream 404", NewUpstreamError("not found", 404, ""), false},
		{"upstream 402", NewUpstreamError("declined", 402, ""), false},
		{"generic", NewGenericError("oops"), false},
		{"malformed response", NewMalformedResponseError("bad xml"), false},
		{"unsupported operation", NewUnsupportedOperationError("x", OperationQuery), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable())
		})
	}
}

func TestUpstreamErrorCarriesStatusFamily(t *testing.T) {
	err := NewUpstreamError("bad gateway", 502, "<html>502</html>")
	assert.Equal(t, 502, err.HTTPStatus)
	assert.Equal(t, 5, err.StatusFamily)
	assert.Equal(t, "<html>502</html>", err.Body)
	assert.Contains(t, err.Error(), "HTTP 502")
}
