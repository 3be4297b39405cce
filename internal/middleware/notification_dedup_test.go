package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperSeen(t *testing.T) {
	d := newMemoryNotificationDeduper(time.Minute)
	ctx := context.Background()

	dup, err := d.Seen(ctx, "worldpay", []byte("payload-a"))
	require.NoError(t, err)
	assert.False(t, dup, "Seen must not record anything by itself")

	require.NoError(t, d.MarkSeen(ctx, "worldpay", []byte("payload-a")))
	dup, err = d.Seen(ctx, "worldpay", []byte("payload-a"))
	require.NoError(t, err)
	assert.True(t, dup)

	// Different gateway or different payload is a different delivery.
	dup, _ = d.Seen(ctx, "stripe", []byte("payload-a"))
	assert.False(t, dup)
	dup, _ = d.Seen(ctx, "worldpay", []byte("payload-b"))
	assert.False(t, dup)
}

func TestMemoryDeduperExpiry(t *testing.T) {
	d := newMemoryNotificationDeduper(time.Nanosecond)
	ctx := context.Background()

	require.NoError(t, d.MarkSeen(ctx, "worldpay", []byte("payload-a")))
	time.Sleep(time.Millisecond)

	dup, err := d.Seen(ctx, "worldpay", []byte("payload-a"))
	require.NoError(t, err)
	assert.False(t, dup, "expired entries are forgotten")
}

func TestNewNotificationDeduperFallsBackWithoutRedis(t *testing.T) {
	d, err := NewNotificationDeduper("", "", 0, time.Minute)
	require.NoError(t, err)
	_, ok := d.(*memoryNotificationDeduper)
	assert.True(t, ok)
}

func dedupRequest(t *testing.T, mw echo.MiddlewareFunc, body string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/notifications/worldpay", strings.NewReader(body))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, mw(handler)(c))
	return rec
}

func TestNotificationDedupShortCircuitsRedelivery(t *testing.T) {
	mw := NotificationDedup(newMemoryNotificationDeduper(time.Minute), "worldpay", "[OK]")

	calls := 0
	handler := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "[OK]")
	}

	rec := dedupRequest(t, mw, "<paymentService/>", handler)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = dedupRequest(t, mw, "<paymentService/>", handler)
	assert.Equal(t, 1, calls, "redelivery must not hit the pipeline again")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[OK]", rec.Body.String(), "the gateway still gets its acknowledgement")
}

func TestNotificationDedupRedeliversAfterTransientFailure(t *testing.T) {
	mw := NotificationDedup(newMemoryNotificationDeduper(time.Minute), "worldpay", "[OK]")

	// First attempt fails transiently; the 503 asks the gateway to retry.
	calls := 0
	handler := func(c echo.Context) error {
		calls++
		if calls == 1 {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.String(http.StatusOK, "[OK]")
	}

	rec := dedupRequest(t, mw, "<paymentService/>", handler)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = dedupRequest(t, mw, "<paymentService/>", handler)
	assert.Equal(t, 2, calls, "redelivery after a transient failure must reach the pipeline")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Only the acknowledged delivery is remembered.
	rec = dedupRequest(t, mw, "<paymentService/>", handler)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "[OK]", rec.Body.String())
}

func TestNotificationDedupPassesBodyThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("payload"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotBody string
	mw := NotificationDedup(newMemoryNotificationDeduper(time.Minute), "stripe", "")
	handler := mw(func(c echo.Context) error {
		buf := new(strings.Builder)
		_, err := io.Copy(buf, c.Request().Body)
		require.NoError(t, err)
		gotBody = buf.String()
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, handler(c))
	assert.Equal(t, "payload", gotBody, "the handler must see the full body after the dedup read")
}

func TestNotificationDedupNilDeduper(t *testing.T) {
	mw := NotificationDedup(nil, "worldpay", "[OK]")
	reached := false
	dedupRequest(t, mw, "<paymentService/>", func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	assert.True(t, reached)
}
