package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// NotificationDeduper tracks acknowledged notification bodies so gateway
// retries of an already-processed webhook are answered without being
// reprocessed. The status transition gate stays the correctness backstop;
// this is only a cheap first filter.
type NotificationDeduper interface {
	// Seen reports whether the body was already acknowledged. It records
	// nothing.
	Seen(ctx context.Context, gateway string, body []byte) (bool, error)
	// MarkSeen remembers the body as acknowledged for the dedup TTL.
	MarkSeen(ctx context.Context, gateway string, body []byte) error
}

type redisNotificationDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisNotificationDeduper) key(gateway string, body []byte) string {
	return d.prefix + ":" + gateway + ":" + bodyDigest(body)
}

func (d *redisNotificationDeduper) Seen(ctx context.Context, gateway string, body []byte) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(gateway, body)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisNotificationDeduper) MarkSeen(ctx context.Context, gateway string, body []byte) error {
	return d.client.Set(ctx, d.key(gateway, body), "1", d.ttl).Err()
}

type memoryNotificationDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryNotificationDeduper(ttl time.Duration) *memoryNotificationDeduper {
	now := time.Now()
	return &memoryNotificationDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryNotificationDeduper) Seen(_ context.Context, gateway string, body []byte) (bool, error) {
	key := gateway + ":" + bodyDigest(body)

	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[key]
	return ok && exp.After(time.Now()), nil
}

func (d *memoryNotificationDeduper) MarkSeen(_ context.Context, gateway string, body []byte) error {
	key := gateway + ":" + bodyDigest(body)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}
	return nil
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// NewNotificationDeduper builds a Redis deduper and falls back to in-memory
// on connection failure.
func NewNotificationDeduper(addr, pass string, db int, ttl time.Duration) (NotificationDeduper, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if addr == "" {
		return newMemoryNotificationDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryNotificationDeduper(ttl), err
	}

	return &redisNotificationDeduper{
		client: client,
		prefix: "notif",
		ttl:    ttl,
	}, nil
}

// NotificationDedup short-circuits byte-identical webhook re-deliveries with
// the acknowledgement body the gateway expects. A delivery is remembered only
// after the pipeline acknowledged it with a 2xx: a 503 asks the gateway to
// redeliver, and that redelivery must reach the pipeline again.
func NotificationDedup(deduper NotificationDeduper, gateway, ackBody string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}

			req := c.Request()
			if req.Body == nil {
				return next(c)
			}

			rawBody, err := io.ReadAll(req.Body)
			if err != nil {
				return next(c)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(rawBody))
			if len(rawBody) == 0 {
				return next(c)
			}

			isDuplicate, err := deduper.Seen(req.Context(), gateway, rawBody)
			if err != nil {
				// Dedup is best effort; the applicability gate makes the
				// replayed notification inert anyway.
				return next(c)
			}
			if isDuplicate {
				return c.String(http.StatusOK, ackBody)
			}

			if err := next(c); err != nil {
				return err
			}
			if status := c.Response().Status; status >= 200 && status < 300 {
				// Best effort; a failed write only costs duplicate work.
				_ = deduper.MarkSeen(req.Context(), gateway, rawBody)
			}
			return nil
		}
	}
}
