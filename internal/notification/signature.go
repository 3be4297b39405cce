package notification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VerifySignature checks a timestamped HMAC-SHA256 webhook signature header
// of the form "t=<unix>,v1=<hex>[,v1=<hex>...]" against a list of signing
// secrets. The signed content is "<t>.<payload>". Any configured secret may
// match, so two secrets can stay valid at once during rotation. Timestamps
// outside the tolerance window fail, which bounds replay.
func VerifySignature(payload []byte, header string, secrets []string, tolerance time.Duration, now time.Time) bool {
	if header == "" || len(secrets) == 0 {
		return false
	}

	var timestamp int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return false
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return false
	}

	signed := fmt.Sprintf("%d.%s", timestamp, payload)
	for _, secret := range secrets {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(signed))
		expected := hex.EncodeToString(mac.Sum(nil))
		for _, candidate := range candidates {
			if hmac.Equal([]byte(expected), []byte(candidate)) {
				return true
			}
		}
	}
	return false
}

// SignPayload produces a signature header for a payload, used by tests and
// by the sandbox tooling to exercise the webhook endpoints.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
