package smartpay

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
	"paybridge/internal/notification"
)

// notificationBatch is the document Smartpay posts: a batch of independent
// items, each reporting one event for one payment.
type notificationBatch struct {
	Live              string `json:"live"`
	NotificationItems []struct {
		Item notificationItem `json:"NotificationRequestItem"`
	} `json:"notificationItems"`
}

type notificationItem struct {
	EventCode         string `json:"eventCode"`
	Success           string `json:"success"`
	PspReference      string `json:"pspReference"`
	OriginalReference string `json:"originalReference"`
	MerchantReference string `json:"merchantReference"`
	Reason            string `json:"reason"`
}

// Notifications implements notification.GatewayNotifications for Smartpay.
// Authentication is the basic-auth pair configured for the notification
// endpoint, not the API credentials.
type Notifications struct {
	user     string
	password string
	mapper   *gateway.StatusMapper
}

func NewNotifications(cfg config.SmartpayConfig) *Notifications {
	return &Notifications{
		user:     cfg.NotificationUser,
		password: cfg.NotificationPassword,
		mapper:   buildStatusMapper(),
	}
}

func (n *Notifications) Name() string {
	return Name
}

// Verify checks the Authorization header against the configured basic-auth
// credentials in constant time.
func (n *Notifications) Verify(body []byte, authHeader string) bool {
	if n.user == "" {
		return false
	}
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, prefix))
	if err != nil {
		return false
	}
	want := []byte(n.user + ":" + n.password)
	return subtle.ConstantTimeCompare(decoded, want) == 1
}

func (n *Notifications) Mapper() *gateway.StatusMapper {
	return n.mapper
}

// Parse fans the batch out into independent logical notifications. The
// native token composes event code and success flag, because REFUND:true
// and REFUND:false mean opposite things.
func (n *Notifications) Parse(body []byte) ([]notification.Envelope, error) {
	var batch notificationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("parse smartpay notification batch: %w", err)
	}
	if len(batch.NotificationItems) == 0 {
		return nil, fmt.Errorf("smartpay notification batch is empty")
	}

	envelopes := make([]notification.Envelope, 0, len(batch.NotificationItems))
	for _, wrapped := range batch.NotificationItems {
		item := wrapped.Item
		env := notification.Envelope{
			EventType:     item.EventCode,
			NativeStatus:  item.EventCode + ":" + item.Success,
			TransactionID: item.PspReference,
			Raw:           body,
		}
		// Modification events reference the original payment; their own
		// pspReference identifies the modification itself.
		if item.OriginalReference != "" {
			env.TransactionID = item.OriginalReference
		}
		if item.EventCode == "REFUND" {
			env.RefundReference = item.PspReference
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

func buildStatusMapper() *gateway.StatusMapper {
	return gateway.NewStatusMapperBuilder().
		// AUTHORISATION events matter only while the payer is mid-challenge;
		// synchronous authorisations already settled the status.
		MapChargeWhen("AUTHORISATION:true", models.ChargeAwaiting3DS, models.ChargeAuthorisationSuccess).
		MapChargeWhen("AUTHORISATION:false", models.ChargeAwaiting3DS, models.ChargeAuthorisationRejected).
		MapCharge("CAPTURE:true", models.ChargeCaptured).
		MapCharge("CAPTURE:false", models.ChargeCaptureError).
		MapCharge("CANCELLATION:true", models.ChargeCancelled).
		MapRefund("REFUND:true", models.Refunded).
		MapRefund("REFUND:false", models.RefundError).
		Ignore("REPORT_AVAILABLE:true").
		Build()
}
