package worldpay

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"paybridge/internal/gateway"
	"paybridge/internal/models"
	"paybridge/internal/notification"
)

// notifyDocument mirrors the Worldpay order status event notification.
type notifyDocument struct {
	XMLName xml.Name   `xml:"paymentService"`
	Notify  notifyBody `xml:"notify"`
}

type notifyBody struct {
	Events []orderStatusEvent `xml:"orderStatusEvent"`
}

type orderStatusEvent struct {
	OrderCode string          `xml:"orderCode,attr"`
	Payment   *paymentElement `xml:"payment"`
	Journal   *journal        `xml:"journal"`
}

type journal struct {
	JournalType string             `xml:"journalType,attr"`
	References  []journalReference `xml:"journalReference"`
}

type journalReference struct {
	Type      string `xml:"type,attr"`
	Reference string `xml:"reference,attr"`
}

// Notifications implements notification.GatewayNotifications for Worldpay.
// Worldpay callbacks carry no signature; they are authenticated upstream by
// the acquirer IP allowlist, so Verify is structural only.
type Notifications struct {
	mapper *gateway.StatusMapper
}

func NewNotifications() *Notifications {
	return &Notifications{mapper: buildStatusMapper()}
}

func (n *Notifications) Name() string {
	return Name
}

func (n *Notifications) Verify(body []byte, _ string) bool {
	return len(body) > 0
}

func (n *Notifications) Mapper() *gateway.StatusMapper {
	return n.mapper
}

// Parse extracts the order status events from the notification document.
// The journal type is the native status; refund events carry the refund
// reference in a journalReference element.
func (n *Notifications) Parse(body []byte) ([]notification.Envelope, error) {
	var doc notifyDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse worldpay notification: %w", err)
	}
	if len(doc.Notify.Events) == 0 {
		return nil, fmt.Errorf("worldpay notification has no orderStatusEvent")
	}

	out := make([]notification.Envelope, 0, len(doc.Notify.Events))
	for _, event := range doc.Notify.Events {
		env := notification.Envelope{
			TransactionID: event.OrderCode,
			Raw:           body,
		}
		if event.Journal != nil {
			env.EventType = event.Journal.JournalType
			env.NativeStatus = event.Journal.JournalType
			for _, ref := range event.Journal.References {
				if ref.Type == "refund" {
					env.RefundReference = ref.Reference
				}
			}
		} else if event.Payment != nil {
			env.EventType = event.Payment.LastEvent
			env.NativeStatus = event.Payment.LastEvent
		}
		out = append(out, env)
	}
	return out, nil
}

// buildStatusMapper declares the Worldpay notification vocabulary. Journal
// types with no rule are deliberately inert: the engine answers Unknown and
// the reconciler drops them.
func buildStatusMapper() *gateway.StatusMapper {
	return gateway.NewStatusMapperBuilder().
		// Authorisation outcomes are handled synchronously; the async echo
		// carries no new information.
		Ignore("SENT_FOR_AUTHORISATION").
		Ignore("AUTHORISED").
		// Settlement events trail capture and change nothing here.
		Ignore("SETTLED").
		Ignore("SETTLED_BY_MERCHANT").
		MapCharge("CAPTURED", models.ChargeCaptured).
		MapCharge("CAPTURE_FAILED", models.ChargeCaptureError).
		// A REFUSED journal only matters while the payer is mid-challenge;
		// after a synchronous decline the charge is already rejected.
		MapChargeWhen("REFUSED", models.ChargeAwaiting3DS, models.ChargeAuthorisationRejected).
		MapChargeWhen("CANCELLED", models.ChargeAuthorisationSuccess, models.ChargeCancelled).
		MapCharge("EXPIRED", models.ChargeExpired).
		MapRefund("REFUNDED", models.Refunded).
		MapRefund("REFUNDED_BY_MERCHANT", models.Refunded).
		MapRefund("REFUND_FAILED", models.RefundError).
		Build()
}

func cookie(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: value}
}
