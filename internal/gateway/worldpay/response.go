package worldpay

import (
	"encoding/xml"
	"fmt"
)

// paymentServiceReply mirrors the subset of the Worldpay reply schema this
// adapter reads.
type paymentServiceReply struct {
	XMLName xml.Name  `xml:"paymentService"`
	Reply   replyBody `xml:"reply"`
}

type replyBody struct {
	OrderStatus *orderStatus `xml:"orderStatus"`
	OK          *okReply     `xml:"ok"`
	Error       *replyError  `xml:"error"`
}

type orderStatus struct {
	OrderCode       string          `xml:"orderCode,attr"`
	Payment         *paymentElement `xml:"payment"`
	Request3DSecure *request3DS     `xml:"requestInfo>request3DSecure"`
	Error           *replyError     `xml:"error"`
}

type paymentElement struct {
	LastEvent string `xml:"lastEvent"`
}

type request3DS struct {
	PaRequest string `xml:"paRequest"`
	IssuerURL string `xml:"issuerURL"`
}

type okReply struct {
	CaptureReceived *modificationAck `xml:"captureReceived"`
	RefundReceived  *modificationAck `xml:"refundReceived"`
	CancelReceived  *modificationAck `xml:"cancelReceived"`
}

type modificationAck struct {
	OrderCode string `xml:"orderCode,attr"`
}

type replyError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

// Worldpay inquiry error code for an order it has no record of.
const errorCodeOrderNotFound = "5"

func (e *replyError) String() string {
	return fmt.Sprintf("worldpay error %s: %s", e.Code, e.Message)
}

func parseReply(body []byte) (*paymentServiceReply, error) {
	var reply paymentServiceReply
	if err := xml.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("parse worldpay reply: %w", err)
	}
	return &reply, nil
}

// Native authorisation events returned synchronously on authorise.
const (
	eventAuthorised = "AUTHORISED"
	eventRefused    = "REFUSED"
	eventCancelled  = "CANCELLED"
	eventError      = "ERROR"
)
