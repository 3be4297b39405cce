package worldpay

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"text/template"

	"paybridge/internal/gateway"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE paymentService PUBLIC "-//WorldPay//DTD WorldPay PaymentService v1//EN" "http://dtd.worldpay.com/paymentService_v1.dtd">
`

// Per-operation payload templates. Every substituted value is XML-escaped
// before it reaches the template, so the templates stay plain text.
var (
	authoriseTemplate = template.Must(template.New("authorise").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <submit>
    <order orderCode="{{.TransactionID}}">
      <description>{{.Description}}</description>
      <amount currencyCode="{{.Currency}}" exponent="2" value="{{.Amount}}"/>
      <paymentDetails>
        <CARD-SSL>
          <cardNumber>{{.CardNumber}}</cardNumber>
          <expiryDate>
            <date month="{{.ExpiryMonth}}" year="{{.ExpiryYear}}"/>
          </expiryDate>
          <cardHolderName>{{.HolderName}}</cardHolderName>
          <cvc>{{.CVC}}</cvc>
          <cardAddress>
            <address>
              <address1>{{.Address}}</address1>
              <city>{{.City}}</city>
              <postalCode>{{.Postcode}}</postalCode>
              <countryCode>{{.CountryCode}}</countryCode>
            </address>
          </cardAddress>
        </CARD-SSL>{{if .SessionID}}
        <session id="{{.SessionID}}"/>{{end}}
      </paymentDetails>
    </order>
  </submit>
</paymentService>
`))

	auth3dsTemplate = template.Must(template.New("auth3ds").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <submit>
    <order orderCode="{{.TransactionID}}">
      <info3DSecure>
        <paResponse>{{.PaResponse}}</paResponse>
      </info3DSecure>
      <session id="{{.SessionID}}"/>
    </order>
  </submit>
</paymentService>
`))

	captureTemplate = template.Must(template.New("capture").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <modify>
    <orderModification orderCode="{{.TransactionID}}">
      <capture>
        <amount currencyCode="{{.Currency}}" exponent="2" value="{{.Amount}}"/>
      </capture>
    </orderModification>
  </modify>
</paymentService>
`))

	refundTemplate = template.Must(template.New("refund").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <modify>
    <orderModification orderCode="{{.TransactionID}}">
      <refund reference="{{.Reference}}">
        <amount currencyCode="{{.Currency}}" exponent="2" value="{{.Amount}}"/>
      </refund>
    </orderModification>
  </modify>
</paymentService>
`))

	cancelTemplate = template.Must(template.New("cancel").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <modify>
    <orderModification orderCode="{{.TransactionID}}">
      <cancel/>
    </orderModification>
  </modify>
</paymentService>
`))

	inquiryTemplate = template.Must(template.New("inquiry").Parse(xmlHeader + `<paymentService version="1.4" merchantCode="{{.MerchantCode}}">
  <inquiry>
    <orderInquiry orderCode="{{.TransactionID}}"/>
  </inquiry>
</paymentService>
`))
)

// AuthoriseOrderBuilder assembles the authorise payload. Build is pure: the
// same inputs always produce byte-identical XML.
type AuthoriseOrderBuilder struct {
	merchantCode  string
	transactionID string
	description   string
	currency      string
	amount        int64
	card          gateway.CardDetails
	sessionID     string
}

func NewAuthoriseOrderBuilder() *AuthoriseOrderBuilder {
	return &AuthoriseOrderBuilder{}
}

func (b *AuthoriseOrderBuilder) WithMerchantCode(code string) *AuthoriseOrderBuilder {
	b.merchantCode = code
	return b
}

func (b *AuthoriseOrderBuilder) WithTransactionID(id string) *AuthoriseOrderBuilder {
	b.transactionID = id
	return b
}

func (b *AuthoriseOrderBuilder) WithDescription(d string) *AuthoriseOrderBuilder {
	b.description = d
	return b
}

func (b *AuthoriseOrderBuilder) WithAmount(amount int64, currency string) *AuthoriseOrderBuilder {
	b.amount = amount
	b.currency = currency
	return b
}

func (b *AuthoriseOrderBuilder) WithCard(card gateway.CardDetails) *AuthoriseOrderBuilder {
	b.card = card
	return b
}

func (b *AuthoriseOrderBuilder) WithSessionID(id string) *AuthoriseOrderBuilder {
	b.sessionID = id
	return b
}

func (b *AuthoriseOrderBuilder) Build() (gateway.Order, error) {
	if b.merchantCode == "" || b.transactionID == "" {
		return gateway.Order{}, fmt.Errorf("worldpay authorise order requires merchant code and transaction id")
	}
	if b.card.Number == "" {
		return gateway.Order{}, fmt.Errorf("worldpay authorise order requires card details")
	}

	payload, err := render(authoriseTemplate, map[string]string{
		"MerchantCode":  escape(b.merchantCode),
		"TransactionID": escape(b.transactionID),
		"Description":   escape(b.description),
		"Currency":      escape(b.currency),
		"Amount":        strconv.FormatInt(b.amount, 10),
		"CardNumber":    escape(b.card.Number),
		"ExpiryMonth":   escape(b.card.ExpiryMonth),
		"ExpiryYear":    escape(b.card.ExpiryYear),
		"HolderName":    escape(b.card.HolderName),
		"CVC":           escape(b.card.CVC),
		"Address":       escape(b.card.Address),
		"City":          escape(b.card.City),
		"Postcode":      escape(b.card.Postcode),
		"CountryCode":   escape(b.card.CountryCode),
		"SessionID":     escape(b.sessionID),
	})
	if err != nil {
		return gateway.Order{}, err
	}
	return newOrder(gateway.OperationAuthorise, payload), nil
}

// Auth3DSOrderBuilder assembles the 3-D Secure continuation payload.
type Auth3DSOrderBuilder struct {
	merchantCode  string
	transactionID string
	paResponse    string
	sessionID     string
}

func NewAuth3DSOrderBuilder() *Auth3DSOrderBuilder {
	return &Auth3DSOrderBuilder{}
}

func (b *Auth3DSOrderBuilder) WithMerchantCode(code string) *Auth3DSOrderBuilder {
	b.merchantCode = code
	return b
}

func (b *Auth3DSOrderBuilder) WithTransactionID(id string) *Auth3DSOrderBuilder {
	b.transactionID = id
	return b
}

func (b *Auth3DSOrderBuilder) WithPaResponse(paRes string) *Auth3DSOrderBuilder {
	b.paResponse = paRes
	return b
}

func (b *Auth3DSOrderBuilder) WithSessionID(id string) *Auth3DSOrderBuilder {
	b.sessionID = id
	return b
}

func (b *Auth3DSOrderBuilder) Build() (gateway.Order, error) {
	if b.transactionID == "" || b.paResponse == "" {
		return gateway.Order{}, fmt.Errorf("worldpay 3ds order requires transaction id and paResponse")
	}
	payload, err := render(auth3dsTemplate, map[string]string{
		"MerchantCode":  escape(b.merchantCode),
		"TransactionID": escape(b.transactionID),
		"PaResponse":    escape(b.paResponse),
		"SessionID":     escape(b.sessionID),
	})
	if err != nil {
		return gateway.Order{}, err
	}
	return newOrder(gateway.OperationAuthorise, payload), nil
}

// buildModifyOrder covers capture, refund and cancel, which share the
// orderModification shape.
func buildModifyOrder(op gateway.Operation, tmpl *template.Template, merchantCode, transactionID, currency, reference string, amount int64) (gateway.Order, error) {
	if merchantCode == "" || transactionID == "" {
		return gateway.Order{}, fmt.Errorf("worldpay %s order requires merchant code and transaction id", op)
	}
	payload, err := render(tmpl, map[string]string{
		"MerchantCode":  escape(merchantCode),
		"TransactionID": escape(transactionID),
		"Currency":      escape(currency),
		"Reference":     escape(reference),
		"Amount":        strconv.FormatInt(amount, 10),
	})
	if err != nil {
		return gateway.Order{}, err
	}
	return newOrder(op, payload), nil
}

func buildInquiryOrder(merchantCode, transactionID string) (gateway.Order, error) {
	if merchantCode == "" || transactionID == "" {
		return gateway.Order{}, fmt.Errorf("worldpay inquiry requires merchant code and transaction id")
	}
	payload, err := render(inquiryTemplate, map[string]string{
		"MerchantCode":  escape(merchantCode),
		"TransactionID": escape(transactionID),
	})
	if err != nil {
		return gateway.Order{}, err
	}
	return newOrder(gateway.OperationQuery, payload), nil
}

func newOrder(op gateway.Operation, payload string) gateway.Order {
	return gateway.Order{
		Operation:   op,
		Payload:     payload,
		ContentType: "application/xml",
	}
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
