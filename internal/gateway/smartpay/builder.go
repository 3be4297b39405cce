// Package smartpay integrates the Smartpay JSON payment API. Requests are
// basic-authenticated JSON documents posted to per-operation endpoints;
// asynchronous results arrive as notificationItems batches.
package smartpay

import (
	"encoding/json"
	"fmt"

	"paybridge/internal/gateway"
)

type amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

type card struct {
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CVC         string `json:"cvc,omitempty"`
	HolderName  string `json:"holderName"`
}

type authoriseRequest struct {
	MerchantAccount    string `json:"merchantAccount"`
	Reference          string `json:"reference"`
	Amount             amount `json:"amount"`
	Card               card   `json:"card"`
	ShopperInteraction string `json:"shopperInteraction,omitempty"`
}

type authorise3DRequest struct {
	MerchantAccount string `json:"merchantAccount"`
	MD              string `json:"md"`
	PaResponse      string `json:"paResponse"`
}

type modificationRequest struct {
	MerchantAccount    string  `json:"merchantAccount"`
	OriginalReference  string  `json:"originalReference"`
	Reference          string  `json:"reference,omitempty"`
	ModificationAmount *amount `json:"modificationAmount,omitempty"`
}

// BuildAuthoriseOrder renders the authorise payload. The builder is pure:
// the same request yields byte-identical JSON.
func BuildAuthoriseOrder(merchantAccount string, req gateway.AuthoriseRequest) (gateway.Order, error) {
	if req.Card == nil {
		return gateway.Order{}, fmt.Errorf("smartpay authorise requires card details")
	}
	payload := authoriseRequest{
		MerchantAccount: merchantAccount,
		Reference:       req.ExternalID,
		Amount:          amount{Value: req.Amount, Currency: req.Currency},
		Card: card{
			Number:      req.Card.Number,
			ExpiryMonth: req.Card.ExpiryMonth,
			ExpiryYear:  req.Card.ExpiryYear,
			CVC:         req.Card.CVC,
			HolderName:  req.Card.HolderName,
		},
	}
	if req.Moto {
		payload.ShopperInteraction = "Moto"
	}
	return jsonOrder(gateway.OperationAuthorise, payload)
}

func BuildAuthorise3DOrder(merchantAccount string, req gateway.Auth3DSRequest) (gateway.Order, error) {
	payload := authorise3DRequest{
		MerchantAccount: merchantAccount,
		MD:              req.ChallengeResult["md"],
		PaResponse:      req.ChallengeResult["pa_response"],
	}
	return jsonOrder(gateway.OperationAuthorise, payload)
}

func BuildCaptureOrder(merchantAccount string, req gateway.CaptureRequest) (gateway.Order, error) {
	payload := modificationRequest{
		MerchantAccount:    merchantAccount,
		OriginalReference:  req.TransactionID,
		ModificationAmount: &amount{Value: req.Amount, Currency: req.Currency},
	}
	return jsonOrder(gateway.OperationCapture, payload)
}

func BuildRefundOrder(merchantAccount string, req gateway.RefundRequest) (gateway.Order, error) {
	payload := modificationRequest{
		MerchantAccount:    merchantAccount,
		OriginalReference:  req.TransactionID,
		Reference:          req.RefundExternalID,
		ModificationAmount: &amount{Value: req.Amount, Currency: req.Currency},
	}
	return jsonOrder(gateway.OperationRefund, payload)
}

func BuildCancelOrder(merchantAccount string, req gateway.CancelRequest) (gateway.Order, error) {
	payload := modificationRequest{
		MerchantAccount:   merchantAccount,
		OriginalReference: req.TransactionID,
	}
	return jsonOrder(gateway.OperationCancel, payload)
}

func jsonOrder(op gateway.Operation, payload any) (gateway.Order, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gateway.Order{}, fmt.Errorf("encode smartpay %s payload: %w", op, err)
	}
	return gateway.Order{
		Operation:   op,
		Payload:     string(body),
		ContentType: "application/json",
	}, nil
}
