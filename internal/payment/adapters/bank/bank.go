// Package bank implements the manual bank transfer rail. There is no
// outbound provider call: initiation hands out wire instructions and the
// callback is an operator-confirmed payload the adapter takes at face value.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "bank"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	accountName, _ := cfg.Config["account_name"].(string)
	accountNumber, _ := cfg.Config["account_number"].(string)
	bankName, _ := cfg.Config["bank_name"].(string)
	accountName = strings.TrimSpace(accountName)
	accountNumber = strings.TrimSpace(accountNumber)
	bankName = strings.TrimSpace(bankName)
	if accountName == "" || accountNumber == "" || bankName == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Adapter{
		accountName:   accountName,
		accountNumber: accountNumber,
		bankName:      bankName,
	}, nil
}

type Adapter struct {
	accountName   string
	accountNumber string
	bankName      string
}

func (a *Adapter) Provider() string { return "bank" }

func (a *Adapter) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	instructions := fmt.Sprintf(
		"Transfer %d %s to %s, account %s (%s). Quote reference %s in the transfer narrative.",
		req.Amount,
		strings.ToUpper(req.Currency),
		a.accountName,
		a.accountNumber,
		a.bankName,
		req.Reference,
	)
	return &paymentdomain.InitiateResult{
		Instructions: instructions,
		ProviderRef:  req.Reference,
	}, nil
}

type callbackPayload struct {
	Reference     string `json:"reference"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

func (a *Adapter) ExtractReference(payload []byte) (string, error) {
	var callback callbackPayload
	if err := json.Unmarshal(payload, &callback); err != nil {
		return "", paymentdomain.ErrInvalidPayload
	}
	reference := strings.TrimSpace(callback.Reference)
	if reference == "" {
		return "", paymentdomain.ErrMissingReference
	}
	return reference, nil
}

// Verify trusts the operator-confirmed callback; there is no upstream to
// re-query on this rail.
func (a *Adapter) Verify(ctx context.Context, reference string, payload []byte) (*paymentdomain.VerifyResult, error) {
	var callback callbackPayload
	if err := json.Unmarshal(payload, &callback); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	result := &paymentdomain.VerifyResult{
		Success:       strings.EqualFold(callback.Status, "confirmed"),
		Amount:        callback.Amount,
		TransactionID: callback.TransactionID,
	}
	if !result.Success {
		result.FailureReason = strings.TrimSpace(callback.Reason)
		if result.FailureReason == "" {
			result.FailureReason = "transfer not confirmed"
		}
	}
	return result, nil
}
