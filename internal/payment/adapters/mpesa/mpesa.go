// Package mpesa implements the mobile money rail. Initiation pushes an STK
// prompt to the customer's handset and returns the instructions to show;
// verification re-queries the provider by the account reference.
package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "mpesa"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	consumerKey, _ := cfg.Config["consumer_key"].(string)
	consumerSecret, _ := cfg.Config["consumer_secret"].(string)
	shortCode, _ := cfg.Config["short_code"].(string)
	consumerKey = strings.TrimSpace(consumerKey)
	consumerSecret = strings.TrimSpace(consumerSecret)
	shortCode = strings.TrimSpace(shortCode)
	if consumerKey == "" || consumerSecret == "" || shortCode == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Adapter{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		shortCode:      shortCode,
		baseURL:        baseURL,
		client:         client,
	}, nil
}

type Adapter struct {
	consumerKey    string
	consumerSecret string
	shortCode      string
	baseURL        string
	client         *http.Client
}

func (a *Adapter) Provider() string { return "mpesa" }

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Amount            int64  `json:"Amount"`
	PhoneNumber       string `json:"PhoneNumber"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	CustomerMessage   string `json:"CustomerMessage"`
}

func (a *Adapter) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	body, err := json.Marshal(stkPushRequest{
		BusinessShortCode: a.shortCode,
		Amount:            req.Amount,
		PhoneNumber:       req.Phone,
		AccountReference:  req.Reference,
		TransactionDesc:   "Rent payment",
	})
	if err != nil {
		return nil, err
	}

	var out stkPushResponse
	if err := a.call(ctx, "/mpesa/stkpush/v1/processrequest", body, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", paymentdomain.ErrProviderCallFailed, out.ResponseDesc)
	}

	instructions := strings.TrimSpace(out.CustomerMessage)
	if instructions == "" {
		instructions = "Enter your M-PESA PIN on your phone to authorize the payment."
	}

	return &paymentdomain.InitiateResult{
		Instructions: instructions,
		ProviderRef:  out.CheckoutRequestID,
		ProviderExtra: map[string]any{
			"checkout_request_id": out.CheckoutRequestID,
		},
	}, nil
}

type callbackPayload struct {
	AccountReference   string `json:"AccountReference"`
	ResultCode         int    `json:"ResultCode"`
	ResultDesc         string `json:"ResultDesc"`
	Amount             int64  `json:"Amount"`
	MpesaReceiptNumber string `json:"MpesaReceiptNumber"`
}

func (a *Adapter) ExtractReference(payload []byte) (string, error) {
	var callback callbackPayload
	if err := json.Unmarshal(payload, &callback); err != nil {
		return "", paymentdomain.ErrInvalidPayload
	}
	reference := strings.TrimSpace(callback.AccountReference)
	if reference == "" {
		return "", paymentdomain.ErrMissingReference
	}
	return reference, nil
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	AccountReference  string `json:"AccountReference"`
}

type queryResponse struct {
	ResultCode         int    `json:"ResultCode"`
	ResultDesc         string `json:"ResultDesc"`
	Amount             int64  `json:"Amount"`
	MpesaReceiptNumber string `json:"MpesaReceiptNumber"`
}

// Verify re-queries the transaction status by reference rather than trusting
// the callback body.
func (a *Adapter) Verify(ctx context.Context, reference string, payload []byte) (*paymentdomain.VerifyResult, error) {
	body, err := json.Marshal(queryRequest{
		BusinessShortCode: a.shortCode,
		AccountReference:  reference,
	})
	if err != nil {
		return nil, err
	}

	var out queryResponse
	if err := a.call(ctx, "/mpesa/stkpushquery/v1/query", body, &out); err != nil {
		return nil, err
	}

	result := &paymentdomain.VerifyResult{
		Success:       out.ResultCode == 0,
		Amount:        out.Amount,
		TransactionID: out.MpesaReceiptNumber,
	}
	if !result.Success {
		result.FailureReason = out.ResultDesc
		if result.FailureReason == "" {
			result.FailureReason = fmt.Sprintf("result code %d", out.ResultCode)
		}
	}
	return result, nil
}

func (a *Adapter) call(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(a.consumerKey, a.consumerSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrProviderCallFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", paymentdomain.ErrProviderCallFailed, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
