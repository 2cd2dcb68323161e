// Package paystack implements the card gateway rail. Initiation returns a
// hosted checkout redirect; callbacks carry an HMAC-SHA512 signature of the
// raw body in X-Paystack-Signature and are re-verified against the provider
// before any ledger write.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/tenancy/internal/payment/domain"
)

const defaultBaseURL = "https://api.paystack.co"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "paystack"
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, _ := cfg.Config["secret_key"].(string)
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Adapter{
		secretKey: secret,
		baseURL:   baseURL,
		client:    client,
	}, nil
}

type Adapter struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

func (a *Adapter) Provider() string { return "paystack" }

type initializeRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
	Reference string `json:"reference"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (a *Adapter) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	body, err := json.Marshal(initializeRequest{
		Amount:    req.Amount,
		Currency:  strings.ToUpper(req.Currency),
		Email:     req.Email,
		Reference: req.Reference,
	})
	if err != nil {
		return nil, err
	}

	var out initializeResponse
	if err := a.call(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: %s", paymentdomain.ErrProviderCallFailed, out.Message)
	}

	return &paymentdomain.InitiateResult{
		RedirectURL: out.Data.AuthorizationURL,
		ProviderRef: out.Data.Reference,
		ProviderExtra: map[string]any{
			"access_code": out.Data.AccessCode,
		},
	}, nil
}

// VerifySignature checks the HMAC-SHA512 of the raw body against the
// X-Paystack-Signature header. Constant-time compare.
func (a *Adapter) VerifySignature(payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Paystack-Signature"))
	if signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(a.secretKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

func (a *Adapter) ExtractReference(payload []byte) (string, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", paymentdomain.ErrInvalidPayload
	}
	reference := strings.TrimSpace(event.Data.Reference)
	if reference == "" {
		return "", paymentdomain.ErrMissingReference
	}
	return reference, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID             int64  `json:"id"`
		Status         string `json:"status"`
		Amount         int64  `json:"amount"`
		GatewayMessage string `json:"gateway_response"`
		Channel        string `json:"channel"`
	} `json:"data"`
}

// Verify never trusts the callback body: the transaction is re-queried from
// the provider by reference.
func (a *Adapter) Verify(ctx context.Context, reference string, payload []byte) (*paymentdomain.VerifyResult, error) {
	var out verifyResponse
	if err := a.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, fmt.Errorf("%w: %s", paymentdomain.ErrProviderCallFailed, out.Message)
	}

	result := &paymentdomain.VerifyResult{
		Success:       out.Data.Status == "success",
		Amount:        out.Data.Amount,
		TransactionID: fmt.Sprintf("%d", out.Data.ID),
		Metadata: map[string]any{
			"channel": out.Data.Channel,
		},
	}
	if !result.Success {
		result.FailureReason = out.Data.GatewayMessage
		if result.FailureReason == "" {
			result.FailureReason = out.Data.Status
		}
	}
	return result, nil
}

func (a *Adapter) call(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
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
