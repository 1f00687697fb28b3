package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
)

type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	OrderID     string
	Metadata    map[string]any
	CallbackURL string
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the subset of Paystack's transaction the storefront acts
// on; Raw keeps the whole data object for the client.
type Verification struct {
	Status    string
	Reference string
	OrderID   string
	Raw       json.RawMessage
}

type CardGateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

type Paystack struct {
	cfg    config.PaystackConfig
	client *http.Client
}

func NewPaystack(cfg config.PaystackConfig, client *http.Client) *Paystack {
	return &Paystack{cfg: cfg, client: client}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	metadata := make(map[string]any, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["orderId"] = req.OrderID

	body := map[string]any{
		"email":        req.Email,
		"amount":       req.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		"currency":     p.cfg.Currency,
		"metadata":     metadata,
		"callback_url": req.CallbackURL,
	}

	var result InitializeResult
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &result); err != nil {
		return nil, fmt.Errorf("paystack: initialize: %w", err)
	}
	return &result, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	var raw json.RawMessage
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &raw); err != nil {
		return nil, fmt.Errorf("paystack: verify %s: %w", reference, err)
	}

	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Metadata  struct {
			OrderID string `json:"orderId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("paystack: decode verification: %w", err)
	}

	return &Verification{
		Status:    data.Status,
		Reference: data.Reference,
		OrderID:   data.Metadata.OrderID,
		Raw:       raw,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(p.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &UpstreamError{Provider: "paystack", StatusCode: resp.StatusCode, Message: "unreadable response"}
	}
	if resp.StatusCode >= 300 || !env.Status {
		return &UpstreamError{Provider: "paystack", StatusCode: resp.StatusCode, Message: env.Message}
	}
	return json.Unmarshal(env.Data, out)
}
