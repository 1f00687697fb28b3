package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/config"
)

const mpesaTimestampLayout = "20060102150405"

type STKPushRequest struct {
	Phone       string
	Amount      int64
	OrderID     string
	CallbackURL string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type PushGateway interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

type Mpesa struct {
	cfg    config.MpesaConfig
	client *http.Client
	now    func() time.Time
}

func NewMpesa(cfg config.MpesaConfig, client *http.Client) *Mpesa {
	return &Mpesa{cfg: cfg, client: client, now: time.Now}
}

func (m *Mpesa) baseURL() string {
	return strings.TrimRight(m.cfg.BaseURL, "/")
}

// Password is base64(shortcode + passkey + timestamp) as Daraja expects.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func (m *Mpesa) token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL()+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mpesa: token request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken  string `json:"access_token"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || resp.StatusCode >= 300 || out.AccessToken == "" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = "token request rejected"
		}
		return "", &UpstreamError{Provider: "mpesa", StatusCode: resp.StatusCode, Message: msg}
	}
	return out.AccessToken, nil
}

// STKPush fetches a fresh token and asks Safaricom to prompt the customer's
// handset. Tokens are not cached.
func (m *Mpesa) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	token, err := m.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := m.now().Format(mpesaTimestampLayout)
	payload := map[string]any{
		"BusinessShortCode": m.cfg.ShortCode,
		"Password":          Password(m.cfg.ShortCode, m.cfg.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount,
		"PartyA":            in.Phone,
		"PartyB":            m.cfg.ShortCode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       in.CallbackURL,
		"AccountReference":  accountReference(in.OrderID),
		"TransactionDesc":   m.cfg.TransactionDesc,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL()+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa: stk push request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		STKPushResponse
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{Provider: "mpesa", StatusCode: resp.StatusCode, Message: "unreadable response"}
	}
	if resp.StatusCode >= 300 || out.CheckoutRequestID == "" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = out.ResponseDescription
		}
		return nil, &UpstreamError{Provider: "mpesa", StatusCode: resp.StatusCode, Message: msg}
	}
	return &out.STKPushResponse, nil
}
