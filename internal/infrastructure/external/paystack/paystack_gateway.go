// Package paystack implements services.PaymentGateway against the Paystack REST API,
// the concrete provider the engine's narrow port (§6.2) is shaped around.
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
	"time"

	"github.com/concertforge/ticket-engine/internal/domain/services"
	"github.com/concertforge/ticket-engine/pkg/logger"
)

// Gateway is the Paystack-backed services.PaymentGateway implementation. It has no
// third-party HTTP client to build on — the example pack carries no Paystack SDK and no
// generic REST client library (no go-resty, no retryablehttp) — so it is built directly
// on net/http, documented as a stdlib exception in the grounding ledger.
type Gateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewGateway constructs a Gateway from the configured PAYMENT_SECRET_KEY, the
// Paystack API base URL, and a request timeout derived from GATEWAY_TIMEOUT_MS.
func NewGateway(secretKey, baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type initializeRequestBody struct {
	Email    string            `json:"email"`
	Amount   int64             `json:"amount"`
	Reference string           `json:"reference"`
	Subaccount string          `json:"subaccount,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a payment session at Paystack for req (§6.2).
func (g *Gateway) Initialize(ctx context.Context, req services.InitializeRequest) (services.InitializeResult, error) {
	body := initializeRequestBody{
		Email:      req.Email,
		Amount:     req.AmountMinor,
		Reference:  req.Reference,
		Subaccount: req.SubaccountCode,
		Metadata:   req.Metadata,
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := g.post(ctx, "/transaction/initialize", body, &data); err != nil {
		return services.InitializeResult{}, err
	}
	return services.InitializeResult{
		OK:               true,
		AuthorizationURL: data.AuthorizationURL,
		Reference:        data.Reference,
		AccessCode:       data.AccessCode,
	}, nil
}

// Verify retrieves the settled state of reference from Paystack (§6.2).
func (g *Gateway) Verify(ctx context.Context, reference string) (services.GatewayVerifyResult, error) {
	var data struct {
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Fees      int64  `json:"fees"`
		Channel   string `json:"channel"`
		PaidAt    string `json:"paid_at"`
		Authorization struct {
			CardType string `json:"card_type"`
			Last4    string `json:"last4"`
			Bank     string `json:"bank"`
		} `json:"authorization"`
		Subaccount *struct {
			SubaccountCode string `json:"subaccount_code"`
		} `json:"subaccount"`
		SharedAmount int64 `json:"requested_amount"`
	}
	if err := g.get(ctx, "/transaction/verify/"+reference, &data); err != nil {
		return services.GatewayVerifyResult{}, err
	}

	result := services.GatewayVerifyResult{
		OK:          true,
		Status:      data.Status,
		AmountMinor: data.Amount,
		FeesMinor:   data.Fees,
		Channel:     data.Channel,
		Authorization: &services.Authorization{
			CardType: data.Authorization.CardType,
			Last4:    data.Authorization.Last4,
			Bank:     data.Authorization.Bank,
		},
	}
	if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
		result.PaidAtUnixMs = paidAt.UnixMilli()
	}
	if data.Subaccount != nil {
		result.Subaccount = &services.Subaccount{Code: data.Subaccount.SubaccountCode, SharedAmount: data.SharedAmount}
	}
	return result, nil
}

// Refund requests a refund of req against Paystack (§6.2).
func (g *Gateway) Refund(ctx context.Context, req services.RefundRequest) (services.RefundResult, error) {
	body := struct {
		Transaction string `json:"transaction"`
		Amount      int64  `json:"amount,omitempty"`
	}{Transaction: req.TransactionReference, Amount: req.AmountMinor}

	var data struct {
		ID int64 `json:"id"`
	}
	if err := g.post(ctx, "/refund", body, &data); err != nil {
		return services.RefundResult{}, err
	}
	return services.RefundResult{OK: true, GatewayRefundID: fmt.Sprintf("%d", data.ID)}, nil
}

// CreateSubaccount registers an organizer payout destination with Paystack (§6.2).
func (g *Gateway) CreateSubaccount(ctx context.Context, req services.CreateSubaccountRequest) (services.CreateSubaccountResult, error) {
	body := struct {
		BusinessName     string `json:"business_name"`
		BankCode         string `json:"bank_code"`
		AccountNumber    string `json:"account_number"`
		PercentageCharge int    `json:"percentage_charge"`
	}{
		BusinessName:     req.BusinessName,
		BankCode:         req.BankCode,
		AccountNumber:    req.AccountNumber,
		PercentageCharge: req.PercentageCharge,
	}
	var data struct {
		SubaccountCode string `json:"subaccount_code"`
	}
	if err := g.post(ctx, "/subaccount", body, &data); err != nil {
		return services.CreateSubaccountResult{}, err
	}
	return services.CreateSubaccountResult{OK: true, SubaccountCode: data.SubaccountCode}, nil
}

// VerifySignature reports whether signature is the hex HMAC-SHA512 of rawBody under the
// configured secret, compared in constant time (§6.4).
func (g *Gateway) VerifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(g.secretKey))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *Gateway) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *Gateway) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return err
	}
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("paystack: malformed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || !envelope.Status {
		logger.Warnf("paystack: request to %s failed: %s", req.URL.Path, envelope.Message)
		return fmt.Errorf("paystack: %s", envelope.Message)
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}
