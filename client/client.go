// Package client is a small Go client for the customer-facing API: it
// starts payments, uploads proofs and watches a payment until staff or the
// gateway verify it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/models"
)

// TabHeader carries the caller's tab id on cart writes.
const TabHeader = "X-Tab-ID"

// APIError is a non-2xx answer. Redirect, when set, is the screen the
// server wants the UI to fall back to.
type APIError struct {
	Status   int
	Message  string
	Redirect string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
	Redirect string `json:"redirect"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
	// TabID tags cart writes so this client's own socket can skip them.
	TabID string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type PaymentStatus struct {
	OrderID       uint                       `json:"order_id"`
	TableID       uint                       `json:"table_id"`
	Status        string                     `json:"status"`
	PaymentStatus string                     `json:"payment_status"`
	Total         decimal.Decimal            `json:"total"`
	Transaction   *models.PaymentTransaction `json:"transaction,omitempty"`
}

type Session struct {
	OrderID       uint                `json:"order_id"`
	TableID       uint                `json:"table_id"`
	TransactionID string              `json:"transaction_id"`
	Method        string              `json:"method"`
	Status        string              `json:"status"`
	BaseAmount    decimal.Decimal     `json:"base_amount"`
	UniqueCode    int                 `json:"unique_code,omitempty"`
	AmountToPay   decimal.Decimal     `json:"amount_to_pay"`
	Instructions  []string            `json:"instructions"`
	ExpiresAt     time.Time           `json:"expires_at"`
	QRPayload     string              `json:"qr_payload,omitempty"`
	QRImage       string              `json:"qr_image,omitempty"`
	Reference     string              `json:"reference,omitempty"`
	BankAccount   *models.BankAccount `json:"bank_account,omitempty"`
	ProofURL      string              `json:"proof_url,omitempty"`
}

func (c *Client) OrderPaymentStatus(ctx context.Context, orderID uint) (*PaymentStatus, error) {
	var out PaymentStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/api/orders/%d/payment-status", orderID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Transaction(ctx context.Context, txID string) (*Session, error) {
	var out Session
	if err := c.getJSON(ctx, "/api/payments?transaction_id="+url.QueryEscape(txID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Order(ctx context.Context, orderID uint) (*models.Order, error) {
	var out models.Order
	if err := c.getJSON(ctx, fmt.Sprintf("/api/order?id=%d", orderID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Initiate opens or resumes the payment session for an order.
func (c *Client) Initiate(ctx context.Context, orderID, tableID uint, method string) (*Session, error) {
	body, err := json.Marshal(map[string]interface{}{
		"order_id": orderID,
		"table_id": tableID,
		"method":   method,
	})
	if err != nil {
		return nil, err
	}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/payments", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearCart(ctx context.Context, tableID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tables/%d/cart", tableID), nil, "", nil)
}

// UploadProof validates the file locally, then sends it. It returns the
// stored proof URL.
func (c *Client) UploadProof(ctx context.Context, orderID uint, paymentID string, proof ProofFile) (string, error) {
	if err := ValidateProof(proof); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("order_id", fmt.Sprint(orderID)); err != nil {
		return "", err
	}
	if err := mw.WriteField("payment_id", paymentID); err != nil {
		return "", err
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, proof.Name))
	h.Set("Content-Type", proof.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, io.LimitReader(proof.Content, MaxProofSize+1)); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		ProofURL string `json:"proof_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload/proof", &buf, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.ProofURL, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.TabID != "" {
		req.Header.Set(TabHeader, c.TabID)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error decoding response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Redirect: env.Redirect}
		if env.Error != nil {
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("error decoding data: %w", err)
	}
	return nil
}
