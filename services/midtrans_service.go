package services

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

const (
	midtransSandboxURL    = "https://api.sandbox.midtrans.com"
	midtransProductionURL = "https://api.midtrans.com"

	// Midtrans expects Asia/Jakarta timestamps in this layout.
	midtransTimeLayout = "2006-01-02 15:04:05"
)

type MidtransConfig struct {
	ServerKey    string
	ClientKey    string
	IsProduction bool
	// BaseURL overrides the API host; used by tests.
	BaseURL string
}

// MidtransService talks to the Midtrans Core API for QRIS charges.
type MidtransService struct {
	config     *MidtransConfig
	httpClient *http.Client
}

func NewMidtransService(config *MidtransConfig) *MidtransService {
	return &MidtransService{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (ms *MidtransService) ValidateConfig() error {
	if ms.config.ServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY is not set")
	}
	if ms.config.ClientKey == "" {
		return fmt.Errorf("MIDTRANS_CLIENT_KEY is not set")
	}
	return nil
}

// MidtransResponse is the subset of the charge and status responses we use.
type MidtransResponse struct {
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionStatus string `json:"transaction_status"`
	QRString          string `json:"qr_string"`
	ExpiryTime        string `json:"expiry_time"`
}

// CreateQRIS charges a QRIS payment. reference becomes the Midtrans order_id.
func (ms *MidtransService) CreateQRIS(ctx context.Context, reference string, order *models.Order, amount decimal.Decimal) (QRISCharge, error) {
	payload := map[string]interface{}{
		"payment_type": "qris",
		"transaction_details": map[string]interface{}{
			"order_id":     reference,
			"gross_amount": amount.IntPart(),
		},
		"item_details": []map[string]interface{}{
			{
				"id":       fmt.Sprintf("ORDER-%d", order.ID),
				"price":    amount.IntPart(),
				"quantity": 1,
				"name":     fmt.Sprintf("Order #%d table %d", order.ID, order.TableID),
			},
		},
	}

	var resp MidtransResponse
	if err := ms.do(ctx, http.MethodPost, "/v2/charge", payload, &resp); err != nil {
		return QRISCharge{}, err
	}
	if resp.QRString == "" {
		return QRISCharge{}, fmt.Errorf("midtrans charge %s: no qr_string (%s %s)", reference, resp.StatusCode, resp.StatusMessage)
	}

	charge := QRISCharge{Payload: resp.QRString, Reference: reference, Gateway: "midtrans"}
	if resp.ExpiryTime != "" {
		if t, err := time.ParseInLocation(midtransTimeLayout, resp.ExpiryTime, jakarta()); err == nil {
			charge.ExpiresAt = t
		}
	}
	utils.InfoLogger.Infof("Midtrans QRIS charge created for %s", reference)
	return charge, nil
}

// CheckTransactionStatus returns the transaction status in our terms:
// completed, pending, expired, failed or unknown.
func (ms *MidtransService) CheckTransactionStatus(ctx context.Context, reference string) (string, error) {
	var resp MidtransResponse
	if err := ms.do(ctx, http.MethodGet, "/v2/"+reference+"/status", nil, &resp); err != nil {
		return "", err
	}
	return MapMidtransStatus(resp.TransactionStatus), nil
}

// ValidateSignature checks sha512(order_id + status_code + gross_amount + server key).
func (ms *MidtransService) ValidateSignature(orderID, statusCode, grossAmount, signature string) bool {
	expected := ms.Signature(orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (ms *MidtransService) Signature(orderID, statusCode, grossAmount string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + ms.config.ServerKey))
	return hex.EncodeToString(hash[:])
}

// MapMidtransStatus maps a Midtrans transaction_status to a transaction status.
func MapMidtransStatus(status string) string {
	switch status {
	case "capture", "settlement":
		return models.TxStatusCompleted
	case "pending", "authorize":
		return models.TxStatusPending
	case "expire":
		return models.TxStatusExpired
	case "deny", "cancel", "failure":
		return models.TxStatusFailed
	default:
		return "unknown"
	}
}

func (ms *MidtransService) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, ms.getBaseURL()+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(ms.config.ServerKey+":")))

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("midtrans API error (%d): %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}

func (ms *MidtransService) getBaseURL() string {
	if ms.config.BaseURL != "" {
		return ms.config.BaseURL
	}
	if ms.config.IsProduction {
		return midtransProductionURL
	}
	return midtransSandboxURL
}

func jakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}
