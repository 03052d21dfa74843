package services

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/yeremiapane/restaurant-ordering/models"
)

type QRISCharge struct {
	Payload   string
	Reference string
	ExpiresAt time.Time
	Gateway   string
}

// QRISProvider produces the QR payload a customer scans.
type QRISProvider interface {
	CreateQRIS(ctx context.Context, reference string, order *models.Order, amount decimal.Decimal) (QRISCharge, error)
}

// StaticQRIS serves the merchant's printed static QRIS payload. The
// customer types the amount in their app.
type StaticQRIS struct {
	Payload string
}

func (q StaticQRIS) CreateQRIS(ctx context.Context, reference string, order *models.Order, amount decimal.Decimal) (QRISCharge, error) {
	if q.Payload == "" {
		return QRISCharge{}, ErrQRISUnavailable
	}
	return QRISCharge{Payload: q.Payload, Reference: reference}, nil
}

// QRImageDataURL renders payload as a PNG data URL.
func QRImageDataURL(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
