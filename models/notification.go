package models

import (
	"time"
)

const (
	NotifProofUploaded   = "payment_proof_uploaded"
	NotifPaymentVerified = "payment_verified"
	NotifPaymentRejected = "payment_rejected"
	NotifPaymentExpired  = "payment_expired"
	NotifNewOrder        = "new_order"
	NotifCashVariance    = "cash_variance"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"`
	Title     string    `gorm:"type:varchar(100)" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	OrderID   *uint     `gorm:"index" json:"order_id,omitempty"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
