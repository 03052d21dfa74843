package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodQRIS         = "qris"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"

	TxStatusPending    = "pending"
	TxStatusProcessing = "processing"
	TxStatusCompleted  = "completed"
	TxStatusExpired    = "expired"
	TxStatusFailed     = "failed"
)

func ValidMethod(m string) bool {
	return m == MethodQRIS || m == MethodBankTransfer || m == MethodCash
}

type BankAccount struct {
	Bank   string `json:"bank"`
	Number string `json:"number"`
	Holder string `json:"holder"`
}

// PaymentTransaction is one attempt to pay an order with a given method.
type PaymentTransaction struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID       uint            `gorm:"not null;index" json:"order_id"`
	Order         Order           `gorm:"foreignKey:OrderID" json:"-"`
	Method        string          `gorm:"type:varchar(20);not null" json:"method"`
	BaseAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_amount"`
	UniqueCode    int             `gorm:"not null;default:0" json:"unique_code,omitempty"`
	AmountToPay   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_to_pay"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExpiresAt     time.Time       `gorm:"not null;index" json:"expires_at"`
	ProofURL      string          `gorm:"type:varchar(255)" json:"proof_url,omitempty"`
	Reference     string          `gorm:"type:varchar(100);index" json:"reference,omitempty"`
	QRPayload     string          `gorm:"type:text" json:"qr_payload,omitempty"`
	BankName      string          `gorm:"type:varchar(50)" json:"bank_name,omitempty"`
	AccountNumber string          `gorm:"type:varchar(50)" json:"account_number,omitempty"`
	AccountHolder string          `gorm:"type:varchar(100)" json:"account_holder,omitempty"`
	Gateway       string          `gorm:"type:varchar(20)" json:"gateway,omitempty"`
	FailureReason string          `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	VerifiedBy    *uint           `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (t *PaymentTransaction) Open() bool {
	return t.Status == TxStatusPending || t.Status == TxStatusProcessing
}

// ExpiredAt reports whether the transaction window has passed at now,
// whatever the stored status says.
func (t *PaymentTransaction) ExpiredAt(now time.Time) bool {
	return t.Status == TxStatusExpired || !now.Before(t.ExpiresAt)
}

func (t *PaymentTransaction) Account() *BankAccount {
	if t.Method != MethodBankTransfer {
		return nil
	}
	return &BankAccount{Bank: t.BankName, Number: t.AccountNumber, Holder: t.AccountHolder}
}
