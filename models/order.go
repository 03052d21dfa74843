package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusVerified = "verified"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusCompleted},
}

type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TableID        uint            `gorm:"not null;index" json:"table_id"`
	Table          Table           `gorm:"foreignKey:TableID" json:"-"`
	TableSessionID uint            `gorm:"not null;index" json:"table_session_id"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus  string          `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	ProofURL       string          `gorm:"type:varchar(255)" json:"proof_url,omitempty"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// Closed reports whether the order can no longer change.
func (o *Order) Closed() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}

// Payable reports whether a payment session may still be opened for the order.
func (o *Order) Payable() bool {
	if o.Closed() {
		return false
	}
	return o.PaymentStatus == PaymentStatusPending || o.PaymentStatus == PaymentStatusFailed
}

func (o *Order) CanTransitionTo(next string) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"not null;index" json:"order_id"`
	MenuItemID uint            `gorm:"not null" json:"menu_item_id"`
	Name       string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Selections string          `gorm:"type:text" json:"-"`
	Notes      string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

// SetSelections stores the customization choices (group id -> option ids) as JSON.
func (i *OrderItem) SetSelections(sel map[uint][]uint) error {
	if len(sel) == 0 {
		i.Selections = ""
		return nil
	}
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	i.Selections = string(b)
	return nil
}

func (i *OrderItem) GetSelections() (map[uint][]uint, error) {
	sel := map[uint][]uint{}
	if i.Selections == "" {
		return sel, nil
	}
	err := json.Unmarshal([]byte(i.Selections), &sel)
	return sel, err
}
