package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CashBalanced        = "balanced"
	CashWithinThreshold = "within_threshold"
	CashFlagged         = "flagged"
)

// CashReconciliation is a cash drawer count at the end of a shift.
type CashReconciliation struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CashierID    uint            `gorm:"not null;index" json:"cashier_id"`
	ShiftStart   time.Time       `gorm:"not null" json:"shift_start"`
	ShiftEnd     time.Time       `gorm:"not null" json:"shift_end"`
	OpeningFloat decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"opening_float"`
	Expected     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"expected"`
	Counted      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"counted"`
	Variance     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"variance"`
	Status       string          `gorm:"type:varchar(20);not null" json:"status"`
	Counts       string          `gorm:"type:text" json:"-"`
	Notes        string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (r *CashReconciliation) SetCounts(counts map[int64]int) error {
	b, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	r.Counts = string(b)
	return nil
}

func (r *CashReconciliation) GetCounts() (map[int64]int, error) {
	counts := map[int64]int{}
	if r.Counts == "" {
		return counts, nil
	}
	err := json.Unmarshal([]byte(r.Counts), &counts)
	return counts, err
}
