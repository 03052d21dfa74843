package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// Denominations are the IDR notes and coins a drawer count accepts.
var Denominations = []int64{100000, 50000, 20000, 10000, 5000, 2000, 1000, 500, 200, 100}

type CashCountRequest struct {
	CashierID    uint            `json:"-"`
	ShiftStart   time.Time       `json:"shift_start" binding:"required"`
	ShiftEnd     time.Time       `json:"shift_end" binding:"required"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	Counts       map[int64]int   `json:"counts" binding:"required"`
	Notes        string          `json:"notes"`
}

type CashReconciliationService struct {
	db        *gorm.DB
	threshold decimal.Decimal
	notifier  *NotificationService
	events    Broadcaster
}

func NewCashReconciliationService(db *gorm.DB, threshold decimal.Decimal, notifier *NotificationService, events Broadcaster) *CashReconciliationService {
	return &CashReconciliationService{db: db, threshold: threshold, notifier: notifier, events: events}
}

// CountDrawer sums denomination x count.
func CountDrawer(counts map[int64]int) (decimal.Decimal, error) {
	valid := make(map[int64]bool, len(Denominations))
	for _, d := range Denominations {
		valid[d] = true
	}

	total := decimal.Zero
	for denom, n := range counts {
		if !valid[denom] {
			return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidDenomination, denom)
		}
		if n < 0 {
			return decimal.Zero, fmt.Errorf("%w: %d x %d", ErrNegativeCount, n, denom)
		}
		total = total.Add(decimal.NewFromInt(denom).Mul(decimal.NewFromInt(int64(n))))
	}
	return total, nil
}

// ClassifyVariance reports balanced, within_threshold or flagged.
func ClassifyVariance(variance, threshold decimal.Decimal) string {
	switch {
	case variance.IsZero():
		return models.CashBalanced
	case variance.Abs().LessThanOrEqual(threshold):
		return models.CashWithinThreshold
	default:
		return models.CashFlagged
	}
}

// ExpectedCash sums cash payments verified in [start, end).
func (s *CashReconciliationService) ExpectedCash(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var txs []models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("method = ? AND status = ? AND verified_at >= ? AND verified_at < ?",
			models.MethodCash, models.TxStatusCompleted, start, end).
		Find(&txs).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.AmountToPay)
	}
	return total, nil
}

func (s *CashReconciliationService) Reconcile(ctx context.Context, req CashCountRequest) (*models.CashReconciliation, error) {
	if !req.ShiftEnd.After(req.ShiftStart) {
		return nil, ErrInvalidShift
	}
	counted, err := CountDrawer(req.Counts)
	if err != nil {
		return nil, err
	}
	sales, err := s.ExpectedCash(ctx, req.ShiftStart, req.ShiftEnd)
	if err != nil {
		return nil, err
	}

	expected := req.OpeningFloat.Add(sales)
	variance := counted.Sub(expected)

	rec := models.CashReconciliation{
		CashierID:    req.CashierID,
		ShiftStart:   req.ShiftStart,
		ShiftEnd:     req.ShiftEnd,
		OpeningFloat: req.OpeningFloat,
		Expected:     expected,
		Counted:      counted,
		Variance:     variance,
		Status:       ClassifyVariance(variance, s.threshold),
		Notes:        req.Notes,
	}
	if err := rec.SetCounts(req.Counts); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"cashier_id": rec.CashierID,
		"expected":   rec.Expected.String(),
		"counted":    rec.Counted.String(),
		"variance":   rec.Variance.String(),
		"status":     rec.Status,
	}).Info("Cash drawer reconciled")

	if rec.Status == models.CashFlagged {
		s.notifier.Notify(ctx, models.NotifCashVariance, "Cash variance flagged",
			fmt.Sprintf("Drawer off by %s (expected %s, counted %s)",
				utils.FormatCurrencyIDR(rec.Variance), utils.FormatCurrencyIDR(rec.Expected), utils.FormatCurrencyIDR(rec.Counted)), nil)
	}
	s.events.BroadcastToStaff(hub.EventCashReconciled, rec)
	return &rec, nil
}

func (s *CashReconciliationService) List(ctx context.Context) ([]models.CashReconciliation, error) {
	var recs []models.CashReconciliation
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *CashReconciliationService) Get(ctx context.Context, id uint) (*models.CashReconciliation, error) {
	var rec models.CashReconciliation
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, ErrReconciliationNotFound)
	}
	return &rec, nil
}
