package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

const (
	DefaultQRISExpiry     = 15 * time.Minute
	DefaultTransferExpiry = 24 * time.Hour
	DefaultCashExpiry     = 24 * time.Hour

	maxUniqueCode = 999
	codeAttempts  = 5
)

type PaymentConfig struct {
	QRISExpiry     time.Duration
	TransferExpiry time.Duration
	CashExpiry     time.Duration
	BankAccounts   []models.BankAccount
}

type InitiateRequest struct {
	OrderID uint   `json:"order_id"`
	TableID uint   `json:"table_id"`
	Method  string `json:"method"`
}

// Session is everything the payment screen shows.
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

type PaymentService struct {
	db     *gorm.DB
	cfg    PaymentConfig
	qris   QRISProvider
	events Broadcaster

	// OnGatewayCharge runs after a gateway-backed QRIS transaction is
	// created, so its status can be watched.
	OnGatewayCharge func(tx models.PaymentTransaction)

	now        func() time.Time
	uniqueCode func() (int, error)
}

func NewPaymentService(db *gorm.DB, cfg PaymentConfig, qris QRISProvider, events Broadcaster) *PaymentService {
	if cfg.QRISExpiry <= 0 {
		cfg.QRISExpiry = DefaultQRISExpiry
	}
	if cfg.TransferExpiry <= 0 {
		cfg.TransferExpiry = DefaultTransferExpiry
	}
	if cfg.CashExpiry <= 0 {
		cfg.CashExpiry = DefaultCashExpiry
	}
	return &PaymentService{
		db:         db,
		cfg:        cfg,
		qris:       qris,
		events:     events,
		now:        time.Now,
		uniqueCode: RandomUniqueCode,
	}
}

// RandomUniqueCode draws a transfer code uniformly from [1, 999].
func RandomUniqueCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxUniqueCode))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1, nil
}

// Initiate opens (or reopens) a payment session for an order. Missing or
// inconsistent context fails before anything is written.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	if req.OrderID == 0 || req.TableID == 0 {
		return nil, ErrMissingContext
	}
	method := strings.ToLower(strings.TrimSpace(req.Method))
	if !models.ValidMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, req.OrderID).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if order.TableID != req.TableID {
		return nil, ErrTableMismatch
	}
	if !order.Payable() {
		return nil, ErrOrderNotPayable
	}

	now := s.now()

	var open []models.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", order.ID, []string{models.TxStatusPending, models.TxStatusProcessing}).
		Order("created_at desc").
		Find(&open).Error
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, tx := range open {
		if tx.Status == models.TxStatusProcessing {
			return nil, ErrPaymentUnderReview
		}
		if tx.Method == method && now.Before(tx.ExpiresAt) {
			return s.sessionFor(&tx, &order)
		}
		stale = append(stale, tx.ID)
	}

	tx, err := s.newTransaction(ctx, &order, method, now)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if len(stale) > 0 {
			err := db.Model(&models.PaymentTransaction{}).
				Where("id IN ? AND status = ?", stale, models.TxStatusPending).
				Update("status", models.TxStatusExpired).Error
			if err != nil {
				return err
			}
		}
		return db.Create(tx).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"transaction_id": tx.ID,
		"method":         tx.Method,
		"amount_to_pay":  tx.AmountToPay.String(),
	}).Info("Payment session created")

	session, err := s.sessionFor(tx, &order)
	if err != nil {
		return nil, err
	}
	s.events.BroadcastToTable(order.TableID, hub.EventPaymentInitiated, session)
	if tx.Gateway != "" && s.OnGatewayCharge != nil {
		s.OnGatewayCharge(*tx)
	}
	return session, nil
}

func (s *PaymentService) newTransaction(ctx context.Context, order *models.Order, method string, now time.Time) (*models.PaymentTransaction, error) {
	tx := &models.PaymentTransaction{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Method:      method,
		BaseAmount:  order.Total,
		AmountToPay: order.Total,
		Status:      models.TxStatusPending,
	}

	switch method {
	case models.MethodQRIS:
		tx.Reference = fmt.Sprintf("QR-%d-%s", order.ID, strings.ToUpper(tx.ID[:8]))
		tx.ExpiresAt = now.Add(s.cfg.QRISExpiry)

		charge, err := s.qris.CreateQRIS(ctx, tx.Reference, order, tx.AmountToPay)
		if err != nil {
			return nil, err
		}
		tx.QRPayload = charge.Payload
		tx.Gateway = charge.Gateway
		if charge.Reference != "" {
			tx.Reference = charge.Reference
		}
		if !charge.ExpiresAt.IsZero() && charge.ExpiresAt.Before(tx.ExpiresAt) {
			tx.ExpiresAt = charge.ExpiresAt
		}

	case models.MethodBankTransfer:
		if len(s.cfg.BankAccounts) == 0 {
			return nil, ErrNoBankAccount
		}
		code, err := s.freeUniqueCode(ctx, order.Total)
		if err != nil {
			return nil, err
		}
		account := s.cfg.BankAccounts[int(order.ID-1)%len(s.cfg.BankAccounts)]

		tx.UniqueCode = code
		tx.AmountToPay = order.Total.Add(decimal.NewFromInt(int64(code)))
		tx.BankName = account.Bank
		tx.AccountNumber = account.Number
		tx.AccountHolder = account.Holder
		tx.Reference = account.Bank + " " + account.Number
		tx.ExpiresAt = now.Add(s.cfg.TransferExpiry)

	case models.MethodCash:
		tx.Reference = fmt.Sprintf("CASH-%d", order.ID)
		tx.ExpiresAt = now.Add(s.cfg.CashExpiry)
	}
	return tx, nil
}

// freeUniqueCode draws a code whose amount to pay no other open transfer
// uses, so reconciliation by amount stays unambiguous. After codeAttempts
// collisions the last draw is kept and staff verify by hand.
func (s *PaymentService) freeUniqueCode(ctx context.Context, base decimal.Decimal) (int, error) {
	var open []models.PaymentTransaction
	err := s.db.WithContext(ctx).Select("amount_to_pay").
		Where("method = ? AND status IN ?", models.MethodBankTransfer,
			[]string{models.TxStatusPending, models.TxStatusProcessing}).
		Find(&open).Error
	if err != nil {
		return 0, err
	}

	taken := func(amount decimal.Decimal) bool {
		for _, tx := range open {
			if tx.AmountToPay.Equal(amount) {
				return true
			}
		}
		return false
	}

	var code int
	for i := 0; i < codeAttempts; i++ {
		code, err = s.uniqueCode()
		if err != nil {
			return 0, fmt.Errorf("unique code: %w", err)
		}
		if !taken(base.Add(decimal.NewFromInt(int64(code)))) {
			return code, nil
		}
	}
	utils.ErrorLogger.WithField("base_amount", base.String()).
		Warnf("No free unique code after %d attempts, reusing %03d", codeAttempts, code)
	return code, nil
}

// Session returns the payment screen for an existing transaction.
func (s *PaymentService) Session(ctx context.Context, txID string) (*Session, error) {
	var tx models.PaymentTransaction
	if err := s.db.WithContext(ctx).Preload("Order").First(&tx, "id = ?", txID).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	return s.sessionFor(&tx, &tx.Order)
}

func (s *PaymentService) List(ctx context.Context, status, method string) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	q := s.db.WithContext(ctx).Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if method != "" {
		q = q.Where("method = ?", method)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *PaymentService) sessionFor(tx *models.PaymentTransaction, order *models.Order) (*Session, error) {
	session := &Session{
		OrderID:       tx.OrderID,
		TableID:       order.TableID,
		TransactionID: tx.ID,
		Method:        tx.Method,
		Status:        tx.Status,
		BaseAmount:    tx.BaseAmount,
		UniqueCode:    tx.UniqueCode,
		AmountToPay:   tx.AmountToPay,
		ExpiresAt:     tx.ExpiresAt,
		QRPayload:     tx.QRPayload,
		Reference:     tx.Reference,
		BankAccount:   tx.Account(),
		ProofURL:      tx.ProofURL,
	}

	amount := utils.FormatCurrencyIDR(tx.AmountToPay)
	switch tx.Method {
	case models.MethodQRIS:
		if tx.QRPayload == "" {
			return nil, errors.New("qris transaction has no payload")
		}
		img, err := QRImageDataURL(tx.QRPayload)
		if err != nil {
			return nil, fmt.Errorf("render qr: %w", err)
		}
		session.QRImage = img
		session.Instructions = []string{
			"Open any QRIS-enabled banking or e-wallet app and scan the code.",
			fmt.Sprintf("Pay exactly %s.", amount),
			"Upload a screenshot of the payment confirmation before the timer runs out.",
		}
	case models.MethodBankTransfer:
		session.Instructions = []string{
			fmt.Sprintf("Transfer exactly %s to %s %s (%s).", amount, tx.BankName, tx.AccountNumber, tx.AccountHolder),
			fmt.Sprintf("The last three digits (%03d) identify your order. Do not round the amount.", tx.UniqueCode),
			"Upload the transfer receipt after paying.",
		}
	case models.MethodCash:
		session.Instructions = []string{
			fmt.Sprintf("Pay %s at the cashier.", amount),
			fmt.Sprintf("Mention order #%d. The cashier confirms the payment for you.", tx.OrderID),
		}
	}
	return session, nil
}
