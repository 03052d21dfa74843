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

// PaymentVerifier is the only way an order reaches payment_status verified.
type PaymentVerifier struct {
	db       *gorm.DB
	notifier *NotificationService
	events   Broadcaster
	now      func() time.Time
}

func NewPaymentVerifier(db *gorm.DB, notifier *NotificationService, events Broadcaster) *PaymentVerifier {
	return &PaymentVerifier{db: db, notifier: notifier, events: events, now: time.Now}
}

// Verify marks the transaction completed and the order verified. staffID 0
// means the gateway verified it. Expired transactions can still be
// verified: the money may arrive after the window closes.
func (v *PaymentVerifier) Verify(ctx context.Context, txID string, staffID uint) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	var order models.Order

	err := v.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.First(&tx, "id = ?", txID).Error; err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		switch tx.Status {
		case models.TxStatusCompleted:
			return ErrAlreadyVerified
		case models.TxStatusFailed:
			return ErrTransactionClosed
		}
		if err := db.First(&order, tx.OrderID).Error; err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Status == models.OrderStatusCancelled {
			return ErrOrderImmutable
		}

		now := v.now()
		tx.Status = models.TxStatusCompleted
		tx.VerifiedAt = &now
		if staffID != 0 {
			tx.VerifiedBy = &staffID
		}
		if err := db.Save(&tx).Error; err != nil {
			return err
		}

		// any other open attempt for the order is moot now
		err := db.Model(&models.PaymentTransaction{}).
			Where("order_id = ? AND id <> ? AND status IN ?", tx.OrderID, tx.ID,
				[]string{models.TxStatusPending, models.TxStatusProcessing}).
			Update("status", models.TxStatusExpired).Error
		if err != nil {
			return err
		}

		order.PaymentStatus = models.PaymentStatusVerified
		if order.Status == models.OrderStatusPending {
			order.Status = models.OrderStatusConfirmed
		}
		return db.Model(&order).Updates(map[string]interface{}{
			"payment_status": order.PaymentStatus,
			"status":         order.Status,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       tx.OrderID,
		"transaction_id": tx.ID,
		"method":         tx.Method,
		"verified_by":    staffID,
	}).Info("Payment verified")

	orderID := order.ID
	v.notifier.Notify(ctx, models.NotifPaymentVerified, "Payment verified",
		fmt.Sprintf("Order #%d paid %s by %s", order.ID, utils.FormatCurrencyIDR(tx.AmountToPay), tx.Method), &orderID)

	event := map[string]interface{}{
		"order_id":       order.ID,
		"transaction_id": tx.ID,
		"payment_status": order.PaymentStatus,
		"status":         order.Status,
	}
	v.events.BroadcastToTable(order.TableID, hub.EventPaymentVerified, event)
	v.events.BroadcastToStaff(hub.EventPaymentVerified, event)
	return &tx, nil
}

// Reject fails the transaction. The order goes back to a payable state so
// the customer can try again.
func (v *PaymentVerifier) Reject(ctx context.Context, txID string, staffID uint, reason string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	var order models.Order

	err := v.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.First(&tx, "id = ?", txID).Error; err != nil {
			return notFound(err, ErrTransactionNotFound)
		}
		if tx.Status == models.TxStatusCompleted {
			return ErrAlreadyVerified
		}
		if !tx.Open() {
			return ErrTransactionClosed
		}
		if err := db.First(&order, tx.OrderID).Error; err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Closed() {
			return ErrOrderImmutable
		}

		tx.Status = models.TxStatusFailed
		tx.FailureReason = reason
		if staffID != 0 {
			tx.VerifiedBy = &staffID
		}
		if err := db.Save(&tx).Error; err != nil {
			return err
		}

		order.PaymentStatus = models.PaymentStatusFailed
		return db.Model(&order).Update("payment_status", order.PaymentStatus).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       tx.OrderID,
		"transaction_id": tx.ID,
		"reason":         reason,
	}).Info("Payment rejected")

	orderID := order.ID
	v.notifier.Notify(ctx, models.NotifPaymentRejected, "Payment rejected",
		fmt.Sprintf("Order #%d payment rejected: %s", order.ID, reason), &orderID)

	event := map[string]interface{}{
		"order_id":       order.ID,
		"transaction_id": tx.ID,
		"payment_status": order.PaymentStatus,
		"reason":         reason,
	}
	v.events.BroadcastToTable(order.TableID, hub.EventPaymentRejected, event)
	v.events.BroadcastToStaff(hub.EventPaymentRejected, event)
	return &tx, nil
}

// TransferReconciler matches an incoming bank transfer to an order by its
// exact amount; the unique code makes the amount distinct.
type TransferReconciler struct {
	db       *gorm.DB
	verifier *PaymentVerifier
}

func NewTransferReconciler(db *gorm.DB, verifier *PaymentVerifier) *TransferReconciler {
	return &TransferReconciler{db: db, verifier: verifier}
}

func (r *TransferReconciler) ReconcileTransfer(ctx context.Context, amount decimal.Decimal, staffID uint) (*models.PaymentTransaction, error) {
	var candidates []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("method = ? AND status IN ?", models.MethodBankTransfer,
			[]string{models.TxStatusPending, models.TxStatusProcessing}).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var matches []models.PaymentTransaction
	for _, tx := range candidates {
		if tx.AmountToPay.Equal(amount) {
			matches = append(matches, tx)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrNoMatch
	case 1:
		return r.verifier.Verify(ctx, matches[0].ID, staffID)
	default:
		return nil, fmt.Errorf("%w (%d transactions)", ErrAmbiguousMatch, len(matches))
	}
}
