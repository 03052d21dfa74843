package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// ExpiryMonitor closes pending transactions whose window has passed. The
// client countdown is advisory; this is the authoritative expiry.
type ExpiryMonitor struct {
	db       *gorm.DB
	events   Broadcaster
	Interval time.Duration

	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewExpiryMonitor(db *gorm.DB, events Broadcaster, interval time.Duration) *ExpiryMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryMonitor{
		db:       db,
		events:   events,
		Interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (m *ExpiryMonitor) Start() {
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := m.CheckExpired(context.Background()); err != nil {
					utils.ErrorLogger.Errorf("Error checking expired payments: %v", err)
				}
			case <-m.stopChan:
				return
			}
		}
	}()
	utils.InfoLogger.Infof("Payment expiry monitor started (every %s)", m.Interval)
}

func (m *ExpiryMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// CheckExpired expires overdue pending transactions and returns how many
// it changed. Transactions with an uploaded proof wait for staff.
func (m *ExpiryMonitor) CheckExpired(ctx context.Context) (int, error) {
	var overdue []models.PaymentTransaction
	err := m.db.WithContext(ctx).Preload("Order").
		Where("status = ? AND expires_at <= ?", models.TxStatusPending, m.now()).
		Find(&overdue).Error
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, tx := range overdue {
		res := m.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", tx.ID, models.TxStatusPending).
			Update("status", models.TxStatusExpired)
		if res.Error != nil {
			utils.ErrorLogger.Errorf("Error expiring payment %s: %v", tx.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		expired++

		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":       tx.OrderID,
			"transaction_id": tx.ID,
			"method":         tx.Method,
		}).Info("Payment expired")

		m.events.BroadcastToTable(tx.Order.TableID, hub.EventPaymentExpired, map[string]interface{}{
			"order_id":       tx.OrderID,
			"transaction_id": tx.ID,
			"status":         models.TxStatusExpired,
		})
	}
	return expired, nil
}
