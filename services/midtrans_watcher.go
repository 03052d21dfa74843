package services

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/poller"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// StatusSource reports a gateway transaction status in our terms.
type StatusSource interface {
	CheckTransactionStatus(ctx context.Context, reference string) (string, error)
}

// MidtransWatcher polls the gateway for each open Midtrans QRIS charge
// until it settles, fails or its window closes. The callback endpoint
// usually wins; polling covers lost callbacks.
type MidtransWatcher struct {
	db       *gorm.DB
	source   StatusSource
	verifier *PaymentVerifier
	cfg      poller.Config

	mu      sync.Mutex
	pollers map[string]*poller.Poller
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewMidtransWatcher(db *gorm.DB, source StatusSource, verifier *PaymentVerifier) *MidtransWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &MidtransWatcher{
		db:       db,
		source:   source,
		verifier: verifier,
		cfg:      poller.Config{Interval: poller.QRISInterval},
		pollers:  make(map[string]*poller.Poller),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Watch starts polling one transaction. Watching the same transaction
// twice is a no-op.
func (w *MidtransWatcher) Watch(tx models.PaymentTransaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pollers[tx.ID]; ok || w.ctx.Err() != nil {
		return
	}

	log := utils.InfoLogger.WithFields(logrus.Fields{"transaction_id": tx.ID, "reference": tx.Reference})
	cfg := w.cfg
	cfg.Deadline = tx.ExpiresAt
	cfg.Logger = log

	var p *poller.Poller
	check := func(ctx context.Context, id string) (poller.Status, error) {
		status, err := w.source.CheckTransactionStatus(ctx, tx.Reference)
		if err != nil {
			return poller.Status{}, err
		}
		if status == models.TxStatusFailed {
			if _, err := w.verifier.Reject(ctx, tx.ID, 0, "declined by gateway"); err != nil {
				log.Warnf("Error failing gateway transaction: %v", err)
			}
			p.Stop()
		}
		return poller.Status{TransactionStatus: status}, nil
	}
	onVerified := func(poller.Status) {
		if _, err := w.verifier.Verify(w.ctx, tx.ID, 0); err != nil && !errors.Is(err, ErrAlreadyVerified) {
			log.Errorf("Error verifying gateway payment: %v", err)
		}
		w.forget(tx.ID)
	}
	onExpired := func() {
		log.Info("Gateway payment window closed")
		w.forget(tx.ID)
	}

	p = poller.New(tx.ID, cfg, check, onVerified, onExpired)
	if err := p.Start(w.ctx); err != nil {
		log.Errorf("Error starting gateway watcher: %v", err)
		return
	}
	w.pollers[tx.ID] = p
	go func() {
		<-p.Done()
		w.forget(tx.ID)
	}()
}

// Resume watches every open Midtrans transaction, e.g. after a restart.
func (w *MidtransWatcher) Resume(ctx context.Context) error {
	var open []models.PaymentTransaction
	err := w.db.WithContext(ctx).
		Where("gateway = ? AND status = ?", "midtrans", models.TxStatusPending).
		Find(&open).Error
	if err != nil {
		return err
	}
	for _, tx := range open {
		w.Watch(tx)
	}
	return nil
}

// Apply records a status the gateway pushed to the callback endpoint and
// ends polling for that transaction.
func (w *MidtransWatcher) Apply(ctx context.Context, reference, status string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := w.db.WithContext(ctx).First(&tx, "reference = ?", reference).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}

	var (
		updated *models.PaymentTransaction
		err     error
	)
	switch status {
	case models.TxStatusCompleted:
		updated, err = w.verifier.Verify(ctx, tx.ID, 0)
	case models.TxStatusFailed:
		updated, err = w.verifier.Reject(ctx, tx.ID, 0, "declined by gateway")
	default:
		return &tx, nil
	}
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	p := w.pollers[tx.ID]
	w.mu.Unlock()
	if p != nil {
		p.Stop()
	}
	return updated, nil
}

func (w *MidtransWatcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pollers)
}

// Stop ends every poller.
func (w *MidtransWatcher) Stop() {
	w.cancel()
}

func (w *MidtransWatcher) forget(id string) {
	w.mu.Lock()
	delete(w.pollers, id)
	w.mu.Unlock()
}
