package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

const MaxProofSize = 5 << 20

var proofExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ProofStorage keeps uploaded proof files and hands out stable URLs.
type ProofStorage interface {
	Save(ctx context.Context, r io.Reader, ext string) (string, error)
	Remove(url string) error
}

// LocalProofStorage writes to <dir>/payment-proofs and serves them under
// <baseURL>/uploads/payment-proofs.
type LocalProofStorage struct {
	dir     string
	baseURL string
}

func NewLocalProofStorage(uploadDir, publicBaseURL string) (*LocalProofStorage, error) {
	dir := filepath.Join(uploadDir, "payment-proofs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return &LocalProofStorage{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/") + "/uploads/payment-proofs/"}, nil
}

func (s *LocalProofStorage) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	name := uuid.NewString() + ext
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.baseURL + name, nil
}

func (s *LocalProofStorage) Remove(url string) error {
	if !strings.HasPrefix(url, s.baseURL) {
		return nil
	}
	name := path.Base(url)
	err := os.Remove(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// DetectProofType sniffs the first bytes of a file. declared is the
// client's Content-Type; when present it must also be an image.
func DetectProofType(head []byte, declared string) (string, error) {
	if declared != "" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil || !strings.HasPrefix(mt, "image/") {
			return "", ErrNotAnImage
		}
	}
	detected := http.DetectContentType(head)
	if _, ok := proofExtensions[detected]; !ok {
		return "", ErrNotAnImage
	}
	return detected, nil
}

type ProofUpload struct {
	OrderID     uint
	PaymentID   string
	File        io.Reader
	Size        int64
	ContentType string
}

type ProofService struct {
	db       *gorm.DB
	storage  ProofStorage
	notifier *NotificationService
	events   Broadcaster
	now      func() time.Time
}

func NewProofService(db *gorm.DB, storage ProofStorage, notifier *NotificationService, events Broadcaster) *ProofService {
	return &ProofService{db: db, storage: storage, notifier: notifier, events: events, now: time.Now}
}

// Submit validates and stores a proof of payment, then puts the
// transaction up for staff verification. A newer proof replaces the old one.
func (s *ProofService) Submit(ctx context.Context, up ProofUpload) (string, error) {
	if up.Size > MaxProofSize {
		return "", ErrProofTooLarge
	}
	if up.OrderID == 0 || up.PaymentID == "" {
		return "", ErrMissingContext
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.File, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if n == 0 {
		return "", ErrEmptyProof
	}
	head = head[:n]

	contentType, err := DetectProofType(head, up.ContentType)
	if err != nil {
		return "", err
	}

	var tx models.PaymentTransaction
	if err := s.db.WithContext(ctx).Preload("Order").First(&tx, "id = ?", up.PaymentID).Error; err != nil {
		return "", notFound(err, ErrTransactionNotFound)
	}
	if tx.OrderID != up.OrderID {
		return "", ErrTransactionMismatch
	}
	if tx.Order.Closed() {
		return "", ErrOrderImmutable
	}
	switch {
	case tx.Status == models.TxStatusCompleted:
		return "", ErrAlreadyVerified
	case tx.Status == models.TxStatusFailed:
		return "", ErrTransactionClosed
	case tx.ExpiredAt(s.now()):
		return "", ErrTransactionExpired
	}

	// the size header can lie; never store more than the limit
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), up.File), MaxProofSize+1)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	if buf.Len() > MaxProofSize {
		return "", ErrProofTooLarge
	}

	url, err := s.storage.Save(ctx, &buf, proofExtensions[contentType])
	if err != nil {
		return "", fmt.Errorf("store proof: %w", err)
	}

	previous := tx.ProofURL
	// staff may have verified or rejected while the file was being stored
	err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		res := db.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status IN ?", tx.ID, []string{models.TxStatusPending, models.TxStatusProcessing}).
			Updates(map[string]interface{}{"proof_url": url, "status": models.TxStatusProcessing})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return closedTransactionError(db, tx.ID)
		}

		res = db.Model(&models.Order{}).
			Where("id = ? AND payment_status <> ? AND status NOT IN ?", tx.OrderID, models.PaymentStatusVerified,
				[]string{models.OrderStatusCompleted, models.OrderStatusCancelled}).
			Updates(map[string]interface{}{"proof_url": url, "payment_status": models.PaymentStatusPaid})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var order models.Order
			if err := db.First(&order, tx.OrderID).Error; err != nil {
				return notFound(err, ErrOrderNotFound)
			}
			if order.PaymentStatus == models.PaymentStatusVerified {
				return ErrAlreadyVerified
			}
			return ErrOrderImmutable
		}
		return nil
	})
	if err != nil {
		if rmErr := s.storage.Remove(url); rmErr != nil {
			utils.ErrorLogger.Warnf("Error removing orphaned proof %s: %v", url, rmErr)
		}
		return "", err
	}

	if previous != "" && previous != url {
		if err := s.storage.Remove(previous); err != nil {
			utils.ErrorLogger.Warnf("Error removing replaced proof %s: %v", previous, err)
		}
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       tx.OrderID,
		"transaction_id": tx.ID,
		"method":         tx.Method,
	}).Info("Payment proof uploaded")

	orderID := tx.OrderID
	s.notifier.Notify(ctx, models.NotifProofUploaded, "Payment proof uploaded",
		fmt.Sprintf("Order #%d uploaded a %s payment proof for %s", tx.OrderID, tx.Method, utils.FormatCurrencyIDR(tx.AmountToPay)), &orderID)

	event := map[string]interface{}{
		"order_id":       tx.OrderID,
		"transaction_id": tx.ID,
		"proof_url":      url,
		"status":         models.TxStatusProcessing,
	}
	s.events.BroadcastToTable(tx.Order.TableID, hub.EventProofUploaded, event)
	s.events.BroadcastToStaff(hub.EventProofUploaded, event)
	return url, nil
}

// closedTransactionError explains why a transaction no longer accepts a proof.
func closedTransactionError(db *gorm.DB, txID string) error {
	var current models.PaymentTransaction
	if err := db.Select("status").First(&current, "id = ?", txID).Error; err != nil {
		return notFound(err, ErrTransactionNotFound)
	}
	switch current.Status {
	case models.TxStatusCompleted:
		return ErrAlreadyVerified
	case models.TxStatusExpired:
		return ErrTransactionExpired
	}
	return ErrTransactionClosed
}
