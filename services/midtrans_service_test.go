package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/poller"
)

func TestMidtransService_ValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *MidtransConfig
		wantErr bool
	}{
		{"valid config", &MidtransConfig{ServerKey: "server", ClientKey: "client"}, false},
		{"missing server key", &MidtransConfig{ClientKey: "client"}, true},
		{"missing client key", &MidtransConfig{ServerKey: "server"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMidtransService(tt.config).ValidateConfig()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMidtransService_Signature(t *testing.T) {
	ms := NewMidtransService(&MidtransConfig{ServerKey: "SB-Mid-server-key"})

	sig := ms.Signature("QR-1-ABCDEF12", "200", "85000.00")
	assert.Len(t, sig, 128)
	assert.True(t, ms.ValidateSignature("QR-1-ABCDEF12", "200", "85000.00", sig))
	assert.False(t, ms.ValidateSignature("QR-1-ABCDEF12", "200", "85001.00", sig))
	assert.False(t, ms.ValidateSignature("QR-1-ABCDEF12", "200", "85000.00", "bogus"))
}

func TestMapMidtransStatus(t *testing.T) {
	tests := map[string]string{
		"settlement": models.TxStatusCompleted,
		"capture":    models.TxStatusCompleted,
		"pending":    models.TxStatusPending,
		"expire":     models.TxStatusExpired,
		"deny":       models.TxStatusFailed,
		"cancel":     models.TxStatusFailed,
		"refund":     "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapMidtransStatus(in), in)
	}
}

func TestMidtransService_CreateQRIS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/charge", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server", user)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qris", body["payment_type"])
		details := body["transaction_details"].(map[string]interface{})
		assert.Equal(t, "QR-5-AAAA0000", details["order_id"])
		assert.Equal(t, float64(85000), details["gross_amount"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MidtransResponse{
			StatusCode:        "201",
			TransactionStatus: "pending",
			QRString:          "00020101021226...",
			ExpiryTime:        "2026-03-14 19:15:00",
		})
	}))
	defer server.Close()

	ms := NewMidtransService(&MidtransConfig{ServerKey: "server", ClientKey: "client", BaseURL: server.URL})
	order := &models.Order{ID: 5, TableID: 2}

	charge, err := ms.CreateQRIS(context.Background(), "QR-5-AAAA0000", order, decimal.NewFromInt(85000))
	require.NoError(t, err)
	assert.Equal(t, "00020101021226...", charge.Payload)
	assert.Equal(t, "midtrans", charge.Gateway)
	assert.Equal(t, fixedNow.Add(15*time.Minute), charge.ExpiresAt.UTC())
}

func TestMidtransService_CheckTransactionStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/QR-1-OK/status" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status_message":"not found"}`))
			return
		}
		json.NewEncoder(w).Encode(MidtransResponse{TransactionStatus: "settlement"})
	}))
	defer server.Close()

	ms := NewMidtransService(&MidtransConfig{ServerKey: "server", BaseURL: server.URL})

	status, err := ms.CheckTransactionStatus(context.Background(), "QR-1-OK")
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCompleted, status)

	_, err = ms.CheckTransactionStatus(context.Background(), "QR-1-MISSING")
	assert.Error(t, err)
}

type fakeStatusSource struct {
	mu     sync.Mutex
	status map[string]string
	calls  int
}

func (f *fakeStatusSource) set(ref, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[ref] = status
}

func (f *fakeStatusSource) CheckTransactionStatus(ctx context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status[ref], nil
}

func newTestWatcher(t *testing.T) (*MidtransWatcher, *fakeStatusSource, *PaymentVerifier) {
	t.Helper()
	db := setupTestDB(t)
	source := &fakeStatusSource{status: map[string]string{}}
	verifier := NewPaymentVerifier(db, NewNotificationService(db, NopBroadcaster{}), NopBroadcaster{})
	w := NewMidtransWatcher(db, source, verifier)
	w.cfg = poller.Config{Interval: 10 * time.Millisecond}
	t.Cleanup(w.Stop)
	return w, source, verifier
}

func seedGatewayTransaction(t *testing.T, w *MidtransWatcher, ref string) models.PaymentTransaction {
	t.Helper()
	order := seedOrder(t, w.db, 85000)
	tx := seedTransaction(t, w.db, order, models.MethodQRIS, 0, models.TxStatusPending, time.Now().Add(time.Minute))
	require.NoError(t, w.db.Model(&tx).Updates(map[string]interface{}{"reference": ref, "gateway": "midtrans"}).Error)
	tx.Reference = ref
	tx.Gateway = "midtrans"
	return tx
}

func loadStatus(t *testing.T, w *MidtransWatcher, id string) string {
	t.Helper()
	var tx models.PaymentTransaction
	require.NoError(t, w.db.First(&tx, "id = ?", id).Error)
	return tx.Status
}

func TestMidtransWatcherVerifiesSettlement(t *testing.T) {
	w, source, _ := newTestWatcher(t)
	tx := seedGatewayTransaction(t, w, "QR-1-SETTLE")
	source.set(tx.Reference, models.TxStatusPending)

	w.Watch(tx)
	w.Watch(tx)
	assert.Equal(t, 1, w.Watching())

	source.set(tx.Reference, models.TxStatusCompleted)
	assert.Eventually(t, func() bool {
		return loadStatus(t, w, tx.ID) == models.TxStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return w.Watching() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMidtransWatcherFailsDeclined(t *testing.T) {
	w, source, _ := newTestWatcher(t)
	tx := seedGatewayTransaction(t, w, "QR-2-DENY")
	source.set(tx.Reference, models.TxStatusFailed)

	w.Watch(tx)
	assert.Eventually(t, func() bool {
		return loadStatus(t, w, tx.ID) == models.TxStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return w.Watching() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMidtransWatcherResume(t *testing.T) {
	w, source, _ := newTestWatcher(t)
	tx := seedGatewayTransaction(t, w, "QR-3-RESUME")
	source.set(tx.Reference, models.TxStatusPending)

	require.NoError(t, w.Resume(context.Background()))
	assert.Equal(t, 1, w.Watching())

	w.Stop()
	assert.Eventually(t, func() bool { return w.Watching() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMidtransWatcherApplyCallback(t *testing.T) {
	w, source, _ := newTestWatcher(t)
	tx := seedGatewayTransaction(t, w, "QR-4-CALLBACK")
	source.set(tx.Reference, models.TxStatusPending)
	w.Watch(tx)

	got, err := w.Apply(context.Background(), tx.Reference, models.TxStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusPending, got.Status)

	got, err = w.Apply(context.Background(), tx.Reference, models.TxStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCompleted, got.Status)
	assert.Eventually(t, func() bool { return w.Watching() == 0 }, time.Second, 10*time.Millisecond)

	_, err = w.Apply(context.Background(), tx.Reference, models.TxStatusCompleted)
	assert.ErrorIs(t, err, ErrAlreadyVerified)

	_, err = w.Apply(context.Background(), "QR-404", models.TxStatusCompleted)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
