package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/kvstore"
	"github.com/yeremiapane/restaurant-ordering/models"
)

type orderFixture struct {
	db     *gorm.DB
	events *recordingEvents
	carts  *cart.Store
	tables *TableService
	orders *OrderService
	menu   seededMenu
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()
	db := setupTestDB(t)
	events := &recordingEvents{}
	menu := NewMenuService(db)
	carts := cart.NewStore(kvstore.NewMemoryStore(), menu, "server")
	tables := NewTableService(db, carts)
	return orderFixture{
		db:     db,
		events: events,
		carts:  carts,
		tables: tables,
		orders: NewOrderService(db, carts, menu, tables, NewNotificationService(db, events), events),
		menu:   seedMenu(t, db),
	}
}

func TestScanJoinsActiveSession(t *testing.T) {
	f := newOrderFixture(t)
	table := models.Table{TableNumber: "A1", Status: models.TableStatusAvailable}
	require.NoError(t, f.db.Create(&table).Error)

	first, err := f.tables.Scan(context.Background(), table.ID)
	require.NoError(t, err)
	second, err := f.tables.Scan(context.Background(), table.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var reloaded models.Table
	require.NoError(t, f.db.First(&reloaded, table.ID).Error)
	assert.Equal(t, models.TableStatusOccupied, reloaded.Status)

	_, err = f.tables.Scan(context.Background(), 999)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	table := seedTable(t, f.db, "B2")
	_, err := f.tables.Scan(ctx, table.ID)
	require.NoError(t, err)

	_, err = f.carts.AddItem(ctx, table.ID, cart.AddRequest{
		MenuItemID: f.menu.Item.ID,
		Quantity:   2,
		Selections: map[uint][]uint{f.menu.Spice.ID: {f.menu.Hot.ID}},
		Notes:      "no peanuts",
	})
	require.NoError(t, err)

	// a menu price change after adding to the cart is what the order charges
	require.NoError(t, f.db.Model(&f.menu.Item).Update("price", decimal.NewFromInt(26000)).Error)

	order, err := f.orders.Checkout(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "no peanuts", order.Items[0].Notes)
	assert.True(t, decimal.NewFromInt(56000).Equal(order.Total), order.Total.String())

	c, err := f.carts.Get(ctx, table.ID)
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.Len(t, f.events.tableEvents(hub.EventOrderCreated), 1)

	_, err = f.orders.Checkout(ctx, table.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutNeedsActiveSession(t *testing.T) {
	f := newOrderFixture(t)
	table := seedTable(t, f.db, "C3")
	_, err := f.orders.Checkout(context.Background(), table.ID)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestPaymentStatusView(t *testing.T) {
	f := newOrderFixture(t)
	order := seedOrder(t, f.db, 85000)

	view, err := f.orders.PaymentStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, view.PaymentStatus)
	assert.Nil(t, view.Transaction)

	tx := seedTransaction(t, f.db, order, models.MethodBankTransfer, 237, models.TxStatusPending, fixedNow)
	view, err = f.orders.PaymentStatus(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Transaction)
	assert.Equal(t, tx.ID, view.Transaction.ID)

	_, err = f.orders.PaymentStatus(context.Background(), 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.db, 40000)

	_, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPreparing)
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusReady)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, ErrPaymentNotVerified)

	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("payment_status", models.PaymentStatusVerified).Error)
	updated, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)

	_, err = f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrOrderImmutable)
}

func TestCancelExpiresOpenTransactions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := seedOrder(t, f.db, 40000)
	pending := seedTransaction(t, f.db, order, models.MethodQRIS, 0, models.TxStatusPending, fixedNow.Add(time.Hour))
	review := seedTransaction(t, f.db, order, models.MethodBankTransfer, 12, models.TxStatusProcessing, fixedNow.Add(time.Hour))
	other := seedTransaction(t, f.db, seedOrder(t, f.db, 1000), models.MethodCash, 0, models.TxStatusPending, fixedNow.Add(time.Hour))

	_, err := f.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	for id, want := range map[string]string{
		pending.ID: models.TxStatusExpired,
		review.ID:  models.TxStatusExpired,
		other.ID:   models.TxStatusPending,
	} {
		var tx models.PaymentTransaction
		require.NoError(t, f.db.First(&tx, "id = ?", id).Error)
		assert.Equal(t, want, tx.Status, id)
	}
}

func TestFinishSessionClearsCart(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	table := seedTable(t, f.db, "D4")
	_, err := f.tables.Scan(ctx, table.ID)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, table.ID, cart.AddRequest{
		MenuItemID: f.menu.Item.ID,
		Quantity:   1,
		Selections: map[uint][]uint{f.menu.Spice.ID: {f.menu.Mild.ID}},
	})
	require.NoError(t, err)

	require.NoError(t, f.tables.FinishSession(ctx, table.ID))
	c, err := f.carts.Get(ctx, table.ID)
	require.NoError(t, err)
	assert.True(t, c.Empty())

	assert.ErrorIs(t, f.tables.FinishSession(ctx, table.ID), ErrNoActiveSession)
}
