package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type OrderService struct {
	db       *gorm.DB
	carts    *cart.Store
	menu     *MenuService
	tables   *TableService
	notifier *NotificationService
	events   Broadcaster
}

func NewOrderService(db *gorm.DB, carts *cart.Store, menu *MenuService, tables *TableService, notifier *NotificationService, events Broadcaster) *OrderService {
	return &OrderService{
		db:       db,
		carts:    carts,
		menu:     menu,
		tables:   tables,
		notifier: notifier,
		events:   events,
	}
}

// Checkout turns the table's cart into an order. Prices are resolved again
// from the menu; the stored cart prices are only a preview.
func (s *OrderService) Checkout(ctx context.Context, tableID uint) (*models.Order, error) {
	session, err := s.tables.ActiveSession(ctx, tableID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	order := models.Order{
		TableID:        tableID,
		TableSessionID: session.ID,
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
	}

	subtotal := decimal.Zero
	for _, line := range c.Lines {
		resolved, err := s.menu.ResolvePrice(ctx, line.MenuItemID, line.Selections)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", line.Name, err)
		}

		item := models.OrderItem{
			MenuItemID: line.MenuItemID,
			Name:       resolved.Name,
			Quantity:   line.Quantity,
			UnitPrice:  resolved.UnitPrice,
			Subtotal:   resolved.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Notes:      line.Notes,
		}
		if err := item.SetSelections(line.Selections); err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(item.Subtotal)
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotal
	order.Total = subtotal

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}

	if err := s.carts.Clear(ctx, tableID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"table_id": tableID, "order_id": order.ID}).
			Warnf("Order created but cart not cleared: %v", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"table_id": tableID,
		"order_id": order.ID,
		"total":    order.Total.String(),
	}).Info("Order created")

	s.notifier.Notify(ctx, models.NotifNewOrder, "New order",
		fmt.Sprintf("Order #%d from table %d (%s)", order.ID, tableID, utils.FormatCurrencyIDR(order.Total)), &order.ID)
	s.events.BroadcastToTable(tableID, hub.EventOrderCreated, order)
	return &order, nil
}

func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}

type PaymentStatusView struct {
	OrderID       uint                       `json:"order_id"`
	TableID       uint                       `json:"table_id"`
	Status        string                     `json:"status"`
	PaymentStatus string                     `json:"payment_status"`
	Total         decimal.Decimal            `json:"total"`
	Transaction   *models.PaymentTransaction `json:"transaction,omitempty"`
}

// PaymentStatus is what the status poller reads: the server-side order and
// payment state plus the latest transaction.
func (s *OrderService) PaymentStatus(ctx context.Context, orderID uint) (*PaymentStatusView, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}

	view := &PaymentStatusView{
		OrderID:       order.ID,
		TableID:       order.TableID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total,
	}

	var tx models.PaymentTransaction
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at desc").First(&tx).Error
	switch {
	case err == nil:
		view.Transaction = &tx
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return view, nil
}

func (s *OrderService) ListByTable(ctx context.Context, tableID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("table_id = ?", tableID).Order("created_at desc").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves an order along the kitchen flow. Completed and
// cancelled orders never change again, and an order is only completed once
// its payment is verified.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return notFound(err, ErrOrderNotFound)
		}
		if order.Closed() {
			return ErrOrderImmutable
		}
		if !order.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
		}
		if status == models.OrderStatusCompleted && order.PaymentStatus != models.PaymentStatusVerified {
			return ErrPaymentNotVerified
		}
		order.Status = status
		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return err
		}
		if status != models.OrderStatusCancelled {
			return nil
		}
		// a cancelled order takes no more payments
		return tx.Model(&models.PaymentTransaction{}).
			Where("order_id = ? AND status IN ?", order.ID, []string{models.TxStatusPending, models.TxStatusProcessing}).
			Update("status", models.TxStatusExpired).Error
	})
	if err != nil {
		return nil, err
	}

	s.events.BroadcastToTable(order.TableID, hub.EventOrderUpdate, order)
	s.events.BroadcastToStaff(hub.EventOrderUpdate, order)
	return &order, nil
}
