package client

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-ordering/poller"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// WatchPayment polls the order's payment status until it is verified or
// the deadline passes. On verification it clears the table cart and then
// calls onVerified, once. onExpired may be nil.
func (c *Client) WatchPayment(ctx context.Context, orderID, tableID uint, interval time.Duration, deadline time.Time,
	onVerified func(PaymentStatus), onExpired func()) (*poller.Poller, error) {
	if orderID == 0 || tableID == 0 {
		return nil, poller.ErrEmptyID
	}

	log := utils.InfoLogger.WithFields(logrus.Fields{"order_id": orderID, "table_id": tableID})

	var last PaymentStatus
	check := func(ctx context.Context, id string) (poller.Status, error) {
		st, err := c.OrderPaymentStatus(ctx, orderID)
		if err != nil {
			return poller.Status{}, err
		}
		last = *st
		s := poller.Status{OrderStatus: st.Status, PaymentStatus: st.PaymentStatus}
		if st.Transaction != nil {
			s.TransactionStatus = st.Transaction.Status
		}
		return s, nil
	}

	p := poller.New(fmt.Sprintf("order-%d", orderID), poller.Config{
		Interval: interval,
		Deadline: deadline,
		Logger:   log,
	}, check, func(poller.Status) {
		if err := c.ClearCart(context.Background(), tableID); err != nil {
			log.Warnf("Payment verified but cart not cleared: %v", err)
		}
		if onVerified != nil {
			onVerified(last)
		}
	}, onExpired)

	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
