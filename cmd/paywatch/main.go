// Command paywatch opens (or resumes) a payment session for an order and
// watches it from a terminal until it is verified or the window closes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yeremiapane/restaurant-ordering/client"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/poller"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "API base URL")
	orderID := flag.Uint("order", 0, "order id")
	tableID := flag.Uint("table", 0, "table id")
	method := flag.String("method", models.MethodQRIS, "payment method: qris, bank_transfer or cash")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	utils.InitLogger(*logLevel)

	if *orderID == 0 || *tableID == 0 {
		fmt.Fprintln(os.Stderr, "paywatch: -order and -table are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, client.New(*base), uint(*orderID), uint(*tableID), *method)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, c *client.Client, orderID, tableID uint, method string) int {
	sess, err := c.Initiate(ctx, orderID, tableID, method)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Redirect != "" {
			fmt.Fprintf(os.Stderr, "paywatch: %s (back to %s)\n", apiErr.Message, apiErr.Redirect)
		} else {
			fmt.Fprintf(os.Stderr, "paywatch: %v\n", err)
		}
		return 1
	}

	fmt.Printf("Order #%d, %s, pay %s\n", sess.OrderID, sess.Method, utils.FormatCurrencyIDR(sess.AmountToPay))
	if sess.BankAccount != nil {
		fmt.Printf("Transfer to %s %s (%s)\n", sess.BankAccount.Bank, sess.BankAccount.Number, sess.BankAccount.Holder)
	}
	for _, line := range sess.Instructions {
		fmt.Println(" -", line)
	}

	interval := poller.DefaultInterval
	if sess.Method == models.MethodQRIS {
		interval = poller.QRISInterval
	}

	p, err := c.WatchPayment(ctx, orderID, tableID, interval, sess.ExpiresAt, func(st client.PaymentStatus) {
		fmt.Printf("\nPayment verified. Order is %s.\n", st.Status)
	}, func() {
		fmt.Println("\nPayment window expired.")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "paywatch: %v\n", err)
		return 1
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.Done():
			if p.Outcome() == poller.Verified {
				return 0
			}
			return 1
		case now := <-ticker.C:
			_, label := client.Countdown(sess.ExpiresAt, now)
			fmt.Printf("\r%s  ", label)
		}
	}
}
