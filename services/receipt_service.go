package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type ReceiptService struct {
	db             *gorm.DB
	restaurantName string
}

func NewReceiptService(db *gorm.DB, restaurantName string) *ReceiptService {
	return &ReceiptService{db: db, restaurantName: restaurantName}
}

// Render builds a one page PDF receipt for a completed transaction.
func (s *ReceiptService) Render(ctx context.Context, txID string) ([]byte, error) {
	var tx models.PaymentTransaction
	if err := s.db.WithContext(ctx).Preload("Order.Items").Preload("Order.Table").First(&tx, "id = ?", txID).Error; err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	if tx.Status != models.TxStatusCompleted {
		return nil, ErrReceiptUnavailable
	}
	order := tx.Order

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, s.restaurantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Order #%d - Table %s", order.ID, order.Table.TableNumber), "", 1, "C", false, 0, "")
	if tx.VerifiedAt != nil {
		pdf.CellFormat(0, 5, tx.VerifiedAt.Format("02 Jan 2006 15:04"), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(70, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(12, 6, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(46, 6, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, item := range order.Items {
		pdf.CellFormat(70, 6, item.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", item.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(46, 6, utils.FormatCurrencyIDR(item.Subtotal), "", 1, "R", false, 0, "")
		if item.Notes != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 4, "  "+item.Notes, "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
		}
	}
	pdf.Ln(2)

	row := func(label, value string) {
		pdf.CellFormat(82, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(46, 6, value, "", 1, "R", false, 0, "")
	}
	row("Total", utils.FormatCurrencyIDR(order.Total))
	if tx.UniqueCode > 0 {
		row("Unique code", fmt.Sprintf("%03d", tx.UniqueCode))
	}
	pdf.SetFont("Helvetica", "B", 10)
	row("Paid", utils.FormatCurrencyIDR(tx.AmountToPay))
	pdf.SetFont("Helvetica", "", 9)
	row("Method", tx.Method)
	if tx.Reference != "" {
		row("Reference", tx.Reference)
	}

	pdf.Ln(6)
	pdf.CellFormat(0, 5, "Thank you!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}
