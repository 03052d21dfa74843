package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type ReceiptController struct {
	Receipts *services.ReceiptService
}

func NewReceiptController(receipts *services.ReceiptService) *ReceiptController {
	return &ReceiptController{Receipts: receipts}
}

// DownloadReceipt streams the PDF receipt of a completed payment.
func (rc *ReceiptController) DownloadReceipt(c *gin.Context) {
	paymentID := c.Param("payment_id")

	pdf, err := rc.Receipts.Render(c.Request.Context(), paymentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.InfoLogger.WithField("transaction_id", paymentID).Info("Receipt generated")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.pdf"`, paymentID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
