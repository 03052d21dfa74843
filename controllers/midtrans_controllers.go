package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type MidtransController struct {
	Midtrans *services.MidtransService
	Watcher  *services.MidtransWatcher
}

func NewMidtransController(midtrans *services.MidtransService, watcher *services.MidtransWatcher) *MidtransController {
	return &MidtransController{Midtrans: midtrans, Watcher: watcher}
}

type midtransNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// HandleCallback receives Midtrans HTTP notifications. Only a valid
// signature can change a transaction.
func (mc *MidtransController) HandleCallback(c *gin.Context) {
	var n midtransNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	log := utils.InfoLogger.WithFields(logrus.Fields{
		"reference":          n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})

	if !mc.Midtrans.ValidateSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		log.Warn("Midtrans callback with invalid signature")
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid signature"))
		return
	}

	status := services.MapMidtransStatus(n.TransactionStatus)
	if n.FraudStatus == "deny" {
		status = services.MapMidtransStatus("deny")
	}

	tx, err := mc.Watcher.Apply(c.Request.Context(), n.OrderID, status)
	switch {
	case errors.Is(err, services.ErrAlreadyVerified):
		utils.RespondJSON(c, http.StatusOK, "Already processed", nil)
		return
	case err != nil:
		respondServiceError(c, err)
		return
	}

	log.Info("Midtrans callback processed")
	utils.RespondJSON(c, http.StatusOK, "Callback processed", gin.H{
		"transaction_id": tx.ID,
		"status":         tx.Status,
	})
}
