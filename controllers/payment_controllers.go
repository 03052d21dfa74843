package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/middlewares"
	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type PaymentController struct {
	Payments   *services.PaymentService
	Verifier   *services.PaymentVerifier
	Reconciler *services.TransferReconciler
}

func NewPaymentController(payments *services.PaymentService, verifier *services.PaymentVerifier, reconciler *services.TransferReconciler) *PaymentController {
	return &PaymentController{Payments: payments, Verifier: verifier, Reconciler: reconciler}
}

// safeScreen is where the UI goes when a payment page has lost its context.
func safeScreen(tableID uint) string {
	if tableID == 0 {
		return "/"
	}
	return fmt.Sprintf("/tables/%d/menu", tableID)
}

// leavesPaymentPage reports errors after which the payment page cannot be
// shown at all.
func leavesPaymentPage(err error) bool {
	return errors.Is(err, services.ErrMissingContext) ||
		errors.Is(err, services.ErrOrderNotFound) ||
		errors.Is(err, services.ErrTableMismatch) ||
		errors.Is(err, services.ErrOrderNotPayable) ||
		errors.Is(err, services.ErrUnsupportedMethod)
}

// InitiatePayment opens the payment session for an order.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	var req services.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondErrorRedirect(c, http.StatusBadRequest, err, safeScreen(0))
		return
	}

	session, err := pc.Payments.Initiate(c.Request.Context(), req)
	if err != nil {
		if leavesPaymentPage(err) {
			utils.RespondErrorRedirect(c, statusFor(err), err, safeScreen(req.TableID))
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Payment session created", session)
}

// GetPayment answers GET /api/payments?transaction_id=.
func (pc *PaymentController) GetPayment(c *gin.Context) {
	txID := c.Query("transaction_id")
	if txID == "" {
		utils.RespondErrorRedirect(c, http.StatusBadRequest, errors.New("transaction_id is required"), safeScreen(0))
		return
	}

	session, err := pc.Payments.Session(c.Request.Context(), txID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment session", session)
}

// GetPayments lists transactions for the cashier, filtered by ?status= and ?method=.
func (pc *PaymentController) GetPayments(c *gin.Context) {
	txs, err := pc.Payments.List(c.Request.Context(), c.Query("status"), c.Query("method"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All payments", txs)
}

func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	tx, err := pc.Verifier.Verify(c.Request.Context(), c.Param("payment_id"), middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment verified", tx)
}

func (pc *PaymentController) RejectPayment(c *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	tx, err := pc.Verifier.Reject(c.Request.Context(), c.Param("payment_id"), middlewares.UserID(c), body.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment rejected", tx)
}

// ReconcileTransfer verifies the bank transfer whose amount to pay equals
// the amount seen on the bank statement.
func (pc *PaymentController) ReconcileTransfer(c *gin.Context) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if !body.Amount.IsPositive() {
		utils.RespondError(c, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}

	tx, err := pc.Reconciler.ReconcileTransfer(c.Request.Context(), body.Amount, middlewares.UserID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Transfer matched and verified", tx)
}
