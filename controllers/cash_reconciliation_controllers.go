package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-ordering/middlewares"
	"github.com/yeremiapane/restaurant-ordering/services"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type CashReconciliationController struct {
	Cash *services.CashReconciliationService
}

func NewCashReconciliationController(cash *services.CashReconciliationService) *CashReconciliationController {
	return &CashReconciliationController{Cash: cash}
}

// CreateReconciliation closes a cashier shift against its drawer count.
func (cc *CashReconciliationController) CreateReconciliation(c *gin.Context) {
	var req services.CashCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	req.CashierID = middlewares.UserID(c)

	rec, err := cc.Cash.Reconcile(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Cash drawer reconciled", rec)
}

func (cc *CashReconciliationController) GetReconciliations(c *gin.Context) {
	recs, err := cc.Cash.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cash reconciliations", recs)
}

func (cc *CashReconciliationController) GetReconciliation(c *gin.Context) {
	id, err := uintParam(c, "id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	rec, err := cc.Cash.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cash reconciliation", rec)
}
