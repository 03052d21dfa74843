package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// TabHeader identifies the browser tab that made a cart write. The tab's
// own socket uses it to skip echoes of its own edits.
const TabHeader = "X-Tab-ID"

type cartView struct {
	cart.Cart
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func viewOf(c cart.Cart) cartView {
	if c.Lines == nil {
		c.Lines = []cart.Line{}
	}
	return cartView{Cart: c, Total: c.Total(), ItemCount: c.ItemCount()}
}

type CartController struct {
	Carts *cart.Store
}

func NewCartController(carts *cart.Store) *CartController {
	return &CartController{Carts: carts}
}

func (cc *CartController) tableAndContext(c *gin.Context) (uint, bool) {
	tableID, err := uintParam(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return 0, false
	}
	if tab := c.GetHeader(TabHeader); tab != "" {
		c.Request = c.Request.WithContext(cart.WithOrigin(c.Request.Context(), tab))
	}
	return tableID, true
}

func (cc *CartController) GetCart(c *gin.Context) {
	tableID, ok := cc.tableAndContext(c)
	if !ok {
		return
	}
	current, err := cc.Carts.Get(c.Request.Context(), tableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart", viewOf(current))
}

func (cc *CartController) AddItem(c *gin.Context) {
	tableID, ok := cc.tableAndContext(c)
	if !ok {
		return
	}

	var req cart.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	updated, err := cc.Carts.AddItem(c.Request.Context(), tableID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item added", viewOf(updated))
}

func (cc *CartController) UpdateItem(c *gin.Context) {
	tableID, ok := cc.tableAndContext(c)
	if !ok {
		return
	}

	var req cart.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updated, err := cc.Carts.UpdateLine(c.Request.Context(), tableID, c.Param("line_id"), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart updated", viewOf(updated))
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	tableID, ok := cc.tableAndContext(c)
	if !ok {
		return
	}

	updated, err := cc.Carts.RemoveLine(c.Request.Context(), tableID, c.Param("line_id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item removed", viewOf(updated))
}

func (cc *CartController) ClearCart(c *gin.Context) {
	tableID, ok := cc.tableAndContext(c)
	if !ok {
		return
	}

	if err := cc.Carts.Clear(c.Request.Context(), tableID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cart cleared", viewOf(cart.Cart{TableID: tableID}))
}
