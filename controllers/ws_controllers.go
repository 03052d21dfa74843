package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/middlewares"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type WSController struct {
	Hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWSController builds the socket endpoints. allowedOrigin "" or "*"
// accepts any origin.
func NewWSController(h *hub.Hub, allowedOrigin string) *WSController {
	return &WSController{
		Hub: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// TableSocket streams cart and payment events for one table.
func (wc *WSController) TableSocket(c *gin.Context) {
	tableID, err := uintParam(c, "table_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	if err := wc.Hub.JoinTable(tableID, ws); err != nil {
		utils.ErrorLogger.WithField("table_id", tableID).Errorf("Error joining table room: %v", err)
		ws.Close()
		return
	}

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	wc.Hub.LeaveTable(tableID, ws)
}

// StaffSocket streams every event to cashier, kitchen and admin screens.
func (wc *WSController) StaffSocket(c *gin.Context) {
	role := c.GetString(middlewares.ContextRole)

	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	wc.Hub.RegisterStaff(ws, role)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	wc.Hub.UnregisterStaff(ws)
}
