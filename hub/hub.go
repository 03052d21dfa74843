// Package hub fans server events out to WebSocket clients: staff screens
// get everything, customer tabs get only their own table's events.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/kvstore"
)

// Event types
const (
	EventCartUpdated      = "cart_updated"
	EventOrderCreated     = "order_created"
	EventOrderUpdate      = "order_update"
	EventPaymentInitiated = "payment_initiated"
	EventProofUploaded    = "payment_proof_uploaded"
	EventPaymentVerified  = "payment_verified"
	EventPaymentRejected  = "payment_rejected"
	EventPaymentExpired   = "payment_expired"
	EventStaffNotif       = "staff_notification"
	EventCashReconciled   = "cash_reconciled"
)

type Message struct {
	Event  string      `json:"event"`
	Origin string      `json:"origin,omitempty"`
	Data   interface{} `json:"data"`
}

type room struct {
	clients map[*websocket.Conn]struct{}
	cancel  context.CancelFunc
}

type Hub struct {
	mutex sync.Mutex
	staff map[*websocket.Conn]string // conn -> role
	rooms map[uint]*room

	kv  kvstore.Store
	log *logrus.Logger
}

func New(kv kvstore.Store, log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		staff: make(map[*websocket.Conn]string),
		rooms: make(map[uint]*room),
		kv:    kv,
		log:   log,
	}
}

func (h *Hub) RegisterStaff(conn *websocket.Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.staff[conn] = role
}

func (h *Hub) UnregisterStaff(conn *websocket.Conn) {
	h.mutex.Lock()
	delete(h.staff, conn)
	h.mutex.Unlock()
	conn.Close()
}

// JoinTable adds a customer connection to its table room. The first
// connection of a room starts a cart listener that pushes every write to
// that table's cart to the room.
func (h *Hub) JoinTable(tableID uint, conn *websocket.Conn) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	r, ok := h.rooms[tableID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		l := cart.NewListener(h.kv, tableID, "hub")
		l.OnChange = func(c cart.Cart, origin string) {
			h.broadcastTable(tableID, Message{Event: EventCartUpdated, Origin: origin, Data: c})
		}
		if err := l.Start(ctx); err != nil {
			cancel()
			return err
		}
		r = &room{clients: make(map[*websocket.Conn]struct{}), cancel: cancel}
		h.rooms[tableID] = r
	}
	r.clients[conn] = struct{}{}
	return nil
}

func (h *Hub) LeaveTable(tableID uint, conn *websocket.Conn) {
	h.mutex.Lock()
	if r, ok := h.rooms[tableID]; ok {
		delete(r.clients, conn)
		if len(r.clients) == 0 {
			r.cancel()
			delete(h.rooms, tableID)
		}
	}
	h.mutex.Unlock()
	conn.Close()
}

func (h *Hub) TableClientCount(tableID uint) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if r, ok := h.rooms[tableID]; ok {
		return len(r.clients)
	}
	return 0
}

func (h *Hub) BroadcastToTable(tableID uint, event string, data interface{}) {
	h.broadcastTable(tableID, Message{Event: event, Data: data})
}

func (h *Hub) BroadcastToStaff(event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.Errorf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, role := range h.staff {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithField("role", role).Warnf("Error sending message to staff client: %v", err)
		}
	}
}

// Close stops every room listener.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for id, r := range h.rooms {
		r.cancel()
		for conn := range r.clients {
			conn.Close()
		}
		delete(h.rooms, id)
	}
	for conn := range h.staff {
		conn.Close()
		delete(h.staff, conn)
	}
}

func (h *Hub) broadcastTable(tableID uint, m Message) {
	msg, err := json.Marshal(m)
	if err != nil {
		h.log.Errorf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	r, ok := h.rooms[tableID]
	if !ok {
		return
	}
	for conn := range r.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithField("table_id", tableID).Warnf("Error sending message to table client: %v", err)
		}
	}
}
