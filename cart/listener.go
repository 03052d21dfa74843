package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-ordering/kvstore"
)

// Listener keeps an in-memory copy of one table's cart in step with writes
// made elsewhere (other tabs, other devices, other server nodes).
type Listener struct {
	kv      kvstore.Store
	tableID uint
	key     string
	origin  string

	mu   sync.RWMutex
	cart Cart

	// OnChange runs after each reconciliation with the new cart and the
	// origin of the write.
	OnChange func(c Cart, origin string)

	done chan struct{}
	log  logrus.FieldLogger
}

func NewListener(kv kvstore.Store, tableID uint, origin string) *Listener {
	return &Listener{
		kv:      kv,
		tableID: tableID,
		key:     Key(tableID),
		origin:  origin,
		cart:    Cart{TableID: tableID, Lines: []Line{}},
		done:    make(chan struct{}),
		log:     logrus.StandardLogger(),
	}
}

// Start loads the current cart, subscribes, and reconciles in the
// background until ctx is done. Writes made after Start returns are seen.
func (l *Listener) Start(ctx context.Context) error {
	if l.tableID == 0 {
		return ErrInvalidTable
	}

	changes, err := l.kv.Subscribe(ctx)
	if err != nil {
		return err
	}

	raw, err := l.kv.Get(ctx, l.key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
	case err != nil:
		return err
	default:
		c, err := Decode(l.tableID, raw)
		if err != nil {
			return err
		}
		l.set(c)
	}

	go l.run(changes)
	return nil
}

// Done is closed once the subscription ends.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) Snapshot() Cart {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := l.cart
	c.Lines = append([]Line(nil), l.cart.Lines...)
	return c
}

func (l *Listener) run(changes <-chan kvstore.Change) {
	defer close(l.done)
	for change := range changes {
		l.apply(change)
	}
}

// apply reconciles one change. Only this table's key counts, and our own
// writes are already reflected locally.
func (l *Listener) apply(change kvstore.Change) bool {
	if change.Key != l.key {
		return false
	}
	if l.origin != "" && change.Origin == l.origin {
		return false
	}

	next := Cart{TableID: l.tableID, Lines: []Line{}}
	if !change.Deleted {
		c, err := Decode(l.tableID, change.Value)
		if err != nil {
			l.log.WithError(err).WithField("table_id", l.tableID).Warn("cart: ignoring unreadable change")
			return false
		}
		next = c
	}

	l.set(next)
	if l.OnChange != nil {
		l.OnChange(l.Snapshot(), change.Origin)
	}
	return true
}

func (l *Listener) set(c Cart) {
	l.mu.Lock()
	l.cart = c
	l.mu.Unlock()
}
