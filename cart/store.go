package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-ordering/kvstore"
)

var (
	ErrInvalidTable    = errors.New("invalid table id")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Resolved is the authoritative name and unit price of a menu item with a
// given set of customizations.
type Resolved struct {
	Name      string
	UnitPrice decimal.Decimal
}

type PriceResolver interface {
	ResolvePrice(ctx context.Context, menuItemID uint, selections map[uint][]uint) (Resolved, error)
}

type AddRequest struct {
	MenuItemID uint            `json:"menu_item_id" binding:"required"`
	Quantity   int             `json:"quantity"`
	Selections map[uint][]uint `json:"selections"`
	Notes      string          `json:"notes"`
}

// UpdateRequest changes a line. Nil fields are left alone; a quantity of
// zero or less removes the line.
type UpdateRequest struct {
	Quantity   *int             `json:"quantity"`
	Selections *map[uint][]uint `json:"selections"`
	Notes      *string          `json:"notes"`
}

type originKey struct{}

// WithOrigin tags writes made with ctx as coming from origin (a browser tab
// id, a device id). Listeners with the same origin skip them.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// Store reads and writes table carts. Every mutation writes the whole cart
// back; concurrent edits are last-write-wins.
type Store struct {
	kv     kvstore.Store
	prices PriceResolver
	origin string
	now    func() time.Time
}

func NewStore(kv kvstore.Store, prices PriceResolver, origin string) *Store {
	return &Store{kv: kv, prices: prices, origin: origin, now: time.Now}
}

func (s *Store) originOf(ctx context.Context) string {
	if o, ok := ctx.Value(originKey{}).(string); ok && o != "" {
		return o
	}
	return s.origin
}

func (s *Store) Get(ctx context.Context, tableID uint) (Cart, error) {
	if tableID == 0 {
		return Cart{}, ErrInvalidTable
	}
	raw, err := s.kv.Get(ctx, Key(tableID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return Cart{TableID: tableID, Lines: []Line{}}, nil
	}
	if err != nil {
		return Cart{}, err
	}
	return Decode(tableID, raw)
}

func (s *Store) AddItem(ctx context.Context, tableID uint, req AddRequest) (Cart, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		return Cart{}, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, tableID)
	if err != nil {
		return Cart{}, err
	}

	resolved, err := s.prices.ResolvePrice(ctx, req.MenuItemID, req.Selections)
	if err != nil {
		return Cart{}, err
	}

	line := Line{
		ID:         uuid.NewString(),
		MenuItemID: req.MenuItemID,
		Name:       resolved.Name,
		UnitPrice:  resolved.UnitPrice,
		Quantity:   req.Quantity,
		Selections: req.Selections,
		Notes:      req.Notes,
	}

	merged := false
	for i := range c.Lines {
		if c.Lines[i].signature() == line.signature() {
			c.Lines[i].Quantity += line.Quantity
			c.Lines[i].UnitPrice = line.UnitPrice
			merged = true
			break
		}
	}
	if !merged {
		c.Lines = append(c.Lines, line)
	}

	return c, s.save(ctx, c)
}

func (s *Store) UpdateLine(ctx context.Context, tableID uint, lineID string, req UpdateRequest) (Cart, error) {
	c, err := s.Get(ctx, tableID)
	if err != nil {
		return Cart{}, err
	}
	i := c.line(lineID)
	if i < 0 {
		return Cart{}, ErrLineNotFound
	}

	if req.Quantity != nil && *req.Quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return c, s.save(ctx, c)
	}

	line := c.Lines[i]
	if req.Quantity != nil {
		line.Quantity = *req.Quantity
	}
	if req.Notes != nil {
		line.Notes = *req.Notes
	}
	if req.Selections != nil {
		resolved, err := s.prices.ResolvePrice(ctx, line.MenuItemID, *req.Selections)
		if err != nil {
			return Cart{}, err
		}
		line.Selections = *req.Selections
		line.UnitPrice = resolved.UnitPrice
		line.Name = resolved.Name
	}
	c.Lines[i] = line

	return c, s.save(ctx, c)
}

func (s *Store) RemoveLine(ctx context.Context, tableID uint, lineID string) (Cart, error) {
	c, err := s.Get(ctx, tableID)
	if err != nil {
		return Cart{}, err
	}
	i := c.line(lineID)
	if i < 0 {
		return Cart{}, ErrLineNotFound
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return c, s.save(ctx, c)
}

// Clear deletes the table's cart key.
func (s *Store) Clear(ctx context.Context, tableID uint) error {
	if tableID == 0 {
		return ErrInvalidTable
	}
	return s.kv.Delete(ctx, Key(tableID), s.originOf(ctx))
}

func (s *Store) save(ctx context.Context, c Cart) error {
	c.UpdatedAt = s.now()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, Key(c.TableID), raw, s.originOf(ctx))
}

// Decode parses a stored cart. The table id always comes from the key, not
// the payload.
func Decode(tableID uint, raw []byte) (Cart, error) {
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	c.TableID = tableID
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return c, nil
}
