// Package cart holds the per-table cart shared by every tab and device
// seated at the same table.
package cart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const keyPrefix = "cart:table:"

// Key is the storage key of a table's cart.
func Key(tableID uint) string {
	return keyPrefix + strconv.FormatUint(uint64(tableID), 10)
}

// TableFromKey reverses Key. ok is false for keys that are not cart keys.
func TableFromKey(key string) (uint, bool) {
	if !strings.HasPrefix(key, keyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(key, keyPrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type Line struct {
	ID         string          `json:"id"`
	MenuItemID uint            `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Selections map[uint][]uint `json:"selections,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// signature identifies lines that should merge: same item, same choices,
// same notes.
func (l Line) signature() string {
	groups := make([]int, 0, len(l.Selections))
	for g := range l.Selections {
		groups = append(groups, int(g))
	}
	sort.Ints(groups)

	var b strings.Builder
	fmt.Fprintf(&b, "%d|", l.MenuItemID)
	for _, g := range groups {
		opts := append([]uint(nil), l.Selections[uint(g)]...)
		sort.Slice(opts, func(i, j int) bool { return opts[i] < opts[j] })
		fmt.Fprintf(&b, "%d:%v;", g, opts)
	}
	b.WriteString("|")
	b.WriteString(strings.TrimSpace(l.Notes))
	return b.String()
}

type Cart struct {
	TableID   uint      `json:"table_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c Cart) line(id string) int {
	for i, l := range c.Lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
