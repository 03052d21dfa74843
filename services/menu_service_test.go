package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/models"
)

type seededMenu struct {
	Item     models.MenuItem
	Spice    models.CustomizationGroup
	Toppings models.CustomizationGroup
	Mild     models.CustomizationOption
	Hot      models.CustomizationOption
	Egg      models.CustomizationOption
	Cheese   models.CustomizationOption
}

// seedMenu creates "Mie Goreng" at 25000 with a required spice level and
// up to two toppings.
func seedMenu(t *testing.T, db *gorm.DB) seededMenu {
	t.Helper()
	category := models.MenuCategory{Name: "Noodles"}
	require.NoError(t, db.Create(&category).Error)

	item := models.MenuItem{
		CategoryID: category.ID,
		Name:       "Mie Goreng",
		Price:      decimal.NewFromInt(25000),
		Available:  true,
		Groups: []models.CustomizationGroup{
			{
				Name:      "Spice level",
				Required:  true,
				MaxSelect: 1,
				Options: []models.CustomizationOption{
					{Name: "Mild", PriceDelta: decimal.Zero},
					{Name: "Extra hot", PriceDelta: decimal.NewFromInt(2000)},
				},
			},
			{
				Name:      "Toppings",
				MaxSelect: 2,
				Options: []models.CustomizationOption{
					{Name: "Fried egg", PriceDelta: decimal.NewFromInt(5000)},
					{Name: "Cheese", PriceDelta: decimal.NewFromInt(7000)},
				},
			},
		},
	}
	require.NoError(t, db.Create(&item).Error)

	return seededMenu{
		Item:     item,
		Spice:    item.Groups[0],
		Toppings: item.Groups[1],
		Mild:     item.Groups[0].Options[0],
		Hot:      item.Groups[0].Options[1],
		Egg:      item.Groups[1].Options[0],
		Cheese:   item.Groups[1].Options[1],
	}
}

func TestResolvePrice(t *testing.T) {
	db := setupTestDB(t)
	m := seedMenu(t, db)
	s := NewMenuService(db)
	ctx := context.Background()

	got, err := s.ResolvePrice(ctx, m.Item.ID, map[uint][]uint{
		m.Spice.ID:    {m.Hot.ID},
		m.Toppings.ID: {m.Egg.ID, m.Cheese.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mie Goreng", got.Name)
	assert.True(t, decimal.NewFromInt(39000).Equal(got.UnitPrice), got.UnitPrice.String())

	got, err = s.ResolvePrice(ctx, m.Item.ID, map[uint][]uint{m.Spice.ID: {m.Mild.ID}})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(25000).Equal(got.UnitPrice))
}

func TestResolvePriceRejectsBadSelections(t *testing.T) {
	db := setupTestDB(t)
	m := seedMenu(t, db)
	s := NewMenuService(db)
	ctx := context.Background()

	tests := []struct {
		name       string
		selections map[uint][]uint
	}{
		{"required group missing", map[uint][]uint{m.Toppings.ID: {m.Egg.ID}}},
		{"too many choices", map[uint][]uint{m.Spice.ID: {m.Mild.ID, m.Hot.ID}}},
		{"duplicate option", map[uint][]uint{m.Spice.ID: {m.Mild.ID}, m.Toppings.ID: {m.Egg.ID, m.Egg.ID}}},
		{"option from another group", map[uint][]uint{m.Spice.ID: {m.Egg.ID}}},
		{"unknown group", map[uint][]uint{m.Spice.ID: {m.Mild.ID}, 999: {m.Egg.ID}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ResolvePrice(ctx, m.Item.ID, tt.selections)
			assert.ErrorIs(t, err, ErrInvalidSelection)
		})
	}

	_, err := s.ResolvePrice(ctx, 999, nil)
	assert.ErrorIs(t, err, ErrMenuItemNotFound)
}

func TestMenuListHidesUnavailable(t *testing.T) {
	db := setupTestDB(t)
	m := seedMenu(t, db)
	s := NewMenuService(db)

	items, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0].Groups, 2)

	require.NoError(t, db.Model(&m.Item).Update("available", false).Error)
	items, err = s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = s.ResolvePrice(context.Background(), m.Item.ID, map[uint][]uint{m.Spice.ID: {m.Mild.ID}})
	assert.ErrorIs(t, err, ErrMenuItemUnavailable)
}
