package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/models"
)

type MenuService struct {
	db *gorm.DB
}

func NewMenuService(db *gorm.DB) *MenuService {
	return &MenuService{db: db}
}

func (s *MenuService) List(ctx context.Context, categoryID uint) ([]models.MenuItem, error) {
	var items []models.MenuItem
	q := s.db.WithContext(ctx).Preload("Category").Preload("Groups.Options").Where("available = ?", true)
	if categoryID != 0 {
		q = q.Where("category_id = ?", categoryID)
	}
	if err := q.Order("name").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MenuService) Get(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).Preload("Category").Preload("Groups.Options").First(&item, id).Error
	if err != nil {
		return nil, notFound(err, ErrMenuItemNotFound)
	}
	return &item, nil
}

// ResolvePrice validates a customization choice and returns the unit price:
// the item's base price plus every chosen option's delta.
func (s *MenuService) ResolvePrice(ctx context.Context, menuItemID uint, selections map[uint][]uint) (cart.Resolved, error) {
	item, err := s.Get(ctx, menuItemID)
	if err != nil {
		return cart.Resolved{}, err
	}
	if !item.Available {
		return cart.Resolved{}, ErrMenuItemUnavailable
	}

	groups := make(map[uint]models.CustomizationGroup, len(item.Groups))
	for _, g := range item.Groups {
		groups[g.ID] = g
	}

	price := item.Price
	for groupID, optionIDs := range selections {
		g, ok := groups[groupID]
		if !ok {
			return cart.Resolved{}, fmt.Errorf("%w: group %d does not belong to %s", ErrInvalidSelection, groupID, item.Name)
		}
		if g.MaxSelect > 0 && len(optionIDs) > g.MaxSelect {
			return cart.Resolved{}, fmt.Errorf("%w: at most %d choice(s) for %s", ErrInvalidSelection, g.MaxSelect, g.Name)
		}

		seen := make(map[uint]bool, len(optionIDs))
		for _, optID := range optionIDs {
			if seen[optID] {
				return cart.Resolved{}, fmt.Errorf("%w: option %d chosen twice", ErrInvalidSelection, optID)
			}
			seen[optID] = true

			opt, ok := findOption(g, optID)
			if !ok {
				return cart.Resolved{}, fmt.Errorf("%w: option %d is not part of %s", ErrInvalidSelection, optID, g.Name)
			}
			price = price.Add(opt.PriceDelta)
		}
	}

	for _, g := range item.Groups {
		if g.Required && len(selections[g.ID]) == 0 {
			return cart.Resolved{}, fmt.Errorf("%w: %s is required", ErrInvalidSelection, g.Name)
		}
	}

	return cart.Resolved{Name: item.Name, UnitPrice: price}, nil
}

func findOption(g models.CustomizationGroup, id uint) (models.CustomizationOption, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return models.CustomizationOption{}, false
}
