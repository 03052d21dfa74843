package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MenuCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);unique" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

type MenuItem struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	CategoryID  uint                 `gorm:"not null;index" json:"category_id"`
	Category    MenuCategory         `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
	Name        string               `gorm:"type:varchar(255);not null" json:"name"`
	Price       decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"price"`
	Description string               `gorm:"type:text" json:"description"`
	ImageURL    string               `gorm:"type:varchar(255)" json:"image_url"`
	Available   bool                 `gorm:"not null;default:true" json:"available"`
	Groups      []CustomizationGroup `gorm:"foreignKey:MenuItemID" json:"customization_groups"`
	CreatedAt   time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"not null" json:"updated_at"`
}

// CustomizationGroup is a set of options for one menu item, e.g. "Spice level".
// MaxSelect 0 means unlimited.
type CustomizationGroup struct {
	ID         uint                  `gorm:"primaryKey" json:"id"`
	MenuItemID uint                  `gorm:"not null;index" json:"menu_item_id"`
	Name       string                `gorm:"type:varchar(100);not null" json:"name"`
	Required   bool                  `gorm:"not null;default:false" json:"required"`
	MaxSelect  int                   `gorm:"not null;default:1" json:"max_select"`
	Options    []CustomizationOption `gorm:"foreignKey:GroupID" json:"options"`
}

type CustomizationOption struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	GroupID    uint            `gorm:"not null;index" json:"group_id"`
	Name       string          `gorm:"type:varchar(100);not null" json:"name"`
	PriceDelta decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"price_delta"`
}
