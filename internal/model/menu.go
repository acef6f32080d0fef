package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MenuCategory is a reconciled menu category. Rows imported from an external
// POS carry the provider and remote id as a secondary unique key.
type MenuCategory struct {
	ID           string `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID string `json:"restaurant_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_category_external,priority:1"`
	Name         string `json:"name" gorm:"type:varchar(100);not null"`
	Description  string `json:"description" gorm:"type:text"`
	DisplayOrder int    `json:"display_order" gorm:"default:0"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`

	ExternalProvider POSProvider `json:"external_provider" gorm:"type:varchar(20);uniqueIndex:ux_category_external,priority:2"`
	ExternalID       string      `json:"external_id" gorm:"type:varchar(191);uniqueIndex:ux_category_external,priority:3"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *MenuCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// MenuItem is a reconciled menu item. Remote removals mark the row inactive;
// rows are never deleted by a sync.
type MenuItem struct {
	ID           string          `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID string          `json:"restaurant_id" gorm:"type:uuid;not null;index;uniqueIndex:ux_item_external,priority:1"`
	CategoryID   *string         `json:"category_id" gorm:"type:uuid"`
	Name         string          `json:"name" gorm:"type:varchar(255);not null"`
	Description  string          `json:"description" gorm:"type:text"`
	Price        decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	IsActive     bool            `json:"is_active" gorm:"default:true"`

	ExternalProvider POSProvider    `json:"external_provider" gorm:"type:varchar(20);uniqueIndex:ux_item_external,priority:2"`
	ExternalID       string         `json:"external_id" gorm:"type:varchar(191);uniqueIndex:ux_item_external,priority:3"`
	ExternalMetadata datatypes.JSON `json:"external_metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Ingredient is a stock-tracked ingredient used by prep forecasting.
type Ingredient struct {
	ID            string          `json:"id" gorm:"primaryKey;type:uuid"`
	RestaurantID  string          `json:"restaurant_id" gorm:"type:uuid;not null;index"`
	Name          string          `json:"name" gorm:"type:varchar(100);not null"`
	Unit          string          `json:"unit" gorm:"type:varchar(20)"`
	StockQuantity decimal.Decimal `json:"stock_quantity" gorm:"type:numeric(10,2);default:0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Recipe links a menu item to its ingredient decomposition.
type Recipe struct {
	ID          string             `json:"id" gorm:"primaryKey;type:uuid"`
	MenuItemID  string             `json:"menu_item_id" gorm:"type:uuid;not null;uniqueIndex"`
	Ingredients []RecipeIngredient `json:"ingredients" gorm:"foreignKey:RecipeID"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RecipeIngredient is one ingredient quantity within a recipe.
type RecipeIngredient struct {
	ID           string          `json:"id" gorm:"primaryKey;type:uuid"`
	RecipeID     string          `json:"recipe_id" gorm:"type:uuid;not null;index"`
	IngredientID string          `json:"ingredient_id" gorm:"type:uuid;not null"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:numeric(10,2);not null"`
	Unit         string          `json:"unit" gorm:"type:varchar(20)"`
}

func (r *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
