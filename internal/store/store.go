package store

import (
	"context"
	"errors"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence boundary of the POS integration subsystem.
// All mutation goes through single-row upserts or insert-if-absent, so
// concurrent jobs for the same tenant converge instead of corrupting.
type Store interface {
	// Restaurants
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	FindRestaurantByMerchant(ctx context.Context, provider model.POSProvider, merchantID string) (*model.Restaurant, error)
	SaveRestaurant(ctx context.Context, r *model.Restaurant) error

	// Reconciled catalog. Upserts match on (restaurant, provider, external id)
	// and report whether a new row was created.
	UpsertMenuCategory(ctx context.Context, c *model.MenuCategory) (created bool, err error)
	UpsertMenuItem(ctx context.Context, m *model.MenuItem) (created bool, err error)
	FindMenuItemByName(ctx context.Context, restaurantID, name string) (*model.MenuItem, error)
	FindMenuItemByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (*model.MenuItem, error)
	CreateMenuItem(ctx context.Context, m *model.MenuItem) error

	// Reconciled orders. A remote order id is imported at most once.
	OrderExistsByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (bool, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	CreatePayment(ctx context.Context, p *model.Payment) error
	ListOrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Order, error)
	ListPaymentsBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Payment, error)

	// Idempotency ledger and snapshots.
	InsertEventIfAbsent(ctx context.Context, e *model.POSExternalEvent) (inserted bool, err error)
	UpsertExternalObject(ctx context.Context, o *model.POSExternalObject) error
	ListExternalObjects(ctx context.Context, restaurantID string, provider model.POSProvider, objectType string, limit int) ([]model.POSExternalObject, error)

	// Recipes for prep forecasting.
	GetRecipeByMenuItem(ctx context.Context, menuItemID string) (*model.Recipe, error)
	GetIngredient(ctx context.Context, id string) (*model.Ingredient, error)
}
