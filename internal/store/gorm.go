package store

import (
	"context"
	"errors"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the production Store backed by GORM/Postgres.
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a Store backed by the given GORM handle.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (s *Gorm) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Gorm) FindRestaurantByMerchant(ctx context.Context, provider model.POSProvider, merchantID string) (*model.Restaurant, error) {
	var r model.Restaurant
	err := s.db.WithContext(ctx).
		Where("pos_provider = ? AND pos_merchant_id = ?", provider, merchantID).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Gorm) SaveRestaurant(ctx context.Context, r *model.Restaurant) error {
	return s.db.WithContext(ctx).Save(r).Error
}

func (s *Gorm) UpsertMenuCategory(ctx context.Context, c *model.MenuCategory) (bool, error) {
	var existing model.MenuCategory
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND external_provider = ? AND external_id = ?",
			c.RestaurantID, c.ExternalProvider, c.ExternalID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, s.db.WithContext(ctx).Create(c).Error
	}
	if err != nil {
		return false, err
	}

	existing.Name = c.Name
	existing.Description = c.Description
	existing.DisplayOrder = c.DisplayOrder
	existing.IsActive = c.IsActive
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return false, err
	}
	*c = existing
	return false, nil
}

func (s *Gorm) UpsertMenuItem(ctx context.Context, m *model.MenuItem) (bool, error) {
	var existing model.MenuItem
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND external_provider = ? AND external_id = ?",
			m.RestaurantID, m.ExternalProvider, m.ExternalID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, s.db.WithContext(ctx).Create(m).Error
	}
	if err != nil {
		return false, err
	}

	existing.Name = m.Name
	existing.Description = m.Description
	existing.Price = m.Price
	existing.IsActive = m.IsActive
	existing.CategoryID = m.CategoryID
	existing.ExternalMetadata = m.ExternalMetadata
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return false, err
	}
	*m = existing
	return false, nil
}

func (s *Gorm) FindMenuItemByName(ctx context.Context, restaurantID, name string) (*model.MenuItem, error) {
	var m model.MenuItem
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND name = ?", restaurantID, name).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Gorm) FindMenuItemByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (*model.MenuItem, error) {
	var m model.MenuItem
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND external_provider = ? AND external_id = ?",
			restaurantID, provider, externalID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *Gorm) CreateMenuItem(ctx context.Context, m *model.MenuItem) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Gorm) OrderExistsByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("restaurant_id = ? AND external_provider = ? AND external_id = ?",
			restaurantID, provider, externalID).
		Count(&count).Error
	return count > 0, err
}

func (s *Gorm) CreateOrder(ctx context.Context, o *model.Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *Gorm) CreatePayment(ctx context.Context, p *model.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Gorm) ListOrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Order, error) {
	var orders []model.Order
	err := s.db.WithContext(ctx).
		Preload("LineItems").
		Where("restaurant_id = ? AND order_time >= ? AND order_time < ?", restaurantID, from, to).
		Order("order_time").
		Find(&orders).Error
	return orders, err
}

func (s *Gorm) ListPaymentsBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND payment_time >= ? AND payment_time < ?", restaurantID, from, to).
		Order("payment_time").
		Find(&payments).Error
	return payments, err
}

// InsertEventIfAbsent appends to the idempotency ledger. The unique index on
// (provider, external_event_id) makes a duplicate delivery a no-op.
func (s *Gorm) InsertEventIfAbsent(ctx context.Context, e *model.POSExternalEvent) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_event_id"}},
			DoNothing: true,
		}).
		Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Gorm) UpsertExternalObject(ctx context.Context, o *model.POSExternalObject) error {
	var existing model.POSExternalObject
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND provider = ? AND object_type = ? AND object_id = ?",
			o.RestaurantID, o.Provider, o.ObjectType, o.ObjectID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(o).Error
	}
	if err != nil {
		return err
	}
	existing.Payload = o.Payload
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *Gorm) ListExternalObjects(ctx context.Context, restaurantID string, provider model.POSProvider, objectType string, limit int) ([]model.POSExternalObject, error) {
	q := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND provider = ?", restaurantID, provider)
	if objectType != "" {
		q = q.Where("object_type = ?", objectType)
	}
	var objects []model.POSExternalObject
	err := q.Order("updated_at DESC").Limit(limit).Find(&objects).Error
	return objects, err
}

func (s *Gorm) GetRecipeByMenuItem(ctx context.Context, menuItemID string) (*model.Recipe, error) {
	var r model.Recipe
	err := s.db.WithContext(ctx).
		Preload("Ingredients").
		Where("menu_item_id = ?", menuItemID).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *Gorm) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	var ing model.Ingredient
	if err := s.db.WithContext(ctx).First(&ing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ing, nil
}
