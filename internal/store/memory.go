package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used by tests and local development.
type Memory struct {
	mu sync.Mutex

	restaurants map[string]*model.Restaurant
	categories  map[string]*model.MenuCategory
	items       map[string]*model.MenuItem
	orders      map[string]*model.Order
	payments    map[string]*model.Payment
	events      map[string]*model.POSExternalEvent
	objects     map[string]*model.POSExternalObject
	recipes     map[string]*model.Recipe
	ingredients map[string]*model.Ingredient
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		restaurants: map[string]*model.Restaurant{},
		categories:  map[string]*model.MenuCategory{},
		items:       map[string]*model.MenuItem{},
		orders:      map[string]*model.Order{},
		payments:    map[string]*model.Payment{},
		events:      map[string]*model.POSExternalEvent{},
		objects:     map[string]*model.POSExternalObject{},
		recipes:     map[string]*model.Recipe{},
		ingredients: map[string]*model.Ingredient{},
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (s *Memory) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) FindRestaurantByMerchant(ctx context.Context, provider model.POSProvider, merchantID string) (*model.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.restaurants {
		if r.POSProvider == provider && r.POSMerchantID == merchantID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) SaveRestaurant(ctx context.Context, r *model.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&r.ID)
	r.UpdatedAt = time.Now()
	cp := *r
	s.restaurants[r.ID] = &cp
	return nil
}

func (s *Memory) UpsertMenuCategory(ctx context.Context, c *model.MenuCategory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.RestaurantID == c.RestaurantID &&
			existing.ExternalProvider == c.ExternalProvider &&
			existing.ExternalID == c.ExternalID {
			existing.Name = c.Name
			existing.Description = c.Description
			existing.DisplayOrder = c.DisplayOrder
			existing.IsActive = c.IsActive
			existing.UpdatedAt = time.Now()
			*c = *existing
			return false, nil
		}
	}
	ensureID(&c.ID)
	c.CreatedAt = time.Now()
	cp := *c
	s.categories[c.ID] = &cp
	return true, nil
}

func (s *Memory) UpsertMenuItem(ctx context.Context, m *model.MenuItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.RestaurantID == m.RestaurantID &&
			existing.ExternalProvider == m.ExternalProvider &&
			existing.ExternalID == m.ExternalID {
			existing.Name = m.Name
			existing.Description = m.Description
			existing.Price = m.Price
			existing.IsActive = m.IsActive
			existing.CategoryID = m.CategoryID
			existing.ExternalMetadata = m.ExternalMetadata
			existing.UpdatedAt = time.Now()
			*m = *existing
			return false, nil
		}
	}
	ensureID(&m.ID)
	m.CreatedAt = time.Now()
	cp := *m
	s.items[m.ID] = &cp
	return true, nil
}

func (s *Memory) FindMenuItemByName(ctx context.Context, restaurantID, name string) (*model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.items {
		if m.RestaurantID == restaurantID && strings.EqualFold(m.Name, name) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) FindMenuItemByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (*model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.items {
		if m.RestaurantID == restaurantID && m.ExternalProvider == provider && m.ExternalID == externalID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) CreateMenuItem(ctx context.Context, m *model.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&m.ID)
	m.CreatedAt = time.Now()
	cp := *m
	s.items[m.ID] = &cp
	return nil
}

func (s *Memory) OrderExistsByExternalID(ctx context.Context, restaurantID string, provider model.POSProvider, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.RestaurantID == restaurantID && o.ExternalProvider == provider && o.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Memory) CreateOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&o.ID)
	if o.OrderTime.IsZero() {
		o.OrderTime = time.Now()
	}
	for i := range o.LineItems {
		ensureID(&o.LineItems[i].ID)
		o.LineItems[i].OrderID = o.ID
	}
	o.CreatedAt = time.Now()
	cp := *o
	cp.LineItems = append([]model.OrderLineItem(nil), o.LineItems...)
	s.orders[o.ID] = &cp
	return nil
}

func (s *Memory) CreatePayment(ctx context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&p.ID)
	if p.PaymentTime.IsZero() {
		p.PaymentTime = time.Now()
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *Memory) ListOrdersBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.RestaurantID == restaurantID && !o.OrderTime.Before(from) && o.OrderTime.Before(to) {
			cp := *o
			cp.LineItems = append([]model.OrderLineItem(nil), o.LineItems...)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderTime.Before(out[j].OrderTime) })
	return out, nil
}

func (s *Memory) ListPaymentsBetween(ctx context.Context, restaurantID string, from, to time.Time) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.payments {
		if p.RestaurantID == restaurantID && !p.PaymentTime.Before(from) && p.PaymentTime.Before(to) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentTime.Before(out[j].PaymentTime) })
	return out, nil
}

func (s *Memory) InsertEventIfAbsent(ctx context.Context, e *model.POSExternalEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(e.Provider) + "|" + e.ExternalEventID
	if _, exists := s.events[key]; exists {
		return false, nil
	}
	ensureID(&e.ID)
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	cp := *e
	s.events[key] = &cp
	return true, nil
}

func (s *Memory) UpsertExternalObject(ctx context.Context, o *model.POSExternalObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := o.RestaurantID + "|" + string(o.Provider) + "|" + o.ObjectType + "|" + o.ObjectID
	if existing, ok := s.objects[key]; ok {
		existing.Payload = o.Payload
		existing.UpdatedAt = time.Now()
		*o = *existing
		return nil
	}
	ensureID(&o.ID)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	s.objects[key] = &cp
	return nil
}

func (s *Memory) ListExternalObjects(ctx context.Context, restaurantID string, provider model.POSProvider, objectType string, limit int) ([]model.POSExternalObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.POSExternalObject
	for _, o := range s.objects {
		if o.RestaurantID != restaurantID || o.Provider != provider {
			continue
		}
		if objectType != "" && o.ObjectType != objectType {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) GetRecipeByMenuItem(ctx context.Context, menuItemID string) (*model.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recipes {
		if r.MenuItemID == menuItemID {
			cp := *r
			cp.Ingredients = append([]model.RecipeIngredient(nil), r.Ingredients...)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) GetIngredient(ctx context.Context, id string) (*model.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ing, ok := s.ingredients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ing
	return &cp, nil
}

// Payments returns all payment rows; used by tests.
func (s *Memory) Payments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.payments {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentTime.Before(out[j].PaymentTime) })
	return out
}

// AddRecipe seeds a recipe; used by tests and fixtures.
func (s *Memory) AddRecipe(r *model.Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&r.ID)
	cp := *r
	cp.Ingredients = append([]model.RecipeIngredient(nil), r.Ingredients...)
	s.recipes[r.ID] = &cp
}

// AddIngredient seeds an ingredient; used by tests and fixtures.
func (s *Memory) AddIngredient(i *model.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&i.ID)
	cp := *i
	s.ingredients[i.ID] = &cp
}
