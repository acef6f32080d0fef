package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/posclient"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Clover talks to the Clover REST API. Amounts are cents and timestamps are
// epoch milliseconds.
type Clover struct {
	restaurant *model.Restaurant
	client     *posclient.Client
	store      store.Store
}

func NewClover(r *model.Restaurant, client *posclient.Client, st store.Store) *Clover {
	return &Clover{restaurant: r, client: client, store: st}
}

func (c *Clover) Provider() model.POSProvider { return model.ProviderClover }

func (c *Clover) merchantPath(suffix string) string {
	return "/v3/merchants/" + url.PathEscape(c.restaurant.POSMerchantID) + suffix
}

type cloverElements[T any] struct {
	Elements []T `json:"elements"`
}

type cloverCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type cloverItem struct {
	ID         string                          `json:"id"`
	Name       string                          `json:"name"`
	Price      int64                           `json:"price"`
	Hidden     bool                            `json:"hidden"`
	Categories *cloverElements[cloverCategory] `json:"categories"`
}

// SyncCatalog reconciles Clover categories and items.
func (c *Clover) SyncCatalog(ctx context.Context) (*CatalogSyncResult, error) {
	res := &CatalogSyncResult{}
	categoryIDs := map[string]string{}

	body, err := c.client.Get(ctx, c.merchantPath("/categories?limit=1000"))
	if err != nil {
		return nil, fmt.Errorf("clover: fetch categories: %w", err)
	}
	var cats cloverElements[cloverCategory]
	if err := json.Unmarshal(body, &cats); err != nil {
		return nil, fmt.Errorf("clover: decode categories: %w", err)
	}
	for _, cc := range cats.Elements {
		cat := &model.MenuCategory{
			RestaurantID:     c.restaurant.ID,
			Name:             cc.Name,
			IsActive:         true,
			ExternalProvider: model.ProviderClover,
			ExternalID:       cc.ID,
		}
		if _, err := upsertCategory(ctx, c.store, cat); err != nil {
			skipRecord(model.ProviderClover, "category", cc.ID, err)
			res.ItemsSkipped++
			continue
		}
		categoryIDs[cc.ID] = cat.ID
		res.CategoriesSynced++
	}

	body, err = c.client.Get(ctx, c.merchantPath("/items?limit=1000&expand=categories"))
	if err != nil {
		return nil, fmt.Errorf("clover: fetch items: %w", err)
	}
	var items cloverElements[cloverItem]
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("clover: decode items: %w", err)
	}
	for _, ci := range items.Elements {
		if ci.Name == "" || ci.ID == "" {
			res.ItemsSkipped++
			continue
		}
		item := &model.MenuItem{
			RestaurantID:     c.restaurant.ID,
			Name:             ci.Name,
			Price:            centsToDecimal(ci.Price),
			IsActive:         !ci.Hidden,
			ExternalProvider: model.ProviderClover,
			ExternalID:       ci.ID,
		}
		if ci.Categories != nil && len(ci.Categories.Elements) > 0 {
			if localID, ok := categoryIDs[ci.Categories.Elements[0].ID]; ok {
				item.CategoryID = &localID
			}
		}
		if _, err := c.store.UpsertMenuItem(ctx, item); err != nil {
			skipRecord(model.ProviderClover, "item", ci.ID, err)
			res.ItemsSkipped++
			continue
		}
		res.ItemsSynced++
	}
	return res, nil
}

type cloverOrder struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Total       int64  `json:"total"`
	CreatedTime int64  `json:"createdTime"`
	LineItems   *cloverElements[struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
		Item  *struct {
			ID string `json:"id"`
		} `json:"item"`
	}] `json:"lineItems"`
	Payments *cloverElements[struct {
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		TipAmount int64  `json:"tipAmount"`
		TaxAmount int64  `json:"taxAmount"`
		Tender    *struct {
			Label string `json:"label"`
		} `json:"tender"`
	}] `json:"payments"`
}

// SyncOrders imports Clover orders created in [since, until).
func (c *Clover) SyncOrders(ctx context.Context, since, until time.Time) (*OrderSyncResult, error) {
	res := &OrderSyncResult{}
	filter := url.QueryEscape(fmt.Sprintf("createdTime>=%d", since.UnixMilli())) +
		"&filter=" + url.QueryEscape(fmt.Sprintf("createdTime<%d", until.UnixMilli()))
	path := c.merchantPath("/orders?limit=1000&expand=lineItems,payments&filter=" + filter)

	body, err := c.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("clover: fetch orders: %w", err)
	}
	var orders cloverElements[cloverOrder]
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("clover: decode orders: %w", err)
	}
	for i := range orders.Elements {
		if err := c.importOrder(ctx, &orders.Elements[i], res); err != nil {
			skipRecord(model.ProviderClover, "order", orders.Elements[i].ID, err)
			res.OrdersSkipped++
		}
	}
	return res, nil
}

func (c *Clover) importOrder(ctx context.Context, co *cloverOrder, res *OrderSyncResult) error {
	if co.ID == "" {
		res.OrdersSkipped++
		return nil
	}
	exists, err := c.store.OrderExistsByExternalID(ctx, c.restaurant.ID, model.ProviderClover, co.ID)
	if err != nil {
		return err
	}
	if exists {
		res.OrdersSkipped++
		return nil
	}

	order := &model.Order{
		RestaurantID:     c.restaurant.ID,
		OrderNumber:      orderNumber("CV", co.ID),
		Status:           model.OrderStatusCompleted,
		TotalAmount:      centsToDecimal(co.Total),
		ExternalProvider: model.ProviderClover,
		ExternalID:       co.ID,
		OrderTime:        time.UnixMilli(co.CreatedTime).UTC(),
	}
	if co.State == "open" {
		order.Status = model.OrderStatusPending
	}

	if co.LineItems != nil {
		for _, li := range co.LineItems.Elements {
			line := model.OrderLineItem{
				Name:       li.Name,
				Quantity:   1,
				UnitPrice:  centsToDecimal(li.Price),
				TotalPrice: centsToDecimal(li.Price),
			}
			if li.Item != nil && li.Item.ID != "" {
				if mi, err := c.store.FindMenuItemByExternalID(ctx, c.restaurant.ID, model.ProviderClover, li.Item.ID); err == nil {
					line.MenuItemID = &mi.ID
				}
			}
			order.LineItems = append(order.LineItems, line)
		}
	}

	var tip, tax decimal.Decimal
	var payTxn, payLabel string
	var payAmount decimal.Decimal
	if co.Payments != nil {
		for _, p := range co.Payments.Elements {
			tip = tip.Add(centsToDecimal(p.TipAmount))
			tax = tax.Add(centsToDecimal(p.TaxAmount))
			payAmount = payAmount.Add(centsToDecimal(p.Amount))
			if payTxn == "" {
				payTxn = p.ID
				if p.Tender != nil {
					payLabel = p.Tender.Label
				}
			}
		}
	}
	order.TipAmount = tip
	order.TaxAmount = tax
	order.Subtotal = order.TotalAmount.Sub(tax).Sub(tip)

	if err := c.store.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("clover: create order %s: %w", co.ID, err)
	}
	res.OrdersImported++

	if payTxn != "" {
		p := &model.Payment{
			OrderID:       order.ID,
			RestaurantID:  c.restaurant.ID,
			PaymentMethod: cloverPaymentMethod(payLabel),
			Amount:        payAmount,
			TipAmount:     tip,
			Status:        model.PaymentStatusCompleted,
			TransactionID: payTxn,
			ProcessorName: "clover",
			PaymentTime:   order.OrderTime,
		}
		if err := c.store.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("clover: create payment for order %s: %w", co.ID, err)
		}
		res.PaymentsCreated++
	}
	return nil
}

// PushOrder creates an empty Clover order then attaches line items one by
// one, following the two-step shape of the Clover orders API.
func (c *Clover) PushOrder(ctx context.Context, o *model.Order) (*PushResult, error) {
	body, err := json.Marshal(map[string]any{"state": "open"})
	if err != nil {
		return nil, err
	}
	respBody, err := c.client.Post(ctx, c.merchantPath("/orders"), body)
	if err != nil {
		return nil, fmt.Errorf("clover: push order: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("clover: decode push response: %w", err)
	}
	for _, li := range o.LineItems {
		lineBody, err := json.Marshal(map[string]any{
			"name":  li.Name,
			"price": li.UnitPrice.Mul(decimal.NewFromInt(100)).IntPart(),
		})
		if err != nil {
			return nil, err
		}
		if _, err := c.client.Post(ctx, c.merchantPath("/orders/"+url.PathEscape(created.ID)+"/line_items"), lineBody); err != nil {
			return nil, fmt.Errorf("clover: push line item: %w", err)
		}
	}
	return &PushResult{Supported: true, ExternalID: created.ID}, nil
}

// ProcessPayment is not supported; Clover payments settle on the device.
func (c *Clover) ProcessPayment(ctx context.Context, o *model.Order, amount decimal.Decimal) (*PaymentResult, error) {
	return &PaymentResult{Supported: false}, nil
}

// FetchObject re-fetches one Clover object and stores its raw snapshot.
func (c *Clover) FetchObject(ctx context.Context, objectType, objectID string) error {
	var path string
	switch objectType {
	case "order":
		path = c.merchantPath("/orders/" + url.PathEscape(objectID) + "?expand=lineItems,payments")
	case "item":
		path = c.merchantPath("/items/" + url.PathEscape(objectID))
	case "payment":
		path = c.merchantPath("/payments/" + url.PathEscape(objectID))
	default:
		return fmt.Errorf("clover: unknown object type %q", objectType)
	}
	body, err := c.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("clover: fetch %s %s: %w", objectType, objectID, err)
	}
	return c.store.UpsertExternalObject(ctx, &model.POSExternalObject{
		RestaurantID: c.restaurant.ID,
		Provider:     model.ProviderClover,
		ObjectType:   objectType,
		ObjectID:     objectID,
		Payload:      datatypes.JSON(body),
	})
}

func cloverPaymentMethod(label string) string {
	switch label {
	case "Cash":
		return "CASH"
	case "", "Credit Card", "Debit Card":
		return "CARD"
	default:
		return "OTHER"
	}
}
