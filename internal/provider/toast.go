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

// Toast talks to the Toast platform API. Toast amounts are decimal dollars,
// not minor units.
type Toast struct {
	restaurant *model.Restaurant
	client     *posclient.Client
	store      store.Store
}

func NewToast(r *model.Restaurant, client *posclient.Client, st store.Store) *Toast {
	return &Toast{restaurant: r, client: client, store: st}
}

func (t *Toast) Provider() model.POSProvider { return model.ProviderToast }

type toastMenu struct {
	GUID       string `json:"guid"`
	Name       string `json:"name"`
	MenuGroups []struct {
		GUID      string `json:"guid"`
		Name      string `json:"name"`
		MenuItems []struct {
			GUID        string          `json:"guid"`
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Price       decimal.Decimal `json:"price"`
			Visibility  string          `json:"visibility"`
		} `json:"menuItems"`
	} `json:"menuGroups"`
}

// SyncCatalog reconciles Toast menu groups as categories and their menu
// items.
func (t *Toast) SyncCatalog(ctx context.Context) (*CatalogSyncResult, error) {
	body, err := t.client.Get(ctx, "/menus/v2/menus")
	if err != nil {
		return nil, fmt.Errorf("toast: fetch menus: %w", err)
	}
	var menus []toastMenu
	if err := json.Unmarshal(body, &menus); err != nil {
		return nil, fmt.Errorf("toast: decode menus: %w", err)
	}

	res := &CatalogSyncResult{}
	for _, m := range menus {
		for _, g := range m.MenuGroups {
			cat := &model.MenuCategory{
				RestaurantID:     t.restaurant.ID,
				Name:             g.Name,
				IsActive:         true,
				ExternalProvider: model.ProviderToast,
				ExternalID:       g.GUID,
			}
			if _, err := upsertCategory(ctx, t.store, cat); err != nil {
				skipRecord(model.ProviderToast, "category", g.GUID, err)
				res.ItemsSkipped++
				continue
			}
			res.CategoriesSynced++

			for _, it := range g.MenuItems {
				if it.Name == "" || it.GUID == "" {
					res.ItemsSkipped++
					continue
				}
				item := &model.MenuItem{
					RestaurantID:     t.restaurant.ID,
					CategoryID:       &cat.ID,
					Name:             it.Name,
					Description:      it.Description,
					Price:            it.Price,
					IsActive:         it.Visibility != "NONE",
					ExternalProvider: model.ProviderToast,
					ExternalID:       it.GUID,
				}
				if _, err := t.store.UpsertMenuItem(ctx, item); err != nil {
					skipRecord(model.ProviderToast, "item", it.GUID, err)
					res.ItemsSkipped++
					continue
				}
				res.ItemsSynced++
			}
		}
	}
	return res, nil
}

type toastOrder struct {
	GUID       string    `json:"guid"`
	OpenedDate time.Time `json:"openedDate"`
	Voided     bool      `json:"voided"`
	Checks     []struct {
		GUID        string          `json:"guid"`
		Amount      decimal.Decimal `json:"amount"`
		TaxAmount   decimal.Decimal `json:"taxAmount"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
		Selections  []struct {
			GUID     string          `json:"guid"`
			ItemGUID string          `json:"itemGuid"`
			Name     string          `json:"displayName"`
			Quantity decimal.Decimal `json:"quantity"`
			Price    decimal.Decimal `json:"price"`
		} `json:"selections"`
		Payments []struct {
			GUID      string          `json:"guid"`
			Type      string          `json:"type"`
			Amount    decimal.Decimal `json:"amount"`
			TipAmount decimal.Decimal `json:"tipAmount"`
		} `json:"payments"`
	} `json:"checks"`
}

// SyncOrders imports Toast orders opened in [since, until).
func (t *Toast) SyncOrders(ctx context.Context, since, until time.Time) (*OrderSyncResult, error) {
	res := &OrderSyncResult{}
	page := 1
	for {
		path := fmt.Sprintf("/orders/v2/ordersBulk?startDate=%s&endDate=%s&page=%d&pageSize=100",
			url.QueryEscape(since.UTC().Format(time.RFC3339)),
			url.QueryEscape(until.UTC().Format(time.RFC3339)),
			page)
		body, err := t.client.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("toast: fetch orders: %w", err)
		}
		var orders []toastOrder
		if err := json.Unmarshal(body, &orders); err != nil {
			return nil, fmt.Errorf("toast: decode orders: %w", err)
		}
		if len(orders) == 0 {
			break
		}
		for i := range orders {
			if err := t.importOrder(ctx, &orders[i], res); err != nil {
				skipRecord(model.ProviderToast, "order", orders[i].GUID, err)
				res.OrdersSkipped++
			}
		}
		if len(orders) < 100 {
			break
		}
		page++
	}
	return res, nil
}

func (t *Toast) importOrder(ctx context.Context, to *toastOrder, res *OrderSyncResult) error {
	if to.GUID == "" {
		res.OrdersSkipped++
		return nil
	}
	exists, err := t.store.OrderExistsByExternalID(ctx, t.restaurant.ID, model.ProviderToast, to.GUID)
	if err != nil {
		return err
	}
	if exists {
		res.OrdersSkipped++
		return nil
	}

	order := &model.Order{
		RestaurantID:     t.restaurant.ID,
		OrderNumber:      orderNumber("TS", to.GUID),
		Status:           model.OrderStatusCompleted,
		ExternalProvider: model.ProviderToast,
		ExternalID:       to.GUID,
		OrderTime:        to.OpenedDate,
	}
	if to.Voided {
		order.Status = model.OrderStatusCancelled
	}

	var tip decimal.Decimal
	var payMethod, payTxn string
	var payAmount decimal.Decimal
	for _, check := range to.Checks {
		order.Subtotal = order.Subtotal.Add(check.Amount)
		order.TaxAmount = order.TaxAmount.Add(check.TaxAmount)
		order.TotalAmount = order.TotalAmount.Add(check.TotalAmount)
		for _, sel := range check.Selections {
			qty := int(sel.Quantity.IntPart())
			if qty < 1 {
				qty = 1
			}
			line := model.OrderLineItem{
				Name:       sel.Name,
				Quantity:   qty,
				UnitPrice:  sel.Price,
				TotalPrice: sel.Price.Mul(decimal.NewFromInt(int64(qty))),
			}
			if sel.ItemGUID != "" {
				if mi, err := t.store.FindMenuItemByExternalID(ctx, t.restaurant.ID, model.ProviderToast, sel.ItemGUID); err == nil {
					line.MenuItemID = &mi.ID
				}
			}
			order.LineItems = append(order.LineItems, line)
		}
		for _, p := range check.Payments {
			tip = tip.Add(p.TipAmount)
			payAmount = payAmount.Add(p.Amount)
			if payTxn == "" {
				payTxn = p.GUID
				payMethod = paymentMethodFromTender(p.Type)
			}
		}
	}
	order.TipAmount = tip
	order.TotalAmount = order.TotalAmount.Add(tip)

	if err := t.store.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("toast: create order %s: %w", to.GUID, err)
	}
	res.OrdersImported++

	if payTxn != "" {
		p := &model.Payment{
			OrderID:       order.ID,
			RestaurantID:  t.restaurant.ID,
			PaymentMethod: payMethod,
			Amount:        payAmount,
			TipAmount:     tip,
			Status:        model.PaymentStatusCompleted,
			TransactionID: payTxn,
			ProcessorName: "toast",
			PaymentTime:   to.OpenedDate,
		}
		if err := t.store.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("toast: create payment for order %s: %w", to.GUID, err)
		}
		res.PaymentsCreated++
	}
	return nil
}

// PushOrder creates a Toast order with a single check holding the line item
// selections.
func (t *Toast) PushOrder(ctx context.Context, o *model.Order) (*PushResult, error) {
	selections := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		selections = append(selections, map[string]any{
			"displayName": li.Name,
			"quantity":    li.Quantity,
			"price":       li.UnitPrice,
		})
	}
	req := map[string]any{
		"checks": []map[string]any{{
			"selections": selections,
		}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	respBody, err := t.client.Post(ctx, "/orders/v2/orders", body)
	if err != nil {
		return nil, fmt.Errorf("toast: push order: %w", err)
	}
	var resp struct {
		GUID string `json:"guid"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("toast: decode push response: %w", err)
	}
	return &PushResult{Supported: true, ExternalID: resp.GUID}, nil
}

// ProcessPayment is not supported; Toast payments are read-only from this
// side.
func (t *Toast) ProcessPayment(ctx context.Context, o *model.Order, amount decimal.Decimal) (*PaymentResult, error) {
	return &PaymentResult{Supported: false}, nil
}

// FetchObject re-fetches one Toast order and stores its raw snapshot.
func (t *Toast) FetchObject(ctx context.Context, objectType, objectID string) error {
	var path string
	switch objectType {
	case "order":
		path = "/orders/v2/orders/" + url.PathEscape(objectID)
	case "menu":
		path = "/menus/v2/menus"
	default:
		return fmt.Errorf("toast: unknown object type %q", objectType)
	}
	body, err := t.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("toast: fetch %s %s: %w", objectType, objectID, err)
	}
	return t.store.UpsertExternalObject(ctx, &model.POSExternalObject{
		RestaurantID: t.restaurant.ID,
		Provider:     model.ProviderToast,
		ObjectType:   objectType,
		ObjectID:     objectID,
		Payload:      datatypes.JSON(body),
	})
}
