package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/posclient"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Field alias lists for the custom adapter. Each list is tried in order and
// the first present key wins, so integrators can expose whichever naming
// their system already uses.
var (
	aliasOrderID   = []string{"id", "order_id", "orderId", "uuid"}
	aliasTotal     = []string{"total", "total_amount", "grand_total", "amount"}
	aliasItems     = []string{"items", "line_items", "lineItems", "products"}
	aliasItemName  = []string{"name", "item_name", "title", "product_name"}
	aliasQuantity  = []string{"quantity", "qty", "count"}
	aliasPrice     = []string{"price", "unit_price", "unitPrice", "amount"}
	aliasCreatedAt = []string{"created_at", "createdAt", "date", "timestamp"}
	aliasStatus    = []string{"status", "state"}
	aliasPayMethod = []string{"payment_method", "paymentMethod", "tender", "method"}
)

// Custom talks to an integrator-supplied HTTP API that exposes /menu and
// /orders endpoints with loosely specified field names.
type Custom struct {
	restaurant *model.Restaurant
	client     *posclient.Client
	store      store.Store
}

func NewCustom(r *model.Restaurant, client *posclient.Client, st store.Store) *Custom {
	return &Custom{restaurant: r, client: client, store: st}
}

func (c *Custom) Provider() model.POSProvider { return model.ProviderCustom }

// SyncCatalog fetches /menu and reconciles whatever items it can make sense
// of. Records with no usable name are skipped.
func (c *Custom) SyncCatalog(ctx context.Context) (*CatalogSyncResult, error) {
	body, err := c.client.Get(ctx, "/menu")
	if err != nil {
		return nil, fmt.Errorf("custom: fetch menu: %w", err)
	}
	records, err := decodeRecordList(body, aliasItems)
	if err != nil {
		return nil, fmt.Errorf("custom: decode menu: %w", err)
	}

	res := &CatalogSyncResult{}
	for _, rec := range records {
		name, ok := pickString(rec, aliasItemName)
		if !ok || name == "" {
			res.ItemsSkipped++
			continue
		}
		externalID, ok := pickString(rec, aliasOrderID)
		if !ok || externalID == "" {
			// Fall back to the name as the stable key.
			externalID = name
		}
		item := &model.MenuItem{
			RestaurantID:     c.restaurant.ID,
			Name:             name,
			IsActive:         true,
			ExternalProvider: model.ProviderCustom,
			ExternalID:       externalID,
		}
		if price, ok := pickDecimal(rec, aliasPrice); ok {
			item.Price = price
		}
		if raw, err := json.Marshal(rec); err == nil {
			item.ExternalMetadata = datatypes.JSON(raw)
		}
		if _, err := c.store.UpsertMenuItem(ctx, item); err != nil {
			skipRecord(model.ProviderCustom, "item", externalID, err)
			res.ItemsSkipped++
			continue
		}
		res.ItemsSynced++
	}
	return res, nil
}

// SyncOrders fetches /orders for the window and imports orders not seen
// before. Line items naming unknown menu items get a zero-priced inactive
// placeholder row so reporting can still group by item.
func (c *Custom) SyncOrders(ctx context.Context, since, until time.Time) (*OrderSyncResult, error) {
	path := fmt.Sprintf("/orders?since=%s&until=%s",
		url.QueryEscape(since.UTC().Format(time.RFC3339)),
		url.QueryEscape(until.UTC().Format(time.RFC3339)))
	body, err := c.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("custom: fetch orders: %w", err)
	}
	records, err := decodeRecordList(body, []string{"orders", "data", "results"})
	if err != nil {
		return nil, fmt.Errorf("custom: decode orders: %w", err)
	}

	res := &OrderSyncResult{}
	for _, rec := range records {
		if err := c.importOrder(ctx, rec, res); err != nil {
			id, _ := pickString(rec, aliasOrderID)
			skipRecord(model.ProviderCustom, "order", id, err)
			res.OrdersSkipped++
		}
	}
	return res, nil
}

func (c *Custom) importOrder(ctx context.Context, rec map[string]any, res *OrderSyncResult) error {
	externalID, ok := pickString(rec, aliasOrderID)
	if !ok || externalID == "" {
		res.OrdersSkipped++
		return nil
	}
	exists, err := c.store.OrderExistsByExternalID(ctx, c.restaurant.ID, model.ProviderCustom, externalID)
	if err != nil {
		return err
	}
	if exists {
		res.OrdersSkipped++
		return nil
	}

	order := &model.Order{
		RestaurantID:     c.restaurant.ID,
		OrderNumber:      orderNumber("CU", externalID),
		Status:           customStatus(rec),
		ExternalProvider: model.ProviderCustom,
		ExternalID:       externalID,
	}
	if total, ok := pickDecimal(rec, aliasTotal); ok {
		order.TotalAmount = total
		order.Subtotal = total
	}
	if created, ok := pickTime(rec, aliasCreatedAt); ok {
		order.OrderTime = created
	}

	if itemsRaw, ok := pickAny(rec, aliasItems); ok {
		if items, ok := itemsRaw.([]any); ok {
			for _, it := range items {
				line, ok := it.(map[string]any)
				if !ok {
					continue
				}
				name, ok := pickString(line, aliasItemName)
				if !ok || name == "" {
					continue
				}
				qty := 1
				if q, ok := pickDecimal(line, aliasQuantity); ok && q.IntPart() > 0 {
					qty = int(q.IntPart())
				}
				li := model.OrderLineItem{Name: name, Quantity: qty}
				if price, ok := pickDecimal(line, aliasPrice); ok {
					li.UnitPrice = price
					li.TotalPrice = price.Mul(decimal.NewFromInt(int64(qty)))
				}
				mi, err := c.resolveMenuItem(ctx, name)
				if err != nil {
					return err
				}
				li.MenuItemID = &mi.ID
				order.LineItems = append(order.LineItems, li)
			}
		}
	}

	if err := c.store.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("custom: create order %s: %w", externalID, err)
	}
	res.OrdersImported++

	if order.Status == model.OrderStatusCompleted && order.TotalAmount.IsPositive() {
		method := "OTHER"
		if m, ok := pickString(rec, aliasPayMethod); ok && m != "" {
			method = m
		}
		payment := &model.Payment{
			RestaurantID:  c.restaurant.ID,
			OrderID:       order.ID,
			PaymentMethod: method,
			Amount:        order.TotalAmount,
			Status:        model.PaymentStatusCompleted,
			ProcessorName: "custom",
			PaymentTime:   order.OrderTime,
		}
		if err := c.store.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("custom: create payment for order %s: %w", externalID, err)
		}
		res.PaymentsCreated++
	}
	return nil
}

// resolveMenuItem finds the named menu item or creates an inactive
// zero-priced placeholder for it.
func (c *Custom) resolveMenuItem(ctx context.Context, name string) (*model.MenuItem, error) {
	mi, err := c.store.FindMenuItemByName(ctx, c.restaurant.ID, name)
	if err == nil {
		return mi, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	placeholder := &model.MenuItem{
		RestaurantID:     c.restaurant.ID,
		Name:             name,
		Price:            decimal.Zero,
		IsActive:         false,
		ExternalProvider: model.ProviderCustom,
		ExternalID:       "placeholder:" + name,
	}
	if err := c.store.CreateMenuItem(ctx, placeholder); err != nil {
		return nil, fmt.Errorf("custom: create placeholder item %q: %w", name, err)
	}
	return placeholder, nil
}

// PushOrder posts the order as plain JSON to /orders.
func (c *Custom) PushOrder(ctx context.Context, o *model.Order) (*PushResult, error) {
	items := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, map[string]any{
			"name":     li.Name,
			"quantity": li.Quantity,
			"price":    li.UnitPrice,
		})
	}
	body, err := json.Marshal(map[string]any{
		"order_number": o.OrderNumber,
		"total":        o.TotalAmount,
		"items":        items,
	})
	if err != nil {
		return nil, err
	}
	respBody, err := c.client.Post(ctx, "/orders", body)
	if err != nil {
		return nil, fmt.Errorf("custom: push order: %w", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, fmt.Errorf("custom: decode push response: %w", err)
	}
	externalID, _ := pickString(rec, aliasOrderID)
	return &PushResult{Supported: true, ExternalID: externalID}, nil
}

// ProcessPayment posts a charge to /payments.
func (c *Custom) ProcessPayment(ctx context.Context, o *model.Order, amount decimal.Decimal) (*PaymentResult, error) {
	body, err := json.Marshal(map[string]any{
		"order_id": o.ExternalID,
		"amount":   amount,
	})
	if err != nil {
		return nil, err
	}
	respBody, err := c.client.Post(ctx, "/payments", body)
	if err != nil {
		return nil, fmt.Errorf("custom: process payment: %w", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, fmt.Errorf("custom: decode payment response: %w", err)
	}
	txn, _ := pickString(rec, []string{"transaction_id", "transactionId", "id"})
	status, _ := pickString(rec, aliasStatus)
	return &PaymentResult{Supported: true, TransactionID: txn, Status: status}, nil
}

// FetchObject re-fetches one object and stores its raw snapshot.
func (c *Custom) FetchObject(ctx context.Context, objectType, objectID string) error {
	var path string
	switch objectType {
	case "order":
		path = "/orders/" + url.PathEscape(objectID)
	case "item":
		path = "/menu/" + url.PathEscape(objectID)
	default:
		return fmt.Errorf("custom: unknown object type %q", objectType)
	}
	body, err := c.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("custom: fetch %s %s: %w", objectType, objectID, err)
	}
	return c.store.UpsertExternalObject(ctx, &model.POSExternalObject{
		RestaurantID: c.restaurant.ID,
		Provider:     model.ProviderCustom,
		ObjectType:   objectType,
		ObjectID:     objectID,
		Payload:      datatypes.JSON(body),
	})
}

// decodeRecordList accepts either a bare JSON array or an object wrapping
// the array under one of the given keys.
func decodeRecordList(body []byte, wrapperKeys []string) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}
	var wrapped map[string]any
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, key := range wrapperKeys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		records := make([]map[string]any, 0, len(list))
		for _, el := range list {
			if rec, ok := el.(map[string]any); ok {
				records = append(records, rec)
			}
		}
		return records, nil
	}
	return nil, fmt.Errorf("no record list under keys %v", wrapperKeys)
}

func pickAny(rec map[string]any, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := rec[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickString(rec map[string]any, aliases []string) (string, bool) {
	v, ok := pickAny(rec, aliases)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

func pickDecimal(rec map[string]any, aliases []string) (decimal.Decimal, bool) {
	v, ok := pickAny(rec, aliases)
	if !ok {
		return decimal.Zero, false
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func pickTime(rec map[string]any, aliases []string) (time.Time, bool) {
	v, ok := pickAny(rec, aliases)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case float64:
		// Epoch seconds, or milliseconds for large values.
		if t > 1e12 {
			return time.UnixMilli(int64(t)).UTC(), true
		}
		return time.Unix(int64(t), 0).UTC(), true
	}
	return time.Time{}, false
}

func customStatus(rec map[string]any) string {
	s, ok := pickString(rec, aliasStatus)
	if !ok {
		return model.OrderStatusCompleted
	}
	switch s {
	case "cancelled", "canceled", "CANCELLED", "void":
		return model.OrderStatusCancelled
	case "pending", "open", "PENDING":
		return model.OrderStatusPending
	default:
		return model.OrderStatusCompleted
	}
}
