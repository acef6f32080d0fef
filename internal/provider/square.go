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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Square talks to the Square Connect v2 API.
type Square struct {
	restaurant *model.Restaurant
	client     *posclient.Client
	store      store.Store
}

func NewSquare(r *model.Restaurant, client *posclient.Client, st store.Store) *Square {
	return &Square{restaurant: r, client: client, store: st}
}

func (s *Square) Provider() model.POSProvider { return model.ProviderSquare }

type squareCatalogObject struct {
	Type         string          `json:"type"`
	ID           string          `json:"id"`
	IsDeleted    bool            `json:"is_deleted"`
	CategoryData *squareCategory `json:"category_data"`
	ItemData     *squareItem     `json:"item_data"`
}

type squareCategory struct {
	Name string `json:"name"`
}

type squareItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
	Variations  []struct {
		ID                string `json:"id"`
		ItemVariationData struct {
			Name       string       `json:"name"`
			PriceMoney *squareMoney `json:"price_money"`
		} `json:"item_variation_data"`
	} `json:"variations"`
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squareCatalogPage struct {
	Objects []squareCatalogObject `json:"objects"`
	Cursor  string                `json:"cursor"`
}

// SyncCatalog walks the paginated catalog listing. Categories are applied
// first so items can resolve their local category row.
func (s *Square) SyncCatalog(ctx context.Context) (*CatalogSyncResult, error) {
	res := &CatalogSyncResult{}
	categoryIDs := map[string]string{} // square category id -> local id

	var objects []squareCatalogObject
	cursor := ""
	for {
		path := "/v2/catalog/list?types=ITEM,CATEGORY"
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}
		body, err := s.client.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("square: list catalog: %w", err)
		}
		var page squareCatalogPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("square: decode catalog page: %w", err)
		}
		objects = append(objects, page.Objects...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	for _, obj := range objects {
		if obj.Type != "CATEGORY" || obj.CategoryData == nil {
			continue
		}
		cat := &model.MenuCategory{
			RestaurantID:     s.restaurant.ID,
			Name:             obj.CategoryData.Name,
			IsActive:         !obj.IsDeleted,
			ExternalProvider: model.ProviderSquare,
			ExternalID:       obj.ID,
		}
		if _, err := upsertCategory(ctx, s.store, cat); err != nil {
			skipRecord(model.ProviderSquare, "category", obj.ID, err)
			res.ItemsSkipped++
			continue
		}
		categoryIDs[obj.ID] = cat.ID
		res.CategoriesSynced++
	}

	for _, obj := range objects {
		if obj.Type != "ITEM" || obj.ItemData == nil {
			continue
		}
		if obj.ItemData.Name == "" {
			res.ItemsSkipped++
			continue
		}
		item := &model.MenuItem{
			RestaurantID:     s.restaurant.ID,
			Name:             obj.ItemData.Name,
			Description:      obj.ItemData.Description,
			IsActive:         !obj.IsDeleted,
			ExternalProvider: model.ProviderSquare,
			ExternalID:       obj.ID,
		}
		if localID, ok := categoryIDs[obj.ItemData.CategoryID]; ok {
			item.CategoryID = &localID
		}
		// The first variation's price becomes the item price.
		for _, v := range obj.ItemData.Variations {
			if v.ItemVariationData.PriceMoney != nil {
				item.Price = centsToDecimal(v.ItemVariationData.PriceMoney.Amount)
				break
			}
		}
		if meta, err := json.Marshal(map[string]any{"variations": len(obj.ItemData.Variations)}); err == nil {
			item.ExternalMetadata = datatypes.JSON(meta)
		}
		if _, err := s.store.UpsertMenuItem(ctx, item); err != nil {
			skipRecord(model.ProviderSquare, "item", obj.ID, err)
			res.ItemsSkipped++
			continue
		}
		res.ItemsSynced++
	}
	return res, nil
}

type squareOrder struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ClosedAt  *string   `json:"closed_at"`
	LineItems []struct {
		Name           string       `json:"name"`
		Quantity       string       `json:"quantity"`
		CatalogID      string       `json:"catalog_object_id"`
		BasePriceMoney *squareMoney `json:"base_price_money"`
		TotalMoney     *squareMoney `json:"total_money"`
	} `json:"line_items"`
	TotalMoney    *squareMoney `json:"total_money"`
	TotalTaxMoney *squareMoney `json:"total_tax_money"`
	TotalTipMoney *squareMoney `json:"total_tip_money"`
	Tenders       []struct {
		ID          string       `json:"id"`
		Type        string       `json:"type"`
		AmountMoney *squareMoney `json:"amount_money"`
		TipMoney    *squareMoney `json:"tip_money"`
	} `json:"tenders"`
}

type squareSearchOrdersResponse struct {
	Orders []squareOrder `json:"orders"`
	Cursor string        `json:"cursor"`
}

// SyncOrders imports completed orders created in [since, until).
func (s *Square) SyncOrders(ctx context.Context, since, until time.Time) (*OrderSyncResult, error) {
	res := &OrderSyncResult{}
	cursor := ""
	for {
		req := map[string]any{
			"location_ids": []string{s.restaurant.POSLocationID},
			"query": map[string]any{
				"filter": map[string]any{
					"date_time_filter": map[string]any{
						"created_at": map[string]string{
							"start_at": since.UTC().Format(time.RFC3339),
							"end_at":   until.UTC().Format(time.RFC3339),
						},
					},
					"state_filter": map[string]any{"states": []string{"COMPLETED"}},
				},
				"sort": map[string]string{"sort_field": "CREATED_AT", "sort_order": "ASC"},
			},
		}
		if cursor != "" {
			req["cursor"] = cursor
		}
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		respBody, err := s.client.Post(ctx, "/v2/orders/search", body)
		if err != nil {
			return nil, fmt.Errorf("square: search orders: %w", err)
		}
		var page squareSearchOrdersResponse
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, fmt.Errorf("square: decode orders page: %w", err)
		}

		for i := range page.Orders {
			if err := s.importOrder(ctx, &page.Orders[i], res); err != nil {
				skipRecord(model.ProviderSquare, "order", page.Orders[i].ID, err)
				res.OrdersSkipped++
			}
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return res, nil
}

func (s *Square) importOrder(ctx context.Context, so *squareOrder, res *OrderSyncResult) error {
	exists, err := s.store.OrderExistsByExternalID(ctx, s.restaurant.ID, model.ProviderSquare, so.ID)
	if err != nil {
		return err
	}
	if exists {
		res.OrdersSkipped++
		return nil
	}

	order := &model.Order{
		RestaurantID:     s.restaurant.ID,
		OrderNumber:      orderNumber("SQ", so.ID),
		Status:           model.OrderStatusCompleted,
		ExternalProvider: model.ProviderSquare,
		ExternalID:       so.ID,
		OrderTime:        so.CreatedAt,
	}
	if so.State == "CANCELED" {
		order.Status = model.OrderStatusCancelled
	}
	if so.TotalMoney != nil {
		order.TotalAmount = centsToDecimal(so.TotalMoney.Amount)
	}
	if so.TotalTaxMoney != nil {
		order.TaxAmount = centsToDecimal(so.TotalTaxMoney.Amount)
	}
	if so.TotalTipMoney != nil {
		order.TipAmount = centsToDecimal(so.TotalTipMoney.Amount)
	}
	order.Subtotal = order.TotalAmount.Sub(order.TaxAmount).Sub(order.TipAmount)

	for _, li := range so.LineItems {
		qty := parseQuantity(li.Quantity)
		line := model.OrderLineItem{
			Name:     li.Name,
			Quantity: qty,
		}
		if li.BasePriceMoney != nil {
			line.UnitPrice = centsToDecimal(li.BasePriceMoney.Amount)
		}
		if li.TotalMoney != nil {
			line.TotalPrice = centsToDecimal(li.TotalMoney.Amount)
		}
		if li.CatalogID != "" {
			if mi, err := s.store.FindMenuItemByExternalID(ctx, s.restaurant.ID, model.ProviderSquare, li.CatalogID); err == nil {
				line.MenuItemID = &mi.ID
			}
		}
		order.LineItems = append(order.LineItems, line)
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return fmt.Errorf("square: create order %s: %w", so.ID, err)
	}
	res.OrdersImported++

	for _, t := range so.Tenders {
		p := &model.Payment{
			OrderID:       order.ID,
			RestaurantID:  s.restaurant.ID,
			PaymentMethod: paymentMethodFromTender(t.Type),
			Status:        model.PaymentStatusCompleted,
			TransactionID: t.ID,
			ProcessorName: "square",
			PaymentTime:   so.CreatedAt,
		}
		if t.AmountMoney != nil {
			p.Amount = centsToDecimal(t.AmountMoney.Amount)
		}
		if t.TipMoney != nil {
			p.TipAmount = centsToDecimal(t.TipMoney.Amount)
		}
		if err := s.store.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("square: create payment for order %s: %w", so.ID, err)
		}
		res.PaymentsCreated++
		break // one payment row per order
	}
	return nil
}

// PushOrder creates the order in Square with an idempotency key so a retried
// push never duplicates it.
func (s *Square) PushOrder(ctx context.Context, o *model.Order) (*PushResult, error) {
	lineItems := make([]map[string]any, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lineItems = append(lineItems, map[string]any{
			"name":     li.Name,
			"quantity": fmt.Sprintf("%d", li.Quantity),
			"base_price_money": map[string]any{
				"amount":   li.UnitPrice.Mul(decimal.NewFromInt(100)).IntPart(),
				"currency": s.restaurant.Currency,
			},
		})
	}
	req := map[string]any{
		"idempotency_key": uuid.NewString(),
		"order": map[string]any{
			"location_id": s.restaurant.POSLocationID,
			"line_items":  lineItems,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	respBody, err := s.client.Post(ctx, "/v2/orders", body)
	if err != nil {
		return nil, fmt.Errorf("square: push order: %w", err)
	}
	var resp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("square: decode push response: %w", err)
	}
	return &PushResult{Supported: true, ExternalID: resp.Order.ID}, nil
}

// ProcessPayment is not supported: Square is the payment source of truth and
// payments arrive through order sync and webhooks.
func (s *Square) ProcessPayment(ctx context.Context, o *model.Order, amount decimal.Decimal) (*PaymentResult, error) {
	return &PaymentResult{Supported: false}, nil
}

// FetchObject re-fetches one remote object and stores its raw snapshot.
func (s *Square) FetchObject(ctx context.Context, objectType, objectID string) error {
	var path string
	switch objectType {
	case "order":
		path = "/v2/orders/" + url.PathEscape(objectID)
	case "payment":
		path = "/v2/payments/" + url.PathEscape(objectID)
	case "catalog":
		path = "/v2/catalog/object/" + url.PathEscape(objectID)
	default:
		return fmt.Errorf("square: unknown object type %q", objectType)
	}
	body, err := s.client.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("square: fetch %s %s: %w", objectType, objectID, err)
	}
	return s.store.UpsertExternalObject(ctx, &model.POSExternalObject{
		RestaurantID: s.restaurant.ID,
		Provider:     model.ProviderSquare,
		ObjectType:   objectType,
		ObjectID:     objectID,
		Payload:      datatypes.JSON(body),
	})
}

func parseQuantity(q string) int {
	var n float64
	if _, err := fmt.Sscanf(q, "%f", &n); err != nil || n < 1 {
		return 1
	}
	return int(n)
}

func paymentMethodFromTender(t string) string {
	switch t {
	case "CARD":
		return "CARD"
	case "CASH":
		return "CASH"
	default:
		return "OTHER"
	}
}
