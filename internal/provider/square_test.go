package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/posclient"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
)

func testRestaurant(provider model.POSProvider) *model.Restaurant {
	return &model.Restaurant{
		ID:            "11111111-1111-1111-1111-111111111111",
		Name:          "Test Kitchen",
		Currency:      "USD",
		POSProvider:   provider,
		POSMerchantID: "MERCH-1",
		POSLocationID: "LOC-1",
		POSConnected:  true,
	}
}

func testClient(t *testing.T, provider model.POSProvider, handler http.Handler) *posclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return posclient.New(posclient.Options{
		RestaurantID:  "11111111-1111-1111-1111-111111111111",
		Provider:      provider,
		BaseURL:       srv.URL,
		AccessToken:   "tok",
		RatePerSecond: 1000,
	})
}

const squareCatalogBody = `{
  "objects": [
    {"type": "CATEGORY", "id": "CAT1", "category_data": {"name": "Mains"}},
    {"type": "ITEM", "id": "ITEM1", "item_data": {
      "name": "Shawarma Plate", "category_id": "CAT1",
      "variations": [{"id": "VAR1", "item_variation_data": {"price_money": {"amount": 1250, "currency": "USD"}}}]
    }},
    {"type": "ITEM", "id": "ITEM2", "item_data": {
      "name": "", "variations": []
    }}
  ]
}`

func TestSquareSyncCatalog(t *testing.T) {
	st := store.NewMemory()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(squareCatalogBody))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	res, err := adapter.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if res.CategoriesSynced != 1 || res.ItemsSynced != 1 || res.ItemsSkipped != 1 {
		t.Errorf("result = %+v", res)
	}

	item, err := st.FindMenuItemByExternalID(context.Background(), "11111111-1111-1111-1111-111111111111", model.ProviderSquare, "ITEM1")
	if err != nil {
		t.Fatalf("item not stored: %v", err)
	}
	if item.Price.StringFixed(2) != "12.50" {
		t.Errorf("price = %s, want 12.50", item.Price)
	}
	if item.CategoryID == nil {
		t.Error("item category not linked")
	}

	// A second run updates in place instead of duplicating.
	res, err = adapter.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("second SyncCatalog: %v", err)
	}
	if res.ItemsSynced != 1 {
		t.Errorf("second run synced = %d", res.ItemsSynced)
	}
	again, _ := st.FindMenuItemByExternalID(context.Background(), "11111111-1111-1111-1111-111111111111", model.ProviderSquare, "ITEM1")
	if again.ID != item.ID {
		t.Error("second sync created a new row")
	}
}

// faultyStore fails writes for one external id so batch behavior around a
// single bad record can be observed.
type faultyStore struct {
	store.Store
	failID string
}

func (f *faultyStore) UpsertMenuItem(ctx context.Context, item *model.MenuItem) (bool, error) {
	if item.ExternalID == f.failID {
		return false, errors.New("insert failed")
	}
	return f.Store.UpsertMenuItem(ctx, item)
}

func (f *faultyStore) CreateOrder(ctx context.Context, o *model.Order) error {
	if o.ExternalID == f.failID {
		return errors.New("insert failed")
	}
	return f.Store.CreateOrder(ctx, o)
}

func TestSquareSyncCatalogSkipsFailingRecord(t *testing.T) {
	st := &faultyStore{Store: store.NewMemory(), failID: "ITEM1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objects": [
			{"type": "ITEM", "id": "ITEM1", "item_data": {"name": "Shawarma Plate"}},
			{"type": "ITEM", "id": "ITEM2", "item_data": {"name": "Falafel Wrap"}}
		]}`))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	res, err := adapter.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("one bad record must not abort the batch: %v", err)
	}
	if res.ItemsSynced != 1 || res.ItemsSkipped != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, err := st.FindMenuItemByExternalID(context.Background(), "11111111-1111-1111-1111-111111111111", model.ProviderSquare, "ITEM2"); err != nil {
		t.Errorf("surviving item not stored: %v", err)
	}
}

func TestSquareSyncOrdersSkipsFailingRecord(t *testing.T) {
	st := &faultyStore{Store: store.NewMemory(), failID: "ORD1"}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders": [
			{"id": "ORD1", "state": "COMPLETED", "created_at": "2026-08-20T12:00:00Z", "total_money": {"amount": 1000}},
			{"id": "ORD2", "state": "COMPLETED", "created_at": "2026-08-20T13:00:00Z", "total_money": {"amount": 2000}}
		]}`))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	res, err := adapter.SyncOrders(context.Background(), since, since.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("one bad record must not abort the batch: %v", err)
	}
	if res.OrdersImported != 1 || res.OrdersSkipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSquareSyncCatalogPriceUpdate(t *testing.T) {
	st := store.NewMemory()
	price := int64(1250)
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"objects": []map[string]any{{
				"type": "ITEM", "id": "ITEM1",
				"item_data": map[string]any{
					"name": "Shawarma Plate",
					"variations": []map[string]any{{
						"id": "VAR1",
						"item_variation_data": map[string]any{"price_money": map[string]any{"amount": price}},
					}},
				},
			}},
		})
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	if _, err := adapter.SyncCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	price = 1399
	if _, err := adapter.SyncCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	item, err := st.FindMenuItemByExternalID(context.Background(), "11111111-1111-1111-1111-111111111111", model.ProviderSquare, "ITEM1")
	if err != nil {
		t.Fatal(err)
	}
	if item.Price.StringFixed(2) != "13.99" {
		t.Errorf("price = %s, want 13.99", item.Price)
	}
}

const squareOrdersBody = `{
  "orders": [
    {
      "id": "ORD1", "state": "COMPLETED", "created_at": "2026-08-20T12:00:00Z",
      "line_items": [
        {"name": "Shawarma Plate", "quantity": "2", "catalog_object_id": "ITEM1",
         "base_price_money": {"amount": 1250}, "total_money": {"amount": 2500}}
      ],
      "total_money": {"amount": 2750},
      "total_tax_money": {"amount": 150},
      "total_tip_money": {"amount": 100},
      "tenders": [{"id": "TND1", "type": "CARD", "amount_money": {"amount": 2750}, "tip_money": {"amount": 100}}]
    }
  ]
}`

func TestSquareSyncOrdersIdempotent(t *testing.T) {
	st := store.NewMemory()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/catalog/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(squareCatalogBody))
	})
	mux.HandleFunc("/v2/orders/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(squareOrdersBody))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	if _, err := adapter.SyncCatalog(context.Background()); err != nil {
		t.Fatal(err)
	}
	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	res, err := adapter.SyncOrders(context.Background(), since, until)
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if res.OrdersImported != 1 || res.PaymentsCreated != 1 {
		t.Errorf("result = %+v", res)
	}

	res, err = adapter.SyncOrders(context.Background(), since, until)
	if err != nil {
		t.Fatalf("second SyncOrders: %v", err)
	}
	if res.OrdersImported != 0 || res.OrdersSkipped != 1 {
		t.Errorf("second run = %+v", res)
	}

	orders, _ := st.ListOrdersBetween(context.Background(), "11111111-1111-1111-1111-111111111111", since, until)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.TotalAmount.StringFixed(2) != "27.50" || o.TaxAmount.StringFixed(2) != "1.50" || o.TipAmount.StringFixed(2) != "1.00" {
		t.Errorf("amounts = total %s tax %s tip %s", o.TotalAmount, o.TaxAmount, o.TipAmount)
	}
	if o.Subtotal.StringFixed(2) != "25.00" {
		t.Errorf("subtotal = %s", o.Subtotal)
	}
	if len(o.LineItems) != 1 || o.LineItems[0].Quantity != 2 || o.LineItems[0].MenuItemID == nil {
		t.Errorf("line items = %+v", o.LineItems)
	}

	payments := st.Payments()
	if len(payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(payments))
	}
	if payments[0].TransactionID != "TND1" || payments[0].PaymentMethod != "CARD" {
		t.Errorf("payment = %+v", payments[0])
	}
}

func TestSquarePushOrderUsesIdempotencyKey(t *testing.T) {
	st := store.NewMemory()
	var gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotKey, _ = req["idempotency_key"].(string)
		w.Write([]byte(`{"order": {"id": "NEW1"}}`))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	order := &model.Order{
		RestaurantID: "11111111-1111-1111-1111-111111111111",
		OrderNumber:  "LOC-42",
		LineItems:    []model.OrderLineItem{{Name: "Falafel Wrap", Quantity: 1}},
	}
	res, err := adapter.PushOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("PushOrder: %v", err)
	}
	if !res.Supported || res.ExternalID != "NEW1" {
		t.Errorf("result = %+v", res)
	}
	if gotKey == "" {
		t.Error("no idempotency key sent")
	}
}

func TestSquareProcessPaymentNotSupported(t *testing.T) {
	adapter := NewSquare(testRestaurant(model.ProviderSquare), nil, store.NewMemory())
	res, err := adapter.ProcessPayment(context.Background(), &model.Order{}, decimalFromString(t, "10.00"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Supported {
		t.Error("square payments should report unsupported")
	}
}

func TestSquareFetchObjectStoresSnapshot(t *testing.T) {
	st := store.NewMemory()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/orders/ORD1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order": {"id": "ORD1", "state": "COMPLETED"}}`))
	})
	adapter := NewSquare(testRestaurant(model.ProviderSquare), testClient(t, model.ProviderSquare, mux), st)

	if err := adapter.FetchObject(context.Background(), "order", "ORD1"); err != nil {
		t.Fatalf("FetchObject: %v", err)
	}
	objs, _ := st.ListExternalObjects(context.Background(), "11111111-1111-1111-1111-111111111111", model.ProviderSquare, "order", 10)
	if len(objs) != 1 || objs[0].ObjectID != "ORD1" {
		t.Errorf("objects = %+v", objs)
	}
}
