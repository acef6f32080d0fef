package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
)

func TestToastSyncCatalog(t *testing.T) {
	st := store.NewMemory()
	mux := http.NewServeMux()
	mux.HandleFunc("/menus/v2/menus", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{
			"guid": "menu-1", "name": "Dinner",
			"menuGroups": [{
				"guid": "grp-1", "name": "Grill",
				"menuItems": [
					{"guid": "itm-1", "name": "Kofta", "price": 14.00, "visibility": "ALL"},
					{"guid": "itm-2", "name": "Hidden Item", "price": 9.00, "visibility": "NONE"},
					{"guid": "", "name": "Broken"}
				]
			}]
		}]`))
	})
	adapter := NewToast(testRestaurant(model.ProviderToast), testClient(t, model.ProviderToast, mux), st)

	res, err := adapter.SyncCatalog(context.Background())
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if res.CategoriesSynced != 1 || res.ItemsSynced != 2 || res.ItemsSkipped != 1 {
		t.Errorf("result = %+v", res)
	}

	rid := "11111111-1111-1111-1111-111111111111"
	hidden, err := st.FindMenuItemByExternalID(context.Background(), rid, model.ProviderToast, "itm-2")
	if err != nil {
		t.Fatal(err)
	}
	if hidden.IsActive {
		t.Error("item with visibility NONE should be inactive")
	}
}

func TestToastSyncOrders(t *testing.T) {
	st := store.NewMemory()
	rid := "11111111-1111-1111-1111-111111111111"
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/v2/ordersBulk", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{
			"guid": "ord-1", "openedDate": "2026-08-20T19:00:00Z",
			"checks": [{
				"guid": "chk-1", "amount": 28.00, "taxAmount": 2.50, "totalAmount": 30.50,
				"selections": [
					{"guid": "sel-1", "itemGuid": "itm-1", "displayName": "Kofta", "quantity": 2, "price": 14.00}
				],
				"payments": [
					{"guid": "pay-1", "type": "CREDIT", "amount": 30.50, "tipAmount": 5.00}
				]
			}]
		}]`))
	})
	adapter := NewToast(testRestaurant(model.ProviderToast), testClient(t, model.ProviderToast, mux), st)

	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)
	res, err := adapter.SyncOrders(context.Background(), since, until)
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if res.OrdersImported != 1 || res.PaymentsCreated != 1 {
		t.Errorf("result = %+v", res)
	}

	orders, _ := st.ListOrdersBetween(context.Background(), rid, since, until)
	if len(orders) != 1 {
		t.Fatalf("orders = %d", len(orders))
	}
	o := orders[0]
	if o.TipAmount.StringFixed(2) != "5.00" {
		t.Errorf("tip = %s", o.TipAmount)
	}
	if o.TotalAmount.StringFixed(2) != "35.50" {
		t.Errorf("total = %s", o.TotalAmount)
	}
	if len(o.LineItems) != 1 || o.LineItems[0].Quantity != 2 {
		t.Errorf("line items = %+v", o.LineItems)
	}

	// Second run skips the order.
	res, err = adapter.SyncOrders(context.Background(), since, until)
	if err != nil {
		t.Fatal(err)
	}
	if res.OrdersImported != 0 || res.OrdersSkipped != 1 {
		t.Errorf("second run = %+v", res)
	}
}
