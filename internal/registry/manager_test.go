package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauth"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauthstate"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/vault"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
)

func testManager(t *testing.T) (*Manager, *store.Memory, *vault.Vault) {
	t.Helper()
	st := store.NewMemory()
	v := vault.New("test-secret", st)
	cfg := &config.Config{
		Square: config.SquareConfig{
			ApplicationID:     "app-id",
			ApplicationSecret: "app-secret",
			APIVersion:        "2024-01-18",
		},
	}
	lc := oauth.New(cfg.Square, st, v, oauthstate.NewCodec("test-secret"), nil)
	return NewManager(cfg, st, v, lc, nil), st, v
}

func TestGetAdapterNotConnected(t *testing.T) {
	m, st, _ := testManager(t)
	r := &model.Restaurant{Name: "Test Kitchen"}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	if _, err := m.GetAdapter(context.Background(), r); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("no provider: err = %v", err)
	}

	r.POSProvider = model.ProviderSquare
	r.POSConnected = false
	if _, err := m.GetAdapter(context.Background(), r); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("disconnected: err = %v", err)
	}
}

func TestGetAdapterPerProvider(t *testing.T) {
	m, st, v := testManager(t)

	for _, p := range []model.POSProvider{model.ProviderToast, model.ProviderClover, model.ProviderCustom} {
		r := &model.Restaurant{
			Name:             "Test Kitchen " + string(p),
			POSProvider:      p,
			POSConnected:     true,
			POSMerchantID:    "M-1",
			CustomAPIBaseURL: "https://pos.example.com",
		}
		if err := st.SaveRestaurant(context.Background(), r); err != nil {
			t.Fatal(err)
		}
		if err := v.Set(context.Background(), r, vault.Credentials{AccessToken: "tok", APIKey: "key"}); err != nil {
			t.Fatal(err)
		}
		adapter, err := m.GetAdapter(context.Background(), r)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if adapter.Provider() != p {
			t.Errorf("adapter provider = %s, want %s", adapter.Provider(), p)
		}
	}
}

func TestGetAdapterCustomRequiresBaseURL(t *testing.T) {
	m, st, _ := testManager(t)
	r := &model.Restaurant{
		Name:         "Test Kitchen",
		POSProvider:  model.ProviderCustom,
		POSConnected: true,
	}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetAdapter(context.Background(), r); err == nil {
		t.Fatal("custom adapter without base url should fail")
	}
}

func TestSyncCatalogStampsLastSync(t *testing.T) {
	m, st, v := testManager(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/menu" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id": "m1", "name": "Hummus", "price": 6.5}]`))
	}))
	defer srv.Close()

	r := &model.Restaurant{
		Name:             "Test Kitchen",
		POSProvider:      model.ProviderCustom,
		POSConnected:     true,
		CustomAPIBaseURL: srv.URL,
	}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := v.Set(context.Background(), r, vault.Credentials{APIKey: "key"}); err != nil {
		t.Fatal(err)
	}

	res, err := m.SyncCatalog(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("SyncCatalog: %v", err)
	}
	if res.ItemsSynced != 1 {
		t.Errorf("items = %d", res.ItemsSynced)
	}
	stored, _ := st.GetRestaurant(context.Background(), r.ID)
	if stored.POSLastSyncAt == nil {
		t.Error("last sync time not stamped")
	}
}

func TestRefetchObject(t *testing.T) {
	m, st, v := testManager(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "o1", "status": "completed"}`))
	}))
	defer srv.Close()

	r := &model.Restaurant{
		Name:             "Test Kitchen",
		POSProvider:      model.ProviderCustom,
		POSConnected:     true,
		CustomAPIBaseURL: srv.URL,
	}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := v.Set(context.Background(), r, vault.Credentials{APIKey: "key"}); err != nil {
		t.Fatal(err)
	}

	if err := m.RefetchObject(context.Background(), r.ID, "order", "o1"); err != nil {
		t.Fatalf("RefetchObject: %v", err)
	}
	objs, _ := st.ListExternalObjects(context.Background(), r.ID, model.ProviderCustom, "order", 10)
	if len(objs) != 1 {
		t.Fatalf("objects = %d", len(objs))
	}
}
