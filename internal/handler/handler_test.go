package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/jobs"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauth"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauthstate"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/registry"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/vault"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/webhook"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/jwtutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	testSecret   = "test-app-secret"
	testAgentKey = "agent-key-123"
	testWhKey    = "wh-key"
	testWhURL    = "https://api.example.com/webhooks/square"
)

type testEnv struct {
	echo       *echo.Echo
	store      *store.Memory
	queue      *jobs.MemoryQueue
	restaurant *model.Restaurant
	token      string
}

// newTestEnv stands up the whole HTTP surface against an in-memory store
// and a fake custom-provider POS API.
func newTestEnv(t *testing.T, posHandler http.Handler) *testEnv {
	t.Helper()

	st := store.NewMemory()
	v := vault.New(testSecret, st)
	cfg := &config.Config{
		Square: config.SquareConfig{
			ApplicationID:       "app-id",
			ApplicationSecret:   "app-secret",
			APIVersion:          "2024-01-18",
			WebhookSignatureKey: testWhKey,
			NotificationURL:     testWhURL,
		},
		App: config.AppConfig{
			SecretKey:   testSecret,
			FrontendURL: "https://app.example.com",
			AgentAPIKey: testAgentKey,
		},
	}

	r := &model.Restaurant{
		Name:          "Test Kitchen",
		Currency:      "USD",
		POSProvider:   model.ProviderCustom,
		POSMerchantID: "MERCH-1",
		POSConnected:  true,
	}
	if posHandler != nil {
		srv := httptest.NewServer(posHandler)
		t.Cleanup(srv.Close)
		r.CustomAPIBaseURL = srv.URL
	}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if err := v.Set(context.Background(), r, vault.Credentials{APIKey: "pos-key"}); err != nil {
		t.Fatal(err)
	}

	lc := oauth.New(cfg.Square, st, v, oauthstate.NewCodec(testSecret), nil)
	manager := registry.NewManager(cfg, st, v, lc, nil)
	queue := jobs.NewMemoryQueue(32)
	ingestor := webhook.NewIngestor(cfg.Square, st, queue, nil)

	jwtutil.SetSigningKey(testSecret)
	token, err := jwtutil.GenerateToken(&jwtutil.UserClaims{
		Email:        "owner@example.com",
		UserID:       "user-1",
		RestaurantID: r.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	RegisterRoutes(e, &Handlers{
		OAuth:       NewOAuthHandler(lc, st, cfg.App.FrontendURL),
		Webhook:     NewWebhookHandler(ingestor),
		Sync:        NewSyncHandler(manager, st),
		Analytics:   NewAnalyticsHandler(registry.NewAnalytics(st)),
		AgentAPIKey: testAgentKey,
	})

	return &testEnv{echo: e, store: st, queue: queue, restaurant: r, token: token}
}

func (env *testEnv) request(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) authed(method, path, body string) *httptest.ResponseRecorder {
	return env.request(method, path, body, map[string]string{
		"Authorization": "Bearer " + env.token,
	})
}

func fakeCustomPOS(orderTime time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/menu", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "m1", "name": "Hummus", "price": 6.5},
			{"id": "m2", "name": "Shawarma Plate", "price": 12.5}
		]`))
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orders": [
			{"id": "o1", "total": 19.0, "status": "completed",
			 "created_at": "` + orderTime.Format(time.RFC3339) + `",
			 "items": [
			    {"name": "Hummus", "quantity": 1, "price": 6.5},
			    {"name": "Shawarma Plate", "quantity": 1, "price": 12.5}
			 ]}
		]}`))
	})
	return mux
}

func TestOperatorEndpointsRequireJWT(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.request(http.MethodGet, "/api/pos/status", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	rec = env.request(http.MethodGet, "/api/pos/status", "", map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.authed(http.MethodGet, "/api/pos/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["provider"] != "CUSTOM" || out["connected"] != true {
		t.Errorf("body = %v", out)
	}
}

func TestSyncThenAnalyticsFlow(t *testing.T) {
	orderTime := time.Now().UTC().Add(-time.Hour)
	env := newTestEnv(t, fakeCustomPOS(orderTime))

	rec := env.authed(http.MethodPost, "/api/pos/sync/menu", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sync menu: %d %s", rec.Code, rec.Body)
	}
	rec = env.authed(http.MethodPost, "/api/pos/sync/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sync orders: %d %s", rec.Code, rec.Body)
	}

	today := orderTime.Format("2006-01-02")
	rec = env.authed(http.MethodGet, "/api/pos/analytics/daily-summary?date="+today, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("daily summary: %d %s", rec.Code, rec.Body)
	}
	var summary struct {
		OrderCount   int             `json:"order_count"`
		TotalRevenue json.RawMessage `json:"total_revenue"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.OrderCount != 1 {
		t.Errorf("order count = %d", summary.OrderCount)
	}

	rec = env.authed(http.MethodGet, "/api/pos/analytics/top-items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("top items: %d %s", rec.Code, rec.Body)
	}
	var top struct {
		Items []struct {
			Name     string `json:"name"`
			Quantity int    `json:"quantity"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &top); err != nil {
		t.Fatal(err)
	}
	if len(top.Items) != 2 {
		t.Errorf("top items = %+v", top.Items)
	}

	// Re-running the order sync changes nothing.
	rec = env.authed(http.MethodPost, "/api/pos/sync/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second sync: %d", rec.Code)
	}
	rec = env.authed(http.MethodGet, "/api/pos/analytics/daily-summary?date="+today, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.OrderCount != 1 {
		t.Errorf("order count after resync = %d", summary.OrderCount)
	}
}

func TestSyncWithoutConnectionConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.restaurant.POSConnected = false
	if err := env.store.SaveRestaurant(context.Background(), env.restaurant); err != nil {
		t.Fatal(err)
	}

	rec := env.authed(http.MethodPost, "/api/pos/sync/menu", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	// The resolver matches by merchant id, so switch the tenant to Square.
	env.restaurant.POSProvider = model.ProviderSquare
	if err := env.store.SaveRestaurant(context.Background(), env.restaurant); err != nil {
		t.Fatal(err)
	}

	body := `{"merchant_id": "MERCH-1", "type": "catalog.version.updated", "event_id": "evt-1"}`
	sig := webhook.Sign(testWhKey, testWhURL, []byte(body))

	rec := env.request(http.MethodPost, "/webhooks/square", body, map[string]string{
		SquareSignatureHeader: sig,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook: %d %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "accepted") {
		t.Errorf("body = %s", rec.Body)
	}

	// The delivery queued a catalog sync job.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	job, err := env.queue.Dequeue(ctx)
	if err != nil {
		t.Fatalf("no job queued: %v", err)
	}
	if job.Type != jobs.TypeCatalogSync || job.RestaurantID != env.restaurant.ID {
		t.Errorf("job = %+v", job)
	}

	// Retried delivery is a no-op.
	rec = env.request(http.MethodPost, "/webhooks/square", body, map[string]string{
		SquareSignatureHeader: sig,
	})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "duplicate") {
		t.Errorf("duplicate: %d %s", rec.Code, rec.Body)
	}

	// Bad signature gets the uniform rejection.
	rec = env.request(http.MethodPost, "/webhooks/square", body, map[string]string{
		SquareSignatureHeader: "bogus",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad signature: %d", rec.Code)
	}
}

func TestWebhookUnconfiguredIsServerError(t *testing.T) {
	ing := webhook.NewIngestor(config.SquareConfig{}, store.NewMemory(), jobs.NewMemoryQueue(1), nil)
	e := echo.New()
	e.POST("/webhooks/square", NewWebhookHandler(ing).Receive)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/square", strings.NewReader(`{"event_id": "e1"}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the provider keeps retrying", rec.Code)
	}
}

func TestAgentEndpoints(t *testing.T) {
	env := newTestEnv(t, fakeCustomPOS(time.Now().UTC()))

	rec := env.request(http.MethodPost, "/agent/pos/sync/menu?restaurant_id="+env.restaurant.ID, "", map[string]string{
		"Authorization": "Bearer " + testAgentKey,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("agent sync: %d %s", rec.Code, rec.Body)
	}

	rec = env.request(http.MethodPost, "/agent/pos/sync/menu?restaurant_id="+env.restaurant.ID, "", map[string]string{
		"Authorization": "Bearer wrong-key",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong agent key: %d", rec.Code)
	}

	rec = env.request(http.MethodPost, "/agent/pos/sync/menu", "", map[string]string{
		"Authorization": "Bearer " + testAgentKey,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing restaurant_id: %d", rec.Code)
	}
}

func TestAuthorizeEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.authed(http.MethodGet, "/api/pos/square/authorize", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("authorize: %d %s", rec.Code, rec.Body)
	}
	var out struct {
		AuthorizeURL string `json:"authorize_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.AuthorizeURL, "client_id=app-id") || !strings.Contains(out.AuthorizeURL, "state=") {
		t.Errorf("authorize url = %s", out.AuthorizeURL)
	}
}

func TestCallbackRedirects(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.request(http.MethodGet, "/api/pos/square/callback?state=garbage&code=x", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("callback: %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "error=invalid_state") {
		t.Errorf("location = %s", loc)
	}
}
