package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauthstate"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/vault"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/config"
)

const testSecret = "test-app-secret"

func testLifecycle(t *testing.T, handler http.Handler) (*Lifecycle, *store.Memory, *vault.Vault) {
	t.Helper()
	st := store.NewMemory()
	v := vault.New(testSecret, st)
	cfg := config.SquareConfig{
		ApplicationID:     "app-id",
		ApplicationSecret: "app-secret",
		RedirectURI:       "https://api.example.com/api/pos/square/callback",
		APIVersion:        "2024-01-18",
	}
	l := New(cfg, st, v, oauthstate.NewCodec(testSecret), nil)
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		l.baseURL = srv.URL
	}
	return l, st, v
}

func seedRestaurant(t *testing.T, st *store.Memory) *model.Restaurant {
	t.Helper()
	r := &model.Restaurant{Name: "Test Kitchen", Currency: "USD"}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAuthorizeURL(t *testing.T) {
	l, st, _ := testLifecycle(t, nil)
	r := seedRestaurant(t, st)

	raw, err := l.AuthorizeURL(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("client_id") != "app-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("scope"), "ORDERS_READ") {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("state") == "" {
		t.Error("no state param")
	}
	// The state round-trips through the codec.
	if id, err := l.states.Decode(q.Get("state")); err != nil || id != r.ID {
		t.Errorf("state decodes to %q, %v", id, err)
	}
}

func TestAuthorizeURLNotConfigured(t *testing.T) {
	l, st, _ := testLifecycle(t, nil)
	l.cfg.ApplicationID = ""
	r := seedRestaurant(t, st)

	if _, err := l.AuthorizeURL(context.Background(), r.ID); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func squareTokenHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		switch req["grant_type"] {
		case "authorization_code":
			if req["code"] != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		case "refresh_token":
			if req["refresh_token"] == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "at-" + req["grant_type"],
			"refresh_token": "rt-1",
			"expires_at":    time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339),
			"merchant_id":   "MERCH-9",
		})
	})
	mux.HandleFunc("/v2/locations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"locations": [{"id": "LOC-A", "status": "INACTIVE"}, {"id": "LOC-B", "status": "ACTIVE"}]}`))
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true}`))
	})
	return mux
}

func TestHandleCallbackConnects(t *testing.T) {
	l, st, v := testLifecycle(t, squareTokenHandler(t))
	r := seedRestaurant(t, st)
	state, _ := l.states.Encode(r.ID)

	got, err := l.HandleCallback(context.Background(), state, "good-code")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if !got.POSConnected || got.POSProvider != model.ProviderSquare {
		t.Errorf("restaurant = connected %v provider %s", got.POSConnected, got.POSProvider)
	}
	if got.POSMerchantID != "MERCH-9" {
		t.Errorf("merchant = %q", got.POSMerchantID)
	}
	if got.POSLocationID != "LOC-B" {
		t.Errorf("location = %q, want the active one", got.POSLocationID)
	}
	if got.POSTokenExpiresAt == nil {
		t.Error("expiry not recorded")
	}

	creds, err := v.Get(got)
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessToken != "at-authorization_code" || creds.RefreshToken != "rt-1" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestHandleCallbackReasons(t *testing.T) {
	l, st, _ := testLifecycle(t, squareTokenHandler(t))
	r := seedRestaurant(t, st)

	var cbErr *CallbackError

	_, err := l.HandleCallback(context.Background(), "garbage", "good-code")
	if !errors.As(err, &cbErr) || cbErr.Reason != ReasonInvalidState {
		t.Errorf("bad state: %v", err)
	}

	goneState, _ := l.states.Encode("no-such-restaurant")
	_, err = l.HandleCallback(context.Background(), goneState, "good-code")
	if !errors.As(err, &cbErr) || cbErr.Reason != ReasonRestaurantNotFound {
		t.Errorf("missing restaurant: %v", err)
	}

	state, _ := l.states.Encode(r.ID)
	_, err = l.HandleCallback(context.Background(), state, "bad-code")
	if !errors.As(err, &cbErr) || cbErr.Reason != ReasonTokenExchangeFailed {
		t.Errorf("bad code: %v", err)
	}
}

func TestEnsureFreshRefreshesNearExpiry(t *testing.T) {
	l, st, v := testLifecycle(t, squareTokenHandler(t))
	r := seedRestaurant(t, st)

	soon := time.Now().Add(2 * time.Minute)
	r.POSProvider = model.ProviderSquare
	r.POSConnected = true
	r.POSTokenExpiresAt = &soon
	if err := v.Set(context.Background(), r, vault.Credentials{
		AccessToken:  "stale",
		RefreshToken: "rt-old",
		ExpiresAt:    soon.UTC().Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}

	creds, err := l.EnsureFresh(context.Background(), r)
	if err != nil {
		t.Fatalf("EnsureFresh: %v", err)
	}
	if creds.AccessToken != "at-refresh_token" {
		t.Errorf("access token = %q, want refreshed", creds.AccessToken)
	}
	if r.POSTokenExpiresAt.Before(time.Now().Add(24 * time.Hour)) {
		t.Error("expiry not extended")
	}
}

func TestEnsureFreshNoopWhenNotNearExpiry(t *testing.T) {
	l, st, v := testLifecycle(t, squareTokenHandler(t))
	r := seedRestaurant(t, st)

	far := time.Now().Add(20 * 24 * time.Hour)
	r.POSProvider = model.ProviderSquare
	r.POSTokenExpiresAt = &far
	if err := v.Set(context.Background(), r, vault.Credentials{
		AccessToken: "current", RefreshToken: "rt-1",
	}); err != nil {
		t.Fatal(err)
	}

	creds, err := l.EnsureFresh(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessToken != "current" {
		t.Errorf("access token = %q, want unchanged", creds.AccessToken)
	}
}

func TestEnsureFreshSwallowsRefreshFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	l, st, v := testLifecycle(t, mux)
	r := seedRestaurant(t, st)

	soon := time.Now().Add(time.Minute)
	r.POSProvider = model.ProviderSquare
	r.POSTokenExpiresAt = &soon
	if err := v.Set(context.Background(), r, vault.Credentials{
		AccessToken: "stale", RefreshToken: "rt-1",
	}); err != nil {
		t.Fatal(err)
	}

	creds, err := l.EnsureFresh(context.Background(), r)
	if err != nil {
		t.Fatalf("refresh failure should be swallowed: %v", err)
	}
	if creds.AccessToken != "stale" {
		t.Errorf("access token = %q, want the stale one", creds.AccessToken)
	}
}

func TestDisconnectClearsEvenWhenRevokeFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	l, st, v := testLifecycle(t, mux)
	r := seedRestaurant(t, st)

	r.POSProvider = model.ProviderSquare
	r.POSMerchantID = "MERCH-9"
	r.POSConnected = true
	if err := v.Set(context.Background(), r, vault.Credentials{AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	if err := l.Disconnect(context.Background(), r); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	stored, _ := st.GetRestaurant(context.Background(), r.ID)
	if stored.POSConnected || stored.POSProvider != model.ProviderNone || stored.POSCredentials != "" {
		t.Errorf("restaurant after disconnect = %+v", stored)
	}
}

func TestMarkAuthFailed(t *testing.T) {
	l, st, _ := testLifecycle(t, nil)
	r := seedRestaurant(t, st)
	r.POSProvider = model.ProviderSquare
	r.POSConnected = true
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	l.MarkAuthFailed(context.Background(), r.ID, model.ProviderSquare, "bad token")

	stored, _ := st.GetRestaurant(context.Background(), r.ID)
	if stored.POSConnected {
		t.Error("connection still flagged connected")
	}
	if stored.POSProvider != model.ProviderSquare {
		t.Error("provider should survive an auth failure")
	}
}
