package vault

import (
	"context"
	"testing"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
)

func testRestaurant(t *testing.T, st store.Store) *model.Restaurant {
	t.Helper()
	r := &model.Restaurant{Name: "Test Kitchen", POSProvider: model.ProviderSquare}
	if err := st.SaveRestaurant(context.Background(), r); err != nil {
		t.Fatalf("save restaurant: %v", err)
	}
	return r
}

func TestSetGetRoundTrip(t *testing.T) {
	st := store.NewMemory()
	v := New("app-secret", st)
	r := testRestaurant(t, st)

	want := Credentials{
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		ExpiresAt:    "2026-09-30T00:00:00Z",
		MerchantID:   "M-1",
	}
	if err := v.Set(context.Background(), r, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	if r.POSCredentials == "" {
		t.Fatal("expected blob to be written on the record")
	}

	got, err := v.Get(r)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("credentials mismatch: got %+v want %+v", got, want)
	}
}

func TestGetWithoutProviderIsEmpty(t *testing.T) {
	st := store.NewMemory()
	v := New("app-secret", st)
	r := &model.Restaurant{Name: "No POS", POSProvider: model.ProviderNone}

	creds, err := v.Get(r)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !creds.Empty() {
		t.Fatalf("expected empty credentials, got %+v", creds)
	}
}

func TestGetWithWrongKeyFails(t *testing.T) {
	st := store.NewMemory()
	r := testRestaurant(t, st)
	if err := New("secret-a", st).Set(context.Background(), r, Credentials{AccessToken: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := New("secret-b", st).Get(r); err == nil {
		t.Fatal("expected decryption with wrong key to fail")
	}
}

func TestClearRemovesBlob(t *testing.T) {
	st := store.NewMemory()
	v := New("app-secret", st)
	r := testRestaurant(t, st)
	if err := v.Set(context.Background(), r, Credentials{AccessToken: "x"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := v.Clear(context.Background(), r); err != nil {
		t.Fatalf("clear: %v", err)
	}
	creds, err := v.Get(r)
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if !creds.Empty() {
		t.Fatalf("expected cleared credentials, got %+v", creds)
	}
}
