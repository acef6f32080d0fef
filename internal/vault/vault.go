// Package vault reads and writes the per-restaurant encrypted credential
// blob. Callers only ever see the decoded field set; the encryption scheme
// stays inside this package.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"

	"golang.org/x/crypto/nacl/secretbox"
)

var errDecrypt = errors.New("vault: cannot decrypt credential blob")

// Credentials is the decoded credential set for one restaurant+provider.
// Cloud providers use the OAuth token fields; the legacy REST providers
// store a static API key.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	MerchantID   string `json:"merchant_id,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
}

// Empty reports whether no usable credential is present.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.APIKey == ""
}

// Vault encrypts credentials with a key derived from the application secret
// and persists them on the restaurant record immediately.
type Vault struct {
	key   [32]byte
	store store.Store
}

// New derives the vault key from the application secret.
func New(secret string, st store.Store) *Vault {
	return &Vault{key: sha256.Sum256([]byte(secret)), store: st}
}

// Get decodes the restaurant's credential blob. A restaurant without a
// configured provider or without a blob yields empty credentials, not an
// error.
func (v *Vault) Get(r *model.Restaurant) (Credentials, error) {
	if !r.HasProvider() || r.POSCredentials == "" {
		return Credentials{}, nil
	}
	return v.decrypt(r.POSCredentials)
}

// Set encrypts and persists the credential set on the restaurant record.
func (v *Vault) Set(ctx context.Context, r *model.Restaurant, creds Credentials) error {
	blob, err := v.encrypt(creds)
	if err != nil {
		return err
	}
	r.POSCredentials = blob
	return v.store.SaveRestaurant(ctx, r)
}

// Clear removes the credential blob and persists the restaurant record.
func (v *Vault) Clear(ctx context.Context, r *model.Restaurant) error {
	r.POSCredentials = ""
	return v.store.SaveRestaurant(ctx, r)
}

func (v *Vault) encrypt(creds Credentials) (string, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &v.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (v *Vault) decrypt(blob string) (Credentials, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil || len(raw) < 24 {
		return Credentials{}, errDecrypt
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &v.key)
	if !ok {
		return Credentials{}, errDecrypt
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return Credentials{}, fmt.Errorf("vault: bad credential payload: %w", err)
	}
	return creds, nil
}
