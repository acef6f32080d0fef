// Package oauthstate signs and verifies the OAuth state parameter that
// carries a restaurant id through the provider redirect round-trip.
package oauthstate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxAge bounds how long a state token stays valid after issuance.
const MaxAge = 10 * time.Minute

var ErrInvalidState = errors.New("invalid or expired state")

// Codec encodes restaurant ids into tamper-evident, time-boxed state tokens.
// Validity is purely a function of the token contents and the clock; nothing
// is persisted.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec signing with the given application secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Encode produces a state token of the form restaurantID:nonce:ts:sig.
func (c *Codec) Encode(restaurantID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	payload := fmt.Sprintf("%s:%s:%d", restaurantID, hex.EncodeToString(nonce), c.now().Unix())
	return payload + ":" + c.sign(payload), nil
}

// Decode verifies a state token and returns the embedded restaurant id.
// It fails closed: malformed structure, MAC mismatch and stale timestamps
// all yield ErrInvalidState.
func (c *Codec) Decode(state string) (string, error) {
	parts := strings.Split(state, ":")
	if len(parts) != 4 {
		return "", ErrInvalidState
	}
	restaurantID, nonce, tsStr, sig := parts[0], parts[1], parts[2], parts[3]

	payload := restaurantID + ":" + nonce + ":" + tsStr
	expected := c.sign(payload)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", ErrInvalidState
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return "", ErrInvalidState
	}
	age := c.now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > MaxAge {
		return "", ErrInvalidState
	}

	return restaurantID, nil
}

// sign returns the first 16 hex chars of HMAC-SHA256(secret, payload).
func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
