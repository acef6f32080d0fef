package oauthstate

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec("test-secret")
	state, err := c.Encode("rest-123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := c.Decode(state)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != "rest-123" {
		t.Fatalf("decoded restaurant id = %q, want rest-123", got)
	}
}

func TestDecodeRejectsTamper(t *testing.T) {
	c := NewCodec("test-secret")
	state, _ := c.Encode("rest-123")

	// Swap the restaurant id while keeping the original signature.
	parts := strings.Split(state, ":")
	parts[0] = "rest-999"
	if _, err := c.Decode(strings.Join(parts, ":")); err == nil {
		t.Fatal("expected tampered state to be rejected")
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	state, _ := NewCodec("secret-a").Encode("rest-123")
	if _, err := NewCodec("secret-b").Decode(state); err == nil {
		t.Fatal("expected state signed with another secret to be rejected")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	c := NewCodec("test-secret")
	for _, state := range []string{"", "abc", "a:b:c", "a:b:c:d:e"} {
		if _, err := c.Decode(state); err == nil {
			t.Fatalf("expected malformed state %q to be rejected", state)
		}
	}
}

func TestDecodeRejectsExpired(t *testing.T) {
	c := NewCodec("test-secret")
	state, _ := c.Encode("rest-123")

	// Shift the verifier's clock past the replay window.
	c.now = func() time.Time { return time.Now().Add(MaxAge + time.Minute) }
	if _, err := c.Decode(state); err == nil {
		t.Fatal("expected expired state to be rejected")
	}
}
