package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryNonceStore_SingleUse(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	nonce, err := NewNonce()
	if err != nil {
		t.Fatalf("new nonce: %v", err)
	}
	if len(nonce) != 64 {
		t.Fatalf("expected 32-byte hex nonce, got %d chars", len(nonce))
	}

	if err := store.SaveNonce(ctx, "SPWALLET", nonce, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.TakeNonce(ctx, "SPWALLET")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got != nonce {
		t.Fatalf("nonce mismatch: %q", got)
	}

	// A nonce can be redeemed at most once.
	if _, err := store.TakeNonce(ctx, "SPWALLET"); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("second take should fail, got %v", err)
	}
}

func TestMemoryNonceStore_ReplaceAndIsolate(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	_ = store.SaveNonce(ctx, "a", "first", time.Minute)
	_ = store.SaveNonce(ctx, "a", "second", time.Minute)
	_ = store.SaveNonce(ctx, "b", "other", time.Minute)

	if got, _ := store.TakeNonce(ctx, "a"); got != "second" {
		t.Fatalf("save should replace, got %q", got)
	}
	if got, _ := store.TakeNonce(ctx, "b"); got != "other" {
		t.Fatalf("wallets must not share nonces, got %q", got)
	}
}

func TestMemoryNonceStore_Expiry(t *testing.T) {
	store := NewMemoryNonceStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	_ = store.SaveNonce(ctx, "SPWALLET", "n1", time.Minute)

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := store.TakeNonce(ctx, "SPWALLET"); !errors.Is(err, ErrNonceNotFound) {
		t.Fatalf("expired nonce should be gone, got %v", err)
	}
}
