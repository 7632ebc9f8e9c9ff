package oauthstate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryNonceStoreIssueAndConsume(t *testing.T) {
	t.Parallel()
	store := NewMemoryNonceStore(2 * time.Minute).(*memoryNonceStore)
	store.now = func() time.Time { return time.Unix(1000, 0) }

	nonce, err := store.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	if nonce == "" {
		t.Fatalf("expected nonce")
	}

	if err := store.Consume(context.Background(), nonce); err != nil {
		t.Fatalf("consume nonce: %v", err)
	}

	if err := store.Consume(context.Background(), nonce); err != ErrNonceNotFound {
		t.Fatalf("expected ErrNonceNotFound, got %v", err)
	}
}

func TestMemoryNonceStoreExpiry(t *testing.T) {
	t.Parallel()
	store := NewMemoryNonceStore(time.Minute).(*memoryNonceStore)
	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	nonce, err := store.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue nonce: %v", err)
	}

	current = current.Add(2 * time.Minute)

	if err := store.Consume(context.Background(), nonce); err != ErrNonceNotFound && err != ErrNonceExpired {
		t.Fatalf("expected expired nonce to be rejected, got %v", err)
	}
}
