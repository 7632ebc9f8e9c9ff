package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNonceNotFound indicates the nonce was never issued or was already consumed.
	ErrNonceNotFound = errors.New("oauth_state.nonce_not_found")
	// ErrNonceExpired indicates the nonce expired before consumption.
	ErrNonceExpired = errors.New("oauth_state.nonce_expired")
)

// NonceStore issues one-time nonces that bind a login redirect to its callback.
type NonceStore interface {
	// Issue creates a new nonce with the configured TTL.
	Issue(ctx context.Context) (string, error)
	// Consume validates and invalidates an issued nonce.
	Consume(ctx context.Context, nonce string) error
}

type memoryNonceStore struct {
	mutex     sync.Mutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	tokenSize int
}

// NewMemoryNonceStore constructs an in-memory NonceStore with the provided TTL.
func NewMemoryNonceStore(ttl time.Duration) NonceStore {
	return &memoryNonceStore{
		entries:   make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
		tokenSize: 24,
	}
}

func (store *memoryNonceStore) Issue(ctx context.Context) (string, error) {
	nonce, err := store.randomNonce()
	if err != nil {
		return "", err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.purgeExpiredLocked()
	store.entries[nonce] = store.now().Add(store.ttl)
	return nonce, nil
}

func (store *memoryNonceStore) Consume(ctx context.Context, nonce string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	defer store.purgeExpiredLocked()

	expiry, ok := store.entries[nonce]
	if !ok {
		return ErrNonceNotFound
	}
	delete(store.entries, nonce)
	if store.now().After(expiry) {
		return ErrNonceExpired
	}
	return nil
}

func (store *memoryNonceStore) purgeExpiredLocked() {
	if len(store.entries) == 0 {
		return
	}
	now := store.now()
	for nonce, expiry := range store.entries {
		if now.After(expiry) {
			delete(store.entries, nonce)
		}
	}
}

func (store *memoryNonceStore) randomNonce() (string, error) {
	buffer := make([]byte, store.tokenSize)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
