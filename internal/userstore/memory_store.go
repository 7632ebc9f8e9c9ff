package userstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory store intended for tests and dev.
type MemoryStore struct {
	mutex   sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	RefreshToken  string
	CreatedAtUnix int64
	UpdatedAtUnix int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

// Get returns the record for userID.
func (store *MemoryStore) Get(ctx context.Context, userID string) (UserRecord, error) {
	if err := validateUserID(userID); err != nil {
		return UserRecord{}, fmt.Errorf("user_store.get.memory: %w", err)
	}
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	record, ok := store.records[userID]
	if !ok {
		return UserRecord{}, fmt.Errorf("user_store.get.memory: %w", ErrUserNotFound)
	}
	return UserRecord{UserID: userID, RefreshToken: record.RefreshToken}, nil
}

// Put inserts or replaces the record for record.UserID.
func (store *MemoryStore) Put(ctx context.Context, record UserRecord) error {
	if err := ValidateRecord(record); err != nil {
		return fmt.Errorf("user_store.put.memory: %w", err)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	nowUnix := store.now().UTC().Unix()
	existing, ok := store.records[record.UserID]
	createdAtUnix := nowUnix
	if ok {
		createdAtUnix = existing.CreatedAtUnix
	}
	store.records[record.UserID] = memoryRecord{
		RefreshToken:  record.RefreshToken,
		CreatedAtUnix: createdAtUnix,
		UpdatedAtUnix: nowUnix,
	}
	return nil
}

// Len reports the number of stored users.
func (store *MemoryStore) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.records)
}
