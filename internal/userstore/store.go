// Package userstore persists the refresh token issued to each user.
package userstore

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound indicates no record exists for the user identifier.
	ErrUserNotFound = errors.New("user_store.not_found")
	// ErrEmptyUserID indicates the user identifier is blank.
	ErrEmptyUserID = errors.New("user_store.empty_user_id")
	// ErrEmptyRefreshToken indicates an attempt to persist a blank refresh token.
	ErrEmptyRefreshToken = errors.New("user_store.empty_refresh_token")
)

// UserRecord maps a user identifier to the provider refresh token.
type UserRecord struct {
	UserID       string
	RefreshToken string
}

// Store reads and upserts user records keyed by user identifier.
type Store interface {
	Get(ctx context.Context, userID string) (UserRecord, error)
	Put(ctx context.Context, record UserRecord) error
}
