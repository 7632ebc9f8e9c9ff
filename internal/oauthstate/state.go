// Package oauthstate mints and verifies the signed, single-use state parameter
// carried through the provider's consent redirect.
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// DefaultTTL bounds how long a user may take on the consent screen.
const DefaultTTL = 10 * time.Minute

var (
	// ErrInvalidState indicates the callback state is missing, forged, expired, replayed, or bound to another user.
	ErrInvalidState = errors.New("oauth_state.invalid")

	errMissingSigningKey = errors.New("oauth_state.missing_signing_key")
	errMissingIssuer     = errors.New("oauth_state.missing_issuer")
	errMissingNonceStore = errors.New("oauth_state.missing_nonce_store")
	errEmptyUserID       = errors.New("oauth_state.empty_user_id")
)

// Config configures state signing.
type Config struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
	Clock      Clock
}

// Claims bind a state token to the user identifier on the redirect URL.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager issues and verifies state tokens.
type Manager struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	clock      Clock
	nonces     NonceStore
}

// New constructs a Manager after validating the supplied configuration.
func New(configuration Config, nonces NonceStore) (*Manager, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("oauth_state.new: %w", errMissingSigningKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("oauth_state.new: %w", errMissingIssuer)
	}
	if nonces == nil {
		return nil, fmt.Errorf("oauth_state.new: %w", errMissingNonceStore)
	}
	ttl := configuration.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Manager{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		ttl:        ttl,
		clock:      clock,
		nonces:     nonces,
	}, nil
}

// Issue mints a state token for userID.
func (manager *Manager) Issue(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("oauth_state.issue: %w", errEmptyUserID)
	}
	nonce, nonceErr := manager.nonces.Issue(ctx)
	if nonceErr != nil {
		return "", fmt.Errorf("oauth_state.issue.nonce: %w", nonceErr)
	}
	issuedAt := manager.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			Issuer:    manager.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(manager.ttl)),
		},
	})
	signed, signErr := token.SignedString(manager.signingKey)
	if signErr != nil {
		return "", fmt.Errorf("oauth_state.issue.sign: %w", signErr)
	}
	return signed, nil
}

// Verify checks that state was issued for userID and consumes it.
func (manager *Manager) Verify(ctx context.Context, state string, userID string) error {
	if strings.TrimSpace(state) == "" {
		return fmt.Errorf("oauth_state.verify: %w: missing state", ErrInvalidState)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(state, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return manager.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(manager.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(manager.clock.Now))
	if parseErr != nil {
		return fmt.Errorf("oauth_state.verify: %w: %w", ErrInvalidState, parseErr)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || !parsedToken.Valid {
		return fmt.Errorf("oauth_state.verify: %w: unexpected claims", ErrInvalidState)
	}
	if claims.UserID != userID || claims.Subject != userID {
		return fmt.Errorf("oauth_state.verify: %w: uid mismatch", ErrInvalidState)
	}
	if consumeErr := manager.nonces.Consume(ctx, claims.ID); consumeErr != nil {
		return fmt.Errorf("oauth_state.verify: %w: %w", ErrInvalidState, consumeErr)
	}
	return nil
}
