// Package tokens resolves provider access tokens through the OAuth2
// authorization-code and refresh-token grants.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tyemirov/ridemapper/internal/userstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	errMissingClientID = errors.New("tokens.missing_client_id")
	errMissingTokenURL = errors.New("tokens.missing_token_url")
	errMissingStore    = errors.New("tokens.missing_user_store")
)

// TokenSet holds the credentials produced by one exchange. AccessToken is
// only valid for the current fetch cycle and is never persisted.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
}

// Config configures the provider endpoints and credentials.
type Config struct {
	ClientID            string
	ClientSecret        string
	AuthURL             string
	TokenURL            string
	Scopes              []string
	DefaultRefreshToken string
	HTTPClient          *http.Client
	Logger              *zap.Logger
}

// Manager owns the token state machine and the user record writes.
type Manager struct {
	oauthConfig         *oauth2.Config
	defaultRefreshToken string
	users               userstore.Store
	httpClient          *http.Client
	logger              *zap.Logger
}

// NewManager validates configuration and constructs a Manager.
func NewManager(configuration Config, users userstore.Store) (*Manager, error) {
	if strings.TrimSpace(configuration.ClientID) == "" {
		return nil, fmt.Errorf("tokens.new_manager: %w", errMissingClientID)
	}
	if strings.TrimSpace(configuration.TokenURL) == "" {
		return nil, fmt.Errorf("tokens.new_manager: %w", errMissingTokenURL)
	}
	if users == nil {
		return nil, fmt.Errorf("tokens.new_manager: %w", errMissingStore)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		oauthConfig: &oauth2.Config{
			ClientID:     configuration.ClientID,
			ClientSecret: configuration.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   configuration.AuthURL,
				TokenURL:  configuration.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: configuration.Scopes,
		},
		defaultRefreshToken: configuration.DefaultRefreshToken,
		users:               users,
		httpClient:          configuration.HTTPClient,
		logger:              logger,
	}, nil
}

// Resolve produces a fresh access token for the invocation. A code invocation
// stores the exchanged refresh token and then resolves as a user invocation.
func (manager *Manager) Resolve(ctx context.Context, invocation Invocation) (TokenSet, error) {
	if err := invocation.Validate(); err != nil {
		return TokenSet{}, fmt.Errorf("tokens.resolve: %w", err)
	}
	switch invocation.Kind {
	case KindCode:
		if err := manager.authorize(ctx, invocation.Code, invocation.UserID); err != nil {
			return TokenSet{}, err
		}
		return manager.Resolve(ctx, UserInvocation(invocation.UserID))
	case KindUser:
		record, err := manager.users.Get(ctx, invocation.UserID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return TokenSet{}, fmt.Errorf("tokens.resolve.uid: %w", ErrUnknownUser)
			}
			return TokenSet{}, fmt.Errorf("tokens.resolve.uid: %w", err)
		}
		return manager.refresh(ctx, record.RefreshToken)
	default:
		return manager.refresh(ctx, manager.defaultRefreshToken)
	}
}

// LoginURL builds the provider consent URL that redirects back to redirectURL.
func (manager *Manager) LoginURL(state string, redirectURL string) string {
	return manager.oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("redirect_uri", redirectURL),
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
	)
}

func (manager *Manager) authorize(ctx context.Context, code string, userID string) error {
	token, exchangeErr := manager.oauthConfig.Exchange(manager.clientContext(ctx), code)
	if exchangeErr != nil {
		return wrapProviderError("tokens.exchange_code", ErrAuthExchange, exchangeErr)
	}
	if strings.TrimSpace(token.RefreshToken) == "" {
		return fmt.Errorf("tokens.exchange_code: %w: response missing refresh_token", ErrAuthExchange)
	}
	if err := manager.users.Put(ctx, userstore.UserRecord{UserID: userID, RefreshToken: token.RefreshToken}); err != nil {
		return fmt.Errorf("tokens.exchange_code.persist: %w: %w", ErrAuthExchange, err)
	}
	manager.logger.Info("authorization code exchanged",
		zap.String("code", "tokens.code.exchanged"),
		zap.String("user_id", userID))
	return nil
}

func (manager *Manager) refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenSet{}, fmt.Errorf("tokens.refresh: %w: no refresh token available", ErrTokenRefresh)
	}
	source := manager.oauthConfig.TokenSource(manager.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, refreshErr := source.Token()
	if refreshErr != nil {
		return TokenSet{}, wrapProviderError("tokens.refresh", ErrTokenRefresh, refreshErr)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return TokenSet{}, fmt.Errorf("tokens.refresh: %w: response missing access_token", ErrTokenRefresh)
	}
	rotatedRefreshToken := token.RefreshToken
	if rotatedRefreshToken == "" {
		rotatedRefreshToken = refreshToken
	}
	if rotatedRefreshToken != refreshToken {
		manager.logger.Debug("provider rotated refresh token",
			zap.String("code", "tokens.refresh.rotated"))
	}
	return TokenSet{AccessToken: token.AccessToken, RefreshToken: rotatedRefreshToken}, nil
}

func (manager *Manager) clientContext(ctx context.Context) context.Context {
	if manager.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, manager.httpClient)
}

// wrapProviderError reduces provider rejections to their status code so
// response bodies never reach logs.
func wrapProviderError(operation string, sentinel error, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Errorf("%s: %w: provider status %d", operation, sentinel, retrieveErr.Response.StatusCode)
	}
	return fmt.Errorf("%s: %w: %w", operation, sentinel, err)
}
