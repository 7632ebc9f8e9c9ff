package tokens

import "errors"

var (
	// ErrAuthExchange indicates the authorization-code exchange failed or returned no refresh token.
	ErrAuthExchange = errors.New("tokens.auth_exchange_failed")
	// ErrUnknownUser indicates no stored record matched the user identifier.
	ErrUnknownUser = errors.New("tokens.unknown_user")
	// ErrTokenRefresh indicates the refresh exchange failed or returned no access token.
	ErrTokenRefresh = errors.New("tokens.refresh_failed")
	// ErrInvalidInvocation indicates the invocation is missing a field its kind requires.
	ErrInvalidInvocation = errors.New("tokens.invalid_invocation")
)
