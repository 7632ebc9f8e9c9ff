package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tyemirov/ridemapper/internal/tokens"
)

// Query parameter names carried by the provider callback.
const (
	queryUserID = "uid"
	queryState  = "state"
	queryCode   = "code"
	queryError  = "error"
)

// ParseInvocation maps callback query parameters onto a tagged invocation:
// code and uid select the code path, uid alone the stored-user path, and an
// empty query the owner's default path. A provider-reported error (for example
// a denied consent) surfaces as an authorization failure.
func ParseInvocation(query url.Values) (tokens.Invocation, error) {
	if providerError := strings.TrimSpace(query.Get(queryError)); providerError != "" {
		return tokens.Invocation{}, fmt.Errorf("web.invocation: %w: provider returned %s", tokens.ErrAuthExchange, providerError)
	}
	userID := strings.TrimSpace(query.Get(queryUserID))
	code := strings.TrimSpace(query.Get(queryCode))

	var invocation tokens.Invocation
	switch {
	case code != "":
		invocation = tokens.CodeInvocation(code, userID)
	case userID != "":
		invocation = tokens.UserInvocation(userID)
	default:
		invocation = tokens.DefaultInvocation()
	}
	if err := invocation.Validate(); err != nil {
		return tokens.Invocation{}, fmt.Errorf("web.invocation: %w", err)
	}
	return invocation, nil
}
