package tokens

import (
	"fmt"
	"strings"
)

// InvocationKind selects the Token Manager entry path.
type InvocationKind int

const (
	// KindDefault resolves the owner's token from configuration.
	KindDefault InvocationKind = iota
	// KindUser resolves a stored user's token.
	KindUser
	// KindCode exchanges an authorization code for a user.
	KindCode
)

func (kind InvocationKind) String() string {
	switch kind {
	case KindDefault:
		return "default"
	case KindUser:
		return "uid"
	case KindCode:
		return "code"
	default:
		return fmt.Sprintf("unknown(%d)", int(kind))
	}
}

// Invocation is the tagged input that decides how an access token is resolved.
type Invocation struct {
	Kind   InvocationKind
	Code   string
	UserID string
}

// DefaultInvocation resolves the configured owner token.
func DefaultInvocation() Invocation {
	return Invocation{Kind: KindDefault}
}

// UserInvocation resolves the token stored for userID.
func UserInvocation(userID string) Invocation {
	return Invocation{Kind: KindUser, UserID: userID}
}

// CodeInvocation exchanges code and stores the result under userID.
func CodeInvocation(code string, userID string) Invocation {
	return Invocation{Kind: KindCode, Code: code, UserID: userID}
}

// Validate checks that the fields required by Kind are present.
func (invocation Invocation) Validate() error {
	switch invocation.Kind {
	case KindDefault:
		return nil
	case KindUser:
		if strings.TrimSpace(invocation.UserID) == "" {
			return fmt.Errorf("%w: uid is required", ErrInvalidInvocation)
		}
		return nil
	case KindCode:
		if strings.TrimSpace(invocation.Code) == "" || strings.TrimSpace(invocation.UserID) == "" {
			return fmt.Errorf("%w: code and uid are required", ErrInvalidInvocation)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %s", ErrInvalidInvocation, invocation.Kind)
	}
}
