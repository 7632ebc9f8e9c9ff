// Package web exposes the ride pipeline and the provider login redirect over HTTP.
package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/ridemapper/internal/activity"
	"github.com/tyemirov/ridemapper/internal/oauthstate"
	"github.com/tyemirov/ridemapper/internal/pipeline"
	"github.com/tyemirov/ridemapper/internal/stats"
	"github.com/tyemirov/ridemapper/internal/tokens"
)

// DefaultPipelineTimeout bounds one /api/rides request when none is configured.
const DefaultPipelineTimeout = 30 * time.Second

const ridesPath = "/api/rides"

// RideRunner executes one pipeline pass.
type RideRunner interface {
	Run(ctx context.Context, invocation tokens.Invocation) pipeline.Result
}

// StateManager issues and verifies the login state parameter.
type StateManager interface {
	Issue(ctx context.Context, userID string) (string, error)
	Verify(ctx context.Context, state string, userID string) error
}

// LoginURLBuilder builds the provider consent URL.
type LoginURLBuilder interface {
	LoginURL(state string, redirectURL string) string
}

// Dependencies wires the handlers.
type Dependencies struct {
	Rides           RideRunner
	States          StateManager
	Login           LoginURLBuilder
	Metrics         http.Handler
	Logger          *zap.Logger
	PipelineTimeout time.Duration
	RedirectURL     string
	NewUserID       func() string
}

type ridesResponse struct {
	Status     pipeline.Status               `json:"status"`
	UserID     string                        `json:"user_id,omitempty"`
	Activities []activity.NormalizedActivity `json:"activities"`
	Stats      stats.Summary                 `json:"stats"`
}

// MountRoutes registers /api/rides, /auth/login, /healthz and, when a handler is supplied, /metrics.
func MountRoutes(router gin.IRouter, dependencies Dependencies) {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := dependencies.PipelineTimeout
	if timeout <= 0 {
		timeout = DefaultPipelineTimeout
	}
	newUserID := dependencies.NewUserID
	if newUserID == nil {
		newUserID = uuid.NewString
	}

	router.GET(ridesPath, func(contextGin *gin.Context) {
		invocation, parseErr := ParseInvocation(contextGin.Request.URL.Query())
		if parseErr != nil {
			writeFailure(contextGin, logger, parseErr)
			return
		}

		ctx, cancel := context.WithTimeout(contextGin.Request.Context(), timeout)
		defer cancel()

		if invocation.Kind == tokens.KindCode {
			state := contextGin.Query(queryState)
			if verifyErr := dependencies.States.Verify(ctx, state, invocation.UserID); verifyErr != nil {
				writeFailure(contextGin, logger, verifyErr)
				return
			}
		}

		result := dependencies.Rides.Run(ctx, invocation)
		if result.Status != pipeline.StatusReady {
			writeFailure(contextGin, logger, result.Err)
			return
		}
		contextGin.JSON(http.StatusOK, ridesResponse{
			Status:     result.Status,
			UserID:     result.UserID,
			Activities: result.Activities,
			Stats:      result.Stats,
		})
	})

	router.GET("/auth/login", func(contextGin *gin.Context) {
		userID := strings.TrimSpace(contextGin.Query(queryUserID))
		if userID == "" {
			userID = newUserID()
		}
		redirectURL, redirectErr := callbackURL(contextGin.Request, dependencies.RedirectURL, userID)
		if redirectErr != nil {
			logger.Error("login redirect url invalid",
				zap.String("code", "web.login.redirect_invalid"),
				zap.Error(redirectErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": pipeline.StatusFailed, "error": "web.login.redirect_invalid"})
			return
		}
		state, issueErr := dependencies.States.Issue(contextGin.Request.Context(), userID)
		if issueErr != nil {
			logger.Error("login state issue failed",
				zap.String("code", "web.login.state_failed"),
				zap.Error(issueErr))
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": pipeline.StatusFailed, "error": "web.login.state_failed"})
			return
		}
		contextGin.Redirect(http.StatusFound, dependencies.Login.LoginURL(state, redirectURL))
	})

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if dependencies.Metrics != nil {
		router.GET("/metrics", gin.WrapH(dependencies.Metrics))
	}
}

// ErrorStatus maps a pipeline error onto an HTTP status and a dotted error code.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tokens.ErrInvalidInvocation):
		return http.StatusBadRequest, tokens.ErrInvalidInvocation.Error()
	case errors.Is(err, tokens.ErrUnknownUser):
		return http.StatusNotFound, tokens.ErrUnknownUser.Error()
	case errors.Is(err, oauthstate.ErrInvalidState):
		return http.StatusUnauthorized, oauthstate.ErrInvalidState.Error()
	case errors.Is(err, tokens.ErrAuthExchange):
		return http.StatusUnauthorized, tokens.ErrAuthExchange.Error()
	case errors.Is(err, tokens.ErrTokenRefresh):
		return http.StatusBadGateway, tokens.ErrTokenRefresh.Error()
	case errors.Is(err, activity.ErrActivityFetch):
		return http.StatusBadGateway, activity.ErrActivityFetch.Error()
	default:
		return http.StatusInternalServerError, "web.internal_error"
	}
}

func writeFailure(contextGin *gin.Context, logger *zap.Logger, err error) {
	status, code := ErrorStatus(err)
	logger.Warn("rides request failed",
		zap.String("code", code),
		zap.Int("status", status),
		zap.Error(err))
	contextGin.AbortWithStatusJSON(status, gin.H{"status": pipeline.StatusFailed, "error": code})
}

// callbackURL returns the URL the provider redirects back to, carrying uid so
// the callback lands with uid, state and code together.
func callbackURL(request *http.Request, configured string, userID string) (string, error) {
	base := strings.TrimSpace(configured)
	if base == "" {
		host := request.Host
		if host == "" {
			host = "localhost"
		}
		base = forwardedProto(request) + "://" + host + ridesPath
	}
	parsed, parseErr := url.Parse(base)
	if parseErr != nil {
		return "", parseErr
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("web.login.redirect_not_absolute")
	}
	query := parsed.Query()
	query.Set(queryUserID, userID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func forwardedProto(request *http.Request) string {
	if headerValue := request.Header.Get("X-Forwarded-Proto"); headerValue != "" {
		return headerValue
	}
	if request.TLS != nil {
		return "https"
	}
	return "http"
}
