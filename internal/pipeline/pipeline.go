// Package pipeline sequences token resolution, activity fetching and
// aggregation into a single result.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/ridemapper/internal/activity"
	"github.com/tyemirov/ridemapper/internal/tokens"
)

var errMissingStage = errors.New("pipeline.missing_stage")

// TokenResolver turns an invocation into a usable access token.
type TokenResolver interface {
	Resolve(ctx context.Context, invocation tokens.Invocation) (tokens.TokenSet, error)
}

// ActivityFetcher retrieves normalized activities for an access token.
type ActivityFetcher interface {
	Fetch(ctx context.Context, accessToken string) ([]activity.NormalizedActivity, error)
}

// Config wires the pipeline stages.
type Config struct {
	Tokens  TokenResolver
	Fetcher ActivityFetcher
	Metrics MetricsRecorder
	Logger  *zap.Logger
}

// Pipeline runs the resolve, fetch and summarize stages.
type Pipeline struct {
	tokens  TokenResolver
	fetcher ActivityFetcher
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// New constructs a Pipeline.
func New(configuration Config) (*Pipeline, error) {
	if configuration.Tokens == nil || configuration.Fetcher == nil {
		return nil, errMissingStage
	}
	metrics := configuration.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tokens:  configuration.Tokens,
		fetcher: configuration.Fetcher,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run executes one pass. Any stage error yields a failed result without
// partial data.
func (pipeline *Pipeline) Run(ctx context.Context, invocation tokens.Invocation) Result {
	startedAt := pipeline.now()
	pipeline.metrics.Increment(invocationEvent(invocation.Kind))

	result := pipeline.run(ctx, invocation)

	activityCount := len(result.Activities)
	pipeline.metrics.ObserveRun(result.Status, pipeline.now().Sub(startedAt), activityCount)
	if result.Status == StatusFailed {
		pipeline.logger.Warn("pipeline run failed",
			zap.String("code", EventRunFailed),
			zap.String("invocation", invocation.Kind.String()),
			zap.Error(result.Err),
		)
		return result
	}
	pipeline.logger.Info("pipeline run ready",
		zap.String("code", EventRunReady),
		zap.String("invocation", invocation.Kind.String()),
		zap.Int("activities", activityCount),
	)
	return result
}

func (pipeline *Pipeline) run(ctx context.Context, invocation tokens.Invocation) Result {
	tokenSet, resolveErr := pipeline.tokens.Resolve(ctx, invocation)
	if resolveErr != nil {
		return failed(resolveErr)
	}
	activities, fetchErr := pipeline.fetcher.Fetch(ctx, tokenSet.AccessToken)
	if fetchErr != nil {
		return failed(fetchErr)
	}
	if activities == nil {
		activities = []activity.NormalizedActivity{}
	}
	return ready(invocation.UserID, activities)
}

func invocationEvent(kind tokens.InvocationKind) string {
	switch kind {
	case tokens.KindCode:
		return EventCodeLogin
	case tokens.KindUser:
		return EventUserLogin
	default:
		return EventDefaultRun
	}
}
