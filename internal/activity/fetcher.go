package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MaxPageSize is the largest page the provider serves in one request.
const MaxPageSize = 100

const errorBodyPreviewLimit = 512

var (
	// ErrActivityFetch indicates the activities endpoint failed or returned an unusable body.
	ErrActivityFetch = errors.New("activity.fetch_failed")

	errEmptyEndpoint    = errors.New("activity.empty_endpoint")
	errEmptyAccessToken = errors.New("activity.empty_access_token")
)

// FetcherConfig configures the activities endpoint call.
type FetcherConfig struct {
	Endpoint   string
	PageSize   int
	HTTPClient *http.Client
	Normalize  NormalizeOptions
	Logger     *zap.Logger
}

// Fetcher retrieves one bounded page of activities and normalizes it.
type Fetcher struct {
	endpoint   *url.URL
	pageSize   int
	httpClient *http.Client
	normalize  NormalizeOptions
	logger     *zap.Logger
}

// NewFetcher validates the configuration and constructs a Fetcher.
func NewFetcher(configuration FetcherConfig) (*Fetcher, error) {
	if strings.TrimSpace(configuration.Endpoint) == "" {
		return nil, fmt.Errorf("activity.new_fetcher: %w", errEmptyEndpoint)
	}
	endpoint, parseErr := url.Parse(configuration.Endpoint)
	if parseErr != nil {
		return nil, fmt.Errorf("activity.new_fetcher: %w", parseErr)
	}
	pageSize := configuration.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		endpoint:   endpoint,
		pageSize:   pageSize,
		httpClient: httpClient,
		normalize:  configuration.Normalize,
		logger:     logger,
	}, nil
}

// Fetch returns the normalized activities in provider order. On failure no
// activities are returned.
func (fetcher *Fetcher) Fetch(ctx context.Context, accessToken string) ([]NormalizedActivity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("activity.fetch: %w: %w", ErrActivityFetch, errEmptyAccessToken)
	}
	rawActivities, err := fetcher.fetchRaw(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	normalized := make([]NormalizedActivity, 0, len(rawActivities))
	for index, rawActivity := range rawActivities {
		activity, ok, normalizeErr := Normalize(rawActivity, fetcher.normalize)
		if normalizeErr != nil {
			fetcher.logger.Warn("skipping activity with malformed route",
				zap.String("code", "activity.normalize.skip_malformed"),
				zap.Int("index", index),
				zap.Error(normalizeErr))
			continue
		}
		if !ok {
			continue
		}
		normalized = append(normalized, activity)
	}
	fetcher.logger.Debug("activities normalized",
		zap.String("code", "activity.fetch.normalized"),
		zap.Int("received", len(rawActivities)),
		zap.Int("kept", len(normalized)))
	return normalized, nil
}

func (fetcher *Fetcher) fetchRaw(ctx context.Context, accessToken string) ([]RawActivity, error) {
	requestURL := *fetcher.endpoint
	query := requestURL.Query()
	query.Set("per_page", strconv.Itoa(fetcher.pageSize))
	query.Set("access_token", accessToken)
	requestURL.RawQuery = query.Encode()

	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if requestErr != nil {
		return nil, fmt.Errorf("activity.fetch.request: %w: %w", ErrActivityFetch, requestErr)
	}
	request.Header.Set("Accept", "application/json")

	response, doErr := fetcher.httpClient.Do(request)
	if doErr != nil {
		var urlErr *url.Error
		if errors.As(doErr, &urlErr) {
			// url.Error embeds the request URL, which carries the access token.
			doErr = urlErr.Err
		}
		return nil, fmt.Errorf("activity.fetch.transport: %w: %w", ErrActivityFetch, doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		preview, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyPreviewLimit))
		return nil, fmt.Errorf("activity.fetch.status_%d: %w: %s", response.StatusCode, ErrActivityFetch, strings.TrimSpace(string(preview)))
	}

	var rawActivities []RawActivity
	if decodeErr := json.NewDecoder(response.Body).Decode(&rawActivities); decodeErr != nil {
		return nil, fmt.Errorf("activity.fetch.decode: %w: %w", ErrActivityFetch, decodeErr)
	}
	return rawActivities, nil
}
