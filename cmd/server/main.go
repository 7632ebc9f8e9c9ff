package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/ridemapper/internal/activity"
	"github.com/tyemirov/ridemapper/internal/oauthstate"
	"github.com/tyemirov/ridemapper/internal/pipeline"
	"github.com/tyemirov/ridemapper/internal/tokens"
	"github.com/tyemirov/ridemapper/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ridemapper",
		Short:   "Ride map service: OAuth token management, activity retrieval, and ride statistics",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("client_id", "", "OAuth client ID issued by the activity provider")
	rootCmd.Flags().String("client_secret", "", "OAuth client secret issued by the activity provider")
	rootCmd.Flags().String("default_refresh_token", "", "Refresh token used when a request carries no user identifier")
	rootCmd.Flags().String("auth_url", "https://www.strava.com/oauth/authorize", "Provider authorize endpoint")
	rootCmd.Flags().String("token_url", "https://www.strava.com/oauth/token", "Provider token endpoint")
	rootCmd.Flags().String("activities_url", "https://www.strava.com/api/v3/athlete/activities", "Provider activities endpoint")
	rootCmd.Flags().String("redirect_url", "", "Callback URL for the login redirect; empty derives it from the request host")
	rootCmd.Flags().String("oauth_scope", "activity:read_all", "Scope requested at login")
	rootCmd.Flags().Int("per_page", activity.MaxPageSize, "Activities requested per fetch (1-100)")
	rootCmd.Flags().String("display_timezone", "UTC", "IANA time zone used to render activity dates")
	rootCmd.Flags().Duration("pipeline_timeout", web.DefaultPipelineTimeout, "Deadline for one ride request")
	rootCmd.Flags().String("database_url", "", "Database URL for user records (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("store_driver", storeDriverGORM, "User store driver for database_url: gorm or pgx (pgx requires postgres)")
	rootCmd.Flags().String("state_signing_key", "", "HS256 signing secret for login state tokens")
	rootCmd.Flags().Duration("state_ttl", oauthstate.DefaultTTL, "Lifetime of a login state token")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for the presentation client")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	for _, flagName := range []string{
		"listen_addr", "client_id", "client_secret", "default_refresh_token",
		"auth_url", "token_url", "activities_url", "redirect_url", "oauth_scope",
		"per_page", "display_timezone", "pipeline_timeout", "database_url",
		"store_driver", "state_signing_key", "state_ttl", "enable_cors",
		"cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	stateIssuer = "ridemapper"

	configCodeMissingClientID         = "config.missing_client_id"
	configCodeMissingClientSecret     = "config.missing_client_secret"
	configCodeMissingStateSigningKey  = "config.missing_state_signing_key"
	configCodeInvalidEndpoint         = "config.invalid_endpoint"
	configCodeInvalidRedirectURL      = "config.invalid_redirect_url"
	configCodeInvalidPerPage          = "config.invalid_per_page"
	configCodeInvalidDisplayTimezone  = "config.invalid_display_timezone"
	configCodeInvalidPipelineTimeout  = "config.invalid_pipeline_timeout"
	configCodeInvalidStateTTL         = "config.invalid_state_ttl"
	configCodeInvalidStoreDriver      = "config.invalid_store_driver"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (web.ServerConfig, error) {
	clientID := strings.TrimSpace(viper.GetString("client_id"))
	if clientID == "" {
		return web.ServerConfig{}, configError(configCodeMissingClientID, "client_id must be provided")
	}

	clientSecret := viper.GetString("client_secret")
	if clientSecret == "" {
		return web.ServerConfig{}, configError(configCodeMissingClientSecret, "client_secret must be provided")
	}

	stateSigningKey := viper.GetString("state_signing_key")
	if stateSigningKey == "" {
		return web.ServerConfig{}, configError(configCodeMissingStateSigningKey, "state_signing_key must be provided")
	}

	endpoints := map[string]string{}
	for _, key := range []string{"auth_url", "token_url", "activities_url"} {
		value := strings.TrimSpace(viper.GetString(key))
		if !isAbsoluteURL(value) {
			return web.ServerConfig{}, configError(configCodeInvalidEndpoint, key+" must be an absolute URL")
		}
		endpoints[key] = value
	}

	redirectURL := strings.TrimSpace(viper.GetString("redirect_url"))
	if redirectURL != "" && !isAbsoluteURL(redirectURL) {
		return web.ServerConfig{}, configError(configCodeInvalidRedirectURL, "redirect_url must be an absolute URL")
	}

	perPage := viper.GetInt("per_page")
	if perPage < 1 || perPage > activity.MaxPageSize {
		return web.ServerConfig{}, configError(configCodeInvalidPerPage, fmt.Sprintf("per_page must be between 1 and %d", activity.MaxPageSize))
	}

	displayLocation, locationErr := time.LoadLocation(viper.GetString("display_timezone"))
	if locationErr != nil {
		return web.ServerConfig{}, configError(configCodeInvalidDisplayTimezone, locationErr.Error())
	}

	pipelineTimeout := viper.GetDuration("pipeline_timeout")
	if pipelineTimeout <= 0 {
		return web.ServerConfig{}, configError(configCodeInvalidPipelineTimeout, "pipeline_timeout must be greater than zero")
	}

	stateTTL := viper.GetDuration("state_ttl")
	if stateTTL <= 0 {
		return web.ServerConfig{}, configError(configCodeInvalidStateTTL, "state_ttl must be greater than zero")
	}

	databaseURL := strings.TrimSpace(viper.GetString("database_url"))
	storeDriver := strings.ToLower(strings.TrimSpace(viper.GetString("store_driver")))
	if storeDriver == "" {
		storeDriver = storeDriverGORM
	}
	if driverErr := validateStoreDriver(storeDriver, databaseURL); driverErr != nil {
		return web.ServerConfig{}, driverErr
	}

	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")
	if enableCORS && len(corsAllowedOrigins) == 0 {
		return web.ServerConfig{}, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}

	var scopes []string
	if scope := strings.TrimSpace(viper.GetString("oauth_scope")); scope != "" {
		scopes = []string{scope}
	}

	return web.ServerConfig{
		ListenAddr:          viper.GetString("listen_addr"),
		ClientID:            clientID,
		ClientSecret:        clientSecret,
		DefaultRefreshToken: strings.TrimSpace(viper.GetString("default_refresh_token")),
		AuthURL:             endpoints["auth_url"],
		TokenURL:            endpoints["token_url"],
		ActivitiesURL:       endpoints["activities_url"],
		RedirectURL:         redirectURL,
		Scopes:              scopes,
		PerPage:             perPage,
		DisplayLocation:     displayLocation,
		PipelineTimeout:     pipelineTimeout,
		DatabaseURL:         databaseURL,
		StoreDriver:         storeDriver,
		StateSigningKey:     []byte(stateSigningKey),
		StateIssuer:         stateIssuer,
		StateTTL:            stateTTL,
		EnableCORS:          enableCORS,
		CORSAllowedOrigins:  corsAllowedOrigins,
	}, nil
}

func isAbsoluteURL(value string) bool {
	parsed, parseErr := url.Parse(value)
	return parseErr == nil && parsed.Scheme != "" && parsed.Host != ""
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(web.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if serverConfig.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, serverConfig.CORSAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	users, closeStore, storeErr := openUserStore(commandContext, serverConfig, logger)
	if storeErr != nil {
		return storeErr
	}
	defer closeStore()

	outboundClient := &http.Client{Timeout: serverConfig.PipelineTimeout}

	tokenManager, managerErr := tokens.NewManager(tokens.Config{
		ClientID:            serverConfig.ClientID,
		ClientSecret:        serverConfig.ClientSecret,
		AuthURL:             serverConfig.AuthURL,
		TokenURL:            serverConfig.TokenURL,
		Scopes:              serverConfig.Scopes,
		DefaultRefreshToken: serverConfig.DefaultRefreshToken,
		HTTPClient:          outboundClient,
		Logger:              logger,
	}, users)
	if managerErr != nil {
		return managerErr
	}

	fetcher, fetcherErr := activity.NewFetcher(activity.FetcherConfig{
		Endpoint:   serverConfig.ActivitiesURL,
		PageSize:   serverConfig.PerPage,
		HTTPClient: outboundClient,
		Normalize:  activity.NormalizeOptions{Location: serverConfig.DisplayLocation},
		Logger:     logger,
	})
	if fetcherErr != nil {
		return fetcherErr
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ridePipeline, pipelineErr := pipeline.New(pipeline.Config{
		Tokens:  tokenManager,
		Fetcher: fetcher,
		Metrics: pipeline.NewPrometheusMetrics(registry),
		Logger:  logger,
	})
	if pipelineErr != nil {
		return pipelineErr
	}

	states, statesErr := oauthstate.New(oauthstate.Config{
		SigningKey: serverConfig.StateSigningKey,
		Issuer:     serverConfig.StateIssuer,
		TTL:        serverConfig.StateTTL,
	}, oauthstate.NewMemoryNonceStore(serverConfig.StateTTL))
	if statesErr != nil {
		return statesErr
	}

	web.MountRoutes(router, web.Dependencies{
		Rides:           ridePipeline,
		States:          states,
		Login:           tokenManager,
		Metrics:         pipeline.Handler(registry),
		Logger:          logger,
		PipelineTimeout: serverConfig.PipelineTimeout,
		RedirectURL:     serverConfig.RedirectURL,
	})

	server := &http.Server{
		Addr:              serverConfig.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", serverConfig.ListenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
