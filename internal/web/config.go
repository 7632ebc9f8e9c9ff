package web

import "time"

// ServerConfig is the validated runtime configuration of the service.
type ServerConfig struct {
	ListenAddr string

	ClientID            string
	ClientSecret        string
	DefaultRefreshToken string
	AuthURL             string
	TokenURL            string
	ActivitiesURL       string
	RedirectURL         string
	Scopes              []string

	PerPage         int
	DisplayLocation *time.Location
	PipelineTimeout time.Duration

	DatabaseURL string
	StoreDriver string

	StateSigningKey []byte
	StateIssuer     string
	StateTTL        time.Duration

	EnableCORS         bool
	CORSAllowedOrigins []string
}
