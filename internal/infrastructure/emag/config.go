package emag

import (
	"errors"
	"strings"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/config"
)

// ProductionAPIURL is the marketplace API endpoint for Romania
const ProductionAPIURL = "https://marketplace-api.emag.ro/api-3"

// Errors for client configuration
var (
	ErrConfigMissingBaseURL     = errors.New("emag: base url is required")
	ErrConfigMissingCredentials = errors.New("emag: at least one account needs credentials")
	ErrConfigInvalidRateLimit   = errors.New("emag: rate limit must be positive")
)

// Credentials authenticate one seller account with HTTP Basic auth
type Credentials struct {
	Username string
	Password string
}

// IsSet returns true if a username is configured
func (c Credentials) IsSet() bool {
	return c.Username != ""
}

// Config holds configuration for the marketplace API client
type Config struct {
	// BaseURL is the API root; the read endpoint is appended to it
	BaseURL string
	// Timeout bounds one HTTP request
	Timeout time.Duration
	// RateLimit is the request budget per second shared by every account
	RateLimit float64
	// RateBurst is the limiter bucket size
	RateBurst int
	// MaxResponseBytes caps one response body
	MaxResponseBytes int64
	// Accounts maps each seller account to its credentials
	Accounts map[marketplace.Account]Credentials
}

// NewConfig creates a configuration from the application settings
func NewConfig(cfg config.EmagConfig) *Config {
	accounts := make(map[marketplace.Account]Credentials, 2)
	if cfg.Main.Username != "" {
		accounts[marketplace.AccountMain] = Credentials{Username: cfg.Main.Username, Password: cfg.Main.Password}
	}
	if cfg.FBE.Username != "" {
		accounts[marketplace.AccountFBE] = Credentials{Username: cfg.FBE.Username, Password: cfg.FBE.Password}
	}
	return &Config{
		BaseURL:          cfg.BaseURL,
		Timeout:          cfg.Timeout,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
		MaxResponseBytes: cfg.MaxResponseBytes,
		Accounts:         accounts,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrConfigMissingBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Accounts) == 0 {
		return ErrConfigMissingCredentials
	}
	if c.RateLimit < 0 {
		return ErrConfigInvalidRateLimit
	}
	if c.RateLimit == 0 {
		c.RateLimit = 3
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 32 << 20
	}
	return nil
}
