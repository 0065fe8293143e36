package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Emag      EmagConfig
	Sync      SyncConfig
	Analysis  AnalysisConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	RateLimit        float64 // requests per second per client; 0 disables
	RateBurst        int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogExportEnabled  bool // Export zap logs over OTLP
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// EmagAccountConfig holds the API credentials of one seller account
type EmagAccountConfig struct {
	Username string
	Password string
}

// EmagConfig holds marketplace API client settings
type EmagConfig struct {
	BaseURL          string        `validate:"required,url"`
	Timeout          time.Duration `validate:"gt=0"`
	RateLimit        float64       `validate:"gt=0"` // requests per second, shared by both accounts
	RateBurst        int           `validate:"gte=1"`
	MaxResponseBytes int64         `validate:"gt=0"`
	Main             EmagAccountConfig
	FBE              EmagAccountConfig
}

// SyncConfig holds sync orchestrator settings
type SyncConfig struct {
	PageSize         int           `validate:"gte=1,lte=1000"`
	MaxPages         int           `validate:"gte=1"`
	Timeout          time.Duration `validate:"gt=0"`
	PageDelay        time.Duration `validate:"gte=0"`
	RetryAttempts    int           `validate:"gte=1,lte=10"`
	RetryDelays      []time.Duration
	Strategy         string `validate:"omitempty,oneof=REMOTE_PRIORITY LOCAL_PRIORITY NEWEST_WINS"`
	LockTTL          time.Duration
	ScheduleEnabled  bool
	ScheduleInterval time.Duration `validate:"gte=0"`
	StaleRunAge      time.Duration `validate:"gt=0"`
}

// AnalysisConfig holds the stock and competition thresholds
type AnalysisConfig struct {
	TransferCap           int           `validate:"gte=1"`
	LowStockThreshold     int           `validate:"gte=0"`
	OptimizationFloor     int           `validate:"gte=0"`
	StaleAfter            time.Duration `validate:"gt=0"`
	DonorReserve          int           `validate:"gte=0"`
	HighCompetitionOffers int           `validate:"gte=2"`
	RankAlert             int           `validate:"gte=1"`
	NewCompetitorAlert    int           `validate:"gte=1"`
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ERP_ prefix (e.g., ERP_DATABASE_PASSWORD)
// 2. .env file in the working directory (loaded into the environment, never overriding it)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables always win
	_ = godotenv.Load()

	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	retryDelays, err := parseDurations(v.GetStringSlice("sync.retry_delays"))
	if err != nil {
		return nil, fmt.Errorf("sync.retry_delays: %w", err)
	}

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RateLimit:        v.GetFloat64("http.rate_limit"),
			RateBurst:        v.GetInt("http.rate_burst"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogExportEnabled:  v.GetBool("telemetry.log_export_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Emag: EmagConfig{
			BaseURL:          v.GetString("emag.base_url"),
			Timeout:          v.GetDuration("emag.timeout"),
			RateLimit:        v.GetFloat64("emag.rate_limit"),
			RateBurst:        v.GetInt("emag.rate_burst"),
			MaxResponseBytes: v.GetInt64("emag.max_response_bytes"),
			Main: EmagAccountConfig{
				Username: v.GetString("emag.main.username"),
				Password: v.GetString("emag.main.password"),
			},
			FBE: EmagAccountConfig{
				Username: v.GetString("emag.fbe.username"),
				Password: v.GetString("emag.fbe.password"),
			},
		},
		Sync: SyncConfig{
			PageSize:         v.GetInt("sync.page_size"),
			MaxPages:         v.GetInt("sync.max_pages"),
			Timeout:          v.GetDuration("sync.timeout"),
			PageDelay:        v.GetDuration("sync.page_delay"),
			RetryAttempts:    v.GetInt("sync.retry_attempts"),
			RetryDelays:      retryDelays,
			Strategy:         strings.ToUpper(v.GetString("sync.strategy")),
			LockTTL:          v.GetDuration("sync.lock_ttl"),
			ScheduleEnabled:  v.GetBool("sync.schedule_enabled"),
			ScheduleInterval: v.GetDuration("sync.schedule_interval"),
			StaleRunAge:      v.GetDuration("sync.stale_run_age"),
		},
		Analysis: AnalysisConfig{
			TransferCap:           v.GetInt("analysis.transfer_cap"),
			LowStockThreshold:     v.GetInt("analysis.low_stock_threshold"),
			OptimizationFloor:     v.GetInt("analysis.optimization_floor"),
			StaleAfter:            v.GetDuration("analysis.stale_after"),
			DonorReserve:          v.GetInt("analysis.donor_reserve"),
			HighCompetitionOffers: v.GetInt("analysis.high_competition_offers"),
			RankAlert:             v.GetInt("analysis.rank_alert"),
			NewCompetitorAlert:    v.GetInt("analysis.new_competitor_alert"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "marketsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// a manual sync request holds the connection for the whole run
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 20 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst <= 0 {
		cfg.HTTP.RateBurst = int(cfg.HTTP.RateLimit) + 1
	}
	// An empty origin list means no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "marketsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}

	// Marketplace API defaults
	if cfg.Emag.BaseURL == "" {
		cfg.Emag.BaseURL = "https://marketplace-api.emag.ro/api-3"
	}
	if cfg.Emag.Timeout == 0 {
		cfg.Emag.Timeout = 30 * time.Second
	}
	if cfg.Emag.RateLimit == 0 {
		cfg.Emag.RateLimit = 3
	}
	if cfg.Emag.RateBurst == 0 {
		cfg.Emag.RateBurst = 1
	}
	if cfg.Emag.MaxResponseBytes == 0 {
		cfg.Emag.MaxResponseBytes = 32 << 20 // 32MB
	}

	// Sync defaults
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.MaxPages == 0 {
		cfg.Sync.MaxPages = 500
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 15 * time.Minute
	}
	if cfg.Sync.PageDelay == 0 {
		cfg.Sync.PageDelay = 500 * time.Millisecond
	}
	if cfg.Sync.RetryAttempts == 0 {
		cfg.Sync.RetryAttempts = 3
	}
	if len(cfg.Sync.RetryDelays) == 0 {
		cfg.Sync.RetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	if cfg.Sync.Strategy == "" {
		cfg.Sync.Strategy = "REMOTE_PRIORITY"
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = cfg.Sync.Timeout + 10*time.Second
	}
	if cfg.Sync.ScheduleInterval == 0 {
		cfg.Sync.ScheduleInterval = time.Hour
	}
	if cfg.Sync.StaleRunAge == 0 {
		cfg.Sync.StaleRunAge = 2 * cfg.Sync.Timeout
	}

	// Analysis defaults
	if cfg.Analysis.TransferCap == 0 {
		cfg.Analysis.TransferCap = 10
	}
	if cfg.Analysis.LowStockThreshold == 0 {
		cfg.Analysis.LowStockThreshold = 5
	}
	if cfg.Analysis.OptimizationFloor == 0 {
		cfg.Analysis.OptimizationFloor = 10
	}
	if cfg.Analysis.StaleAfter == 0 {
		cfg.Analysis.StaleAfter = 7 * 24 * time.Hour
	}
	if cfg.Analysis.DonorReserve == 0 {
		cfg.Analysis.DonorReserve = 3
	}
	if cfg.Analysis.HighCompetitionOffers == 0 {
		cfg.Analysis.HighCompetitionOffers = 5
	}
	if cfg.Analysis.RankAlert == 0 {
		cfg.Analysis.RankAlert = 3
	}
	if cfg.Analysis.NewCompetitorAlert == 0 {
		cfg.Analysis.NewCompetitorAlert = 2
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	validate := validator.New()
	if err := validate.Struct(c.Emag); err != nil {
		return fmt.Errorf("emag: %w", err)
	}
	if err := validate.Struct(c.Sync); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := validate.Struct(c.Analysis); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if c.Sync.LockTTL < c.Sync.Timeout {
		return fmt.Errorf("sync.lock_ttl (%s) must not be shorter than sync.timeout (%s)",
			c.Sync.LockTTL, c.Sync.Timeout)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
		if c.Emag.Main.Username == "" || c.Emag.FBE.Username == "" {
			return fmt.Errorf("emag.main and emag.fbe credentials are required in production")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address of the Redis server
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func parseDurations(values []string) ([]time.Duration, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]time.Duration, 0, len(values))
	for _, s := range values {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
