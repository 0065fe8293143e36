package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEnvKeys lists every variable the tests touch so each subtest starts clean
var configEnvKeys = []string{
	"ERP_APP_NAME",
	"ERP_APP_ENV",
	"ERP_APP_PORT",
	"ERP_DATABASE_HOST",
	"ERP_DATABASE_PORT",
	"ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_SSLMODE",
	"ERP_DATABASE_MAX_OPEN_CONNS",
	"ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_EMAG_BASE_URL",
	"ERP_EMAG_RATE_LIMIT",
	"ERP_EMAG_MAIN_USERNAME",
	"ERP_EMAG_MAIN_PASSWORD",
	"ERP_EMAG_FBE_USERNAME",
	"ERP_EMAG_FBE_PASSWORD",
	"ERP_SYNC_PAGE_SIZE",
	"ERP_SYNC_TIMEOUT",
	"ERP_SYNC_LOCK_TTL",
	"ERP_SYNC_RETRY_DELAYS",
	"ERP_SYNC_STRATEGY",
	"ERP_ANALYSIS_TRANSFER_CAP",
	"ERP_ANALYSIS_STALE_AFTER",
	"ERP_HTTP_CORS_ALLOW_ORIGINS",
	"ERP_TELEMETRY_SAMPLING_RATIO",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearConfigEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "marketsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "marketsync", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

		assert.Equal(t, 100, cfg.Sync.PageSize)
		assert.Equal(t, 500, cfg.Sync.MaxPages)
		assert.Equal(t, 15*time.Minute, cfg.Sync.Timeout)
		assert.Equal(t, 500*time.Millisecond, cfg.Sync.PageDelay)
		assert.Equal(t, 3, cfg.Sync.RetryAttempts)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Sync.RetryDelays)
		assert.Equal(t, "REMOTE_PRIORITY", cfg.Sync.Strategy)
		assert.Equal(t, 15*time.Minute+10*time.Second, cfg.Sync.LockTTL)

		assert.Equal(t, 10, cfg.Analysis.TransferCap)
		assert.Equal(t, 5, cfg.Analysis.LowStockThreshold)
		assert.Equal(t, 10, cfg.Analysis.OptimizationFloor)
		assert.Equal(t, 7*24*time.Hour, cfg.Analysis.StaleAfter)
		assert.Equal(t, 3, cfg.Analysis.DonorReserve)
		assert.Equal(t, 5, cfg.Analysis.HighCompetitionOffers)
		assert.Equal(t, 3, cfg.Analysis.RankAlert)
		assert.Equal(t, 2, cfg.Analysis.NewCompetitorAlert)

		assert.Equal(t, "https://marketplace-api.emag.ro/api-3", cfg.Emag.BaseURL)
		assert.Equal(t, 3.0, cfg.Emag.RateLimit)
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_APP_NAME", "test-app")
		t.Setenv("ERP_DATABASE_HOST", "testdb.local")
		t.Setenv("ERP_DATABASE_PORT", "5433")
		t.Setenv("ERP_EMAG_MAIN_USERNAME", "main-user")
		t.Setenv("ERP_EMAG_FBE_USERNAME", "fbe-user")
		t.Setenv("ERP_SYNC_PAGE_SIZE", "50")
		t.Setenv("ERP_SYNC_STRATEGY", "newest_wins")
		t.Setenv("ERP_SYNC_RETRY_DELAYS", "100ms 250ms")
		t.Setenv("ERP_ANALYSIS_TRANSFER_CAP", "20")
		t.Setenv("ERP_ANALYSIS_STALE_AFTER", "72h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "main-user", cfg.Emag.Main.Username)
		assert.Equal(t, "fbe-user", cfg.Emag.FBE.Username)
		assert.Equal(t, 50, cfg.Sync.PageSize)
		assert.Equal(t, "NEWEST_WINS", cfg.Sync.Strategy)
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 250 * time.Millisecond}, cfg.Sync.RetryDelays)
		assert.Equal(t, 20, cfg.Analysis.TransferCap)
		assert.Equal(t, 72*time.Hour, cfg.Analysis.StaleAfter)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_SYNC_STRATEGY", "OLDEST_WINS")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync:")
	})

	t.Run("rejects page size above the marketplace maximum", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_SYNC_PAGE_SIZE", "5000")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PageSize")
	})

	t.Run("rejects lock ttl shorter than the sync timeout", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_SYNC_TIMEOUT", "10m")
		t.Setenv("ERP_SYNC_LOCK_TTL", "1m")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.lock_ttl")
	})

	t.Run("rejects malformed retry delays", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_SYNC_RETRY_DELAYS", "soon")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.retry_delays")
	})

	t.Run("rejects invalid base url", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_EMAG_BASE_URL", "not a url")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "emag:")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("ERP_APP_ENV", "production")
		t.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		t.Setenv("ERP_DATABASE_SSLMODE", "require")
		t.Setenv("ERP_EMAG_MAIN_USERNAME", "main-user")
		t.Setenv("ERP_EMAG_FBE_USERNAME", "fbe-user")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("ERP_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires marketplace credentials in production", func(t *testing.T) {
		setValidProductionBase(t)
		os.Unsetenv("ERP_EMAG_FBE_USERNAME")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "credentials are required in production")
	})

	t.Run("rejects wildcard CORS origin in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("ERP_HTTP_CORS_ALLOW_ORIGINS", "*")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
