package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"SHOP_APP_NAME",
	"SHOP_APP_ENV",
	"SHOP_APP_PORT",
	"SHOP_DATABASE_HOST",
	"SHOP_DATABASE_PORT",
	"SHOP_DATABASE_PASSWORD",
	"SHOP_DATABASE_SSLMODE",
	"SHOP_DATABASE_MAX_OPEN_CONNS",
	"SHOP_DATABASE_MAX_IDLE_CONNS",
	"SHOP_EXCHANGE_ROOT_DIR",
	"SHOP_EXCHANGE_MAX_ERRORS",
	"SHOP_EXCHANGE_WORKERS",
	"SHOP_EXCHANGE_STALE_AFTER",
	"SHOP_EXCHANGE_STALE_ACTION",
	"SHOP_EXCHANGE_ORDER_PREFIX",
	"SHOP_EXCHANGE_TIMEZONE",
	"SHOP_STORAGE_DRIVER",
	"SHOP_STORAGE_BUCKET",
	"SHOP_TELEMETRY_SAMPLING_RATIO",
	"SHOP_TELEMETRY_DB_LOG_FULL_SQL",
}

// clearEnv blanks every key Load reads in these tests; viper treats empty
// variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "shop-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "shop", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, "./exchange", cfg.Exchange.RootDir)
		assert.Equal(t, 100, cfg.Exchange.MaxErrors)
		assert.Equal(t, 1, cfg.Exchange.Workers)
		assert.Equal(t, 30*time.Minute, cfg.Exchange.StaleAfter)
		assert.Equal(t, StaleActionFail, cfg.Exchange.StaleAction)
		assert.Equal(t, "SHOP-", cfg.Exchange.OrderPrefix)
		assert.Equal(t, "retail_price", cfg.Exchange.PriceFields["Розничная"])
		assert.Equal(t, time.UTC, cfg.Exchange.Location())
		assert.Equal(t, "local", cfg.Storage.Driver)
	})

	t.Run("loads values from environment variables with SHOP prefix", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_APP_NAME", "test-app")
		t.Setenv("SHOP_DATABASE_HOST", "testdb.local")
		t.Setenv("SHOP_DATABASE_PORT", "5433")
		t.Setenv("SHOP_EXCHANGE_ROOT_DIR", "/srv/1c")
		t.Setenv("SHOP_EXCHANGE_WORKERS", "4")
		t.Setenv("SHOP_EXCHANGE_STALE_AFTER", "45m")
		t.Setenv("SHOP_EXCHANGE_STALE_ACTION", "KEEP")
		t.Setenv("SHOP_EXCHANGE_ORDER_PREFIX", "WEB-")
		t.Setenv("SHOP_EXCHANGE_TIMEZONE", "Europe/Moscow")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "/srv/1c", cfg.Exchange.RootDir)
		assert.Equal(t, 4, cfg.Exchange.Workers)
		assert.Equal(t, 45*time.Minute, cfg.Exchange.StaleAfter)
		assert.Equal(t, StaleActionKeep, cfg.Exchange.StaleAction)
		assert.Equal(t, "WEB-", cfg.Exchange.OrderPrefix)
		assert.Equal(t, "Europe/Moscow", cfg.Exchange.Location().String())
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("SHOP_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown stale action", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_EXCHANGE_STALE_ACTION", "delete")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange.stale_action")
	})

	t.Run("rejects negative error budget", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_EXCHANGE_MAX_ERRORS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange.max_errors")
	})

	t.Run("rejects unknown timezone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_EXCHANGE_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exchange.timezone")
	})

	t.Run("s3 storage requires a bucket", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_STORAGE_DRIVER", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")

		t.Setenv("SHOP_STORAGE_BUCKET", "media")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "media", cfg.Storage.Bucket)
	})

	t.Run("sampling ratio is bounded", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SHOP_APP_ENV", "production")
		t.Setenv("SHOP_DATABASE_PASSWORD", "secure-password")
		t.Setenv("SHOP_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("SHOP_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("SHOP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("SHOP_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDurationMap(t *testing.T) {
	got := durationMap(map[string]string{
		"Catalog": "1h",
		"stock":   "10m",
		"broken":  "soon",
		"zero":    "0s",
	})
	assert.Equal(t, map[string]time.Duration{
		"catalog": time.Hour,
		"stock":   10 * time.Minute,
	}, got)
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
		assert.Contains(t, dsn, "testdb")
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
