package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	// GIVEN: No config file
	path := filepath.Join(t.TempDir(), "missing.yaml")

	// WHEN: Loading
	cfg, err := Load(path)

	// THEN: Defaults apply
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "Asia/Kolkata", cfg.Store.Timezone)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)

	defaults, err := cfg.StoreDefaults()
	require.NoError(t, err)
	assert.Equal(t, "60", defaults.MilkPricePerLitre.String())
	assert.False(t, defaults.FreeGift.Enabled)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	// GIVEN: A config file and an environment override
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
store:
  milk_price_per_litre: "64.50"
  free_gift:
    enabled: true
    threshold: "500"
    product_id: 7
`), 0o600))
	t.Setenv("STORE_MILK_PRICE_PER_LITRE", "66")

	// WHEN: Loading
	cfg, err := Load(path)

	// THEN: The environment wins over the file, the file over defaults
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)

	defaults, err := cfg.StoreDefaults()
	require.NoError(t, err)
	assert.Equal(t, "66", defaults.MilkPricePerLitre.String())
	assert.True(t, defaults.FreeGift.Enabled)
	assert.Equal(t, int64(7), defaults.FreeGift.ProductID)
	assert.Equal(t, "500", defaults.FreeGift.Threshold.String())
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	// GIVEN: The postgres driver without a DSN
	t.Setenv("DATABASE_DRIVER", "postgres")

	// WHEN: Loading
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	// THEN: Rejected
	assert.Error(t, err)
}
