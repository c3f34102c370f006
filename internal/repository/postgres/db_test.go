package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/projecthub/internal/config"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "projecthub",
		Password: "secret",
		Database: "projecthub",
		SSLMode:  "disable",
	}
}

func TestPoolConfig_AppliesSettings(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.MaxConns = 12
	cfg.MinConns = 3
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 15 * time.Second
	cfg.ConnectTimeout = 4 * time.Second

	pc, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, 30*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, 15*time.Second, pc.HealthCheckPeriod)
	assert.Equal(t, 4*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, "projecthub", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "projecthub", pc.ConnConfig.Database)
}

func TestPoolConfig_ZeroValuesKeepDefaults(t *testing.T) {
	defaults, err := poolConfig(testDatabaseConfig())
	require.NoError(t, err)

	cfg := testDatabaseConfig()
	cfg.MaxConns = 4
	cfg.MinConns = 10 // above MaxConns, ignored

	pc, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(4), pc.MaxConns)
	assert.Equal(t, defaults.MinConns, pc.MinConns)
	assert.Equal(t, defaults.HealthCheckPeriod, pc.HealthCheckPeriod)
	assert.Equal(t, defaults.MaxConnLifetime, pc.MaxConnLifetime)
}
