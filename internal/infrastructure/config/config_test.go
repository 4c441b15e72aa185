package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, 20*time.Second, cfg.Shopee.Timeout)
	assert.Equal(t, 10, cfg.Shopee.RateLimit.Requests)
	assert.Equal(t, 3, cfg.Collector.MaxRetry)
	assert.Equal(t, 50, cfg.Collector.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Collector.PacingDelay)
	assert.Equal(t, 15*time.Second, cfg.Collector.TrackingTimeout)
	assert.Equal(t, 10, cfg.Collector.TrackingBatchSize)
	assert.Equal(t, "*/10 * * * *", cfg.Scheduler.Cron)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Daemon.ShutdownTimeout)
	assert.False(t, cfg.Cluster.Enabled)
}

func TestLoadConfig_FlatEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SHOPEE_PARTNER_ID", "843259")
	t.Setenv("SHOPEE_IS_SANDBOX", "true")
	t.Setenv("MAX_RETRY_COUNT", "5")
	t.Setenv("ORDER_BATCH_SIZE", "25")
	t.Setenv("CRON_EXPRESSION", "*/5 * * * *")
	t.Setenv("API_PORT", "8080")
	t.Setenv("CLUSTER_ENABLED", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, int64(843259), cfg.Shopee.PartnerID)
	assert.True(t, cfg.Shopee.IsSandbox)
	assert.Equal(t, 5, cfg.Collector.MaxRetry)
	assert.Equal(t, 25, cfg.Collector.BatchSize)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Cron)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Cluster.Enabled)
}

func TestLoadConfig_InvalidBatchSizeRejected(t *testing.T) {
	t.Setenv("ORDER_BATCH_SIZE", "500")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BatchSize")
}

func TestShopeeConfig_BaseURL(t *testing.T) {
	cfg := &ShopeeConfig{}
	assert.Equal(t, ProductionAPIURL, cfg.BaseURL(false))
	assert.Equal(t, SandboxAPIURL, cfg.BaseURL(true))

	cfg.APIURL = "http://localhost:9999"
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL(true))
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := &RedisConfig{}
	assert.Equal(t, "localhost:6379", cfg.Addr())

	cfg.Host = "redis.internal"
	cfg.Port = 6380
	assert.Equal(t, "redis.internal:6380", cfg.Addr())
}
