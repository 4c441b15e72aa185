package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Shopee    ShopeeConfig    `mapstructure:"shopee"`
	Collector CollectorConfig `mapstructure:"collector"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
}

// envBindings maps viper keys to the flat environment variables the
// deployment sets. These are bound without the COLLECTOR_ prefix.
var envBindings = map[string]string{
	"database.host":       "DB_HOST",
	"database.port":       "DB_PORT",
	"database.name":       "DB_NAME",
	"database.user":       "DB_USER",
	"database.password":   "DB_PASSWORD",
	"database.schema":     "DB_SCHEMA",
	"database.pool_size":  "DB_POOL_SIZE",
	"redis.host":          "REDIS_HOST",
	"redis.port":          "REDIS_PORT",
	"redis.password":      "REDIS_PASSWORD",
	"redis.db":            "REDIS_DB",
	"cluster.enabled":     "CLUSTER_ENABLED",
	"cluster.workers":     "CLUSTER_WORKERS",
	"shopee.api_url":      "SHOPEE_API_URL",
	"shopee.partner_id":   "SHOPEE_PARTNER_ID",
	"shopee.partner_key":  "SHOPEE_PARTNER_KEY",
	"shopee.is_sandbox":   "SHOPEE_IS_SANDBOX",
	"scheduler.cron":      "CRON_EXPRESSION",
	"collector.max_retry": "MAX_RETRY_COUNT",
	"collector.batch_size": "ORDER_BATCH_SIZE",
	"collector.job_concurrency": "JOB_CONCURRENCY",
	"server.port":         "API_PORT",
	"server.host":         "API_HOST",
	"logging.level":       "LOG_LEVEL",
	"logging.dir":         "LOG_DIR",
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/shopee-collector")
	}

	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The deployment's flat environment keys take effect without the
	// COLLECTOR_ prefix.
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Read config file (optional - don't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// MustLoadConfig loads configuration and panics on error (for use in main.go)
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
