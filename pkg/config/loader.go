package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/app/configs")

	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	viper.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	viper.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	viper.BindEnv("queue.url", "QUEUE_URL", "NATS_URL")
	viper.BindEnv("queue.driver", "QUEUE_DRIVER")
	viper.BindEnv("steve.base_url", "STEVE_BASE_URL")
	viper.BindEnv("steve.username", "STEVE_AUTH_USERNAME")
	viper.BindEnv("steve.password", "STEVE_API_PASSWORD")
	viper.BindEnv("odoo.host", "ODOO_HOST")
	viper.BindEnv("odoo.admin_api_key", "ODOO_ADMIN_API_KEY")
	viper.BindEnv("odoo.api_secret", "ODOO_API_SECRET")
	viper.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	viper.BindEnv("vault.address", "VAULT_ADDR")
	viper.BindEnv("vault.token", "VAULT_TOKEN")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "chargebridge")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("queue.driver", "nats")
	viper.SetDefault("steve.timeout", 30*time.Second)
	viper.SetDefault("odoo.timeout", 30*time.Second)
	viper.SetDefault("sync.interval", 20*time.Second)
	viper.SetDefault("sync.run_timeout", 5*time.Minute)
	viper.SetDefault("sync.slack", 0)
	viper.SetDefault("prometheus.path", "/metrics")
	viper.SetDefault("logging.level", "info")
}
