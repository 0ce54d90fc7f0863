package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Ticketing TicketingConfig `mapstructure:"ticketing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"`
	Timezone        string `mapstructure:"timezone"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSize           int           `mapstructure:"pool_size"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	MaxRetries         int           `mapstructure:"max_retries"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	PoolTimeout        time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	IdleCheckFrequency time.Duration `mapstructure:"idle_check_frequency"`
	ClusterEnabled     bool          `mapstructure:"cluster_enabled"`
	ClusterAddresses   []string      `mapstructure:"cluster_addresses"`
	MaxRedirects       int           `mapstructure:"max_redirects"`
	RouteByLatency     bool          `mapstructure:"route_by_latency"`
	RouteRandomly      bool          `mapstructure:"route_randomly"`
}

// JWTConfig represents JWT configuration for the Actor bearer-token middleware
// at the HTTP boundary. The core engine never imports this package.
type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"`
	Issuer            string        `mapstructure:"issuer"`
}

// TicketingConfig is the engine's configuration surface (§6.6): gateway
// credentials, ticket-token signing key, and retry/backoff tuning.
type TicketingConfig struct {
	PaymentSecretKey string `mapstructure:"payment_secret_key"`
	PaystackBaseURL  string `mapstructure:"paystack_base_url"`
	QRSecretKey      string `mapstructure:"qr_secret_key"`
	RetryBaseMs      int64  `mapstructure:"retry_base_ms"`
	RetryMaxMs       int64  `mapstructure:"retry_max_ms"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts"`
	OrganizerPercent int64  `mapstructure:"organizer_percent"`
	GatewayTimeoutMs int64  `mapstructure:"gateway_timeout_ms"`
	RetryScanInterval time.Duration `mapstructure:"retry_scan_interval"`
	RetryBatchSize    int           `mapstructure:"retry_batch_size"`
	RetryConcurrency  int           `mapstructure:"retry_concurrency"`
}

// RateLimitConfig represents rate limiting configuration for the ticketing endpoints
type RateLimitConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	PurchasePerMinute  int           `mapstructure:"purchase_per_minute"`
	ScanPerMinute      int           `mapstructure:"scan_per_minute"`
	WebhookPerMinute   int           `mapstructure:"webhook_per_minute"`
	DefaultPerMinute   int           `mapstructure:"default_per_minute"`
	Window             time.Duration `mapstructure:"window"`
}

// MonitoringConfig represents background health/metrics configuration
type MonitoringConfig struct {
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// HealthCheckConfig represents health check configuration
type HealthCheckConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the environment file (if present) and environment variables
// into a Config, applying defaults for anything unset.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	setDefaults()

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.port", 8080)
	viper.SetDefault("app.host", "localhost")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "ticket_engine")
	viper.SetDefault("database.password", "ticket_engine")
	viper.SetDefault("database.db_name", "ticket_engine")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.conn_max_idle_time", 300)
	viper.SetDefault("database.timezone", "UTC")
	viper.SetDefault("database.migrations_path", "./migrations")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.pool_timeout", "4s")
	viper.SetDefault("redis.idle_timeout", "5m")
	viper.SetDefault("redis.idle_check_frequency", "1m")
	viper.SetDefault("redis.cluster_enabled", false)
	viper.SetDefault("redis.cluster_addresses", []string{})
	viper.SetDefault("redis.max_redirects", 3)
	viper.SetDefault("redis.route_by_latency", false)
	viper.SetDefault("redis.route_randomly", false)

	// JWT defaults (Actor bearer-token middleware only; core engine ignores these)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.access_token_expiry", "15m")
	viper.SetDefault("jwt.issuer", "ticket-engine")

	// Ticketing defaults (§6.6)
	viper.SetDefault("ticketing.payment_secret_key", "")
	viper.SetDefault("ticketing.paystack_base_url", "https://api.paystack.co")
	viper.SetDefault("ticketing.qr_secret_key", "")
	viper.SetDefault("ticketing.retry_base_ms", 1000)
	viper.SetDefault("ticketing.retry_max_ms", 30000)
	viper.SetDefault("ticketing.retry_max_attempts", 3)
	viper.SetDefault("ticketing.organizer_percent", 90)
	viper.SetDefault("ticketing.gateway_timeout_ms", 15000)
	viper.SetDefault("ticketing.retry_scan_interval", "30s")
	viper.SetDefault("ticketing.retry_batch_size", 50)
	viper.SetDefault("ticketing.retry_concurrency", 5)

	// Rate limit defaults
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.purchase_per_minute", 10)
	viper.SetDefault("rate_limit.scan_per_minute", 120)
	viper.SetDefault("rate_limit.webhook_per_minute", 600)
	viper.SetDefault("rate_limit.default_per_minute", 60)
	viper.SetDefault("rate_limit.window", "1m")

	// Monitoring defaults
	viper.SetDefault("monitoring.health_check.enabled", true)
	viper.SetDefault("monitoring.health_check.interval", "30s")
	viper.SetDefault("monitoring.health_check.timeout", "5s")
	viper.SetDefault("monitoring.metrics.enabled", true)
	viper.SetDefault("monitoring.metrics.namespace", "ticket_engine")
	viper.SetDefault("monitoring.logging.level", "info")
	viper.SetDefault("monitoring.logging.format", "json")
}
