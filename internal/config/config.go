package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// envPrefix scopes environment overrides, e.g. CLINIC_DATABASE_PASSWORD.
const envPrefix = "CLINIC"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" envconfig:"SERVER"`
	Database  DatabaseConfig  `mapstructure:"database" envconfig:"DATABASE"`
	Redis     RedisConfig     `mapstructure:"redis" envconfig:"REDIS"`
	JWT       JWTConfig       `mapstructure:"jwt" envconfig:"JWT"`
	Outbox    OutboxConfig    `mapstructure:"outbox" envconfig:"OUTBOX"`
	Cache     CacheConfig     `mapstructure:"cache" envconfig:"CACHE"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	SMTP      SMTPConfig      `mapstructure:"smtp" envconfig:"SMTP"`
	Log       LogConfig       `mapstructure:"log" envconfig:"LOG"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" envconfig:"PORT"`
	// HealthPort serves health and metrics for the worker process.
	HealthPort   int           `mapstructure:"health_port" envconfig:"HEALTH_PORT"`
	Mode         string        `mapstructure:"mode" envconfig:"MODE"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	BodyLimit    int64         `mapstructure:"body_limit" envconfig:"BODY_LIMIT"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" envconfig:"HOST"`
	Port            int           `mapstructure:"port" envconfig:"PORT"`
	User            string        `mapstructure:"user" envconfig:"USER"`
	Password        string        `mapstructure:"password" envconfig:"PASSWORD"`
	Name            string        `mapstructure:"name" envconfig:"NAME"`
	SSLMode         string        `mapstructure:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the postgres:// form used by the migrate tool.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL           string `mapstructure:"url" envconfig:"URL"`
	PoolSize      int    `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	ChannelPrefix string `mapstructure:"channel_prefix" envconfig:"CHANNEL_PREFIX"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"SECRET"`
	Issuer string `mapstructure:"issuer" envconfig:"ISSUER"`
}

type OutboxConfig struct {
	BatchSize      int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval   time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	Lease          time.Duration `mapstructure:"lease" envconfig:"LEASE"`
	MaxAttempts    int           `mapstructure:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" envconfig:"INITIAL_BACKOFF"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" envconfig:"MAX_BACKOFF"`
	Retention      time.Duration `mapstructure:"retention" envconfig:"RETENTION"`
	CleanupEvery   time.Duration `mapstructure:"cleanup_every" envconfig:"CLEANUP_EVERY"`
}

type CacheConfig struct {
	ProfileTTL      time.Duration `mapstructure:"profile_ttl" envconfig:"PROFILE_TTL"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" envconfig:"RPS"`
	Burst int     `mapstructure:"burst" envconfig:"BURST"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL"`
	Format string `mapstructure:"format" envconfig:"FORMAT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.body_limit", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.channel_prefix", "clinic")

	v.SetDefault("jwt.issuer", "clinic")

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.lease", 30*time.Second)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("outbox.initial_backoff", time.Second)
	v.SetDefault("outbox.max_backoff", 5*time.Minute)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_every", time.Hour)

	v.SetDefault("cache.profile_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads config.yml and then applies CLINIC_* environment overrides. A
// missing file is not an error; defaults and the environment still apply.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Name == "" {
		return errors.New("config: database.name is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Outbox.BatchSize <= 0 {
		return errors.New("config: outbox.batch_size must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		return errors.New("config: outbox.poll_interval must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return errors.New("config: outbox.max_attempts must be positive")
	}
	return nil
}
