package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfiguration marks missing or unusable provider credentials and settings
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Generation GenerationConfig `mapstructure:"generation"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type ProvidersConfig struct {
	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`
}

// ProviderConfig describes one text generation backend. An empty Kind means
// the slot is not configured.
type ProviderConfig struct {
	Kind              string        `mapstructure:"kind"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// Configured reports whether the provider slot is in use
func (p ProviderConfig) Configured() bool {
	return p.Kind != ""
}

type GenerationConfig struct {
	PreferPrimary      bool          `mapstructure:"prefer_primary"`
	ProviderTimeout    time.Duration `mapstructure:"provider_timeout"`
	LogTimeout         time.Duration `mapstructure:"log_timeout"`
	DedupeInFlight     bool          `mapstructure:"dedupe_in_flight"`
	CountTokens        bool          `mapstructure:"count_tokens"`
	DefaultMaxTokens   int           `mapstructure:"default_max_tokens"`
	DefaultTemperature float64       `mapstructure:"default_temperature"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxSize         int           `mapstructure:"max_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Backend           string        `mapstructure:"backend"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Window            time.Duration `mapstructure:"window"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("providers.primary.kind", "ollama")
	v.SetDefault("providers.primary.base_url", "http://localhost:11434")
	v.SetDefault("providers.primary.model", "llama2")
	v.SetDefault("providers.primary.breaker.max_failures", 5)
	v.SetDefault("providers.primary.breaker.open_timeout", 30*time.Second)
	v.SetDefault("providers.secondary.kind", "gemini")
	v.SetDefault("providers.secondary.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.secondary.model", "gemini-pro")
	v.SetDefault("providers.secondary.breaker.max_failures", 5)
	v.SetDefault("providers.secondary.breaker.open_timeout", 30*time.Second)

	v.SetDefault("generation.prefer_primary", true)
	v.SetDefault("generation.provider_timeout", 30*time.Second)
	v.SetDefault("generation.log_timeout", 5*time.Second)
	v.SetDefault("generation.default_max_tokens", 2000)
	v.SetDefault("generation.default_temperature", 0.7)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite.path", "data/screenwriter.db")
	v.SetDefault("storage.redis.addr", "localhost:6379")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.cleanup_interval", 5*time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.cleanup_interval", 10*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.languages", []string{"en", "zh"})
}

// LoadConfig loads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names used by existing deployments
	v.BindEnv("providers.primary.base_url", "OLLAMA_API_URL")
	v.BindEnv("providers.primary.api_key", "PRIMARY_API_KEY")
	v.BindEnv("providers.secondary.api_key", "GEMINI_API_KEY", "SECONDARY_API_KEY")
	v.BindEnv("generation.prefer_primary", "USE_OLLAMA")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.redis.addr", "REDIS_ADDR")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if !cfg.Providers.Primary.Configured() && !cfg.Providers.Secondary.Configured() {
		return fmt.Errorf("%w: at least one provider is required", ErrInvalidConfiguration)
	}
	if err := ValidateProvider("primary", cfg.Providers.Primary); err != nil {
		return err
	}
	if err := ValidateProvider("secondary", cfg.Providers.Secondary); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrInvalidConfiguration)
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: rate_limit.requests_per_minute must be positive", ErrInvalidConfiguration)
	}
	switch cfg.Storage.Type {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	return nil
}

// ValidateProvider checks the credentials a provider kind needs. Unconfigured
// slots are valid.
func ValidateProvider(slot string, p ProviderConfig) error {
	if !p.Configured() {
		return nil
	}
	switch p.Kind {
	case "openai", "gemini":
		if p.APIKey == "" {
			return fmt.Errorf("%w: %s provider %q requires an api key", ErrInvalidConfiguration, slot, p.Kind)
		}
		if p.Kind == "openai" && p.BaseURL == "" {
			return fmt.Errorf("%w: %s provider requires a base url", ErrInvalidConfiguration, slot)
		}
	case "ollama":
		if p.BaseURL == "" {
			return fmt.Errorf("%w: %s provider requires a base url", ErrInvalidConfiguration, slot)
		}
	default:
		return fmt.Errorf("%w: unknown %s provider kind %q", ErrInvalidConfiguration, slot, p.Kind)
	}
	if p.Model == "" {
		return fmt.Errorf("%w: %s provider requires a model", ErrInvalidConfiguration, slot)
	}
	return nil
}
