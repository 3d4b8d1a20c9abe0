package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PRICECAST_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Forecast ForecastConfig `yaml:"forecast"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output string `yaml:"output" default:"stderr"`
}

// SourceConfig selects where closing prices come from.
type SourceConfig struct {
	Kind     string        `yaml:"kind" default:"yahoo" validate:"oneof=csv yahoo"`
	Dir      string        `yaml:"dir" default:"data" validate:"required_if=Kind csv"`
	BaseURL  string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"required_if=Kind yahoo"`
	Start    string        `yaml:"start" default:"2024-01-01" validate:"datetime=2006-01-02"`
	RatePerS float64       `yaml:"rate_per_second" default:"2" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" default:"10s"`
}

// StartDate parses Start. Load has already validated the format.
func (s SourceConfig) StartDate() time.Time {
	t, _ := time.Parse(time.DateOnly, s.Start)
	return t
}

type CacheConfig struct {
	Kind       string        `yaml:"kind" default:"memory" validate:"oneof=none memory redis"`
	TTL        time.Duration `yaml:"ttl" default:"1h"`
	MaxEntries int           `yaml:"max_entries" default:"1000" validate:"min=1"`
	Cleanup    time.Duration `yaml:"cleanup_interval" default:"1m" validate:"gt=0"`
	Redis      RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr" default:"localhost:6379"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db" validate:"min=0"`
	Prefix      string        `yaml:"prefix" default:"pricecast"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn" default:"pricecast.db"` // sqlite file or ":memory:"
}

type MetricsConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path" default:"/metrics"`
}

type ForecastConfig struct {
	MaxDifferencing int `yaml:"max_differencing" default:"5" validate:"min=1,max=10"`
	Concurrency     int `yaml:"concurrency" default:"4" validate:"min=1"`
}

var validate = validator.New()

// Load reads the YAML file at path, applies .env and PRICECAST_* overrides,
// fills defaults and validates. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: defaults: %w", err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"LOG_LEVEL":      &cfg.Log.Level,
		"LOG_FORMAT":     &cfg.Log.Format,
		"SOURCE_KIND":    &cfg.Source.Kind,
		"SOURCE_DIR":     &cfg.Source.Dir,
		"SOURCE_URL":     &cfg.Source.BaseURL,
		"SOURCE_START":   &cfg.Source.Start,
		"CACHE_KIND":     &cfg.Cache.Kind,
		"REDIS_ADDR":     &cfg.Cache.Redis.Addr,
		"REDIS_PASSWORD": &cfg.Cache.Redis.Password,
		"STORAGE_DSN":    &cfg.Storage.DSN,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}

	if v := os.Getenv(envPrefix + "SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_PORT: %w", envPrefix, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(envPrefix + "CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_TTL: %w", envPrefix, err)
		}
		cfg.Cache.TTL = ttl
	}
	return nil
}
