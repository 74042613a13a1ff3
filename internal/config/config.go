package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`

	API struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"api"`

	Auth struct {
		Email     string        `yaml:"email"`
		Password  string        `yaml:"password"`
		LoginPath string        `yaml:"login_path"`
		Skew      time.Duration `yaml:"refresh_skew"`
	} `yaml:"auth"`

	Storage struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	MetricsConfig struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Cache struct {
		StaleTime time.Duration `yaml:"stale_time"`
	} `yaml:"cache"`

	Session struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		RealtimeURL  string        `yaml:"realtime_url"`
	} `yaml:"session"`

	Cart struct {
		MergePolicy string `yaml:"merge_policy"`
	} `yaml:"cart"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{LogLevel: "info"}
	c.API.BaseURL = "http://localhost:8080"
	c.API.Timeout = 10 * time.Second
	c.Auth.LoginPath = "/auth/login"
	c.Auth.Skew = 30 * time.Second
	c.Storage.Driver = "sqlite3"
	c.Storage.DSN = "neembleeat.db"
	c.Server.Port = 3000
	c.Server.AllowedOrigins = []string{"*"}
	c.MetricsConfig.Enabled = true
	c.MetricsConfig.Port = 9090
	c.MetricsConfig.Path = "/metrics"
	c.Cache.StaleTime = 30 * time.Second
	c.Session.PollInterval = 5 * time.Second
	c.Cart.MergePolicy = "item"
	return c
}

// Load reads an optional .env file, then the YAML file at path (missing
// file is not an error), then NEEMBLE_* environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be greater than 0")
	}
	switch c.Storage.Driver {
	case "sqlite3", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	switch c.Cart.MergePolicy {
	case "item", "signature":
	default:
		return fmt.Errorf("unsupported cart merge policy: %s", c.Cart.MergePolicy)
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be greater than 0")
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "NEEMBLE_LOG_LEVEL")
	setString(&c.API.BaseURL, "NEEMBLE_API_URL")
	setString(&c.Auth.Email, "NEEMBLE_AUTH_EMAIL")
	setString(&c.Auth.Password, "NEEMBLE_AUTH_PASSWORD")
	setString(&c.Storage.Driver, "NEEMBLE_STORAGE_DRIVER")
	setString(&c.Storage.DSN, "NEEMBLE_STORAGE_DSN")
	setString(&c.Session.RealtimeURL, "NEEMBLE_REALTIME_URL")
	setString(&c.Cart.MergePolicy, "NEEMBLE_CART_MERGE_POLICY")

	if v, ok := os.LookupEnv("NEEMBLE_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if err := setInt(&c.Server.Port, "NEEMBLE_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.MetricsConfig.Port, "NEEMBLE_METRICS_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.API.Timeout, "NEEMBLE_API_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.Session.PollInterval, "NEEMBLE_POLL_INTERVAL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
