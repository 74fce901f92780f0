package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/habitflow/internal/habitstore"
	"github.com/starford/habitflow/internal/ledger"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	StorageDriverFS    = "fs"
	StorageDriverRedis = "redis"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Ledger  LedgerConfig      `yaml:"ledger"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where the habit document lives.
//
// Driver "fs" keeps it as <path>/<key>.json and enables the file watcher;
// driver "redis" keeps it under <redis.prefix><key>.
type StorageConfig struct {
	Driver string      `yaml:"driver"`
	Path   string      `yaml:"path"`
	Key    string      `yaml:"key"`
	Watch  bool        `yaml:"watch"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StorageDriverFS
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StorageDriverFS, StorageDriverRedis)),
		validation.Field(&c.Key, validation.Required, validation.Match(keyRe)),
		validation.Field(&c.Path, validation.When(c.Driver == StorageDriverFS, validation.Required)),
		validation.Field(&c.Redis, validation.When(c.Driver == StorageDriverRedis, validation.By(func(any) error {
			return validation.ValidateStruct(&c.Redis,
				validation.Field(&c.Redis.Addr, validation.Required),
				validation.Field(&c.Redis.DB, validation.Min(0)),
			)
		}))),
	)
}

// SQLiteConfig holds SQLite database configuration. An empty path
// disables the history index.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig points at an optional YAML file of extra habits.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig tunes date handling and the streak rule.
type LedgerConfig struct {
	Timezone    string  `yaml:"timezone"`
	Threshold   float64 `yaml:"threshold"`
	MaxLookback int     `yaml:"max_lookback"`
}

// Validate validates the ledger configuration.
func (c *LedgerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.Threshold, validation.Required, validation.Min(0.0).Exclusive(), validation.Max(1.0)),
		validation.Field(&c.MaxLookback, validation.Required, validation.Min(1), validation.Max(3650)),
	)
}

// Location resolves Timezone. Empty and "Local" mean the process zone.
func (c *LedgerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.New("unknown timezone")
	}
	return loc, nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver: StorageDriverFS,
			Path:   "./data",
			Key:    habitstore.DefaultKey,
			Watch:  true,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "habitflow:",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./habitflow.db",
		},
		Ledger: LedgerConfig{
			Timezone:    "Local",
			Threshold:   ledger.DefaultThreshold,
			MaxLookback: ledger.DefaultMaxLookback,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
