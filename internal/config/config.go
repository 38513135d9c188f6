// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/linkstate"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// Stage is the deployment stage.
type Stage string

const (
	StageLocal Stage = "local"
	StageTest  Stage = "test"
	StageProd  Stage = "prod"
)

// Backend selects where tables and link states live.
type Backend string

const (
	// BackendPostgres keeps tables in Postgres and link states in Redis.
	BackendPostgres Backend = "postgres"
	// BackendMemory keeps everything in process. Data is lost on restart.
	BackendMemory Backend = "memory"
)

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type Config struct {
	Stage   Stage   `env:"STAGE,required"`
	Backend Backend `env:"STORE_BACKEND" envDefault:"postgres"`

	HTTPAddr   string `env:"HTTP_ADDR" envDefault:"0.0.0.0:3000"`
	PublicHost string `env:"PUBLIC_HOST"`

	AuthTableName string `env:"AUTH_TABLE_NAME" envDefault:"auth"`
	UserTableName string `env:"USER_TABLE_NAME" envDefault:"users"`

	JWTSecret  string        `env:"JWT_SECRET,required"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	PingCacheTTL      time.Duration `env:"PING_CACHE_TTL" envDefault:"1m"`
	PingCacheCapacity uint64        `env:"PING_CACHE_CAPACITY" envDefault:"10000"`

	Log      utilities.Config
	Database database.Config
	Redis    linkstate.RedisConfig
	Google   GoogleConfig
}

// IsLocal reports whether the process runs on a developer machine.
func (c Config) IsLocal() bool { return c.Stage == StageLocal }

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	// best-effort: if no .env exists, continue with the real environment
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Stage = Stage(strings.ToLower(strings.TrimSpace(string(cfg.Stage))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.Stage == "" {
		errs = append(errs, errors.New("STAGE must not be empty"))
	}
	switch c.Backend {
	case BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.Backend))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.AuthTableName == c.UserTableName {
		errs = append(errs, errors.New("AUTH_TABLE_NAME and USER_TABLE_NAME must differ"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Redis.TTL <= 0 {
		errs = append(errs, errors.New("LINK_STATE_TTL must be positive"))
	}
	if c.PingCacheTTL <= 0 {
		errs = append(errs, errors.New("PING_CACHE_TTL must be positive"))
	}
	return errors.Join(errs...)
}
