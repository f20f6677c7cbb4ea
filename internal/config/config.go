// Package config defines configuration parsing and helpers for the
// Producer and Worker.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/taskqueue/internal/domain"
)

// Config holds all tunables parsed from environment variables, following
// the env-struct-tag convention the codebase uses throughout.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev" yaml:"app_env"`

	// StorePath is the SQLite file path for the file-backed Store. The
	// special value ":memory:" selects the in-process variant instead
	// (see internal/store/sqlite.OpenMemory).
	StorePath string `env:"STORE_PATH" envDefault:"taskqueue.db" yaml:"store_path"`
	// LeaseHorizon is the age at which a stranded in_progress row is
	// swept back to pending on Connect. Zero disables recovery.
	LeaseHorizon time.Duration `env:"LEASE_HORIZON" envDefault:"0s" yaml:"lease_horizon"`

	// MaxConcurrency is the strict upper bound on simultaneous dispatches.
	MaxConcurrency int `env:"MAX_CONCURRENCY" envDefault:"1" validate:"gt=0" yaml:"max_concurrency"`
	// PollInterval is the backoff between polls when reserve returns
	// empty or the Worker is at capacity.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s" validate:"gt=0" yaml:"poll_interval"`
	// BatchSize bounds tasks requested per Reserve call.
	BatchSize int `env:"BATCH_SIZE" envDefault:"10" validate:"gt=0" yaml:"batch_size"`

	// DefaultResultTimeout is used by Producer.GetResult when called
	// without an explicit timeout. Zero means "poll indefinitely".
	DefaultResultTimeout time.Duration `env:"DEFAULT_RESULT_TIMEOUT" envDefault:"0s" yaml:"default_result_timeout"`

	// AdminAddr is the listen address for the optional admin/metrics HTTP
	// surface. Empty disables it.
	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9090" yaml:"admin_addr"`
	// AdminUsername/AdminPasswordHash gate the /stats route with HTTP
	// Basic Auth when both are set. AdminPasswordHash is an Argon2id
	// hash in the internal/adminserver.HashPassword format.
	AdminUsername     string `env:"ADMIN_USERNAME" yaml:"admin_username"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH" yaml:"admin_password_hash"`
	AdminRateLimitRPS int    `env:"ADMIN_RATE_LIMIT_RPS" envDefault:"20" yaml:"admin_rate_limit_rps"`
	OTLPEndpoint      string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"" yaml:"otlp_endpoint"`
	OTELServiceName   string `env:"OTEL_SERVICE_NAME" envDefault:"taskqueue-worker" yaml:"otel_service_name"`
}

// AdminEnabled reports whether the admin surface should require Basic Auth.
func (c Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPasswordHash != ""
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

var validate = validator.New()

// Load parses environment variables into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile parses environment variables first, then overlays a YAML file
// at path when it exists, validating the merged result. A missing file is
// not an error — YAML overrides are additive, not required.
func LoadFile(path string) (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("op=config.LoadFile.read: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.LoadFile.unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation and maps failures onto
// domain.ErrValidation.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("op=config.Validate: %w: %w", domain.ErrValidation, err)
	}
	return nil
}
