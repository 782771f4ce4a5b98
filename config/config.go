// Package config loads the portal client settings from defaults, an optional
// YAML file, and environment variables, in increasing priority order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigFile is the YAML file consulted when present.
const DefaultConfigFile = "portalclient.yaml"

// Config holds every runtime setting of the portal client.
type Config struct {
	Client ClientConfig `koanf:"client"`
	Retry  RetryConfig  `koanf:"retry"`
	Log    LogConfig    `koanf:"log"`
}

// ClientConfig configures the dispatcher: target origin, paths, timeouts,
// and the fixed client-identity headers.
type ClientConfig struct {
	Origin        string         `koanf:"origin" validate:"required,url"`
	Timeout       time.Duration  `koanf:"timeout" validate:"gt=0"`
	UploadTimeout time.Duration  `koanf:"uploadtimeout" validate:"gtefield=Timeout"`
	Path          PathConfig     `koanf:"path"`
	Identity      IdentityConfig `koanf:"identity"`
}

// PathConfig names the fixed endpoints and navigation targets.
type PathConfig struct {
	Health       string `koanf:"health" validate:"required,startswith=/"`
	CSRF         string `koanf:"csrf" validate:"required,startswith=/"`
	Login        string `koanf:"login" validate:"required,startswith=/"`
	Unauthorized string `koanf:"unauthorized" validate:"required,startswith=/"`
}

// IdentityConfig holds the fixed X-Client-Type / X-Client-Version values.
type IdentityConfig struct {
	Type    string `koanf:"type" validate:"required"`
	Version string `koanf:"version" validate:"required"`
}

// RetryConfig configures the retry engine.
type RetryConfig struct {
	MaxAttempts int           `koanf:"maxattempts" validate:"min=1"`
	BaseDelay   time.Duration `koanf:"basedelay" validate:"gt=0"`
	Jitter      bool          `koanf:"jitter"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Load reads configuration with priority: environment variables over the
// YAML file (if present) over built-in defaults.
func Load() (*Config, error) {
	return LoadFile(DefaultConfigFile)
}

// LoadFile is Load with an explicit YAML file path. The file is optional.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// YAML file is optional
	_ = k.Load(file.Provider(path), yaml.Parser())

	if err := loadEnv(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshal(k)
}

// LoadBytes builds a Config from raw YAML on top of the defaults. Intended
// for tests and embedded configuration.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config bytes: %w", err)
	}

	return unmarshal(k)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.origin":            "http://localhost:8080",
		"client.timeout":           "30s",
		"client.uploadtimeout":     "120s",
		"client.path.health":       "/health",
		"client.path.csrf":         "/api/csrf-token",
		"client.path.login":        "/login",
		"client.path.unauthorized": "/unauthorized",
		"client.identity.type":     "web-portal",
		"client.identity.version":  "1.0.0",

		"retry.maxattempts": 3,
		"retry.basedelay":   "1s",
		"retry.jitter":      true,

		"log.level":  "info",
		"log.pretty": false,
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: "PORTAL_",
		TransformFunc: func(key, value string) (string, any) {
			// PORTAL_CLIENT_PATH_LOGIN becomes client.path.login
			key = strings.TrimPrefix(key, "PORTAL_")
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		return err
	}
	return nil
}
