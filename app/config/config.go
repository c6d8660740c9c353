package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Service name for logs
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME" example:"ctrlbx" validate:"required"`
	Log         Log     `yaml:"log" envPrefix:"LOG_"`
	Backend     Backend `yaml:"backend" envPrefix:"BACKEND_"`
	Storage     Storage `yaml:"storage" envPrefix:"STORAGE_"`
	Session     Session `yaml:"session" envPrefix:"SESSION_"`
	UI          UI      `yaml:"ui" envPrefix:"UI_"`
}

type Log struct {
	// Minimum log level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL" example:"info" validate:"oneof=debug info warn error"`
	// Optional path of a JSON log file, written in addition to the console
	File string `yaml:"file" env:"FILE" example:"/var/log/ctrlbx.json"`
}

type Backend struct {
	// Apps Script web app URL, used when no URL has been stored with `ctrlbx backend set-url`
	URL string `yaml:"url" env:"URL" example:"https://script.google.com/macros/s/XXXX/exec" validate:"omitempty,url"`
	// Transport timeout in seconds
	Timeout int `yaml:"timeout" env:"TIMEOUT" example:"30" validate:"required"`
	// Attempts for read-only actions, 1 disables retries. Mutations are never retried.
	ReadAttempts uint `yaml:"read_attempts" env:"READ_ATTEMPTS" example:"1" validate:"required"`
	// Client side request rate limit (requests per second), 0 disables it
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" example:"5"`
	// How long houses and token types are cached in seconds, 0 disables the cache
	ReferenceTTL int `yaml:"reference_ttl" env:"REFERENCE_TTL" example:"0"`
	// Optional list of HTTP proxies used in rotation
	Proxies []string `yaml:"proxies" env:"PROXIES" example:"http://proxy-1:3128"`
}

type Storage struct {
	// Local storage driver: file or sqlite
	Driver string `yaml:"driver" env:"DRIVER" example:"file" validate:"oneof=file sqlite memory"`
	// Path of the local storage file / database
	Path string `yaml:"path" env:"PATH" example:"~/.config/ctrlbx/storage.yaml" validate:"required"`
}

type Session struct {
	// Session profile: web (MASTER/ADMIN/VIEWER) or mobile (MASTER/ADMIN only)
	Profile string `yaml:"profile" env:"PROFILE" example:"web" validate:"oneof=web mobile"`
}

type UI struct {
	// Minutes since last_seen after which a device is reported offline
	OfflineThresholdMin int `yaml:"offline_threshold_min" env:"OFFLINE_THRESHOLD_MIN" example:"5" validate:"required"`
	// Default log query limit
	LogsLimit int `yaml:"logs_limit" env:"LOGS_LIMIT" example:"200" validate:"required"`
	// Dashboard watch refresh interval in seconds
	RefreshInterval int `yaml:"refresh_interval" env:"REFRESH_INTERVAL" example:"60" validate:"required"`
}

// Load reads the YAML config (a missing file is not an error), then applies
// CTRLBX_ environment overrides and defaults.
func Load(configPath string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&result, env.Options{ //nolint:exhaustruct
		Prefix: "CTRLBX_",
	}); err != nil {
		return nil, oops.Errorf("failed to parse environment variables: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(result *Config) {
	if result.ServiceName == "" {
		result.ServiceName = "ctrlbx"
	}
	if result.Log.Level == "" {
		result.Log.Level = "info"
	}
	if result.Backend.Timeout == 0 {
		result.Backend.Timeout = 30
	}
	if result.Backend.ReadAttempts == 0 {
		result.Backend.ReadAttempts = 1
	}
	if result.Storage.Driver == "" {
		result.Storage.Driver = "file"
	}
	if result.Storage.Path == "" {
		result.Storage.Path = defaultStoragePath(result.Storage.Driver)
	}
	if result.Session.Profile == "" {
		result.Session.Profile = "web"
	}
	if result.UI.OfflineThresholdMin == 0 {
		result.UI.OfflineThresholdMin = 5
	}
	if result.UI.LogsLimit == 0 {
		result.UI.LogsLimit = 200
	}
	if result.UI.RefreshInterval == 0 {
		result.UI.RefreshInterval = 60
	}
}

func defaultStoragePath(driver string) string {
	name := "storage.yaml"
	if driver == "sqlite" {
		name = "storage.db"
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".ctrlbx", name)
	}

	return filepath.Join(dir, "ctrlbx", name)
}
