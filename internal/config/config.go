package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Defaults for the sync core timings.
const (
	DefaultHealthInterval = 5 * time.Second
	DefaultDebounce       = 300 * time.Millisecond
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
)

// Config represents the global ~/.nchat/config.toml.
type Config struct {
	DefaultProfile string             `toml:"default_profile"`
	Profiles       map[string]Profile `toml:"profiles"`
}

// Profile holds the backend connection of one profile. Environment
// variables prefixed NCHAT_ override file values.
type Profile struct {
	APIURL         string        `toml:"api_url" env:"API_URL"`
	InvoiceKey     string        `toml:"invoice_key" env:"INVOICE_KEY"`
	AdminKey       string        `toml:"admin_key" env:"ADMIN_KEY"`
	HealthInterval time.Duration `toml:"health_interval" env:"HEALTH_INTERVAL"`
	Debounce       time.Duration `toml:"debounce" env:"DEBOUNCE"`
	RetryDelay     time.Duration `toml:"retry_delay" env:"RETRY_DELAY"`
	RequestTimeout time.Duration `toml:"request_timeout" env:"REQUEST_TIMEOUT"`
	MetricsAddr    string        `toml:"metrics_addr" env:"METRICS_ADDR"`
	Debug          bool          `toml:"debug" env:"DEBUG"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadProfile resolves a profile from the config file at path (which may
// be missing), the environment and the defaults, in that order of
// precedence: environment, file, defaults.
func LoadProfile(path, name string) (Profile, error) {
	var p Profile
	cfg, err := Load(path)
	switch {
	case err == nil:
		p = cfg.Profiles[name]
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Profile{}, fmt.Errorf("load config: %w", err)
	}

	if err := env.ParseWithOptions(&p, env.Options{Prefix: "NCHAT_"}); err != nil {
		return Profile{}, fmt.Errorf("parse env: %w", err)
	}
	p.applyDefaults()
	return p, nil
}

func (p *Profile) applyDefaults() {
	if p.HealthInterval <= 0 {
		p.HealthInterval = DefaultHealthInterval
	}
	if p.Debounce <= 0 {
		p.Debounce = DefaultDebounce
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate reports missing settings required to reach the backend.
func (p Profile) Validate() error {
	if p.APIURL == "" {
		return errors.New("api_url is not set (config.toml or NCHAT_API_URL)")
	}
	if p.InvoiceKey == "" && p.AdminKey == "" {
		return errors.New("no api key set (invoice_key/admin_key or NCHAT_INVOICE_KEY/NCHAT_ADMIN_KEY)")
	}
	return nil
}
