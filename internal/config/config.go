// Package config loads the daemon configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/internal/store"
	"github.com/provide-io/einkframe/pkg/convert"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "EINKFRAME_CONFIG"

// minInterval is the shortest accepted interval or HTTP timeout.
const minInterval = time.Second

// Source selects where photos come from.
type Source string

const (
	SourceImmich Source = "immich"
	SourceLocal  Source = "local"
)

// Config represents the complete daemon configuration.
type Config struct {
	// Photo source
	Source        Source        `yaml:"source"` // immich, local
	ServerAddress string        `yaml:"server_address"`
	BackupAddress string        `yaml:"backup_address"`
	APIKey        string        `yaml:"x_api_key"`
	AlbumName     string        `yaml:"album_name"`
	LocalDir      string        `yaml:"local_dir"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`

	// Display
	DisplayManager       display.Kind  `yaml:"display_manager"` // epd7in3e, emulator, mock
	EmulatorDir          string        `yaml:"emulator_dir"`
	EmulatorClearDelay   time.Duration `yaml:"emulator_clear_delay"`
	EmulatorDisplayDelay time.Duration `yaml:"emulator_display_delay"`
	SPIPort              string        `yaml:"spi_port"`
	Pins                 *display.Pins `yaml:"pins,omitempty"`

	// Conversion
	PhotoStorage string            `yaml:"photo_storage"`
	PalettePath  string            `yaml:"palette_path"` // empty: built-in six-color palette
	RatioMode    convert.RatioMode `yaml:"ratio_mode"`
	Rotate       bool              `yaml:"rotate"`

	// Scheduling
	FetchInterval time.Duration `yaml:"fetch_interval"`
	PhotoInterval time.Duration `yaml:"photo_interval"`
	ClearInterval time.Duration `yaml:"clear_interval"`

	// Operations
	StatusAddr string `yaml:"status_addr"` // empty disables the status server
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		Source:               SourceImmich,
		HTTPTimeout:          60 * time.Second,
		DisplayManager:       display.KindEPD7in3e,
		EmulatorClearDelay:   display.DefaultEmulatorClearDelay,
		EmulatorDisplayDelay: display.DefaultEmulatorDisplayDelay,
		RatioMode:            convert.Maintain,
		Rotate:               true,
		FetchInterval:        60 * time.Second,
		PhotoInterval:        30 * time.Second,
		ClearInterval:        time.Hour,
	}
}

// Load reads the YAML file at path over the defaults, applies EINKFRAME_*
// environment overrides and validates the result. An empty path skips the
// file. Every error wraps ErrConfig.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ferrors.ErrConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config: %v", ferrors.ErrConfig, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("%w: %v", ferrors.ErrConfig, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ferrors.ErrConfig, err)
	}
	return cfg, nil
}

// Validate checks the configuration and fills derived defaults.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Source {
	case SourceImmich:
		for _, req := range []struct{ key, value string }{
			{"server_address", cfg.ServerAddress},
			{"x_api_key", cfg.APIKey},
			{"album_name", cfg.AlbumName},
		} {
			if req.value == "" {
				errs = append(errs, fmt.Errorf("%s is required for source %q", req.key, cfg.Source))
			}
		}
	case SourceLocal:
		if cfg.LocalDir == "" {
			errs = append(errs, fmt.Errorf("local_dir is required for source %q", cfg.Source))
		}
	default:
		errs = append(errs, fmt.Errorf("source must be immich or local, got %q", cfg.Source))
	}

	for _, iv := range []struct {
		key   string
		value time.Duration
	}{
		{"fetch_interval", cfg.FetchInterval},
		{"photo_interval", cfg.PhotoInterval},
		{"clear_interval", cfg.ClearInterval},
		{"http_timeout", cfg.HTTPTimeout},
	} {
		// A bare YAML integer decodes as nanoseconds.
		if iv.value < minInterval {
			errs = append(errs, fmt.Errorf("%s must be at least %s, got %s (durations need a unit, e.g. 60s)", iv.key, minInterval, iv.value))
		}
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"emulator_clear_delay", cfg.EmulatorClearDelay},
		{"emulator_display_delay", cfg.EmulatorDisplayDelay},
	} {
		if d.value < 0 || (d.value > 0 && d.value < time.Millisecond) {
			errs = append(errs, fmt.Errorf("%s must be 0 or at least 1ms, got %s (durations need a unit, e.g. 5s)", d.key, d.value))
		}
	}

	if cfg.PhotoStorage == "" {
		cfg.PhotoStorage = store.DefaultRoot()
	}
	if cfg.DisplayManager == display.KindEmulator && cfg.EmulatorDir == "" {
		cfg.EmulatorDir = filepath.Join(cfg.PhotoStorage, "emulator")
	}

	return errors.Join(errs...)
}
