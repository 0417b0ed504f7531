package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/pkg/convert"
)

// EnvPrefix prefixes every environment override, e.g. EINKFRAME_ALBUM_NAME.
const EnvPrefix = "EINKFRAME_"

type envSetter func(cfg *Config, value string) error

func setString(field func(*Config) *string) envSetter {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setDuration(field func(*Config) *time.Duration) envSetter {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

// envOverrides maps config keys to their setters. The variable name is
// EnvPrefix plus the upper-cased key.
var envOverrides = []struct {
	key string
	set envSetter
}{
	{"SOURCE", func(cfg *Config, v string) error {
		cfg.Source = Source(v)
		return nil
	}},
	{"SERVER_ADDRESS", setString(func(c *Config) *string { return &c.ServerAddress })},
	{"BACKUP_ADDRESS", setString(func(c *Config) *string { return &c.BackupAddress })},
	{"X_API_KEY", setString(func(c *Config) *string { return &c.APIKey })},
	{"ALBUM_NAME", setString(func(c *Config) *string { return &c.AlbumName })},
	{"LOCAL_DIR", setString(func(c *Config) *string { return &c.LocalDir })},
	{"HTTP_TIMEOUT", setDuration(func(c *Config) *time.Duration { return &c.HTTPTimeout })},
	{"DISPLAY_MANAGER", func(cfg *Config, v string) error {
		kind, err := display.ParseKind(v)
		if err != nil {
			return err
		}
		cfg.DisplayManager = kind
		return nil
	}},
	{"EMULATOR_DIR", setString(func(c *Config) *string { return &c.EmulatorDir })},
	{"SPI_PORT", setString(func(c *Config) *string { return &c.SPIPort })},
	{"PHOTO_STORAGE", setString(func(c *Config) *string { return &c.PhotoStorage })},
	{"PALETTE_PATH", setString(func(c *Config) *string { return &c.PalettePath })},
	{"RATIO_MODE", func(cfg *Config, v string) error {
		mode, err := convert.ParseRatioMode(v)
		if err != nil {
			return err
		}
		cfg.RatioMode = mode
		return nil
	}},
	{"ROTATE", func(cfg *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		cfg.Rotate = b
		return nil
	}},
	{"FETCH_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.FetchInterval })},
	{"PHOTO_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.PhotoInterval })},
	{"CLEAR_INTERVAL", setDuration(func(c *Config) *time.Duration { return &c.ClearInterval })},
	{"STATUS_ADDR", setString(func(c *Config) *string { return &c.StatusAddr })},
	{"LOG_FILE", setString(func(c *Config) *string { return &c.LogFile })},
}

// applyEnv applies overrides found through lookup. EINKFRAME_LOG_LEVEL is
// not handled here; the logging package resolves it with the flag.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		name := EnvPrefix + o.key
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := o.set(cfg, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
