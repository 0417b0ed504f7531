package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/pkg/convert"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server_address: http://photos.local:2283
backup_address: http://10.0.0.2:2283
x_api_key: secret
album_name: Frame
display_manager: emulator
photo_storage: /var/lib/einkframe
ratio_mode: crop
rotate: false
fetch_interval: 5m
photo_interval: 90s
status_addr: 127.0.0.1:8080
pins:
  reset: GPIO5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceImmich, cfg.Source)
	assert.Equal(t, "http://photos.local:2283", cfg.ServerAddress)
	assert.Equal(t, "http://10.0.0.2:2283", cfg.BackupAddress)
	assert.Equal(t, display.KindEmulator, cfg.DisplayManager)
	assert.Equal(t, convert.Crop, cfg.RatioMode)
	assert.False(t, cfg.Rotate)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
	assert.Equal(t, 90*time.Second, cfg.PhotoInterval)
	assert.Equal(t, time.Hour, cfg.ClearInterval)
	assert.Equal(t, filepath.Join("/var/lib/einkframe", "emulator"), cfg.EmulatorDir)
	require.NotNil(t, cfg.Pins)
	assert.Equal(t, "GPIO5", cfg.Pins.Reset)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server_address: http://photos.local
x_api_key: secret
album_name: Frame
photo_storage: /data
`)
	t.Setenv("EINKFRAME_SOURCE", "local")
	t.Setenv("EINKFRAME_LOCAL_DIR", "/photos")
	t.Setenv("EINKFRAME_DISPLAY_MANAGER", "mock")
	t.Setenv("EINKFRAME_RATIO_MODE", "stretch")
	t.Setenv("EINKFRAME_PHOTO_INTERVAL", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, cfg.Source)
	assert.Equal(t, "/photos", cfg.LocalDir)
	assert.Equal(t, display.KindMock, cfg.DisplayManager)
	assert.Equal(t, convert.Stretch, cfg.RatioMode)
	assert.Equal(t, 2*time.Second, cfg.PhotoInterval)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"missing required keys", "album_name: Frame\n", nil},
		{"bad yaml", "server_address: [\n", nil},
		{"bad display manager", "display_manager: inky\n", nil},
		{"bad ratio mode", "ratio_mode: zoom\n", nil},
		{"bad source", "source: dropbox\n", nil},
		{"local without dir", "source: local\n", nil},
		{"zero interval", "source: local\nlocal_dir: /p\nphoto_interval: 0s\n", nil},
		{"bare integer interval", "source: local\nlocal_dir: /p\nfetch_interval: 60\n", nil},
		{"bare integer delay", "source: local\nlocal_dir: /p\nemulator_display_delay: 5\n", nil},
		{"bad env duration", "source: local\nlocal_dir: /p\n", map[string]string{"EINKFRAME_FETCH_INTERVAL": "soon"}},
		{"bad env bool", "source: local\nlocal_dir: /p\n", map[string]string{"EINKFRAME_ROTATE": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ferrors.ErrConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ferrors.ErrConfig)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("EINKFRAME_SOURCE", "local")
	t.Setenv("EINKFRAME_LOCAL_DIR", "/photos")
	t.Setenv("EINKFRAME_DATA_DIR", "/srv/frame")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/frame", cfg.PhotoStorage)
	assert.True(t, cfg.Rotate)
	assert.Equal(t, display.KindEPD7in3e, cfg.DisplayManager)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.FetchInterval = 0
	err := Validate(cfg)
	require.Error(t, err)
	for _, key := range []string{"server_address", "x_api_key", "album_name", "fetch_interval"} {
		assert.Contains(t, err.Error(), key)
	}
}
