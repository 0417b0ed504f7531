package store

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// EnvDataDir overrides the default storage root.
	EnvDataDir = "EINKFRAME_DATA_DIR"

	originalDir  = "original"
	processedDir = "processed"
	lockFileName = "einkframe.lock"
	bitmapExt    = ".bmp"

	dirPerms = 0o755
)

// DefaultRoot returns the platform data directory used when no storage root
// is configured.
func DefaultRoot() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}

	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Application Support", "einkframe")
		}
	case "linux":
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "einkframe")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local", "share", "einkframe")
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "einkframe")
		}
	}

	return filepath.Join(os.TempDir(), "einkframe")
}

// directorySpec specifies a directory to create under the root.
type directorySpec struct {
	Path string
	Mode os.FileMode
}

var layout = []directorySpec{
	{Path: originalDir},
	{Path: processedDir},
}

// createLayout creates root and its subdirectories. Existing directories are
// left as they are.
func createLayout(root string, dirs []directorySpec) error {
	if err := os.MkdirAll(root, dirPerms); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}

	for _, dir := range dirs {
		mode := dir.Mode
		if mode == 0 {
			mode = dirPerms
		}
		if err := os.MkdirAll(filepath.Join(root, dir.Path), mode); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir.Path, err)
		}
	}
	return nil
}
