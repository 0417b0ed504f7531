package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/einkframe/internal/assets"
	"github.com/provide-io/einkframe/internal/config"
	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/internal/frame"
	"github.com/provide-io/einkframe/internal/immich"
	"github.com/provide-io/einkframe/internal/store"
	"github.com/provide-io/einkframe/pkg/convert"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
	"github.com/provide-io/einkframe/pkg/palette"
)

const version = "0.1.0"

// watchDebounce coalesces bursts of file events from a local photo directory.
const watchDebounce = 2 * time.Second

var (
	configPath  string
	logLevel    string
	versionFlag bool
	rootCmd     *cobra.Command
)

func getBuildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	// Fallback to binary modification time
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd = &cobra.Command{
		Use:          "einkframed",
		Short:        "Sync a photo album to an e-paper frame",
		Long:         `Keeps an Immich album (or a local directory) in sync with local storage, converts every photo for the panel and cycles them on the display.`,
		RunE:         runDaemon,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default $"+config.EnvConfigPath+")")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")
}

func main() {
	// Set up panic recovery to return specific exit code
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			debug.PrintStack()
			os.Exit(ferrors.ExitPanic)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ferrors.ExitCode(err))
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if versionFlag {
		fmt.Printf("einkframed %s\n", version)
		fmt.Printf("Built: %s\n", getBuildTimestamp())
		return nil
	}

	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.NewLogger("einkframe", logging.ResolveLevel(logLevel, ""), os.Stderr).
			Error("❌ Failed to load configuration", "path", configPath, "error", err)
		return err
	}

	out, closeLog, err := logging.OpenOutput(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ferrors.ErrConfig, err)
	}
	defer closeLog()
	logger := logging.NewLogger("einkframe", logging.ResolveLevel(logLevel, cfg.LogLevel), out)

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		logger.Error("❌ Failed to start", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

func buildDaemon(cfg *config.Config, logger hclog.Logger) (*frame.Daemon, error) {
	pal := palette.SixColor()
	if cfg.PalettePath != "" {
		var err error
		if pal, err = palette.Load(cfg.PalettePath); err != nil {
			return nil, err
		}
	}

	driver, err := display.New(cfg.DisplayManager, display.Options{
		SnapshotDir:  cfg.EmulatorDir,
		ClearDelay:   cfg.EmulatorClearDelay,
		DisplayDelay: cfg.EmulatorDisplayDelay,
		SPIPort:      cfg.SPIPort,
		Pins:         cfg.Pins,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("🖥️ Display manager ready", "kind", cfg.DisplayManager, "width", driver.Width(), "height", driver.Height())

	conv, err := convert.New(convert.Options{
		Width:   driver.Width(),
		Height:  driver.Height(),
		Rotate:  cfg.Rotate,
		Mode:    cfg.RatioMode,
		Palette: pal,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	var (
		source assets.Source
		watch  frame.WatchFunc
	)
	switch cfg.Source {
	case config.SourceLocal:
		local := assets.NewLocalSource(cfg.LocalDir, logger)
		source = local
		watch = func(ctx context.Context, onChange func()) error {
			return local.Watch(ctx, watchDebounce, onChange)
		}
	default:
		client, err := immich.New(immich.Config{
			ServerURL: cfg.ServerAddress,
			BackupURL: cfg.BackupAddress,
			APIKey:    cfg.APIKey,
			Timeout:   cfg.HTTPTimeout,
			UserAgent: "einkframe/" + version,
		}, logger)
		if err != nil {
			return nil, err
		}
		source = client
	}

	st, err := store.New(store.Options{
		Root:      cfg.PhotoStorage,
		Source:    source,
		Converter: conv,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return frame.New(frame.Options{
		LockDir:       cfg.PhotoStorage,
		Search:        assets.AlbumSearch{Album: cfg.AlbumName, Logger: logger},
		Source:        source,
		Store:         st,
		Driver:        driver,
		FetchInterval: cfg.FetchInterval,
		Display: frame.DisplayConfig{
			PhotoInterval: cfg.PhotoInterval,
			ClearInterval: cfg.ClearInterval,
		},
		StatusAddr: cfg.StatusAddr,
		Watch:      watch,
		Version:    version,
		Logger:     logger,
	})
}
