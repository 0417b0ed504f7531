package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/provide-io/einkframe/internal/display"
	"github.com/provide-io/einkframe/pkg/convert"
	ferrors "github.com/provide-io/einkframe/pkg/errors"
	"github.com/provide-io/einkframe/pkg/logging"
	"github.com/provide-io/einkframe/pkg/palette"
)

const version = "0.1.0"

var (
	inputPath   string
	outputPath  string
	palettePath string
	width       int
	height      int
	ratioMode   string
	rotate      bool
	logLevel    string
	versionFlag bool
	rootCmd     *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:          "einkframe-convert",
		Short:        "Convert a photo into a palette bitmap for the e-paper panel",
		Long:         `Converts a single photo with the same pipeline the daemon uses: rotate to fit, scale by ratio mode, dither onto a 256 entry ACT palette and write an 8-bit BMP.`,
		RunE:         convertImage,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to the source photo (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path for the BMP output (required)")
	rootCmd.Flags().StringVarP(&palettePath, "palette", "p", "", "Path to an .act palette (default: built-in six-color palette)")
	rootCmd.Flags().IntVar(&width, "width", display.PanelWidth, "Target width in pixels")
	rootCmd.Flags().IntVar(&height, "height", display.PanelHeight, "Target height in pixels")
	rootCmd.Flags().StringVar(&ratioMode, "ratio-mode", "maintain", "Aspect handling: maintain, stretch or crop")
	rootCmd.Flags().BoolVar(&rotate, "rotate", true, "Rotate 90° when that fits the target better")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&versionFlag, "version", "V", false, "Show version information")

	if err := rootCmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}
	if err := rootCmd.MarkFlagRequired("output"); err != nil {
		panic(err)
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n", r)
			debug.PrintStack()
			os.Exit(ferrors.ExitPanic)
		}
	}()

	// Handle --version or -V before cobra checks required flags
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("einkframe-convert %s\n", version)
		os.Exit(ferrors.ExitOK)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ferrors.ExitCode(err))
	}
}

func convertImage(cmd *cobra.Command, args []string) error {
	if versionFlag {
		fmt.Printf("einkframe-convert %s\n", version)
		return nil
	}
	logger := logging.NewLogger("einkframe-convert", logging.ResolveLevel(logLevel, ""), os.Stderr)

	mode, err := convert.ParseRatioMode(ratioMode)
	if err != nil {
		return fmt.Errorf("%w: %v", ferrors.ErrConfig, err)
	}

	pal := palette.SixColor()
	if palettePath != "" {
		if pal, err = palette.Load(palettePath); err != nil {
			return err
		}
	}

	conv, err := convert.New(convert.Options{
		Width:   width,
		Height:  height,
		Rotate:  rotate,
		Mode:    mode,
		Palette: pal,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("🎨 Converting image", "input", inputPath, "output", outputPath,
		"width", width, "height", height, "ratio_mode", mode, "rotate", rotate)
	return conv.ConvertFile(inputPath, outputPath)
}
