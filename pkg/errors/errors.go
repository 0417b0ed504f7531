// Package errors defines the failure taxonomy shared by the sync and display
// pipelines. Components wrap these sentinels with fmt.Errorf("...: %w") so
// callers can classify failures with errors.Is.
package errors

import (
	"context"
	"errors"
)

var (
	// Sync errors 🔄
	ErrManifestFetch = errors.New("❌ album manifest unavailable")
	ErrAssetDownload = errors.New("❌ asset download failed")
	ErrStorage       = errors.New("❌ local storage I/O failed")

	// Conversion errors 🎨
	ErrImageDecode    = errors.New("❌ image decode failed")
	ErrImageEncode    = errors.New("❌ image encode failed")
	ErrInvalidPalette = errors.New("❌ invalid palette")

	// Display errors 🖼️
	ErrDisplayIO = errors.New("❌ display I/O failed")

	// Startup errors 🚀
	ErrConfig = errors.New("❌ invalid configuration")
	ErrLocked = errors.New("❌ storage root locked by another process")
)

// Process exit codes used by the command line entry points.
const (
	ExitOK           = 0
	ExitRuntimeError = 1
	ExitConfigError  = 2
	ExitPanic        = 101
)

// Expected reports whether err belongs to a class the daemon recovers from
// by logging and retrying on the next interval. Anything else is treated as
// unexpected and should stop the daemon.
func Expected(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, ErrManifestFetch),
		errors.Is(err, ErrAssetDownload),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrImageDecode),
		errors.Is(err, ErrImageEncode),
		errors.Is(err, ErrDisplayIO),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// Fatal reports whether err should prevent the daemon from starting.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfig) || errors.Is(err, ErrInvalidPalette) || errors.Is(err, ErrLocked)
}

// ExitCode maps an error returned from the daemon to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Fatal(err):
		return ExitConfigError
	default:
		return ExitRuntimeError
	}
}
