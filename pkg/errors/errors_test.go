package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestExpected(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: true},
		{name: "manifest", err: fmt.Errorf("album %q: %w", "Frame", ErrManifestFetch), expected: true},
		{name: "download", err: fmt.Errorf("asset a: %w", ErrAssetDownload), expected: true},
		{name: "storage", err: fmt.Errorf("list processed: %w", ErrStorage), expected: true},
		{name: "decode", err: fmt.Errorf("a.jpg: %w", ErrImageDecode), expected: true},
		{name: "encode", err: fmt.Errorf("a.bmp: %w", ErrImageEncode), expected: true},
		{name: "display", err: fmt.Errorf("busy timeout: %w", ErrDisplayIO), expected: true},
		{name: "cancelled", err: context.Canceled, expected: true},
		{name: "config", err: fmt.Errorf("interval: %w", ErrConfig), expected: false},
		{name: "unclassified", err: fs.ErrPermission, expected: false},
		{name: "plain", err: errors.New("boom"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expected(tt.err); got != tt.expected {
				t.Errorf("Expected(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "nil", err: nil, code: ExitOK},
		{name: "config", err: fmt.Errorf("load: %w", ErrConfig), code: ExitConfigError},
		{name: "palette", err: fmt.Errorf("load: %w", ErrInvalidPalette), code: ExitConfigError},
		{name: "locked", err: ErrLocked, code: ExitConfigError},
		{name: "runtime", err: errors.New("unexpected"), code: ExitRuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.code {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.code)
			}
		})
	}
}
