package convert

import (
	"fmt"
	"strings"
)

// RatioMode selects how a source aspect ratio is reconciled with the target
// display dimensions.
type RatioMode int

const (
	// Maintain scales down (never up) to fit and pads with white.
	Maintain RatioMode = iota
	// Stretch resizes to the exact target size, ignoring aspect ratio.
	Stretch
	// Crop scales to cover the target box and trims the overflow.
	Crop
)

// String returns the config name of m.
func (m RatioMode) String() string {
	switch m {
	case Maintain:
		return "maintain"
	case Stretch:
		return "stretch"
	case Crop:
		return "crop"
	default:
		return "unknown"
	}
}

// ParseRatioMode parses a configured ratio mode name, case-insensitively.
// The empty string selects Maintain.
func ParseRatioMode(s string) (RatioMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "maintain":
		return Maintain, nil
	case "stretch":
		return Stretch, nil
	case "crop":
		return Crop, nil
	default:
		return Maintain, fmt.Errorf("unknown ratio mode: %q (want maintain, stretch or crop)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RatioMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RatioMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRatioMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
