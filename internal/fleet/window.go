package fleet

import (
	"fmt"
	"strings"
	"time"
)

// Window is one of the fixed time windows supported by statistical
// functions.
type Window struct {
	// Code is the canonical window code ("5m", "1h", ...).
	Code string
	// Duration is the span the window covers.
	Duration time.Duration
}

// The supported window catalog. Codes are matched case-insensitively
// after trimming.
var windows = map[string]Window{
	"5m":  {Code: "5m", Duration: 5 * time.Minute},
	"15m": {Code: "15m", Duration: 15 * time.Minute},
	"1h":  {Code: "1h", Duration: time.Hour},
	"24h": {Code: "24h", Duration: 24 * time.Hour},
	"7d":  {Code: "7d", Duration: 7 * 24 * time.Hour},
	"30d": {Code: "30d", Duration: 30 * 24 * time.Hour},
}

// windowOrder lists window codes from shortest to longest for catalogs.
var windowOrder = []string{"5m", "15m", "1h", "24h", "7d", "30d"}

// ParseWindow resolves a window code to its Window.
// Returns ErrInvalidWindow for unknown or empty codes.
func ParseWindow(code string) (Window, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if w, ok := windows[normalized]; ok {
		return w, nil
	}
	return Window{}, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidWindow, code, strings.Join(windowOrder, ", "))
}

// StartTime returns the window's start relative to now.
func (w Window) StartTime(now time.Time) time.Time {
	return now.Add(-w.Duration)
}

// Hours returns the window length in whole hours, never less than one.
// Sub-hour windows normalize to a per-hour rate.
func (w Window) Hours() int64 {
	hours := int64(w.Duration / time.Hour)
	if hours < 1 {
		return 1
	}
	return hours
}

// Windows returns the supported window catalog from shortest to longest.
func Windows() []Window {
	out := make([]Window, 0, len(windowOrder))
	for _, code := range windowOrder {
		out = append(out, windows[code])
	}
	return out
}
