package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     string
		expected time.Duration
		wantErr  bool
	}{
		{"five minutes", "5m", 5 * time.Minute, false},
		{"fifteen minutes", "15m", 15 * time.Minute, false},
		{"one hour", "1h", time.Hour, false},
		{"one day", "24h", 24 * time.Hour, false},
		{"seven days", "7d", 7 * 24 * time.Hour, false},
		{"thirty days", "30d", 30 * 24 * time.Hour, false},
		{"uppercase", "1H", time.Hour, false},
		{"padded", "  24h ", 24 * time.Hour, false},
		{"empty", "", 0, true},
		{"unknown", "2h", 0, true},
		{"garbage", "soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, err := ParseWindow(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, w.Duration)
		})
	}
}

func TestWindow_StartTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w, err := ParseWindow("1h")
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), w.StartTime(now))
}

func TestWindow_Hours(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     string
		expected int64
	}{
		{"5m", 1},
		{"15m", 1},
		{"1h", 1},
		{"24h", 24},
		{"7d", 168},
		{"30d", 720},
	}

	for _, tt := range tests {
		w, err := ParseWindow(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, w.Hours(), "window %s", tt.code)
	}
}

func TestWindows_Ordering(t *testing.T) {
	t.Parallel()

	all := Windows()
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Duration, all[i-1].Duration,
			"catalog should run shortest to longest")
	}
}
