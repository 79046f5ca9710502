package duration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"guild-warden/internal/moderr"
)

// Platform timeout bounds, both inclusive.
const (
	MinTimeout = time.Second
	MaxTimeout = 28 * 24 * time.Hour
)

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// Parse converts a compact token such as "10m", "1h" or "2d" into a duration.
func Parse(text string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if len(s) < 2 {
		return 0, fmt.Errorf("duration %q: %w", text, moderr.ErrInvalidFormat)
	}

	unit, ok := units[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("duration %q has no unit: %w", text, moderr.ErrInvalidFormat)
	}

	digits := s[:len(s)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, fmt.Errorf("duration %q is not numeric: %w", text, moderr.ErrInvalidFormat)
		}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("duration %q overflows: %w", text, moderr.ErrInvalidFormat)
	}
	return time.Duration(n) * unit, nil
}

// ParseMillis is Parse expressed in milliseconds.
func ParseMillis(text string) (int64, error) {
	d, err := Parse(text)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

// ValidateTimeout enforces the timeout range, raised to min on platforms
// whose shortest timeout is longer than MinTimeout. Values outside it are
// rejected, never clamped.
func ValidateTimeout(d, min time.Duration) error {
	if min < MinTimeout {
		min = MinTimeout
	}
	if d < min || d > MaxTimeout {
		return fmt.Errorf("timeout of %s outside %s..%s: %w", d, Format(min), Format(MaxTimeout), moderr.ErrOutOfRange)
	}
	return nil
}

// Format renders d with its two most significant units, e.g. "2d 3h".
func Format(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
