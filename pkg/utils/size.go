package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable size string such as "512MB", "2GB" or
// "1024" (plain bytes) into a byte count.
func ParseSize(sizeStr string) (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(sizeStr))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			value, err := strconv.ParseInt(num, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
			}
			if value < 0 {
				return 0, fmt.Errorf("negative size %q", sizeStr)
			}
			return value * m.factor, nil
		}
	}

	// Plain numbers are interpreted as bytes.
	value, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", sizeStr, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", sizeStr)
	}
	return value, nil
}

// FormatSize renders a byte count using the largest exact binary unit.
func FormatSize(size int64) string {
	units := []struct {
		suffix string
		factor int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
	}
	for _, u := range units {
		if size >= u.factor && size%u.factor == 0 {
			return fmt.Sprintf("%d%s", size/u.factor, u.suffix)
		}
	}
	return fmt.Sprintf("%dB", size)
}
