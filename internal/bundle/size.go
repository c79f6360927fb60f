package bundle

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = map[string]int64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseSize parses a human-readable size like "25GB" into bytes. Suffixes
// B, KB, MB, GB, and TB are accepted case-insensitively; a bare number is
// taken as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	num := s
	mult := int64(1)
	for _, suffix := range []string{"TB", "GB", "MB", "KB", "B"} {
		if strings.HasSuffix(s, suffix) {
			num = strings.TrimSuffix(s, suffix)
			mult = sizeUnits[suffix]
			break
		}
	}
	if num == "" {
		return 0, fmt.Errorf("missing number in size: %s", s)
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative size: %s", s)
	}
	return n * mult, nil
}
