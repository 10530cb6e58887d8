// Package timespec parses the --since/--until flags used to window ledger queries.
package timespec

import (
	"fmt"
	"strings"
	"time"
)

// Parse converts a time specification into Unix milliseconds relative to now.
// See ParseAt.
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt converts a time specification into Unix milliseconds. Accepted forms:
//   - Go durations ("90m", "1h30m"), meaning that long before now
//   - day counts ("2d"), meaning that many 24h periods before now
//   - RFC3339 timestamps ("2025-10-29T13:00:00Z")
//   - calendar dates ("2025-10-29"), meaning midnight UTC
func ParseAt(spec string, now time.Time) (int64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.Parse(time.DateOnly, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if days, ok := strings.CutSuffix(spec, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err == nil && n >= 0 && fmt.Sprint(n) == days {
			return now.Add(-time.Duration(n) * 24 * time.Hour).UnixMilli(), nil
		}
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '1h30m' or '2d', a date like '2025-10-29', or RFC3339)", spec)
}

// ParseRange parses --since and --until into millisecond bounds. Zero means
// unbounded on that side. since must precede until when both are set.
func ParseRange(since, until string) (int64, int64, error) {
	now := time.Now()
	var sinceMS, untilMS int64
	var err error

	if since != "" {
		if sinceMS, err = ParseAt(since, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		if untilMS, err = ParseAt(until, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMS > 0 && untilMS > 0 && sinceMS >= untilMS {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMS, untilMS, nil
}
