// Package parsing turns query parameters into typed values.
package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

var (
	nowMinusPrefix  = regexp.MustCompile(`(?i)^\s*now\s*-`)
	nowMinusPattern = regexp.MustCompile(`(?i)^\s*now\s*-\s*(\d+)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes|s|sec|secs|second|seconds|d|day|days)\s*$`)
)

// ParseTimestamp parses a trace timestamp in nanoseconds since the epoch.
// fieldName is used for error messages (e.g., "start", "end").
//
// Supported formats:
//   - integer nanoseconds: "1700000000000000100", "0"
//   - "now-<duration>": "now-2h", "now-30m", "now-10s", "now-1d"
//   - human-readable dates understood by go-dateparser: "yesterday", "2024-01-01 10:00"
func ParseTimestamp(value, fieldName string) (int64, error) {
	if value == "" {
		return 0, NewParsingError("%s timestamp is required", fieldName)
	}

	if ns, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ns < 0 {
			return 0, NewParsingError("%s timestamp must be non-negative", fieldName)
		}
		return ns, nil
	}

	if nowMinusPrefix.MatchString(value) {
		return parseNowMinus(value, fieldName, time.Now())
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return 0, NewParsingError("%s must be a nanosecond timestamp or a human-readable date: %v", fieldName, err)
	}
	if parsed.IsZero() {
		return 0, NewParsingError("%s could not be parsed as a date: %s", fieldName, value)
	}
	return parsed.Time.UnixNano(), nil
}

func parseNowMinus(value, fieldName string, now time.Time) (int64, error) {
	m := nowMinusPattern.FindStringSubmatch(value)
	if m == nil {
		return 0, NewParsingError("%s: invalid duration in %q, expected now-<number><unit> (e.g. now-2h)", fieldName, value)
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, NewParsingError("%s: invalid number in duration: %s", fieldName, m[1])
	}

	unit := strings.ToLower(m[2])
	var t time.Time
	switch {
	case strings.HasPrefix(unit, "h"):
		t = now.Add(-time.Duration(amount) * time.Hour)
	case strings.HasPrefix(unit, "m"):
		t = now.Add(-time.Duration(amount) * time.Minute)
	case strings.HasPrefix(unit, "s"):
		t = now.Add(-time.Duration(amount) * time.Second)
	default:
		t = now.AddDate(0, 0, -int(amount))
	}
	return t.UnixNano(), nil
}

// ParseOptionalTimestamp parses value, returning defaultVal when it is empty
func ParseOptionalTimestamp(value, fieldName string, defaultVal int64) (int64, error) {
	if value == "" {
		return defaultVal, nil
	}
	return ParseTimestamp(value, fieldName)
}
