package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// BytesPerMB is the divisor used to express byte counts in megabytes.
const BytesPerMB = 1024 * 1024

// ParseTimestamp parses s in any common layout, interpreting zone-less
// values as UTC. It returns nil when s cannot be parsed.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// SessionDuration returns end - start in seconds, or nil if either is missing.
// The result is negative when end precedes start.
func SessionDuration(start, end *time.Time) *float64 {
	if start == nil || end == nil {
		return nil
	}
	d := end.Sub(*start).Seconds()
	return &d
}

// BytesToMB converts a byte count cell to megabytes, or nil when the cell
// is not a finite number.
func BytesToMB(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	mb := f / BytesPerMB
	return &mb
}
