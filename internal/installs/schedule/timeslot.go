// Package schedule parses free-form time-slot labels into comparable
// hour ranges for conflict detection.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
)

// HourRange is a half-open [Start, End) range of whole hours within a day.
type HourRange struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open hour ranges intersect.
// Back-to-back ranges (one ending exactly when the other starts) do not.
func (r HourRange) Overlaps(other HourRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// namedSlots maps well-known slot labels to hour ranges. Lookup is
// case-insensitive after trimming.
var namedSlots = map[string]HourRange{
	"morning":   {Start: 9, End: 12},
	"am":        {Start: 9, End: 12},
	"上午":        {Start: 9, End: 12},
	"afternoon": {Start: 14, End: 17},
	"pm":        {Start: 14, End: 17},
	"下午":        {Start: 14, End: 17},
	"evening":   {Start: 18, End: 20},
	"晚上":        {Start: 18, End: 20},
}

// rangePattern matches explicit ranges like "14-16" or "14:00-16:30".
// Minutes are accepted but truncated; only the hour components are used.
var rangePattern = regexp.MustCompile(`^(\d{1,2})(?::[0-5]\d)?\s*-\s*(\d{1,2})(?::[0-5]\d)?$`)

// Parse converts a slot label into an hour range. The second return value
// is false when the label is empty, unknown, or malformed; unparseable
// slots never participate in overlap checks.
func Parse(label string) (HourRange, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return HourRange{}, false
	}

	if slot, ok := namedSlots[strings.ToLower(trimmed)]; ok {
		return slot, true
	}

	match := rangePattern.FindStringSubmatch(trimmed)
	if match == nil {
		return HourRange{}, false
	}

	start, err := strconv.Atoi(match[1])
	if err != nil {
		return HourRange{}, false
	}
	end, err := strconv.Atoi(match[2])
	if err != nil {
		return HourRange{}, false
	}

	if start < 0 || end > 24 || start >= end {
		return HourRange{}, false
	}

	return HourRange{Start: start, End: end}, true
}
