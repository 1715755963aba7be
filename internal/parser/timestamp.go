package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// TimestampResult holds the parsed timestamp and any error.
type TimestampResult struct {
	Time  time.Time
	Error error
}

// periodRegex matches period expressions like "this week", "last month".
var periodRegex = regexp.MustCompile(`(?i)^(this|current|last|previous)\s+(hour|day|week|month|year)$`)

// isPeriod reports whether input names a whole period rather than an instant.
func isPeriod(input string) bool {
	switch strings.ToLower(input) {
	case "today", "yesterday":
		return true
	}
	return periodRegex.MatchString(input)
}

// ParseTimestamp parses a natural language timestamp expression relative to
// the current time.
func ParseTimestamp(input string) TimestampResult {
	return ParseTimestampAt(input, time.Now())
}

// ParseTimestampAt parses a natural language timestamp expression such as
// "9am", "yesterday 20:00" or "this week", relative to now.
func ParseTimestampAt(input string, now time.Time) TimestampResult {
	input = strings.TrimSpace(input)
	if input == "" || strings.ToLower(input) == "now" {
		return TimestampResult{Time: now}
	}

	// Named periods resolve to their first instant.
	if isPeriod(input) {
		r, err := GetPeriodRange(input, now)
		if err != nil {
			return TimestampResult{Error: err}
		}
		return TimestampResult{Time: r.Start}
	}

	cfg := &dateparser.Configuration{
		CurrentTime: now,
	}

	result, err := dateparser.Parse(cfg, input)
	if err != nil {
		return TimestampResult{Error: NewTimestampError(input)}
	}

	return TimestampResult{Time: result.Time}
}

// startOfWeek returns Monday 00:00 of now's week.
func startOfWeek(now time.Time) time.Time {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, now.Location())
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// GetPeriodRange returns the start and end of a named period relative to now.
// Unknown periods fall back to today.
func GetPeriodRange(period string, now time.Time) (TimeRange, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	last := strings.HasPrefix(period, "last") || strings.HasPrefix(period, "previous")

	switch {
	case period == "" || period == "today":
		return TimeRange{Start: today, End: today.AddDate(0, 0, 1)}, nil

	case period == "yesterday":
		return TimeRange{Start: today.AddDate(0, 0, -1), End: today}, nil

	case strings.HasSuffix(period, "hour"):
		start := now.Truncate(time.Hour)
		if last {
			start = start.Add(-time.Hour)
		}
		return TimeRange{Start: start, End: start.Add(time.Hour)}, nil

	case strings.HasSuffix(period, "day"):
		start := today
		if last {
			start = start.AddDate(0, 0, -1)
		}
		return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}, nil

	case strings.HasSuffix(period, "week"):
		start := startOfWeek(now)
		if last {
			start = start.AddDate(0, 0, -7)
		}
		return TimeRange{Start: start, End: start.AddDate(0, 0, 7)}, nil

	case strings.HasSuffix(period, "month"):
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		if last {
			start = start.AddDate(0, -1, 0)
		}
		return TimeRange{Start: start, End: start.AddDate(0, 1, 0)}, nil

	case strings.HasSuffix(period, "year"):
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		if last {
			start = start.AddDate(-1, 0, 0)
		}
		return TimeRange{Start: start, End: start.AddDate(1, 0, 0)}, nil
	}

	return TimeRange{}, NewDateRangeError(period)
}
