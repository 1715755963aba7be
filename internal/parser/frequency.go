package parser

import "strings"

// DefaultTimes is the schedule used when no frequency rule matches.
var DefaultTimes = []string{"09:00"}

// frequencyRule maps any of a set of substrings to a daily schedule.
type frequencyRule struct {
	name     string
	patterns []string
	times    []string
}

// frequencyRules is evaluated in order and the first match wins. Order
// matters: "1-1-1" must be tested before "1-1-0" style patterns and "three"
// before "night".
var frequencyRules = []frequencyRule{
	{
		name:     "three-times",
		patterns: []string{"1-1-1", "three", "tds"},
		times:    []string{"09:00", "14:00", "20:00"},
	},
	{
		name:     "twice",
		patterns: []string{"1-0-1", "twice", "bid", "0-1-1", "1-1-0"},
		times:    []string{"09:00", "20:00"},
	},
	{
		name:     "night",
		patterns: []string{"0-0-1", "night"},
		times:    []string{"20:00"},
	},
	{
		name:     "morning",
		patterns: []string{"morning", "1-0-0"},
		times:    []string{"09:00"},
	},
	{
		name:     "four-times",
		patterns: []string{"qid", "four"},
		times:    []string{"08:00", "12:00", "16:00", "20:00"},
	},
}

// Interpret maps a free-text dosing frequency to the daily trigger times it
// implies, as canonical "HH:MM" strings in ascending order. It never fails:
// unrecognized or empty text yields DefaultTimes.
func Interpret(text string) []string {
	times, _ := InterpretRule(text)
	return times
}

// InterpretRule is Interpret that also reports the name of the matching rule,
// or "default".
func InterpretRule(text string) ([]string, string) {
	lower := strings.ToLower(text)
	for _, rule := range frequencyRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				return clone(rule.times), rule.name
			}
		}
	}
	return clone(DefaultTimes), "default"
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
