package entry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// combinedTimePattern matches combined time duration in XhYm format (e.g., "1h30m", "2h15m")
var combinedTimePattern = regexp.MustCompile(`^(\d+)h(\d+)m$`)

// timePattern matches Yh, Ym or a bare number of minutes
var timePattern = regexp.MustCompile(`^(\d+)(h|m)?$`)

// MaxDurationMinutes is the maximum allowed duration per entry (24 hours)
const MaxDurationMinutes = 24 * 60

// ParseDuration parses a duration in Yh, Ym, XhYm or bare-minutes form and
// returns the duration in minutes.
// Valid inputs: "2h" (120), "30m" (30), "1h30m" (90), "45" (45)
// Invalid inputs: "invalid", "0h", "0m", "0h0m", values exceeding 24h
func ParseDuration(input string) (minutes int, err error) {
	input = strings.ToLower(strings.TrimSpace(input))

	if m := combinedTimePattern.FindStringSubmatch(input); m != nil {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return checkMinutes(hours*60 + mins)
	}

	m := timePattern.FindStringSubmatch(input)
	if m == nil {
		return 0, fmt.Errorf("invalid time format: expected Xh, Xm, XhYm or minutes, got %q", input)
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time format: %q", input)
	}
	if m[2] == "h" {
		value *= 60
	}
	return checkMinutes(value)
}

func checkMinutes(minutes int) (int, error) {
	if minutes == 0 {
		return 0, fmt.Errorf("invalid duration: duration cannot be zero")
	}
	if minutes > MaxDurationMinutes {
		return 0, fmt.Errorf("invalid duration: exceeds maximum of 24 hours (%d minutes)", MaxDurationMinutes)
	}
	return minutes, nil
}

// ParseSplitParts parses "task=duration" tokens into split parts.
// Tokens are separated by whitespace, so a task in a split cannot contain
// spaces; the last '=' in a token separates the task from the duration.
// Example: ["review=30m", "standup=1h"] -> [{review 30} {standup 60}]
func ParseSplitParts(tokens []string) ([]SplitPart, error) {
	parts := make([]SplitPart, 0, len(tokens))
	for _, tok := range tokens {
		idx := strings.LastIndex(tok, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid split part %q: expected task=duration", tok)
		}
		task := strings.TrimSpace(tok[:idx])
		if task == "" {
			return nil, fmt.Errorf("invalid split part %q: task cannot be empty", tok)
		}
		minutes, err := ParseDuration(tok[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid split part %q: %w", tok, err)
		}
		parts = append(parts, SplitPart{Task: task, Minutes: minutes})
	}
	return parts, nil
}
