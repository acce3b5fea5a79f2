package entry

import (
	"strings"
	"testing"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"1 hour", "1h", 60},
		{"24 hours (max)", "24h", 1440},
		{"30 minutes", "30m", 30},
		{"combined", "1h30m", 90},
		{"bare minutes", "45", 45},
		{"uppercase and spaces", " 2H ", 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDuration(tt.input)
			if err != nil {
				t.Fatalf("ParseDuration(%q) returned unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseDuration(%q) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		errContains string
	}{
		{"empty", "", "invalid time format"},
		{"garbage", "soon", "invalid time format"},
		{"zero hours", "0h", "cannot be zero"},
		{"zero combined", "0h0m", "cannot be zero"},
		{"over max", "25h", "exceeds maximum"},
		{"negative", "-5m", "invalid time format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDuration(tt.input)
			if err == nil {
				t.Fatalf("ParseDuration(%q) expected error, got nil", tt.input)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ParseDuration(%q) error = %q, expected to contain %q", tt.input, err, tt.errContains)
			}
		})
	}
}

func TestParseSplitParts(t *testing.T) {
	parts, err := ParseSplitParts([]string{"code review=30m", "standup=1h", "a=b=15"})
	if err != nil {
		t.Fatalf("ParseSplitParts() returned unexpected error: %v", err)
	}
	expected := []SplitPart{{"code review", 30}, {"standup", 60}, {"a=b", 15}}
	if len(parts) != len(expected) {
		t.Fatalf("ParseSplitParts() returned %d parts, expected %d", len(parts), len(expected))
	}
	for i := range expected {
		if parts[i] != expected[i] {
			t.Errorf("part[%d] = %+v, expected %+v", i, parts[i], expected[i])
		}
	}
}

func TestParseSplitParts_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{"missing separator", []string{"review 30m"}},
		{"empty task", []string{"=30m"}},
		{"blank task", []string{"  =30m"}},
		{"bad duration", []string{"review=soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSplitParts(tt.tokens); err == nil {
				t.Errorf("ParseSplitParts(%q) expected error, got nil", tt.tokens)
			}
		})
	}
}
