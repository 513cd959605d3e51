package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formatted", "(555) 123-4567", "5551234567"},
		{"with country code", "+1 555 123 4567", "5551234567"},
		{"bare digits", "5551234567", "5551234567"},
		{"too short", "12345", ""},
		{"too long", "555123456789", ""},
		{"not a number", "call me maybe", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-09-03", ResolveDate("", now), "empty input defaults to tomorrow")
	assert.Equal(t, "2026-09-03", ResolveDate("nonsense input", now), "unparsable input defaults to tomorrow")
	assert.Equal(t, "2026-09-10", ResolveDate("2026-09-10", now))
	assert.Equal(t, "2026-09-03", ResolveDate("tomorrow", now))
}

func TestResolveTime(t *testing.T) {
	now := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"15:00", "15:00", true},
		{"3pm", "15:00", true},
		{"3 PM", "15:00", true},
		{"3:30 PM", "15:30", true},
		{"09:00", "09:00", true},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveTime(tt.input, now)
		require.Equal(t, tt.ok, ok, "input %q", tt.input)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
	}
}

func TestFriendlyFormatting(t *testing.T) {
	assert.Equal(t, "Thursday, September 3", FriendlyDate("2026-09-03"))
	assert.Equal(t, "not-a-date", FriendlyDate("not-a-date"))
	assert.Equal(t, "3:00 PM", FriendlyTime("15:00"))
	assert.Equal(t, "9:00 AM", FriendlyTime("09:00"))
	assert.Equal(t, "bogus", FriendlyTime("bogus"))
}
