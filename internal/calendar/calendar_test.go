package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSlots(t *testing.T) {
	slots := DefaultSlots()
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}, slots)
}

func TestAvailableTimes(t *testing.T) {
	overrides := map[string][]string{
		"2025-12-24": {"09:00", "10:00"},
		"2025-12-25": {}, // closed
	}
	cal := New(nil, overrides)

	tests := []struct {
		name string
		date string
		want []string
	}{
		{name: "date not in overrides uses defaults", date: "2025-12-23", want: DefaultSlots()},
		{name: "override entry returned exactly", date: "2025-12-24", want: []string{"09:00", "10:00"}},
		{name: "closed day returns empty list", date: "2025-12-25", want: []string{}},
		{name: "far future date uses defaults", date: "2099-01-01", want: DefaultSlots()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.AvailableTimes(tt.date))
		})
	}
}

func TestAvailableTimesReturnsCopy(t *testing.T) {
	cal := New([]string{"10:00", "09:00"}, nil)

	first := cal.AvailableTimes("2025-06-01")
	assert.Equal(t, []string{"09:00", "10:00"}, first, "custom defaults are sorted")

	first[0] = "mutated"
	assert.Equal(t, []string{"09:00", "10:00"}, cal.AvailableTimes("2025-06-01"))
}

func TestAllows(t *testing.T) {
	cal := New(nil, map[string][]string{"2025-12-25": {}})

	assert.True(t, cal.Allows("2025-06-01", "15:00"))
	assert.False(t, cal.Allows("2025-06-01", "18:00"))
	assert.False(t, cal.Allows("2025-12-25", "09:00"))
}
