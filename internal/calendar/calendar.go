// Package calendar decides which times can ever be offered on a given date.
// It is the source of truth for bookable slots, independent of what is
// already booked.
package calendar

import (
	"fmt"
	"sort"
)

// Calendar maps dates to bookable time-of-day values. A date present in the
// overrides map uses exactly that entry (possibly empty, e.g. a closed day);
// every other date uses the default list.
type Calendar struct {
	defaults  []string
	overrides map[string][]string
}

// DefaultSlots returns the standard hourly business-hours list, 09:00 through 16:00.
func DefaultSlots() []string {
	slots := make([]string, 0, 8)
	for hour := 9; hour < 17; hour++ {
		slots = append(slots, fmt.Sprintf("%02d:00", hour))
	}
	return slots
}

// New creates a calendar. A nil or empty defaults list falls back to DefaultSlots.
func New(defaults []string, overrides map[string][]string) *Calendar {
	if len(defaults) == 0 {
		defaults = DefaultSlots()
	}
	return &Calendar{
		defaults:  sortedCopy(defaults),
		overrides: overrides,
	}
}

// AvailableTimes returns the ordered list of bookable times for a date.
// An empty result is an ordinary outcome, not an error.
func (c *Calendar) AvailableTimes(date string) []string {
	if entry, ok := c.overrides[date]; ok {
		return sortedCopy(entry)
	}
	return sortedCopy(c.defaults)
}

// Allows reports whether a time value may ever be booked on a date.
func (c *Calendar) Allows(date, timeValue string) bool {
	for _, t := range c.AvailableTimes(date) {
		if t == timeValue {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
