package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	dateTimeLayout = "2006-01-02 15:04"
)

// dateParser handles natural-language inputs like "tomorrow" or "next
// tuesday". Safe for concurrent use.
var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// NormalizePhone strips formatting and reduces a US number to ten digits.
// Returns the empty string when the input is not a usable number.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

// ResolveDate turns freeform caller input into a YYYY-MM-DD date. Empty or
// unparsable input defaults to tomorrow, matching how callers phrase open
// requests ("what do you have available?").
func ResolveDate(input string, now time.Time) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return now.AddDate(0, 0, 1).Format(dateLayout)
	}
	if t, err := time.ParseInLocation(dateLayout, input, now.Location()); err == nil {
		return t.Format(dateLayout)
	}
	if r, err := dateParser.Parse(input, now); err == nil && r != nil {
		return r.Time.Format(dateLayout)
	}
	return now.AddDate(0, 0, 1).Format(dateLayout)
}

// ResolveTime normalizes caller input to 24-hour HH:MM, accepting "3pm",
// "15:00", "3:30 PM" and natural phrases. Returns false when nothing usable
// was said.
func ResolveTime(input string, now time.Time) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	layouts := []string{timeLayout, "3:04 PM", "3:04PM", "3 PM", "3PM", "3:04 pm", "3:04pm", "3 pm", "3pm"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t.Format(timeLayout), true
		}
	}
	if r, err := dateParser.Parse(input, now); err == nil && r != nil {
		return r.Time.Format(timeLayout), true
	}
	return "", false
}

// CombineDateTime parses a normalized date and time pair into a moment in the
// given location.
func CombineDateTime(date, timeValue string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateTimeLayout, date+" "+timeValue, loc)
}

// FriendlyDate renders "2026-09-03" as "Wednesday, September 3" for speech.
func FriendlyDate(date string) string {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s, %s %d", t.Weekday(), t.Month(), t.Day())
}

// FriendlyTime renders "15:00" as "3:00 PM" for speech.
func FriendlyTime(timeValue string) string {
	t, err := time.Parse(timeLayout, timeValue)
	if err != nil {
		return timeValue
	}
	return t.Format("3:04 PM")
}
