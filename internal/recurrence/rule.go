// Package recurrence builds and maintains chains of repeating events linked
// through NextRepeatID.
package recurrence

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps a single chain.
const DefaultMaxOccurrences = 500

// ErrInvalidRule is returned for rules that cannot produce a series.
var ErrInvalidRule = errors.New("invalid repeat rule")

// Rule yields occurrence start times. The first element is always start;
// later ones are strictly increasing and not after until. At most max
// times are returned.
type Rule interface {
	Occurrences(start, until time.Time, max int) ([]time.Time, error)
}

// Offset repeats every Days days and Months months. Month steps that land
// past the end of a month clamp to its last day.
type Offset struct {
	Days   int
	Months int
}

func (o Offset) Occurrences(start, until time.Time, max int) ([]time.Time, error) {
	if o.Days < 0 || o.Months < 0 || (o.Days == 0 && o.Months == 0) {
		return nil, errors.Wrapf(ErrInvalidRule, "offset of %d days and %d months", o.Days, o.Months)
	}
	max = capOf(max)
	out := []time.Time{start}
	for k := 1; len(out) < max; k++ {
		next := addMonthsClamped(start, k*o.Months).AddDate(0, 0, k*o.Days)
		if next.After(until) {
			break
		}
		out = append(out, next)
	}
	return out, nil
}

// addMonthsClamped adds n months keeping the day of month where it exists,
// otherwise using the month's last day. time.AddDate would normalize
// Jan 31 + 1 month to Mar 2/3.
func addMonthsClamped(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// RRule repeats according to an RFC 5545 recurrence rule such as
// "FREQ=WEEKLY;BYDAY=MO,WE".
type RRule struct {
	Spec string
}

func (r RRule) Occurrences(start, until time.Time, max int) ([]time.Time, error) {
	spec := strings.TrimPrefix(strings.TrimSpace(r.Spec), "RRULE:")
	if spec == "" {
		return nil, errors.Wrap(ErrInvalidRule, "empty rrule")
	}
	rule, err := rrule.StrToRRule(spec)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRule, "rrule %q: %v", spec, err)
	}
	rule.DTStart(start)

	max = capOf(max)
	out := []time.Time{start}
	for _, t := range rule.Between(start, until, true) {
		if len(out) >= max {
			break
		}
		if !t.After(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func capOf(max int) int {
	if max <= 0 {
		return DefaultMaxOccurrences
	}
	return max
}
