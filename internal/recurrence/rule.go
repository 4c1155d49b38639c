// Package recurrence converts provider recurrence rules into concrete
// occurrence instants.
//
// One generation core serves two call sites: ingestion (normalising the
// provider's rule lines when a recurring master is merged) and local window
// expansion (materialising virtual occurrences for a query window).
// Occurrence iteration rides github.com/teambition/rrule-go; all calendar
// arithmetic happens in the anchor event's own UTC offset, converting to
// and from absolute instants at the boundary.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the base repetition unit of a rule.
type Frequency string

// Supported frequencies.
const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Rule is the parsed internal representation of a recurrence rule.
type Rule struct {
	// Freq is the repetition frequency.
	Freq Frequency

	// Interval is the step between repetitions, at least 1.
	Interval int

	// ByDay restricts weekly rules to specific weekdays. Empty means the
	// anchor's own weekday.
	ByDay []time.Weekday

	// ByMonthDay restricts monthly rules to specific days of the month.
	// Empty means the anchor's own day. Day numbers exceeding a month's
	// length are skipped for that month.
	ByMonthDay []int

	// ByHour, ByMinute and BySecond fix the occurrence time of day.
	// Nil means "take it from the anchor's local wall-clock time".
	ByHour   *int
	ByMinute *int
	BySecond *int

	// Count bounds the total number of occurrences, 0 for unbounded.
	Count int

	// Until bounds the recurrence in time, nil for unbounded.
	Until *time.Time

	// untilFloating marks an UNTIL value that carried no zone designator.
	// Its wall-clock reading is resolved in the anchor's offset at
	// generation time rather than in UTC.
	untilFloating bool
}

var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// Parse converts a rule string such as
// "FREQ=WEEKLY;BYDAY=MO,WE,FR;BYHOUR=19" into a Rule.
// A leading "RRULE:" prefix is tolerated.
func Parse(s string) (*Rule, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "RRULE:"))
	if s == "" {
		return nil, fmt.Errorf("recurrence: empty rule")
	}

	rule := &Rule{Interval: 1}
	for _, pair := range strings.Split(s, ";") {
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(pair[:eq]))
		val := strings.TrimSpace(pair[eq+1:])
		if val == "" {
			continue
		}

		switch key {
		case "FREQ":
			switch Frequency(strings.ToUpper(val)) {
			case Daily, Weekly, Monthly, Yearly:
				rule.Freq = Frequency(strings.ToUpper(val))
			default:
				return nil, fmt.Errorf("recurrence: unsupported frequency %q", val)
			}
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("recurrence: invalid interval %q", val)
			}
			rule.Interval = n
		case "BYDAY":
			for _, tok := range strings.Split(val, ",") {
				// Ordinal prefixes like "2MO" keep only the weekday letters.
				letters := strings.TrimFunc(strings.ToUpper(strings.TrimSpace(tok)), func(r rune) bool {
					return r < 'A' || r > 'Z'
				})
				day, ok := weekdayTokens[letters]
				if !ok {
					return nil, fmt.Errorf("recurrence: invalid weekday token %q", tok)
				}
				rule.ByDay = append(rule.ByDay, day)
			}
		case "BYMONTHDAY":
			for _, tok := range strings.Split(val, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(tok))
				if err != nil || n < 1 || n > 31 {
					return nil, fmt.Errorf("recurrence: invalid month day %q", tok)
				}
				rule.ByMonthDay = append(rule.ByMonthDay, n)
			}
		case "BYHOUR":
			rule.ByHour = parseClockPart(val, 23)
		case "BYMINUTE":
			rule.ByMinute = parseClockPart(val, 59)
		case "BYSECOND":
			rule.BySecond = parseClockPart(val, 59)
		case "COUNT":
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				rule.Count = n
			}
		case "UNTIL":
			until, floating, err := parseUntil(val)
			if err != nil {
				return nil, err
			}
			rule.Until = &until
			rule.untilFloating = floating
		}
	}

	if rule.Freq == "" {
		return nil, fmt.Errorf("recurrence: rule %q has no FREQ", s)
	}
	return rule, nil
}

func parseClockPart(val string, max int) *int {
	// Multi-valued BYHOUR style lists keep the first value only; the
	// provider emits a single value for the rules this engine stores.
	if i := strings.IndexByte(val, ','); i >= 0 {
		val = val[:i]
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 || n > max {
		return nil
	}
	return &n
}

// parseUntil reads an UNTIL value. Zone-less layouts float: their
// wall-clock reading is resolved in the anchor's offset later, the same
// way ExDates treats them. A date-only bound is inclusive through the
// whole day.
func parseUntil(val string) (time.Time, bool, error) {
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t, false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return t.Add(24*time.Hour - time.Second), true, nil
	}
	return time.Time{}, false, fmt.Errorf("recurrence: invalid UNTIL value %q", val)
}

// untilIn resolves the UNTIL bound against the anchor's zone. Floating
// values keep their wall clock; zoned values pass through unchanged.
func (r *Rule) untilIn(zone *time.Location) *time.Time {
	if r.Until == nil {
		return nil
	}
	u := *r.Until
	if r.untilFloating {
		u = time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, zone)
	}
	return &u
}

// Normalise produces the internal rule string from the provider's native
// recurrence lines (e.g. ["RRULE:FREQ=WEEKLY;BYDAY=MO,WE"]). The anchor's
// local wall-clock time is appended as BYHOUR/BYMINUTE/BYSECOND when the
// rule does not specify them, so the stored rule is self-contained.
// Returns "" when no RRULE line is present.
func Normalise(lines []string, anchorStart time.Time) string {
	var rule string
	for _, line := range lines {
		if strings.HasPrefix(line, "RRULE:") {
			rule = strings.TrimPrefix(line, "RRULE:")
			break
		}
	}
	if rule == "" {
		return ""
	}

	if !strings.Contains(rule, "BYHOUR") {
		rule += fmt.Sprintf(";BYHOUR=%d", anchorStart.Hour())
	}
	if !strings.Contains(rule, "BYMINUTE") {
		rule += fmt.Sprintf(";BYMINUTE=%d", anchorStart.Minute())
	}
	if !strings.Contains(rule, "BYSECOND") {
		rule += fmt.Sprintf(";BYSECOND=%d", anchorStart.Second())
	}
	return rule
}

// ExDates extracts excluded occurrence dates from the provider's rule
// lines. Values without a zone designator are read in the anchor's offset;
// unparseable values are dropped.
func ExDates(lines []string, anchorStart time.Time) []time.Time {
	zone := anchorZone(anchorStart)
	var out []time.Time
	for _, line := range lines {
		if !strings.HasPrefix(line, "EXDATE") {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		for _, val := range strings.Split(line[idx+1:], ",") {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			if t, err := time.Parse("20060102T150405Z", val); err == nil {
				out = append(out, t)
				continue
			}
			if t, err := time.ParseInLocation("20060102T150405", val, zone); err == nil {
				out = append(out, t)
				continue
			}
			if t, err := time.ParseInLocation("20060102", val, zone); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

var rruleFrequencies = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// generator builds the rrule iterator for this rule, anchored at the
// series start in the anchor's own offset. DTSTART carries the anchor's
// wall clock, so unset clock parts fall back to it naturally.
func (r *Rule) generator(anchorStart time.Time) (*rrule.RRule, error) {
	zone := anchorZone(anchorStart)
	opt := rrule.ROption{
		Freq:     rruleFrequencies[r.Freq],
		Interval: r.Interval,
		Dtstart:  anchorStart.In(zone),
		Count:    r.Count,
	}
	for _, day := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
	}
	opt.Bymonthday = r.ByMonthDay
	if r.ByHour != nil {
		opt.Byhour = []int{*r.ByHour}
	}
	if r.ByMinute != nil {
		opt.Byminute = []int{*r.ByMinute}
	}
	if r.BySecond != nil {
		opt.Bysecond = []int{*r.BySecond}
	}
	if until := r.untilIn(zone); until != nil {
		opt.Until = *until
	}
	return rrule.NewRRule(opt)
}

// Next returns the first occurrence instant strictly after the given time,
// or nil when the rule is exhausted by its COUNT or UNTIL bound.
func (r *Rule) Next(anchorStart, after time.Time) *time.Time {
	gen, err := r.generator(anchorStart)
	if err != nil {
		return nil
	}
	next := gen.After(after, false)
	if next.IsZero() {
		return nil
	}
	return &next
}
