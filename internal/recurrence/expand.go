package recurrence

import (
	"sort"
	"time"

	"github.com/agendo/calsync/internal/core/domain"
)

// maxOccurrences bounds generation regardless of window size, defending
// against pathological rules.
const maxOccurrences = 366

// Expand returns the ordered occurrence start instants of a rule that
// intersect the query window.
//
// The anchor start and end define the fixed occurrence duration. Generation
// begins one duration before the window so occurrences already in progress
// at the window start are included. An occurrence is never emitted before
// the anchor itself, never on a date in exdates (compared as calendar dates
// in the anchor's offset), and never past an UNTIL bound earlier than the
// window end. At most max occurrences are returned; max <= 0 applies the
// default cap. Excluded dates still consume COUNT.
func (r *Rule) Expand(anchorStart, anchorEnd, windowStart, windowEnd time.Time, exdates []time.Time, max int) []time.Time {
	if max <= 0 || max > maxOccurrences {
		max = maxOccurrences
	}

	zone := anchorZone(anchorStart)
	duration := anchorEnd.Sub(anchorStart)
	if duration <= 0 {
		duration = 15 * time.Minute
	}

	genEnd := windowEnd
	if until := r.untilIn(zone); until != nil && until.Before(genEnd) {
		genEnd = *until
	}
	if genEnd.Before(anchorStart) {
		return nil
	}

	gen, err := r.generator(anchorStart)
	if err != nil {
		return nil
	}

	excluded := make(map[string]struct{}, len(exdates))
	for _, ex := range exdates {
		excluded[dateKey(ex, zone)] = struct{}{}
	}

	candidates := gen.Between(windowStart.Add(-duration).In(zone), genEnd.In(zone), true)

	out := make([]time.Time, 0, len(candidates))
	for _, start := range candidates {
		if _, skip := excluded[dateKey(start, zone)]; skip {
			continue
		}
		// Keep only occurrences whose span intersects the query window.
		if !start.Before(windowEnd) || !start.Add(duration).After(windowStart) {
			continue
		}
		out = append(out, start)
		if len(out) == max {
			break
		}
	}
	return out
}

// Materialise expands a mixed set of event rows into the concrete
// occurrences intersecting the window: non-recurring rows pass through
// unchanged (with an empty parent reference) and recurring masters are
// expanded, each occurrence copying the parent's fields with concrete
// start and end instants. The result is ordered by start. Rows whose rule
// fails to parse are dropped rather than failing the whole set.
func Materialise(events []domain.Event, windowStart, windowEnd time.Time) []domain.Occurrence {
	var out []domain.Occurrence

	for _, e := range events {
		if !e.Recurring || e.RRule == "" {
			if e.StartsAt.Before(windowEnd) && e.EndsAt.After(windowStart) {
				out = append(out, domain.Occurrence{Event: e})
			}
			continue
		}

		rule, err := Parse(e.RRule)
		if err != nil {
			continue
		}

		end := windowEnd
		if e.RepeatsUntil != nil && e.RepeatsUntil.Before(end) {
			end = *e.RepeatsUntil
		}

		duration := e.Duration()
		for _, start := range rule.Expand(e.StartsAt, e.StartsAt.Add(duration), windowStart, end, e.ExDates, 0) {
			occ := e
			occ.StartsAt = start
			occ.EndsAt = start.Add(duration)
			out = append(out, domain.Occurrence{ParentID: e.ID, Event: occ})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Event.StartsAt.Before(out[j].Event.StartsAt)
	})
	return out
}

// anchorZone returns a fixed location carrying the anchor's UTC offset.
// All rule arithmetic happens in this zone.
func anchorZone(anchor time.Time) *time.Location {
	_, offset := anchor.Zone()
	return time.FixedZone("anchor", offset)
}

// dateKey renders t's calendar date in the given zone, for exclusion checks.
func dateKey(t time.Time, zone *time.Location) string {
	return t.In(zone).Format("2006-01-02")
}
