package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Weekly(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;BYDAY=MO,WE,FR;BYHOUR=19;BYMINUTE=0;BYSECOND=0")
	require.NoError(t, err)

	assert.Equal(t, Weekly, rule.Freq)
	assert.Equal(t, 1, rule.Interval)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, rule.ByDay)
	require.NotNil(t, rule.ByHour)
	assert.Equal(t, 19, *rule.ByHour)
	require.NotNil(t, rule.ByMinute)
	assert.Equal(t, 0, *rule.ByMinute)
}

func TestParse_RRulePrefix(t *testing.T) {
	rule, err := Parse("RRULE:FREQ=DAILY;INTERVAL=2")
	require.NoError(t, err)
	assert.Equal(t, Daily, rule.Freq)
	assert.Equal(t, 2, rule.Interval)
}

func TestParse_OrdinalWeekdayTokens(t *testing.T) {
	// Ordinal prefixes keep only the weekday letters.
	rule, err := Parse("FREQ=WEEKLY;BYDAY=2MO,-1FR")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, rule.ByDay)
}

func TestParse_UntilAndCount(t *testing.T) {
	rule, err := Parse("FREQ=MONTHLY;BYMONTHDAY=1,15;UNTIL=20260415T000000Z;COUNT=10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 15}, rule.ByMonthDay)
	assert.Equal(t, 10, rule.Count)
	require.NotNil(t, rule.Until)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *rule.Until)

	dateOnly, err := Parse("FREQ=DAILY;UNTIL=20260415")
	require.NoError(t, err)
	require.NotNil(t, dateOnly.Until)
	assert.Equal(t, 2026, dateOnly.Until.Year())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		rule string
	}{
		{"empty", ""},
		{"no freq", "INTERVAL=2;BYDAY=MO"},
		{"unsupported freq", "FREQ=HOURLY"},
		{"bad interval", "FREQ=DAILY;INTERVAL=0"},
		{"bad weekday", "FREQ=WEEKLY;BYDAY=XX"},
		{"bad month day", "FREQ=MONTHLY;BYMONTHDAY=32"},
		{"bad until", "FREQ=DAILY;UNTIL=someday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.rule)
			assert.Error(t, err)
		})
	}
}

func TestNormalise(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 19, 0, 0, 0, time.FixedZone("", -3*60*60))

	rule := Normalise([]string{"RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE"}, anchor)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE;BYHOUR=19;BYMINUTE=0;BYSECOND=0", rule)

	// The normalised rule must parse.
	_, err := Parse(rule)
	assert.NoError(t, err)
}

func TestNormalise_KeepsExplicitClock(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 19, 0, 0, 0, time.FixedZone("", -3*60*60))

	rule := Normalise([]string{"RRULE:FREQ=DAILY;BYHOUR=8;BYMINUTE=30;BYSECOND=0"}, anchor)
	assert.Equal(t, "FREQ=DAILY;BYHOUR=8;BYMINUTE=30;BYSECOND=0", rule)
}

func TestNormalise_NoRuleLine(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	assert.Empty(t, Normalise(nil, anchor))
	assert.Empty(t, Normalise([]string{"EXDATE;TZID=America/Sao_Paulo:20260309T190000"}, anchor))
}

func TestRule_Next(t *testing.T) {
	zone := time.FixedZone("", -3*60*60)
	anchor := time.Date(2026, 3, 2, 19, 0, 0, 0, zone)

	rule, err := Parse("FREQ=WEEKLY")
	require.NoError(t, err)

	// A future anchor is itself the next occurrence.
	next := rule.Next(anchor, anchor.Add(-time.Hour))
	require.NotNil(t, next)
	assert.True(t, next.Equal(anchor))

	// Past anchor: step forward a week at a time.
	next = rule.Next(anchor, anchor.Add(48*time.Hour))
	require.NotNil(t, next)
	assert.True(t, next.Equal(anchor.AddDate(0, 0, 7)))
}

func TestRule_NextExhausted(t *testing.T) {
	anchor := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	counted, err := Parse("FREQ=DAILY;COUNT=3")
	require.NoError(t, err)
	assert.Nil(t, counted.Next(anchor, anchor.AddDate(0, 0, 30)))

	bounded, err := Parse("FREQ=DAILY;UNTIL=20260305T000000Z")
	require.NoError(t, err)
	assert.Nil(t, bounded.Next(anchor, anchor.AddDate(0, 0, 30)))
}
