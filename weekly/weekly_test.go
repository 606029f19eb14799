package weekly_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// =============================================================================
// DEADLINE TESTS
// =============================================================================

func TestDeadline_MidWeek(t *testing.T) {
	// GIVEN: A Wednesday
	// WHEN: Computing the deadline
	// THEN: The upcoming Sunday 23:59:59.999 UTC
	wednesday := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
	require.Equal(t, time.Wednesday, wednesday.Weekday())

	got := weekly.Deadline(wednesday)
	want := time.Date(2026, time.March, 8, 23, 59, 59, 999_000_000, time.UTC)
	assert.Equal(t, want, got)
}

func TestDeadline_SundayMidnight_SameDay(t *testing.T) {
	// GIVEN: Exactly Sunday 00:00:00 UTC
	// WHEN: Computing the deadline
	// THEN: The same day's 23:59:59.999, not next week
	sunday := time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Sunday, sunday.Weekday())

	got := weekly.Deadline(sunday)
	want := time.Date(2026, time.March, 8, 23, 59, 59, 999_000_000, time.UTC)
	assert.Equal(t, want, got)
}

func TestDeadline_NonUTCInput(t *testing.T) {
	// GIVEN: A local-time instant that is already Monday in UTC
	// WHEN: Computing the deadline
	// THEN: The UTC weekday decides, not the local one
	loc := time.FixedZone("UTC-5", -5*3600)
	// Sunday 22:00 local = Monday 03:00 UTC
	localSunday := time.Date(2026, time.March, 8, 22, 0, 0, 0, loc)
	require.Equal(t, time.Monday, localSunday.UTC().Weekday())

	got := weekly.Deadline(localSunday)
	want := time.Date(2026, time.March, 15, 23, 59, 59, 999_000_000, time.UTC)
	assert.Equal(t, want, got)
}

func TestRemaining_FinalMillisecond_Expired(t *testing.T) {
	// Expired is only reachable inside Sunday's final millisecond: once
	// Monday begins, the deadline rolls forward a week.
	deadline := time.Date(2026, time.March, 8, 23, 59, 59, 999_000_000, time.UTC)

	inFinalMs := deadline.Add(500 * time.Microsecond)
	assert.Negative(t, int64(weekly.Remaining(inFinalMs)))
	assert.Equal(t, weekly.UrgencyExpired, weekly.Classify(inFinalMs))

	monday := deadline.Add(time.Minute)
	assert.Positive(t, int64(weekly.Remaining(monday)))
	assert.Equal(t, weekly.UrgencyNone, weekly.Classify(monday))
}

// =============================================================================
// WEEK START TESTS
// =============================================================================

func TestWeekStart_SundayBased(t *testing.T) {
	wednesday := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01", weekly.WeekStart(wednesday))

	sunday := time.Date(2026, time.March, 1, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01", weekly.WeekStart(sunday), "Sunday is its own week start")
}

func TestMondayWeekStart(t *testing.T) {
	wednesday := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", weekly.MondayWeekStart(wednesday))

	// Sunday belongs to the week that started six days earlier
	sunday := time.Date(2026, time.March, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", weekly.MondayWeekStart(sunday))

	monday := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", weekly.MondayWeekStart(monday))
}

func TestMostRecentMonday_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	thursday := time.Date(2026, time.March, 5, 18, 45, 0, 0, loc)

	monday := weekly.MostRecentMonday(thursday)
	assert.Equal(t, time.Monday, monday.Weekday())
	assert.Equal(t, loc, monday.Location())
	assert.Equal(t, 0, monday.Hour())
}

// =============================================================================
// FORMATTING & URGENCY TESTS
// =============================================================================

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "3d 4h", weekly.FormatRemaining(76*time.Hour))
	assert.Equal(t, "2h 5m", weekly.FormatRemaining(2*time.Hour+5*time.Minute))
	assert.Equal(t, "45m", weekly.FormatRemaining(45*time.Minute))
	assert.Equal(t, "0m", weekly.FormatRemaining(-time.Hour))
}

func TestFormatCountdown_MinuteResolution(t *testing.T) {
	assert.Equal(t, "26h 15m", weekly.FormatCountdown(26*time.Hour+15*time.Minute))
	assert.Equal(t, "55m", weekly.FormatCountdown(55*time.Minute))
}

func TestClassify_Tiers(t *testing.T) {
	deadline := time.Date(2026, time.March, 8, 23, 59, 59, 999_000_000, time.UTC)

	cases := []struct {
		before time.Duration
		want   weekly.Urgency
	}{
		{14 * time.Hour, weekly.UrgencyNone},
		{11 * time.Hour, weekly.UrgencyLow},
		{2 * time.Hour, weekly.UrgencyHigh},
		{30 * time.Minute, weekly.UrgencyCritical},
		// Negative means after the deadline but still inside Sunday
		{-500 * time.Microsecond, weekly.UrgencyExpired},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, weekly.Classify(deadline.Add(-tc.before)), "at deadline-%v", tc.before)
	}
}
