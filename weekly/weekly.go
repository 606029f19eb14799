/*
Package weekly provides the calendar math for the weekly tracking cycle.

PURPOSE:
  Everything time-related lives here: week boundary calculation, the
  Sunday-midnight submission deadline, countdown formatting, and urgency
  classification. Pure functions of a supplied clock value — no wall-clock
  reads, so every caller (and every test) passes its own "now".

KEY CONCEPTS:
  - Two week conventions coexist upstream: manual-time queries use
    Sunday-based weeks, overtime queries and the role-refresh gate use
    Monday-based weeks. Both are exposed explicitly rather than hidden
    behind a single "week start".
  - The deadline is the upcoming Sunday 23:59:59.999 UTC. On a Sunday the
    deadline is that same day, not the following week.

SEE ALSO:
  - tracker/summary.go: consumes Deadline for HoursSummary
  - notify/notify.go: consumes Deadline and the countdown for reminders
*/
package weekly

import (
	"fmt"
	"time"
)

// =============================================================================
// WEEK BOUNDARIES
// =============================================================================

// WeekStart returns the Sunday-based start of the week containing now,
// formatted as YYYY-MM-DD in UTC. Used for manual-time pending queries.
func WeekStart(now time.Time) string {
	now = now.UTC()
	start := now.AddDate(0, 0, -int(now.Weekday()))
	return start.Format("2006-01-02")
}

// MondayWeekStart returns the Monday-based start of the week containing now,
// formatted as YYYY-MM-DD in UTC. Used for overtime queries.
func MondayWeekStart(now time.Time) string {
	return MostRecentMonday(now.UTC()).Format("2006-01-02")
}

// MostRecentMonday returns midnight of the most recent Monday on or before
// now, in now's location. Sunday counts as six days past Monday.
func MostRecentMonday(now time.Time) time.Time {
	offset := int(now.Weekday()) - 1
	if now.Weekday() == time.Sunday {
		offset = 6
	}
	monday := now.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
}

// =============================================================================
// DEADLINE
// =============================================================================

// Deadline returns the upcoming Sunday 23:59:59.999 UTC relative to now.
// If now falls on a Sunday the deadline is that same day.
func Deadline(now time.Time) time.Time {
	now = now.UTC()
	daysUntilSunday := 0
	if wd := now.Weekday(); wd != time.Sunday {
		daysUntilSunday = 7 - int(wd)
	}
	d := now.AddDate(0, 0, daysUntilSunday)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999_000_000, time.UTC)
}

// Remaining returns the time left until the deadline. Negative once the
// deadline has passed; callers treat <= 0 as expired.
func Remaining(now time.Time) time.Duration {
	return Deadline(now).Sub(now)
}

// =============================================================================
// COUNTDOWN FORMATTING
// =============================================================================

// FormatRemaining renders a duration at day resolution for summaries:
// "3d 4h", "2h 5m", "45m".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours >= 24 {
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatCountdown renders a duration at minute resolution for reminder
// messages: "2h 5m", "45m".
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMin := int(d.Minutes())
	hours := totalMin / 60
	minutes := totalMin % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// =============================================================================
// URGENCY CLASSIFICATION
// =============================================================================

// Urgency classifies how close the deadline is. It drives both reminder
// severity and rendering hints on the API surface.
type Urgency string

const (
	UrgencyNone     Urgency = "none"     // more than 12h out
	UrgencyLow      Urgency = "low"      // within 12h
	UrgencyHigh     Urgency = "high"     // within 3h
	UrgencyCritical Urgency = "critical" // within 1h
	UrgencyExpired  Urgency = "expired"  // deadline passed
)

// Classify returns the urgency tier for the deadline relative to now.
func Classify(now time.Time) Urgency {
	hoursLeft := Remaining(now).Hours()
	switch {
	case hoursLeft <= 0:
		return UrgencyExpired
	case hoursLeft <= 1:
		return UrgencyCritical
	case hoursLeft <= 3:
		return UrgencyHigh
	case hoursLeft <= 12:
		return UrgencyLow
	default:
		return UrgencyNone
	}
}
