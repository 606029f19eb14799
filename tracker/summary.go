/*
summary.go - Hours aggregation

PURPOSE:
  Reduces a raw weekly timesheet payload into the derived HoursSummary:
  totals, today's slice, earnings at the profile rate, remaining-to-target,
  and the deadline countdown.

INVARIANTS:
  - Deadline math always runs, even with no timesheet data at all
  - hoursRemaining = max(0, 40 - total); never negative
  - A zero-valued summary is valid data, not a failure

SEE ALSO:
  - weekly/weekly.go: deadline and countdown primitives
  - engine/cycle.go: caches the result on success
*/
package tracker

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// Summarize computes the HoursSummary for one fetch. records may be nil or
// empty; rate may be zero (a zero rate yields zero earnings and nothing
// else — hours and deadline math are independent of pay).
func Summarize(records []TimesheetRecord, rate decimal.Decimal, now time.Time) HoursSummary {
	deadline := weekly.Deadline(now)
	remaining := deadline.Sub(now)

	s := HoursSummary{
		HoursRemaining: TargetHours,
		WeeklyEarnings: decimal.Zero,
		TodayEarnings:  decimal.Zero,
		Deadline:       deadline,
		TimeRemaining:  remaining,
		RemainingLabel: weekly.FormatRemaining(remaining),
	}
	if len(records) == 0 {
		return s
	}

	first := records[0]
	s.TotalHours = first.ReportedTotal()
	s.AverageHours = first.AveragePerDay
	s.Daily = first.Stats

	today := now.UTC().Format("2006-01-02")
	for _, d := range first.Stats {
		if strings.HasPrefix(d.Date, today) {
			s.TodayHours = d.Hours
			break
		}
	}

	s.WeeklyEarnings = Earnings(rate, s.TotalHours)
	s.TodayEarnings = Earnings(rate, s.TodayHours)
	s.HoursRemaining = math.Max(0, TargetHours-s.TotalHours)
	return s
}

// Earnings multiplies an hourly rate by worked hours, rounded to cents.
func Earnings(rate decimal.Decimal, hours float64) decimal.Decimal {
	return rate.Mul(decimal.NewFromFloat(hours)).Round(2)
}

// RoundHours converts minutes to hours at the 1-decimal display precision
// used everywhere upstream.
func RoundHours(minutes int) float64 {
	return math.Round(float64(minutes)/60*10) / 10
}
