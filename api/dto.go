/*
dto.go - HTTP response shapes

PURPOSE:
  The JSON contracts the widget frontend consumes. Kept separate from the
  domain structs so the wire format can hold formatting decisions (view
  levels, label strings) without polluting the aggregator.

VIEW LEVELS:
  compact:  hours and the deadline countdown, nothing else
  standard: compact plus earnings
  expanded: standard plus the per-day breakdown

SEE ALSO:
  - handlers.go: where these are assembled
*/
package api

import (
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/engine"
	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// SummaryDTO is the /api/summary response. Optional sections are nil
// outside their view level.
type SummaryDTO struct {
	TotalHours     float64   `json:"totalHours"`
	HoursRemaining float64   `json:"hoursRemaining"`
	TimeRemaining  string    `json:"timeRemaining"`
	Deadline       time.Time `json:"deadline"`
	Urgency        string    `json:"urgency"`

	// standard and up
	AverageHours   *float64 `json:"averageHoursPerDay,omitempty"`
	TodayHours     *float64 `json:"todayHours,omitempty"`
	WeeklyEarnings string   `json:"weeklyEarnings,omitempty"`
	TodayEarnings  string   `json:"todayEarnings,omitempty"`

	// expanded only
	Daily []tracker.DayHours `json:"daily,omitempty"`

	PendingApprovals int       `json:"pendingApprovals"`
	Cached           bool      `json:"cached,omitempty"`
	CachedAt         time.Time `json:"cachedAt,omitempty"`
	RanAt            time.Time `json:"ranAt"`
}

// toSummaryDTO projects a cycle result at the requested view level.
func toSummaryDTO(res *engine.Result, view string, now time.Time) SummaryDTO {
	s := res.Summary
	dto := SummaryDTO{
		TotalHours:       s.TotalHours,
		HoursRemaining:   s.HoursRemaining,
		TimeRemaining:    s.RemainingLabel,
		Deadline:         s.Deadline,
		Urgency:          string(weekly.Classify(now)),
		PendingApprovals: len(res.Approvals),
		Cached:           res.Cached,
		CachedAt:         res.CachedAt,
		RanAt:            res.RanAt,
	}
	if view == "compact" {
		return dto
	}

	avg, today := s.AverageHours, s.TodayHours
	dto.AverageHours = &avg
	dto.TodayHours = &today
	dto.WeeklyEarnings = s.WeeklyEarnings.StringFixed(2)
	dto.TodayEarnings = s.TodayEarnings.StringFixed(2)
	if view == "expanded" {
		dto.Daily = s.Daily
	}
	return dto
}

// ApprovalsDTO is the /api/approvals response.
type ApprovalsDTO struct {
	Items    []tracker.ApprovalItem `json:"items"`
	Count    int                    `json:"count"`
	Deadline time.Time              `json:"deadline"`
	RanAt    time.Time              `json:"ranAt"`
}

// ActionRequest selects one approval item by its stable key.
type ActionRequest struct {
	Key    string `json:"key"`
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
