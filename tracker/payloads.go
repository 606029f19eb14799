/*
payloads.go - Upstream wire shapes

PURPOSE:
  The raw JSON shapes the time-tracking service returns, as loose structs.
  The crossover client decodes into these; the aggregator and reconciler
  consume them. Field presence is never guaranteed upstream — every
  consumer degrades missing or malformed fields to safe defaults.

NOTE ON SHAPES:
  The service is undocumented and inconsistent: list responses arrive as a
  bare array, a paginated {content: [...]}, or a single bare object. That
  heterogeneity is normalized at the HTTP boundary (crossover/normalize.go)
  before these structs are ever decoded.
*/
package tracker

import "github.com/shopspring/decimal"

// =============================================================================
// TIMESHEET PAYLOAD
// =============================================================================

// TimesheetRecord is one record of the weekly timesheet response. Only the
// first record of a response carries meaning. TotalHours and HourWorked are
// alternate spellings of the same value across API versions.
type TimesheetRecord struct {
	TotalHours    float64    `json:"totalHours"`
	HourWorked    float64    `json:"hourWorked"`
	AveragePerDay float64    `json:"averageHoursPerDay"`
	Stats         []DayHours `json:"stats"`
}

// ReportedTotal returns whichever total field the record carries.
func (r TimesheetRecord) ReportedTotal() float64 {
	if r.TotalHours != 0 {
		return r.TotalHours
	}
	return r.HourWorked
}

// =============================================================================
// MANUAL TIME PAYLOAD
// =============================================================================

// ManualGroup is one submitting user's group of manual time entries.
type ManualGroup struct {
	UserID      int64        `json:"userId"`
	FullName    string       `json:"fullName"`
	JobTitle    string       `json:"jobTitle"`
	ManualTimes []ManualTime `json:"manualTimes"`
}

// ManualTime is a single manual time entry awaiting review.
type ManualTime struct {
	Status          string  `json:"status"`
	DurationMinutes int     `json:"durationMinutes"`
	Description     string  `json:"description"`
	StartDateTime   string  `json:"startDateTime"`
	Type            string  `json:"type"` // WEB or MOBILE
	TimecardIDs     []int64 `json:"timecardIds"`
}

// =============================================================================
// OVERTIME PAYLOAD
// =============================================================================

// OvertimeEntry wraps one overtime request together with the assignment
// data needed to resolve the requester's display identity.
type OvertimeEntry struct {
	OvertimeRequest  *OvertimeRequest `json:"overtimeRequest"`
	Assignment       *Assignment      `json:"assignment"`
	TotalHoursWorked float64          `json:"totalHoursWorked"`
}

// OvertimeRequest is the request body itself.
type OvertimeRequest struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	OvertimePeriod int             `json:"overtimePeriod"` // minutes
	OvertimeCost   decimal.Decimal `json:"overtimeCost"`
	Memo           string          `json:"memo"`
	CreatedOn      string          `json:"createdOn"`
	WeekStartDate  string          `json:"weekStartDate"`
}

// Assignment carries the nested candidate chain. Any link may be nil.
type Assignment struct {
	JobTitle  string          `json:"jobTitle"`
	Salary    decimal.Decimal `json:"salary"`
	Team      *TeamRef        `json:"team"`
	Manager   *UserRef        `json:"manager"`
	Selection *Selection      `json:"selection"`
}

type Selection struct {
	MarketplaceMember *MarketplaceMember `json:"marketplaceMember"`
}

type MarketplaceMember struct {
	Application *Application `json:"application"`
}

type Application struct {
	Candidate *Candidate `json:"candidate"`
}

// Candidate is the requester behind an overtime entry.
type Candidate struct {
	UserID        int64  `json:"userId"`
	PrintableName string `json:"printableName"`
}

// candidate walks the nested chain, tolerating nil at every link.
func (a *Assignment) candidate() *Candidate {
	if a == nil || a.Selection == nil || a.Selection.MarketplaceMember == nil ||
		a.Selection.MarketplaceMember.Application == nil {
		return nil
	}
	return a.Selection.MarketplaceMember.Application.Candidate
}

// =============================================================================
// PROFILE DETAIL PAYLOAD
// =============================================================================

// UserDetail is the identity endpoint's response: ids, rate, role and team
// linkage in one place.
type UserDetail struct {
	FullName    string       `json:"fullName"`
	Assignment  *Assignment  `json:"assignment"`
	UserAvatars []UserAvatar `json:"userAvatars"`
	AvatarTypes []string     `json:"avatarTypes"`
}

// UserAvatar maps an avatar type to its id. The CANDIDATE avatar id is the
// user id the timesheet API expects (not the login user id).
type UserAvatar struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// CandidateAvatarID returns the CANDIDATE avatar id, or 0 if absent.
func (d UserDetail) CandidateAvatarID() int64 {
	for _, av := range d.UserAvatars {
		if av.Type == "CANDIDATE" {
			return av.ID
		}
	}
	return 0
}

// HasManagerAvatar reports whether the MANAGER avatar type is present.
func (d UserDetail) HasManagerAvatar() bool {
	for _, t := range d.AvatarTypes {
		if t == "MANAGER" {
			return true
		}
	}
	return false
}

type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type UserRef struct {
	ID int64 `json:"id"`
}

// TeamAssignment is one row of the /teams/assignments fallback.
type TeamAssignment struct {
	Team      *TeamRef   `json:"team"`
	Manager   *UserRef   `json:"manager"`
	Candidate *Candidate `json:"candidate"`
}

// Team is one row of the /teams fallback (succeeds for managers only).
type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TeamOwner *TeamOwner `json:"teamOwner"`
}

type TeamOwner struct {
	UserID int64 `json:"userId"`
}
