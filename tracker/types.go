/*
Package tracker holds the domain model and the pure transformations of the
weekly tracking cycle.

PURPOSE:
  Defines the records that flow through a cycle (Profile, HoursSummary,
  ApprovalItem) and the two reductions that produce them: the hours
  aggregator (summary.go) and the approval reconciler (reconcile.go).
  Everything here is deterministic given its inputs — network and
  persistence live in the crossover and store packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Profile: the operator's resolved identity (ids, role, rate)
  - HoursSummary: one week's derived totals, immutable per fetch
  - ApprovalItem: a pending manual-time or overtime request
  - ItemKey: the stable identity used for dedup and change detection
  - NotificationState / CacheRecord: the two persisted state records

DESIGN PRINCIPLES:
  1. Money uses decimal.Decimal — never float arithmetic on earnings
  2. ItemKey is a structural sum type, not a formatted string; the string
     form exists only at the persistence boundary
  3. Summaries are recomputed whole, never mutated

SEE ALSO:
  - summary.go: raw timesheet -> HoursSummary
  - reconcile.go: raw payloads -> []ApprovalItem
  - store/sqlite: persistence of Profile, CacheRecord, NotificationState
*/
package tracker

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROFILE
// =============================================================================

// Role distinguishes the two cycle shapes: contributors only track hours,
// managers additionally reconcile pending approvals.
type Role string

const (
	RoleContributor Role = "contributor"
	RoleManager     Role = "manager"
)

// Environment selects which upstream deployment the client talks to.
type Environment string

const (
	EnvProd Environment = "prod"
	EnvQA   Environment = "qa"
)

// Profile is the operator's resolved identity and pay configuration.
// Loaded once at startup; individual fields are updated independently by
// the weekly refresher (never a whole-record overwrite).
type Profile struct {
	UserID        int64
	FullName      string
	ManagerID     int64
	PrimaryTeamID int64
	HourlyRate    decimal.Decimal
	Role          Role
	Environment   Environment
	LastRoleCheck time.Time
	SetupComplete bool
}

// IsManager reports whether the manager-shaped cycle applies.
func (p Profile) IsManager() bool { return p.Role == RoleManager }

// =============================================================================
// HOURS SUMMARY
// =============================================================================

// DayHours is one entry of the per-day breakdown.
type DayHours struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

// HoursSummary is the derived weekly record. Computed fresh from a raw
// timesheet payload on every cycle; the 40h target and the Sunday deadline
// are fixed policy constants, not configuration.
type HoursSummary struct {
	TotalHours      float64         `json:"totalHours"`
	AverageHours    float64         `json:"averageHoursPerDay"`
	TodayHours      float64         `json:"todayHours"`
	Daily           []DayHours      `json:"daily,omitempty"`
	WeeklyEarnings  decimal.Decimal `json:"weeklyEarnings"`
	TodayEarnings   decimal.Decimal `json:"todayEarnings"`
	HoursRemaining  float64         `json:"hoursRemaining"`
	Deadline        time.Time       `json:"deadline"`
	TimeRemaining   time.Duration   `json:"-"`
	RemainingLabel  string          `json:"timeRemaining"`
}

// TargetHours is the weekly hours target the summary counts down from.
const TargetHours = 40.0

// =============================================================================
// APPROVAL ITEMS
// =============================================================================

// ItemKind tags the two approval categories. Category ordering (manual
// first, overtime second) is a display convention, not a ranking.
type ItemKind string

const (
	KindManual   ItemKind = "manual"
	KindOvertime ItemKind = "overtime"
)

// SourceType records where a manual entry was logged from.
type SourceType string

const (
	SourceWeb    SourceType = "WEB"
	SourceMobile SourceType = "MOBILE"
)

// ApprovalItem is one pending request awaiting manager decision. A single
// struct covers both categories; Kind says which fields are meaningful
// (TimecardIDs for manual, OvertimeID/Cost/TotalHoursWorked for overtime).
type ApprovalItem struct {
	Kind            ItemKind        `json:"kind"`
	UserID          int64           `json:"userId"`
	FullName        string          `json:"fullName"`
	JobTitle        string          `json:"jobTitle"`
	DurationMinutes int             `json:"durationMinutes"`
	Hours           float64         `json:"hours"`
	Description     string          `json:"description"`
	StartedAt       string          `json:"startedAt"`
	WeekStart       string          `json:"weekStart"`

	// Manual only
	Source      SourceType `json:"source,omitempty"`
	TimecardIDs []int64    `json:"timecardIds,omitempty"`

	// Overtime only
	OvertimeID       int64           `json:"overtimeId,omitempty"`
	Cost             decimal.Decimal `json:"cost,omitempty"`
	TotalHoursWorked float64         `json:"totalHoursWorked,omitempty"`
}

// Key returns the item's stable identity.
func (it ApprovalItem) Key() ItemKey {
	if it.Kind == KindOvertime {
		return ItemKey{Kind: KindOvertime, OvertimeID: it.OvertimeID}
	}
	ids := make([]int64, len(it.TimecardIDs))
	copy(ids, it.TimecardIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ItemKey{Kind: KindManual, TimecardIDs: ids}
}

// =============================================================================
// ITEM KEY - Stable identity for dedup and change detection
// =============================================================================

// ItemKey identifies an approval item across cycles. Manual items are keyed
// by their sorted timecard id set, overtime items by the request id. The
// structural form avoids string-format collisions; String() exists for
// persistence and wire use only.
type ItemKey struct {
	Kind        ItemKind
	TimecardIDs []int64 // sorted; manual only
	OvertimeID  int64   // overtime only
}

// Equal reports structural equality.
func (k ItemKey) Equal(other ItemKey) bool {
	if k.Kind != other.Kind {
		return false
	}
	if k.Kind == KindOvertime {
		return k.OvertimeID == other.OvertimeID
	}
	if len(k.TimecardIDs) != len(other.TimecardIDs) {
		return false
	}
	for i := range k.TimecardIDs {
		if k.TimecardIDs[i] != other.TimecardIDs[i] {
			return false
		}
	}
	return true
}

// String renders the canonical persisted form: "mt-1,2,3" or "ot-42".
func (k ItemKey) String() string {
	if k.Kind == KindOvertime {
		return "ot-" + strconv.FormatInt(k.OvertimeID, 10)
	}
	parts := make([]string, len(k.TimecardIDs))
	for i, id := range k.TimecardIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "mt-" + strings.Join(parts, ",")
}

// ParseItemKey reads the canonical string form back into a structural key.
func ParseItemKey(s string) (ItemKey, bool) {
	switch {
	case strings.HasPrefix(s, "ot-"):
		id, err := strconv.ParseInt(s[3:], 10, 64)
		if err != nil {
			return ItemKey{}, false
		}
		return ItemKey{Kind: KindOvertime, OvertimeID: id}, true
	case strings.HasPrefix(s, "mt-"):
		raw := strings.Split(s[3:], ",")
		ids := make([]int64, 0, len(raw))
		for _, r := range raw {
			id, err := strconv.ParseInt(r, 10, 64)
			if err != nil {
				return ItemKey{}, false
			}
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ItemKey{Kind: KindManual, TimecardIDs: ids}, true
	}
	return ItemKey{}, false
}

// Keys extracts the identity set from an item sequence, preserving order.
func Keys(items []ApprovalItem) []ItemKey {
	keys := make([]ItemKey, len(items))
	for i, it := range items {
		keys[i] = it.Key()
	}
	return keys
}

// =============================================================================
// PERSISTED STATE RECORDS
// =============================================================================

// NotificationState is the last-seen identity set used for change
// detection. Mutated only by the notification engine, after every
// reconciliation pass — including passes with nothing new.
type NotificationState struct {
	LastSeenCount int
	LastSeenKeys  []ItemKey
	LastUpdatedAt time.Time
}

// CacheRecord is the last-known-good summary, substituted transparently
// when a live fetch fails. Reading it never mutates anything else.
type CacheRecord struct {
	Summary   HoursSummary
	ItemCount int
	CachedAt  time.Time
}
