/*
fetch.go - Multi-strategy fetch engine

PURPOSE:
  The upstream API's query-parameter requirements vary by account shape and
  are undocumented. Instead of guessing, each logical fetch declares an
  ordered list of request variants, degrading from most-specific (team +
  manager + user) to least (user only), and a generic first-non-empty-wins
  combinator evaluates them.

FAILURE HANDLING:
  Within the variant list, a variant that errors (transport, status, parse)
  is treated exactly like a variant that returned empty: logged at debug
  level and skipped. Only exhausting the whole list produces an error, and
  that error matches tracker.ErrUnavailable so callers fall back to cache
  uniformly. The one exception is a token rejection, which would fail every
  variant identically and so surfaces immediately as tracker.ErrAuth.

  Single-endpoint list fetches (the approval queues, the profile fallbacks)
  do not go through the combinator: an empty queue is a real answer there,
  not a miss, so only a transport or parse failure is an error.
*/
package crossover

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// strategy is one request variant of a logical fetch.
type strategy struct {
	name string
	url  string
}

// firstNonEmpty evaluates strategies in order and returns the first
// non-empty normalized response.
func (c *Client) firstNonEmpty(ctx context.Context, token, resource string, strategies []strategy) ([]json.RawMessage, error) {
	var lastErr error
	for _, s := range strategies {
		body, err := c.getBody(ctx, token, s.url)
		if err != nil {
			// A rejected token fails every variant the same way
			if tracker.IsAuth(err) {
				return nil, err
			}
			log.Printf("[Fetch] %s strategy %q failed: %v", resource, s.name, err)
			lastErr = err
			continue
		}
		elems, err := Normalize(body)
		if err != nil {
			log.Printf("[Fetch] %s strategy %q returned unparseable body: %v", resource, s.name, err)
			lastErr = err
			continue
		}
		if len(elems) > 0 {
			return elems, nil
		}
	}
	return nil, &tracker.FetchError{Resource: resource, Attempts: len(strategies), Last: lastErr}
}

// fetchList performs one authenticated list fetch where an empty response
// is a valid result, not a reason to keep looking.
func (c *Client) fetchList(ctx context.Context, token, resource, u string) ([]json.RawMessage, error) {
	body, err := c.getBody(ctx, token, u)
	if err != nil {
		if tracker.IsAuth(err) {
			return nil, err
		}
		return nil, &tracker.FetchError{Resource: resource, Attempts: 1, Last: err}
	}
	elems, err := Normalize(body)
	if err != nil {
		return nil, &tracker.FetchError{Resource: resource, Attempts: 1, Last: err}
	}
	return elems, nil
}

// =============================================================================
// TIMESHEET
// =============================================================================

// FetchTimesheet retrieves the current week's timesheet records, trying
// parameter variants from most to least specific.
func (c *Client) FetchTimesheet(ctx context.Context, token string, p tracker.Profile, now time.Time) ([]tracker.TimesheetRecord, error) {
	dateStr := now.UTC().Format("2006-01-02")
	base := c.base + "/api/timetracking/timesheets"

	var strategies []strategy
	if p.PrimaryTeamID != 0 && p.ManagerID != 0 {
		strategies = append(strategies, strategy{
			name: "team+manager+user",
			url: fmt.Sprintf("%s?date=%s&managerId=%d&period=WEEK&teamId=%d&userId=%d",
				base, dateStr, p.ManagerID, p.PrimaryTeamID, p.UserID),
		})
	}
	if p.ManagerID != 0 && p.ManagerID != p.UserID {
		strategies = append(strategies, strategy{
			name: "manager+user",
			url: fmt.Sprintf("%s?date=%s&managerId=%d&period=WEEK&userId=%d",
				base, dateStr, p.ManagerID, p.UserID),
		})
	}
	strategies = append(strategies, strategy{
		name: "user-only",
		url:  fmt.Sprintf("%s?date=%s&period=WEEK&userId=%d", base, dateStr, p.UserID),
	})

	elems, err := c.firstNonEmpty(ctx, token, "timesheet", strategies)
	if err != nil {
		return nil, err
	}
	return decodeAll[tracker.TimesheetRecord](elems), nil
}

// =============================================================================
// PENDING APPROVALS
// =============================================================================

// FetchManualPending retrieves manual-time groups awaiting review for the
// Sunday-based current week. No pending work is an empty slice, not an
// error.
func (c *Client) FetchManualPending(ctx context.Context, token string, now time.Time) ([]tracker.ManualGroup, error) {
	u := fmt.Sprintf("%s/api/timetracking/workdiaries/manual/pending?weekStartDate=%s",
		c.base, weekly.WeekStart(now))

	elems, err := c.fetchList(ctx, token, "manual", u)
	if err != nil {
		return nil, err
	}
	return decodeAll[tracker.ManualGroup](elems), nil
}

// FetchOvertimePending retrieves pending overtime requests. Overtime weeks
// are Monday-based upstream; an empty queue is a valid result.
func (c *Client) FetchOvertimePending(ctx context.Context, token string, now time.Time) ([]tracker.OvertimeEntry, error) {
	u := fmt.Sprintf("%s/api/overtime/request?status=PENDING&weekStartDate=%s",
		c.base, weekly.MondayWeekStart(now))

	elems, err := c.fetchList(ctx, token, "overtime", u)
	if err != nil {
		return nil, err
	}
	return decodeAll[tracker.OvertimeEntry](elems), nil
}

// =============================================================================
// PROFILE LOOKUPS
// =============================================================================

// FetchUserDetail retrieves the identity record the weekly refresher
// resolves role, team linkage and rate from.
func (c *Client) FetchUserDetail(ctx context.Context, token string) (*tracker.UserDetail, error) {
	var detail tracker.UserDetail
	if err := c.getJSON(ctx, token, c.base+"/api/identity/users/current/detail", &detail); err != nil {
		return nil, &tracker.FetchError{Resource: "profile", Attempts: 1, Last: err}
	}
	return &detail, nil
}

// FetchTeamAssignments is the first fallback when the detail endpoint
// yields no assignment.
func (c *Client) FetchTeamAssignments(ctx context.Context, token string) ([]tracker.TeamAssignment, error) {
	q := url.Values{"avatarType": {"CANDIDATE"}, "status": {"ACTIVE"}, "page": {"0"}}
	u := c.base + "/api/v2/teams/assignments?" + q.Encode()

	elems, err := c.fetchList(ctx, token, "assignments", u)
	if err != nil {
		return nil, err
	}
	return decodeAll[tracker.TeamAssignment](elems), nil
}

// FetchTeams is the last fallback; it only succeeds for team owners, so a
// non-empty result also implies the manager role.
func (c *Client) FetchTeams(ctx context.Context, token string) ([]tracker.Team, error) {
	elems, err := c.fetchList(ctx, token, "teams", c.base+"/api/v2/teams")
	if err != nil {
		return nil, err
	}
	return decodeAll[tracker.Team](elems), nil
}

// =============================================================================
// APPROVAL ACTIONS
// =============================================================================

// manualDecision is the body both manual action endpoints take.
type manualDecision struct {
	ApproverID      int64   `json:"approverId"`
	TimecardIDs     []int64 `json:"timecardIds"`
	AllowOvertime   bool    `json:"allowOvertime,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
}

// ApproveManual approves a manual-time item by its timecard ids.
func (c *Client) ApproveManual(ctx context.Context, token string, approverID int64, timecardIDs []int64) error {
	return c.putJSON(ctx, token, c.base+"/api/timetracking/workdiaries/manual/approved",
		manualDecision{ApproverID: approverID, TimecardIDs: timecardIDs})
}

// RejectManual rejects a manual-time item with a reason.
func (c *Client) RejectManual(ctx context.Context, token string, approverID int64, timecardIDs []int64, reason string) error {
	if reason == "" {
		reason = "Rejected"
	}
	return c.putJSON(ctx, token, c.base+"/api/timetracking/workdiaries/manual/rejected",
		manualDecision{ApproverID: approverID, TimecardIDs: timecardIDs, RejectionReason: reason})
}

// ApproveOvertime approves one overtime request.
func (c *Client) ApproveOvertime(ctx context.Context, token string, overtimeID int64) error {
	return c.putJSON(ctx, token, c.base+"/api/overtime/request/approval/"+strconv.FormatInt(overtimeID, 10), nil)
}

// RejectOvertime rejects one overtime request with a memo.
func (c *Client) RejectOvertime(ctx context.Context, token string, overtimeID int64, memo string) error {
	if memo == "" {
		memo = "Rejected"
	}
	return c.putJSON(ctx, token, c.base+"/api/overtime/request/rejection/"+strconv.FormatInt(overtimeID, 10),
		map[string]string{"memo": memo})
}
