/*
refresher.go - weekly profile refresh

PURPOSE:
  Roles, rates and team linkage drift upstream. Once per ISO week, at the
  first cycle on or after Monday 00:00 local, the profile is re-derived
  from the identity endpoint and only the fields that actually changed
  are written back. The check timestamp is stamped even when the refresh
  fails, so one bad Monday costs one week's staleness, not a retry storm.

DERIVATION ORDER:
  1. /users/current/detail assignment: rate, manager, team, role
  2. team-assignments fallback when the assignment is absent
  3. owned-teams fallback: owning a team makes the operator a manager

SEE ALSO:
  - crossover/fetch.go: the three profile sources
  - store/sqlite: UpdateProfileFields, the field-level writer
*/
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// refreshDue reports whether the Monday gate has passed since the last
// check. A zero LastRoleCheck is always due.
func refreshDue(p tracker.Profile, now time.Time) bool {
	return p.LastRoleCheck.Before(weekly.MostRecentMonday(now))
}

// maybeRefresh runs the weekly profile refresh when due. It returns the
// updated profile, or nil when nothing ran. The check timestamp persists
// unconditionally once the gate fires.
func (e *Engine) maybeRefresh(ctx context.Context, token string, p tracker.Profile, now time.Time) (*tracker.Profile, error) {
	if !refreshDue(p, now) {
		return nil, nil
	}

	updated, refreshErr := e.refresh(ctx, token, p)
	if updated == nil {
		updated = &p
	}
	updated.LastRoleCheck = now

	fields := diffProfileFields(p, *updated)
	fields["last_role_check"] = now.UTC().Format(time.RFC3339Nano)
	if err := e.store.UpdateProfileFields(ctx, fields); err != nil {
		return nil, fmt.Errorf("persist profile refresh: %w", err)
	}
	if refreshErr != nil {
		return updated, fmt.Errorf("profile refresh: %w", refreshErr)
	}
	log.Printf("[Refresh] profile checked, %d field(s) changed", len(fields)-1)
	return updated, nil
}

// refresh re-derives the mutable profile fields from upstream.
func (e *Engine) refresh(ctx context.Context, token string, p tracker.Profile) (*tracker.Profile, error) {
	detail, err := e.client.FetchUserDetail(ctx, token)
	if err != nil {
		return nil, err
	}

	next := p
	if detail.FullName != "" {
		next.FullName = detail.FullName
	}
	if detail.HasManagerAvatar() {
		next.Role = tracker.RoleManager
	} else {
		next.Role = tracker.RoleContributor
	}

	if a := detail.Assignment; a != nil {
		if !a.Salary.IsZero() {
			next.HourlyRate = a.Salary
		}
		if a.Team != nil && a.Team.ID != 0 {
			next.PrimaryTeamID = a.Team.ID
		}
		if a.Manager != nil && a.Manager.ID != 0 {
			next.ManagerID = a.Manager.ID
		}
	} else {
		e.fillFromTeamAssignments(ctx, token, &next)
	}

	// Owning a team outranks the avatar signal
	if next.Role != tracker.RoleManager || next.PrimaryTeamID == 0 {
		e.fillFromOwnedTeams(ctx, token, detail, &next)
	}
	return &next, nil
}

// fillFromTeamAssignments resolves team and manager linkage from the
// assignments listing when the identity assignment is missing.
func (e *Engine) fillFromTeamAssignments(ctx context.Context, token string, p *tracker.Profile) {
	rows, err := e.client.FetchTeamAssignments(ctx, token)
	if err != nil {
		log.Printf("[Refresh] team-assignments fallback failed: %v", err)
		return
	}
	for _, row := range rows {
		if row.Candidate == nil || row.Candidate.UserID != p.UserID {
			continue
		}
		if row.Team != nil && row.Team.ID != 0 {
			p.PrimaryTeamID = row.Team.ID
		}
		if row.Manager != nil && row.Manager.ID != 0 {
			p.ManagerID = row.Manager.ID
		}
		return
	}
}

// fillFromOwnedTeams promotes the operator to manager when a team lists
// them as owner. The endpoint 403s for non-managers, which is itself an
// answer.
func (e *Engine) fillFromOwnedTeams(ctx context.Context, token string, detail *tracker.UserDetail, p *tracker.Profile) {
	teams, err := e.client.FetchTeams(ctx, token)
	if err != nil {
		return
	}
	candidateID := detail.CandidateAvatarID()
	for _, t := range teams {
		if t.TeamOwner == nil {
			continue
		}
		if t.TeamOwner.UserID == p.UserID || (candidateID != 0 && t.TeamOwner.UserID == candidateID) {
			p.Role = tracker.RoleManager
			if p.PrimaryTeamID == 0 && t.ID != 0 {
				p.PrimaryTeamID = t.ID
			}
			return
		}
	}
}

// diffProfileFields maps only the columns whose values changed.
func diffProfileFields(old, next tracker.Profile) map[string]any {
	fields := map[string]any{}
	if next.FullName != old.FullName {
		fields["full_name"] = next.FullName
	}
	if !next.HourlyRate.Equal(old.HourlyRate) {
		fields["hourly_rate"] = next.HourlyRate.String()
	}
	if next.Role != old.Role {
		fields["role"] = string(next.Role)
	}
	if next.ManagerID != old.ManagerID {
		fields["manager_id"] = next.ManagerID
	}
	if next.PrimaryTeamID != old.PrimaryTeamID {
		fields["primary_team_id"] = next.PrimaryTeamID
	}
	return fields
}
