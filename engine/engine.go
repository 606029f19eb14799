/*
Package engine orchestrates one tracker cycle end to end.

PURPOSE:
  A cycle is the unit of work the background runner and the /cycle/run
  endpoint share: authenticate, refresh the profile if due, fetch the
  week's data, aggregate, reconcile approvals, detect changes, plan
  reminders, persist. Everything upstream-shaped hides behind the
  Fetcher interface so tests drive cycles without a network.

CYCLE SHAPE BY ROLE:
  Contributors fetch the timesheet only. Managers additionally fetch the
  manual and overtime approval queues; those three fetches run
  concurrently because they are independent and the widget cadence
  cannot afford them in sequence.

DEGRADED MODE:
  A failed timesheet fetch — including an authentication failure —
  substitutes the last-known-good summary, tagged stale. A failed
  approval queue degrades to empty so the other queue still renders,
  and the change diff and reminder replan run on every manager cycle.
  Only "nothing live and nothing cached" is a cycle error. An
  authentication rejection invalidates stored credentials first either
  way.

SEE ALSO:
  - crossover/fetch.go: the live Fetcher
  - engine/refresher.go: the Monday profile refresh gate
  - engine/runner.go: the periodic driver
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaime-alvarez-trilogy/hourglass/notify"
	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// Fetcher is the upstream surface a cycle needs. *crossover.Client
// implements it.
type Fetcher interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	FetchTimesheet(ctx context.Context, token string, p tracker.Profile, now time.Time) ([]tracker.TimesheetRecord, error)
	FetchManualPending(ctx context.Context, token string, now time.Time) ([]tracker.ManualGroup, error)
	FetchOvertimePending(ctx context.Context, token string, now time.Time) ([]tracker.OvertimeEntry, error)
	FetchUserDetail(ctx context.Context, token string) (*tracker.UserDetail, error)
	FetchTeamAssignments(ctx context.Context, token string) ([]tracker.TeamAssignment, error)
	FetchTeams(ctx context.Context, token string) ([]tracker.Team, error)
	ApproveManual(ctx context.Context, token string, approverID int64, timecardIDs []int64) error
	RejectManual(ctx context.Context, token string, approverID int64, timecardIDs []int64, reason string) error
	ApproveOvertime(ctx context.Context, token string, overtimeID int64) error
	RejectOvertime(ctx context.Context, token string, overtimeID int64, memo string) error
}

// Store is the persistence surface a cycle needs. *sqlite.Store
// implements it.
type Store interface {
	LoadProfile(ctx context.Context) (*tracker.Profile, error)
	UpdateProfileFields(ctx context.Context, fields map[string]any) error
	InvalidateCredentials(ctx context.Context) error
	LoadCache(ctx context.Context) (*tracker.CacheRecord, error)
	SaveCache(ctx context.Context, rec tracker.CacheRecord) error
	LoadNotificationState(ctx context.Context) (*tracker.NotificationState, error)
	SaveNotificationState(ctx context.Context, st tracker.NotificationState) error
}

// Credentials are the operator's upstream login, environment-sourced.
type Credentials struct {
	Username string
	Password string
}

// Result is what one cycle produced for rendering.
type Result struct {
	Summary   tracker.HoursSummary    `json:"summary"`
	Approvals []tracker.ApprovalItem  `json:"approvals,omitempty"`
	Cached    bool                    `json:"cached,omitempty"`
	CachedAt  time.Time               `json:"cachedAt,omitempty"`
	RanAt     time.Time               `json:"ranAt"`
}

// Engine runs cycles and approval actions against one upstream account.
type Engine struct {
	client   Fetcher
	store    Store
	notifier *notify.Engine
	creds    Credentials
}

// New assembles an engine. The notifier shares the engine's store.
func New(client Fetcher, store Store, sched notify.Scheduler, creds Credentials) *Engine {
	return &Engine{
		client:   client,
		store:    store,
		notifier: notify.NewEngine(sched, store),
		creds:    creds,
	}
}

// =============================================================================
// CYCLE
// =============================================================================

// Cycle runs one full refresh and returns what should be rendered.
func (e *Engine) Cycle(ctx context.Context, now time.Time) (*Result, error) {
	p, token, err := e.session(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrConfigIncomplete) {
			return nil, err
		}
		// Any live auth failure still renders the last-known-good
		// summary when one exists.
		return e.cachedResult(ctx, now, err)
	}

	// Weekly profile refresh is best-effort; a failed refresh must not
	// cost the cycle.
	if refreshed, err := e.maybeRefresh(ctx, token, *p, now); err != nil {
		log.Printf("[Cycle] profile refresh failed: %v", err)
	} else if refreshed != nil {
		p = refreshed
	}

	records, items, fetchErrs := e.fetchAll(ctx, token, *p, now)
	if auth := firstAuth(fetchErrs); auth != nil {
		if ierr := e.store.InvalidateCredentials(ctx); ierr != nil {
			log.Printf("[Cycle] credential invalidation failed: %v", ierr)
		}
		return e.cachedResult(ctx, now, auth)
	}

	res := &Result{RanAt: now}

	if fetchErrs["timesheet"] == nil {
		res.Summary = tracker.Summarize(records, p.HourlyRate, now)
		if err := e.store.SaveCache(ctx, tracker.CacheRecord{
			Summary:   res.Summary,
			ItemCount: len(items),
			CachedAt:  now,
		}); err != nil {
			log.Printf("[Cycle] cache save failed: %v", err)
		}
	} else {
		rec := e.staleCache(ctx)
		if rec == nil {
			return nil, fmt.Errorf("timesheet unavailable and nothing cached: %w", fetchErrs["timesheet"])
		}
		res.Summary = rec.Summary
		res.Cached = true
		res.CachedAt = rec.CachedAt
	}

	if p.IsManager() {
		// A downed queue degrades to empty rather than suppressing the
		// diff: the other queue's items still render and alert, and the
		// reminder set is replanned every cycle so an emptied queue
		// drops its stale reminders.
		for _, q := range []string{"manual", "overtime"} {
			if fetchErrs[q] != nil {
				log.Printf("[Cycle] %s queue unavailable, treating as empty: %v", q, fetchErrs[q])
			}
		}
		res.Approvals = items
		if _, err := e.notifier.Check(ctx, items, now); err != nil {
			log.Printf("[Cycle] change detection failed: %v", err)
		}
		e.notifier.ScheduleReminders(now, weekly.Deadline(now), len(items))
	}

	return res, nil
}

// staleCache loads the failover cache, tolerating load errors.
func (e *Engine) staleCache(ctx context.Context) *tracker.CacheRecord {
	rec, err := e.store.LoadCache(ctx)
	if err != nil {
		log.Printf("[Cycle] cache load failed: %v", err)
	}
	return rec
}

// cachedResult serves the failover cache as a stale-tagged result, or
// surfaces cause when nothing is cached.
func (e *Engine) cachedResult(ctx context.Context, now time.Time, cause error) (*Result, error) {
	rec := e.staleCache(ctx)
	if rec == nil {
		return nil, cause
	}
	log.Printf("[Cycle] serving cached summary: %v", cause)
	return &Result{
		Summary:  rec.Summary,
		Cached:   true,
		CachedAt: rec.CachedAt,
		RanAt:    now,
	}, nil
}

// session loads the profile and authenticates. A rejected login clears
// the setup flag so the operator re-onboards.
func (e *Engine) session(ctx context.Context) (*tracker.Profile, string, error) {
	p, err := e.store.LoadProfile(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load profile: %w", err)
	}
	if p == nil || !p.SetupComplete {
		return nil, "", tracker.ErrConfigIncomplete
	}

	token, err := e.client.Authenticate(ctx, e.creds.Username, e.creds.Password)
	if err != nil {
		if tracker.IsAuth(err) {
			if ierr := e.store.InvalidateCredentials(ctx); ierr != nil {
				log.Printf("[Cycle] credential invalidation failed: %v", ierr)
			}
		}
		return nil, "", err
	}
	return p, token, nil
}

// fetchAll runs the role-shaped fetch set. Manager queues and the
// timesheet are independent, so they go out concurrently; per-resource
// errors come back keyed so the caller can degrade selectively.
func (e *Engine) fetchAll(ctx context.Context, token string, p tracker.Profile, now time.Time) ([]tracker.TimesheetRecord, []tracker.ApprovalItem, map[string]error) {
	errs := map[string]error{}

	if !p.IsManager() {
		records, err := e.client.FetchTimesheet(ctx, token, p, now)
		errs["timesheet"] = err
		return records, nil, errs
	}

	var (
		records  []tracker.TimesheetRecord
		manual   []tracker.ManualGroup
		overtime []tracker.OvertimeEntry

		tsErr, manErr, otErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		records, tsErr = e.client.FetchTimesheet(ctx, token, p, now)
		return nil
	})
	g.Go(func() error {
		manual, manErr = e.client.FetchManualPending(ctx, token, now)
		return nil
	})
	g.Go(func() error {
		overtime, otErr = e.client.FetchOvertimePending(ctx, token, now)
		return nil
	})
	g.Wait()
	errs["timesheet"], errs["manual"], errs["overtime"] = tsErr, manErr, otErr

	items := tracker.Reconcile(manual, overtime, weekly.WeekStart(now))
	return records, items, errs
}

func firstAuth(errs map[string]error) error {
	for _, err := range errs {
		if err != nil && tracker.IsAuth(err) {
			return err
		}
	}
	return nil
}

// =============================================================================
// APPROVAL ACTIONS
// =============================================================================

// Approve authorizes the item behind key upstream.
func (e *Engine) Approve(ctx context.Context, key tracker.ItemKey) error {
	p, token, err := e.session(ctx)
	if err != nil {
		return err
	}
	if key.Kind == tracker.KindOvertime {
		return e.client.ApproveOvertime(ctx, token, key.OvertimeID)
	}
	return e.client.ApproveManual(ctx, token, p.UserID, key.TimecardIDs)
}

// Reject declines the item behind key upstream with an operator reason.
func (e *Engine) Reject(ctx context.Context, key tracker.ItemKey, reason string) error {
	p, token, err := e.session(ctx)
	if err != nil {
		return err
	}
	if key.Kind == tracker.KindOvertime {
		return e.client.RejectOvertime(ctx, token, key.OvertimeID, reason)
	}
	return e.client.RejectManual(ctx, token, p.UserID, key.TimecardIDs, reason)
}
