/*
Package notify detects approval-queue changes and plans deadline reminders.

PURPOSE:
  Managers should hear about pending approvals exactly once per change and
  get escalating reminders as the weekly deadline closes in. This package
  owns both decisions; delivery is behind the Scheduler interface so the
  engine and tests stay transport-free.

CHANGE DETECTION:
  Items carry stable identity keys (tracker.ItemKey). A cycle's queue is
  diffed against the persisted last-seen set; only items whose key was
  never seen before count as new. Count changes alone never fire - an
  approval leaving the queue is silent. All new items in one cycle fold
  into a single grouped alert. The last-seen set is persisted after every
  check, alert or not.

REMINDER TIERS:
  No reminders while more than 12 hours remain or once the deadline has
  passed, and never for an empty queue. Inside the window:
    - hourly pings from 3 hours out until 1 hour remains
    - half-hourly pings through the final hour
    - one last ping 5 minutes before the deadline
  The message register escalates tier by tier, from informational through
  urgent to a final call.
  Every planned reminder shares the "deadline-" id prefix so the whole
  tier set cancels in one call before each replan. Ids are deterministic,
  so replanning an unchanged window is idempotent.

SEE ALSO:
  - weekly/weekly.go: deadline and countdown math
  - engine/cycle.go: invokes Check and PlanReminders for managers
*/
package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
	"github.com/jaime-alvarez-trilogy/hourglass/weekly"
)

// Alert is one notification to deliver. A zero At means "now".
type Alert struct {
	ID    string
	Title string
	Body  string
	At    time.Time
}

// Scheduler delivers alerts. Implementations must tolerate duplicate ids
// (last schedule wins) and CancelPrefix on nothing.
type Scheduler interface {
	Schedule(a Alert)
	CancelPrefix(prefix string)
}

// StateStore is the slice of persistence the engine needs.
type StateStore interface {
	LoadNotificationState(ctx context.Context) (*tracker.NotificationState, error)
	SaveNotificationState(ctx context.Context, st tracker.NotificationState) error
}

// Engine runs change detection against persisted state.
type Engine struct {
	sched Scheduler
	store StateStore
}

// NewEngine wires a change detector to its scheduler and state store.
func NewEngine(sched Scheduler, store StateStore) *Engine {
	return &Engine{sched: sched, store: store}
}

// =============================================================================
// CHANGE DETECTION
// =============================================================================

// Check diffs the current queue against the last-seen set, schedules at
// most one grouped alert for the newly appeared items, and persists the
// new state. It returns the alert it scheduled, or nil.
//
// The first ever check treats everything as new: an empty last-seen set
// is a real observation, not a special case.
func (e *Engine) Check(ctx context.Context, items []tracker.ApprovalItem, now time.Time) (*Alert, error) {
	prev, err := e.store.LoadNotificationState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notification state: %w", err)
	}

	var seen []tracker.ItemKey
	if prev != nil {
		seen = prev.LastSeenKeys
	}

	var fresh []tracker.ApprovalItem
	for _, it := range items {
		if !containsKey(seen, it.Key()) {
			fresh = append(fresh, it)
		}
	}

	var alert *Alert
	if len(fresh) > 0 {
		a := groupAlert(fresh)
		e.sched.Schedule(a)
		alert = &a
	}

	next := tracker.NotificationState{
		LastSeenCount: len(items),
		LastSeenKeys:  tracker.Keys(items),
		LastUpdatedAt: now,
	}
	if err := e.store.SaveNotificationState(ctx, next); err != nil {
		return alert, fmt.Errorf("save notification state: %w", err)
	}
	return alert, nil
}

func containsKey(keys []tracker.ItemKey, k tracker.ItemKey) bool {
	for _, have := range keys {
		if have.Equal(k) {
			return true
		}
	}
	return false
}

// groupAlert folds all new items into one notification: counts and hour
// totals per category, and the distinct submitter names.
func groupAlert(fresh []tracker.ApprovalItem) Alert {
	var manual, overtime int
	var manualHours, overtimeHours float64
	var names []string
	seenName := map[string]bool{}

	for _, it := range fresh {
		if it.Kind == tracker.KindOvertime {
			overtime++
			overtimeHours += it.Hours
		} else {
			manual++
			manualHours += it.Hours
		}
		if it.FullName != "" && !seenName[it.FullName] {
			seenName[it.FullName] = true
			names = append(names, it.FullName)
		}
	}
	sort.Strings(names)

	var parts []string
	if manual > 0 {
		parts = append(parts, fmt.Sprintf("%d manual (%.1fh)", manual, manualHours))
	}
	if overtime > 0 {
		parts = append(parts, fmt.Sprintf("%d overtime (%.1fh)", overtime, overtimeHours))
	}

	body := strings.Join(parts, ", ")
	if len(names) > 0 {
		body += " | " + strings.Join(names, ", ")
	}

	title := "New approval request"
	if len(fresh) > 1 {
		title = fmt.Sprintf("%d new approval requests", len(fresh))
	}
	return Alert{ID: "approvals-change", Title: title, Body: body}
}

// =============================================================================
// DEADLINE REMINDERS
// =============================================================================

// ReminderPrefix groups all deadline reminders for bulk cancellation.
const ReminderPrefix = "deadline-"

// PlanReminders computes the reminder tier set for the current window.
// Outside the 12-hour window, past the deadline, or with an empty queue
// the plan is empty.
func PlanReminders(now, deadline time.Time, itemCount int) []Alert {
	if itemCount == 0 {
		return nil
	}
	left := deadline.Sub(now)
	if left <= 0 || left > 12*time.Hour {
		return nil
	}

	earliest := now.Add(time.Minute)
	var alerts []Alert
	seq := 0
	add := func(at time.Time) {
		alerts = append(alerts, reminder(fmt.Sprintf("%s%d", ReminderPrefix, seq), at, deadline, itemCount))
		seq++
	}

	// Hourly until one hour remains
	start := deadline.Add(-3 * time.Hour)
	if start.Before(earliest) {
		start = earliest
	}
	for t := start; t.Before(deadline.Add(-time.Hour)); t = t.Add(time.Hour) {
		add(t)
	}

	// Half-hourly through the final hour
	start = deadline.Add(-time.Hour)
	if start.Before(earliest) {
		start = earliest
	}
	for t := start; t.Before(deadline.Add(-5 * time.Minute)); t = t.Add(30 * time.Minute) {
		add(t)
	}

	// Final call
	if final := deadline.Add(-5 * time.Minute); final.After(now) {
		alerts = append(alerts, reminder(ReminderPrefix+"final", final, deadline, itemCount))
	}
	return alerts
}

// reminder builds one tier alert. The register escalates with proximity:
// informational above an hour out, urgent inside the final hour, and a
// last-chance final call.
func reminder(id string, at, deadline time.Time, itemCount int) Alert {
	noun := "approvals"
	if itemCount == 1 {
		noun = "approval"
	}
	left := deadline.Sub(at)
	countdown := weekly.FormatCountdown(left)

	var title, body string
	switch {
	case left <= 5*time.Minute:
		title = "Approvals due now"
		body = fmt.Sprintf("Last chance: %d pending %s, %s left", itemCount, noun, countdown)
	case left <= time.Hour:
		title = "Approval deadline imminent"
		body = fmt.Sprintf("%d pending %s, only %s left", itemCount, noun, countdown)
	default:
		title = "Approval deadline approaching"
		body = fmt.Sprintf("%d pending %s, %s left", itemCount, noun, countdown)
	}
	return Alert{ID: id, Title: title, Body: body, At: at}
}

// ScheduleReminders replaces the pending reminder set with a fresh plan.
// Cancellation always runs, so a queue that just emptied drops its stale
// reminders too.
func (e *Engine) ScheduleReminders(now, deadline time.Time, itemCount int) []Alert {
	e.sched.CancelPrefix(ReminderPrefix)
	plan := PlanReminders(now, deadline, itemCount)
	for _, a := range plan {
		e.sched.Schedule(a)
	}
	return plan
}

// =============================================================================
// LOG SCHEDULER
// =============================================================================

// LogScheduler writes alerts to the process log. It is the default
// delivery sink; a desktop or webhook sink satisfies the same interface.
type LogScheduler struct {
	mu      sync.Mutex
	pending map[string]Alert
}

// NewLogScheduler returns a scheduler that logs deliveries.
func NewLogScheduler() *LogScheduler {
	return &LogScheduler{pending: make(map[string]Alert)}
}

// Schedule logs immediately for zero-time alerts and records future ones.
func (l *LogScheduler) Schedule(a Alert) {
	if a.At.IsZero() {
		log.Printf("[Notify] %s: %s", a.Title, a.Body)
		return
	}
	l.mu.Lock()
	l.pending[a.ID] = a
	l.mu.Unlock()
	log.Printf("[Notify] scheduled %s at %s: %s", a.ID, a.At.Format(time.RFC3339), a.Body)
}

// CancelPrefix drops every pending alert whose id starts with prefix.
func (l *LogScheduler) CancelPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.pending {
		if strings.HasPrefix(id, prefix) {
			delete(l.pending, id)
		}
	}
}
