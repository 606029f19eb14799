package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaime-alvarez-trilogy/hourglass/notify"
	"github.com/jaime-alvarez-trilogy/hourglass/store/sqlite"
	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
)

// wednesday is a deterministic mid-week instant.
var wednesday = time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)

// fakeFetcher scripts upstream behavior per resource.
type fakeFetcher struct {
	authErr error

	records []tracker.TimesheetRecord
	tsErr   error

	manual []tracker.ManualGroup
	manErr error

	overtime []tracker.OvertimeEntry
	otErr    error

	detail     *tracker.UserDetail
	detailErr  error
	detailHits int

	assignments []tracker.TeamAssignment
	teams       []tracker.Team
	teamsErr    error

	manualCalls, overtimeCalls int
	actions                    []string
}

func (f *fakeFetcher) Authenticate(context.Context, string, string) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok", nil
}

func (f *fakeFetcher) FetchTimesheet(context.Context, string, tracker.Profile, time.Time) ([]tracker.TimesheetRecord, error) {
	return f.records, f.tsErr
}

func (f *fakeFetcher) FetchManualPending(context.Context, string, time.Time) ([]tracker.ManualGroup, error) {
	f.manualCalls++
	return f.manual, f.manErr
}

func (f *fakeFetcher) FetchOvertimePending(context.Context, string, time.Time) ([]tracker.OvertimeEntry, error) {
	f.overtimeCalls++
	return f.overtime, f.otErr
}

func (f *fakeFetcher) FetchUserDetail(context.Context, string) (*tracker.UserDetail, error) {
	f.detailHits++
	return f.detail, f.detailErr
}

func (f *fakeFetcher) FetchTeamAssignments(context.Context, string) ([]tracker.TeamAssignment, error) {
	return f.assignments, nil
}

func (f *fakeFetcher) FetchTeams(context.Context, string) ([]tracker.Team, error) {
	return f.teams, f.teamsErr
}

func (f *fakeFetcher) ApproveManual(_ context.Context, _ string, approverID int64, ids []int64) error {
	f.actions = append(f.actions, fmt.Sprintf("approve-manual:%d:%v", approverID, ids))
	return nil
}

func (f *fakeFetcher) RejectManual(_ context.Context, _ string, approverID int64, ids []int64, reason string) error {
	f.actions = append(f.actions, fmt.Sprintf("reject-manual:%d:%v:%s", approverID, ids, reason))
	return nil
}

func (f *fakeFetcher) ApproveOvertime(_ context.Context, _ string, id int64) error {
	f.actions = append(f.actions, fmt.Sprintf("approve-overtime:%d", id))
	return nil
}

func (f *fakeFetcher) RejectOvertime(_ context.Context, _ string, id int64, memo string) error {
	f.actions = append(f.actions, fmt.Sprintf("reject-overtime:%d:%s", id, memo))
	return nil
}

// recordingScheduler captures alert traffic.
type recordingScheduler struct {
	scheduled []notify.Alert
	cancelled []string
}

func (r *recordingScheduler) Schedule(a notify.Alert)     { r.scheduled = append(r.scheduled, a) }
func (r *recordingScheduler) CancelPrefix(prefix string)  { r.cancelled = append(r.cancelled, prefix) }

func newTestEngine(t *testing.T, f *fakeFetcher, role tracker.Role) (*Engine, *sqlite.Store, *recordingScheduler) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.SaveProfile(context.Background(), tracker.Profile{
		UserID:        100,
		FullName:      "Jordan Ferris",
		ManagerID:     911,
		PrimaryTeamID: 37,
		HourlyRate:    decimal.NewFromInt(50),
		Role:          role,
		Environment:   tracker.EnvProd,
		LastRoleCheck: wednesday.Add(-24 * time.Hour), // checked this week
		SetupComplete: true,
	}))

	sched := &recordingScheduler{}
	eng := New(f, st, sched, Credentials{Username: "jferris", Password: "pw"})
	return eng, st, sched
}

func weekRecords() []tracker.TimesheetRecord {
	return []tracker.TimesheetRecord{{TotalHours: 30, AveragePerDay: 6}}
}

func TestCycle_NoProfile_ConfigIncomplete(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	eng := New(&fakeFetcher{}, st, &recordingScheduler{}, Credentials{})

	_, err = eng.Cycle(context.Background(), wednesday)
	assert.ErrorIs(t, err, tracker.ErrConfigIncomplete)
}

func TestCycle_AuthRejection_InvalidatesCredentials(t *testing.T) {
	f := &fakeFetcher{authErr: fmt.Errorf("%w: bad login", tracker.ErrAuth)}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.True(t, tracker.IsAuth(err))

	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.False(t, p.SetupComplete)
}

func TestCycle_TransientAuthOutage_KeepsCredentials(t *testing.T) {
	f := &fakeFetcher{authErr: fmt.Errorf("%w: connection refused", tracker.ErrUnavailable)}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.Error(t, err)
	require.False(t, tracker.IsAuth(err))

	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.True(t, p.SetupComplete)
}

func TestCycle_Contributor_TimesheetOnly(t *testing.T) {
	f := &fakeFetcher{records: weekRecords()}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	res, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Summary.TotalHours)
	assert.True(t, res.Summary.WeeklyEarnings.Equal(decimal.NewFromInt(1500)))
	assert.False(t, res.Cached)
	assert.Empty(t, res.Approvals)
	assert.Zero(t, f.manualCalls)
	assert.Zero(t, f.overtimeCalls)

	// Success refreshes the failover cache
	rec, err := st.LoadCache(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 30.0, rec.Summary.TotalHours)
}

func TestCycle_Manager_FetchesQueuesAndNotifies(t *testing.T) {
	f := &fakeFetcher{
		records: weekRecords(),
		manual: []tracker.ManualGroup{{
			UserID:   204,
			FullName: "Dana Ross",
			ManualTimes: []tracker.ManualTime{{
				Status:          "PENDING",
				DurationMinutes: 90,
				TimecardIDs:     []int64{11, 12},
			}},
		}},
		overtime: []tracker.OvertimeEntry{{
			OvertimeRequest: &tracker.OvertimeRequest{ID: 7, Status: "PENDING", OvertimePeriod: 120},
		}},
	}
	eng, st, sched := newTestEngine(t, f, tracker.RoleManager)
	ctx := context.Background()

	res, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)
	require.Len(t, res.Approvals, 2)
	assert.Equal(t, 1, f.manualCalls)
	assert.Equal(t, 1, f.overtimeCalls)

	// First sighting fires the grouped change alert
	require.NotEmpty(t, sched.scheduled)
	assert.Equal(t, "approvals-change", sched.scheduled[0].ID)
	// Reminder set is always replanned
	assert.Contains(t, sched.cancelled, notify.ReminderPrefix)

	ns, err := st.LoadNotificationState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ns)
	assert.Equal(t, 2, ns.LastSeenCount)
}

func TestCycle_TimesheetDown_ServesCache(t *testing.T) {
	f := &fakeFetcher{records: weekRecords()}
	eng, _, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	first, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)

	f.tsErr = &tracker.FetchError{Resource: "timesheet", Attempts: 3}
	second, err := eng.Cycle(ctx, wednesday.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, wednesday, second.CachedAt)
	assert.Equal(t, first.Summary.TotalHours, second.Summary.TotalHours)
}

func TestCycle_TimesheetDown_NothingCached_Errors(t *testing.T) {
	f := &fakeFetcher{tsErr: &tracker.FetchError{Resource: "timesheet", Attempts: 3}}
	eng, _, _ := newTestEngine(t, f, tracker.RoleContributor)

	_, err := eng.Cycle(context.Background(), wednesday)
	require.Error(t, err)
	assert.True(t, tracker.IsUnavailable(err))
}

func TestCycle_OneQueueDown_OtherStillAlerts(t *testing.T) {
	// GIVEN: The manual queue 502s while overtime has one pending item
	// WHEN: A manager cycle runs
	// THEN: The downed queue degrades to empty; the other renders, the
	// diff fires and the state persists
	f := &fakeFetcher{
		records: weekRecords(),
		manErr:  errors.New("status 502"),
		overtime: []tracker.OvertimeEntry{{
			OvertimeRequest: &tracker.OvertimeRequest{ID: 7, Status: "PENDING", OvertimePeriod: 120},
		}},
	}
	eng, st, sched := newTestEngine(t, f, tracker.RoleManager)
	ctx := context.Background()

	res, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Summary.TotalHours)
	require.Len(t, res.Approvals, 1)

	require.NotEmpty(t, sched.scheduled)
	assert.Equal(t, "approvals-change", sched.scheduled[0].ID)
	assert.Contains(t, sched.cancelled, notify.ReminderPrefix)

	ns, err := st.LoadNotificationState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ns)
	assert.Equal(t, 1, ns.LastSeenCount)
}

func TestCycle_EmptyOvertimeQueue_ManualStillAlerts(t *testing.T) {
	// An empty queue is an answer, not an outage: one pending manual item
	// with nothing in overtime must alert.
	f := &fakeFetcher{
		records: weekRecords(),
		manual: []tracker.ManualGroup{{
			UserID:   204,
			FullName: "Dana Ross",
			ManualTimes: []tracker.ManualTime{{
				Status:          "PENDING",
				DurationMinutes: 90,
				TimecardIDs:     []int64{11, 12},
			}},
		}},
	}
	eng, st, sched := newTestEngine(t, f, tracker.RoleManager)
	ctx := context.Background()

	res, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)
	require.Len(t, res.Approvals, 1)

	require.NotEmpty(t, sched.scheduled)
	assert.Equal(t, "approvals-change", sched.scheduled[0].ID)

	ns, err := st.LoadNotificationState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ns)
	assert.Equal(t, 1, ns.LastSeenCount)
}

func TestCycle_QueueEmpties_StateAndRemindersClear(t *testing.T) {
	f := &fakeFetcher{
		records: weekRecords(),
		manual: []tracker.ManualGroup{{
			UserID:   204,
			FullName: "Dana Ross",
			ManualTimes: []tracker.ManualTime{{
				Status:          "PENDING",
				DurationMinutes: 90,
				TimecardIDs:     []int64{11},
			}},
		}},
	}
	eng, st, sched := newTestEngine(t, f, tracker.RoleManager)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)

	// Queue empties; the diff still runs and the reminder set reclears
	f.manual = nil
	_, err = eng.Cycle(ctx, wednesday.Add(5*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, []string{notify.ReminderPrefix, notify.ReminderPrefix}, sched.cancelled)
	ns, err := st.LoadNotificationState(ctx)
	require.NoError(t, err)
	require.NotNil(t, ns)
	assert.Equal(t, 0, ns.LastSeenCount)
	assert.Empty(t, ns.LastSeenKeys)
}

func TestCycle_AuthRejection_ServesCache(t *testing.T) {
	// GIVEN: One good cycle has filled the failover cache
	f := &fakeFetcher{records: weekRecords()}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)

	// WHEN: The next cycle's login is rejected outright
	f.authErr = fmt.Errorf("%w: bad login", tracker.ErrAuth)
	res, err := eng.Cycle(ctx, wednesday.Add(5*time.Minute))

	// THEN: The stale summary renders; credentials are still invalidated
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Cached)
	assert.Equal(t, wednesday, res.CachedAt)
	assert.Equal(t, 30.0, res.Summary.TotalHours)

	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.False(t, p.SetupComplete)
}

func TestCycle_TransientAuthOutage_ServesCache(t *testing.T) {
	f := &fakeFetcher{records: weekRecords()}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)

	f.authErr = fmt.Errorf("%w: connection refused", tracker.ErrUnavailable)
	res, err := eng.Cycle(ctx, wednesday.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Cached)

	// An outage is not a rejection; credentials survive
	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.True(t, p.SetupComplete)
}

func TestCycle_ExpiredToken_ServesCacheAndInvalidates(t *testing.T) {
	f := &fakeFetcher{records: weekRecords()}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.NoError(t, err)

	// Token accepted at login but rejected mid-cycle
	f.tsErr = fmt.Errorf("%w: status 401", tracker.ErrAuth)
	res, err := eng.Cycle(ctx, wednesday.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.Cached)

	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.False(t, p.SetupComplete)
}

func TestCycle_ExpiredToken_InvalidatesCredentials(t *testing.T) {
	f := &fakeFetcher{tsErr: fmt.Errorf("%w: status 401", tracker.ErrAuth)}
	eng, st, _ := newTestEngine(t, f, tracker.RoleContributor)
	ctx := context.Background()

	_, err := eng.Cycle(ctx, wednesday)
	require.True(t, tracker.IsAuth(err))

	p, err := st.LoadProfile(ctx)
	require.NoError(t, err)
	assert.False(t, p.SetupComplete)
}

func TestApprove_DispatchesByKind(t *testing.T) {
	f := &fakeFetcher{}
	eng, _, _ := newTestEngine(t, f, tracker.RoleManager)
	ctx := context.Background()

	require.NoError(t, eng.Approve(ctx, tracker.ItemKey{Kind: tracker.KindManual, TimecardIDs: []int64{11, 12}}))
	require.NoError(t, eng.Approve(ctx, tracker.ItemKey{Kind: tracker.KindOvertime, OvertimeID: 7}))
	require.NoError(t, eng.Reject(ctx, tracker.ItemKey{Kind: tracker.KindOvertime, OvertimeID: 9}, "duplicate"))

	assert.Equal(t, []string{
		"approve-manual:100:[11 12]",
		"approve-overtime:7",
		"reject-overtime:9:duplicate",
	}, f.actions)
}
