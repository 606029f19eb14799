/*
Package sqlite persists the tracker's three state records.

PURPOSE:
  One small SQLite database holds the operator Profile, the failover
  CacheRecord, and the NotificationState. Each record lives in its own
  single-row table and every write is one statement, so a torn-down
  process leaves each record individually consistent regardless of which
  later steps never ran.

RECORD SEMANTICS:
  profile:            field-level UPDATEs only after creation - the weekly
                      refresher must never clobber unrelated fields
  cache_record:       unconditional replace on every successful aggregate
  notification_state: unconditional replace after every reconciliation pass

FIRST RUN:
  Absence of any record returns (nil, nil), never an error. "Nothing
  cached" and "nothing seen" are ordinary states.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash
  recovery. A widget-cadence workload has no meaningful write
  concurrency, but the mutex keeps the driver honest under tests.

USAGE:
  st, err := sqlite.New("./hourglass.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - tracker/types.go: the record definitions
  - engine/cycle.go: the only cycle-time writer
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/jaime-alvarez-trilogy/hourglass/tracker"
)

// Store implements state persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the state database. Use ":memory:" in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Operator profile (single row)
	CREATE TABLE IF NOT EXISTS profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id INTEGER NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		manager_id INTEGER NOT NULL DEFAULT 0,
		primary_team_id INTEGER NOT NULL DEFAULT 0,
		hourly_rate TEXT NOT NULL DEFAULT '0',
		role TEXT NOT NULL DEFAULT 'contributor',
		environment TEXT NOT NULL DEFAULT 'prod',
		last_role_check TEXT NOT NULL DEFAULT '',
		setup_complete INTEGER NOT NULL DEFAULT 0
	);

	-- Last-known-good summary (single row, replaced whole)
	CREATE TABLE IF NOT EXISTS cache_record (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		summary_json TEXT NOT NULL,
		item_count INTEGER NOT NULL,
		cached_at TEXT NOT NULL
	);

	-- Last-seen identity set (single row, replaced whole)
	CREATE TABLE IF NOT EXISTS notification_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		last_count INTEGER NOT NULL,
		last_keys_json TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROFILE
// =============================================================================

// SaveProfile writes the whole profile record. Intended for initial setup
// and tests; cycle-time mutation goes through UpdateProfileFields.
func (s *Store) SaveProfile(ctx context.Context, p tracker.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	setup := 0
	if p.SetupComplete {
		setup = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile (id, user_id, full_name, manager_id, primary_team_id,
			hourly_rate, role, environment, last_role_check, setup_complete)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id=excluded.user_id, full_name=excluded.full_name,
			manager_id=excluded.manager_id, primary_team_id=excluded.primary_team_id,
			hourly_rate=excluded.hourly_rate, role=excluded.role,
			environment=excluded.environment, last_role_check=excluded.last_role_check,
			setup_complete=excluded.setup_complete`,
		p.UserID, p.FullName, p.ManagerID, p.PrimaryTeamID,
		p.HourlyRate.String(), string(p.Role), string(p.Environment),
		formatTime(p.LastRoleCheck), setup)
	return err
}

// LoadProfile returns the stored profile, or (nil, nil) on first run.
func (s *Store) LoadProfile(ctx context.Context) (*tracker.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, manager_id, primary_team_id, hourly_rate,
		       role, environment, last_role_check, setup_complete
		FROM profile WHERE id = 1`)

	var p tracker.Profile
	var rate, lastCheck string
	var setup int
	err := row.Scan(&p.UserID, &p.FullName, &p.ManagerID, &p.PrimaryTeamID,
		&rate, (*string)(&p.Role), (*string)(&p.Environment), &lastCheck, &setup)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.HourlyRate, err = decimal.NewFromString(rate)
	if err != nil {
		p.HourlyRate = decimal.Zero
	}
	p.LastRoleCheck = parseTime(lastCheck)
	p.SetupComplete = setup != 0
	return &p, nil
}

// profileColumns whitelists the fields UpdateProfileFields may touch.
var profileColumns = map[string]bool{
	"user_id":         true,
	"full_name":       true,
	"manager_id":      true,
	"primary_team_id": true,
	"hourly_rate":     true,
	"role":            true,
	"last_role_check": true,
}

// UpdateProfileFields applies a partial, field-level update. Columns not
// named stay untouched. Unknown columns are an error rather than a silent
// no-op, since a typo here would defeat the weekly refresher.
func (s *Store) UpdateProfileFields(ctx context.Context, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !profileColumns[col] {
			return fmt.Errorf("profile column %q is not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, fields[col])
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE profile SET "+strings.Join(sets, ", ")+" WHERE id = 1", args...)
	return err
}

// InvalidateCredentials clears the setup-complete flag so the next cycle
// reports setup incomplete and the operator re-onboards. No other profile
// field is touched.
func (s *Store) InvalidateCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE profile SET setup_complete = 0 WHERE id = 1`)
	return err
}

// =============================================================================
// CACHE RECORD
// =============================================================================

// summaryEnvelope carries the countdown duration alongside the summary's
// JSON form, since the duration is excluded from the API rendering.
type summaryEnvelope struct {
	tracker.HoursSummary
	RemainingNs int64 `json:"remainingNs"`
}

// SaveCache unconditionally replaces the last-known-good record. A
// zero-valued summary is valid data and overwrites like any other.
func (s *Store) SaveCache(ctx context.Context, rec tracker.CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := json.Marshal(summaryEnvelope{
		HoursSummary: rec.Summary,
		RemainingNs:  int64(rec.Summary.TimeRemaining),
	})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_record (id, summary_json, item_count, cached_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary_json=excluded.summary_json,
			item_count=excluded.item_count,
			cached_at=excluded.cached_at`,
		string(buf), rec.ItemCount, formatTime(rec.CachedAt))
	return err
}

// LoadCache returns the last-known-good record, or (nil, nil) if nothing
// was ever cached. Reading never mutates the record.
func (s *Store) LoadCache(ctx context.Context) (*tracker.CacheRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT summary_json, item_count, cached_at FROM cache_record WHERE id = 1`)

	var buf, cachedAt string
	var rec tracker.CacheRecord
	err := row.Scan(&buf, &rec.ItemCount, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env summaryEnvelope
	if err := json.Unmarshal([]byte(buf), &env); err != nil {
		return nil, err
	}
	rec.Summary = env.HoursSummary
	rec.Summary.TimeRemaining = time.Duration(env.RemainingNs)
	rec.CachedAt = parseTime(cachedAt)
	return &rec, nil
}

// =============================================================================
// NOTIFICATION STATE
// =============================================================================

// SaveNotificationState unconditionally replaces the last-seen set.
func (s *Store) SaveNotificationState(ctx context.Context, st tracker.NotificationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(st.LastSeenKeys))
	for i, k := range st.LastSeenKeys {
		keys[i] = k.String()
	}
	buf, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_state (id, last_count, last_keys_json, last_updated)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_count=excluded.last_count,
			last_keys_json=excluded.last_keys_json,
			last_updated=excluded.last_updated`,
		st.LastSeenCount, string(buf), formatTime(st.LastUpdatedAt))
	return err
}

// LoadNotificationState returns the last-seen set, or (nil, nil) when
// nothing has been seen yet. Keys that no longer parse are dropped rather
// than failing the load.
func (s *Store) LoadNotificationState(ctx context.Context) (*tracker.NotificationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT last_count, last_keys_json, last_updated FROM notification_state WHERE id = 1`)

	var st tracker.NotificationState
	var buf, updated string
	err := row.Scan(&st.LastSeenCount, &buf, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal([]byte(buf), &keys); err != nil {
		return nil, err
	}
	for _, raw := range keys {
		if k, ok := tracker.ParseItemKey(raw); ok {
			st.LastSeenKeys = append(st.LastSeenKeys, k)
		}
	}
	st.LastUpdatedAt = parseTime(updated)
	return &st, nil
}

// =============================================================================
// TIME ENCODING
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
