/*
errors.go - Centralized error taxonomy for the tracking cycle

PURPOSE:
  All cross-component error types in one place. Components catch their own
  failures at the boundary and convert them to a neutral "no data" signal;
  only the categories below cross component lines.

ERROR CATEGORIES:
  1. Auth errors     - stored credentials are stale; re-onboarding required
  2. Unavailability  - every fetch strategy failed or returned empty
  3. Config errors   - onboarding never completed; data operations blocked

USAGE:
  if tracker.IsAuth(err) {
      store.InvalidateCredentials(ctx)
  }

SEE ALSO:
  - crossover/fetch.go: produces ErrUnavailable
  - engine/cycle.go: applies the failover policy per category
*/
package tracker

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAuth is returned when token acquisition fails. By contract a
	// 401-class failure means the stored secret is stale, not a transient
	// outage, so callers must invalidate stored credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrUnavailable is returned when every fetch strategy failed or came
	// back empty. Transport errors, parse errors and all-empty responses
	// collapse into this one category: the caller's fallback (cache, then
	// explicit error state) is the same for all of them.
	ErrUnavailable = errors.New("data unavailable")

	// ErrConfigIncomplete is returned when no validated profile exists.
	// All data operations are blocked until setup completes.
	ErrConfigIncomplete = errors.New("setup incomplete")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FetchError reports which logical fetch failed and why, while still
// matching ErrUnavailable for policy decisions.
type FetchError struct {
	Resource string // "timesheet", "manual", "overtime", "profile"
	Attempts int    // strategies tried
	Last     error  // last underlying failure, may be nil for all-empty
}

func (e *FetchError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s unavailable after %d strategies: %v", e.Resource, e.Attempts, e.Last)
	}
	return fmt.Sprintf("%s unavailable: all %d strategies returned empty", e.Resource, e.Attempts)
}

func (e *FetchError) Unwrap() error { return ErrUnavailable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAuth reports whether err requires credential invalidation.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }

// IsUnavailable reports whether err takes the cache-fallback path.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
