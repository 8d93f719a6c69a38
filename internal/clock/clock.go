// Package clock abstracts wall-clock time so that timestamp-sensitive logic
// (record creation times, the notification freshness window) is testable
// with a deterministic clock.
package clock

import "time"

// Clock supplies the current time. Implemented by System (production) and
// testutil.FrozenClock (tests).
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
//
// Thread-safety: System is stateless and safe for concurrent use.
type System struct{}

// Now returns time.Now() in UTC. All persisted timestamps are UTC so that
// ordering comparisons never depend on the host zone.
func (System) Now() time.Time {
	return time.Now().UTC()
}
