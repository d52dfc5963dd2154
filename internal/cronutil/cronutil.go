// Package cronutil computes next-fire times for cron expressions in a named
// IANA timezone (spec §4.1). It is deterministic and does no I/O.
//
// Grounded on the teacher's use of robfig/cron/v3 (internal/service/scheduler):
// the teacher only ever calls cron.New().AddFunc with a fixed "every N
// minutes" spec. This package instead parses arbitrary 5-field expressions
// and exposes pure Next/NextN functions rather than a running cron.Cron,
// since the dispatcher (internal/scheduler) owns its own single ticker.
package cronutil

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// InvalidCronError wraps a cron parse failure.
type InvalidCronError struct {
	Expr string
	Err  error
}

func (e *InvalidCronError) Error() string {
	return fmt.Sprintf("cronutil: invalid cron expression %q: %v", e.Expr, e.Err)
}
func (e *InvalidCronError) Unwrap() error { return e.Err }

// UnknownTimezoneError wraps a time.LoadLocation failure.
type UnknownTimezoneError struct {
	TZ  string
	Err error
}

func (e *UnknownTimezoneError) Error() string {
	return fmt.Sprintf("cronutil: unknown timezone %q: %v", e.TZ, e.Err)
}
func (e *UnknownTimezoneError) Unwrap() error { return e.Err }

// Next returns the next instant strictly after from at which expr fires,
// interpreted in the named IANA timezone.
//
// DST handling is left entirely to robfig/cron, which steps through local
// hours by adding elapsed time in the target Location. A firing whose local
// wall time falls inside a spring-forward gap is not moved forward to the
// first valid instant after the gap: that day's firing is skipped and the
// next matching day is returned. A repeated (fall-back) wall time is first
// matched at its earlier-offset occurrence when from precedes the overlap;
// nothing here excludes a later match at the second occurrence.
func Next(expr, tz string, from time.Time) (time.Time, error) {
	sched, loc, err := parse(expr, tz)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(from.In(loc))
	if !next.After(from) {
		// Defensive: spec §8 requires strict monotonicity; robfig/cron
		// already guarantees this, but a post-condition check here keeps the
		// property visible at the boundary instead of trusting the library silently.
		return time.Time{}, fmt.Errorf("cronutil: non-monotonic result for %q at %v", expr, from)
	}
	return next, nil
}

// NextN returns the next n fire instants strictly after from, in order. Used
// by calendar-preview callers outside the core.
func NextN(expr, tz string, from time.Time, n int) ([]time.Time, error) {
	sched, loc, err := parse(expr, tz)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	cursor := from.In(loc)
	for i := 0; i < n; i++ {
		cursor = sched.Next(cursor)
		out = append(out, cursor)
	}
	return out, nil
}

func parse(expr, tz string) (cron.Schedule, *time.Location, error) {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, nil, &UnknownTimezoneError{TZ: tz, Err: err}
	}
	sched, err := standardParser.Parse(expr)
	if err != nil {
		return nil, nil, &InvalidCronError{Expr: expr, Err: err}
	}
	return &locatedSchedule{inner: sched, loc: loc}, loc, nil
}

// locatedSchedule forces every Next() call through the target Location,
// regardless of what Location the caller's time.Time carries. This is what
// makes Next/NextN safe to call with a from value in any timezone.
type locatedSchedule struct {
	inner cron.Schedule
	loc   *time.Location
}

func (s *locatedSchedule) Next(t time.Time) time.Time {
	return s.inner.Next(t.In(s.loc))
}
