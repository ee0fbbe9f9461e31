package engine

import "time"

// Scheduler arms a deferred call. The engine keeps at most one armed timer
// and always cancels the previous one before arming anew; implementations
// only need single-shot semantics. A cancelled call must not fire, and if
// cancel races the fire, the engine's lock-idempotence guard is the
// backstop.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler runs deferred calls on real wall-clock timers.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
