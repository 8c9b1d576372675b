package plugins

// Lock discipline
//
// The spec calls for a framework-level lock and a recursive per-context
// lock, with the context lock always acquired before the framework lock.
// This package keeps that ordering but drops the recursive-mutex primitive:
// all internal recursion (the resolver walking a dependency graph, the
// starter/stopper walking import edges) goes through unexported *Locked
// helpers that assume the context mutex is already held by the caller, so a
// plain sync.Mutex is enough. The only other source of "re-entrancy" the
// spec worries about is a user callback (listener, create/start/stop/destroy,
// logger) calling back into a public lifecycle API on the same goroutine;
// that path does not need to succeed, it needs to be *caught*, which the
// invocationGuard below does before a public entry point ever touches the
// mutex.

// invocationKind identifies a category of user callback a Context may be
// running, for re-entrancy detection.
type invocationKind int

const (
	inListener invocationKind = iota
	inStartFunc
	inStopFunc
	inCreateFunc
	inDestroyFunc
	inLogger
	numInvocationKinds
)

// invocationGuard tracks how many callbacks of each kind are currently
// executing on behalf of a Context. All lifecycle-changing and
// listener-registration APIs consult it before acquiring the context lock;
// finding any counter non-zero during a forbidden call is a fatal error
// (spec §7).
type invocationGuard struct {
	counts [numInvocationKinds]int
}

func (g *invocationGuard) enter(k invocationKind) { g.counts[k]++ }
func (g *invocationGuard) exit(k invocationKind)  { g.counts[k]-- }

// anyActive reports whether any of the given kinds currently has an active
// invocation.
func (g *invocationGuard) anyActive(kinds ...invocationKind) bool {
	for _, k := range kinds {
		if g.counts[k] > 0 {
			return true
		}
	}
	return false
}

// allClear reports whether no callback of any kind is currently running.
// Used by tests to assert the guard unwinds cleanly after every top-level
// operation.
func (g *invocationGuard) allClear() bool {
	for _, c := range g.counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// guardedKinds lists every invocation kind that forbids re-entering a
// lifecycle or listener-registration API; this is every kind that spec §5's
// re-entrancy guard names.
var guardedKinds = []invocationKind{inListener, inStartFunc, inStopFunc, inCreateFunc, inDestroyFunc, inLogger}

// checkReentrant raises a fatal error if the context is currently running a
// user callback on this goroutine's call path. Call before taking ctx.env.mu in
// every lifecycle-changing or listener-registration entry point.
func (ctx *Context) checkReentrant(op string) {
	if ctx.guard.anyActive(guardedKinds...) {
		ctx.framework().raiseFatal(op, "re-entrant call to a lifecycle/listener API from within a callback")
	}
}

// runUnlocked marks kind active on target's guard, releases ctx.env.mu
// (assumed held by the caller), invokes fn, then reacquires the lock and
// clears the mark. This is how a lifecycle callback (create/start/stop/
// destroy) or a listener notification is invoked: the callback runs with
// the context lock free so plugin code it calls back into — most notably
// DefineSymbol/ResolveSymbol/ReleaseSymbol, which the dynamic symbol engine
// explicitly expects to work from inside create/start — can take the lock
// themselves instead of deadlocking on a mutex this goroutine already holds.
// target and ctx always share one Environment, so one mutex is involved
// either way; checkReentrant (consulting target's guard, not the mutex) is
// what actually forbids a forbidden reentrant call during the unlocked
// window, independent of lock state.
func (ctx *Context) runUnlocked(target *Context, kind invocationKind, fn func()) {
	target.guard.enter(kind)
	ctx.env.mu.Unlock()
	// Deferred so that a fatal error raised inside fn (a panic) still leaves
	// the lock held and the mark cleared for the caller's own deferred Unlock.
	defer func() {
		ctx.env.mu.Lock()
		target.guard.exit(kind)
	}()
	fn()
}
