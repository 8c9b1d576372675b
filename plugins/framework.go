package plugins

import (
	"sync"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
)

// Severity is the logging severity scale the framework's log fan-out uses.
// It mirrors kratos/log's five levels so any kratos-compatible log.Logger
// can subscribe directly.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

// loggerEntry is one subscriber registered with AddLogger.
type loggerEntry struct {
	logger   log.Logger
	minSev   Severity
	ctxOnly  *Context // nil means "all contexts"
}

// Framework is the process-global root of the plug-in system: one-time
// init/shutdown, the logger fan-out, the fatal-error hook, and the shared
// info-object registry. Framework is reference-counted: it becomes live on
// the first Init and is torn down when a matching number of Destroy calls
// has been issued. Init and Destroy are not safe to race against each other
// or against themselves; call them from a quiescent host thread, exactly as
// the spec requires.
type Framework struct {
	mu          sync.Mutex
	initCount   int
	loggers     []*loggerEntry
	minSeverity Severity
	// fatalHandler is read lock-free (atomic.Pointer, not f.mu): raiseFatal
	// must work even when called from a path that already holds f.mu (a
	// re-entrant call caught from inside a logger callback, which Log
	// invokes with f.mu held) without deadlocking on a second Lock.
	fatalHandler atomic.Pointer[FatalHandler]
	info         *infoRegistry
	contexts     map[*Context]struct{}

	// loggerGuard counts logger callbacks currently executing on this
	// goroutine's call path, the framework-level analogue of a Context's
	// invocationGuard: Log holds f.mu across each subscriber callback, so a
	// callback that calls AddLogger/RemoveLogger must be caught here before
	// either touches f.mu, not left to deadlock on it.
	loggerGuard int

	defaultMatchRule MatchRule
}

// checkReentrantLogger raises a fatal error if the calling goroutine is
// currently inside a logger callback dispatched by Log. Call before taking
// f.mu in AddLogger/RemoveLogger (spec §4.1: loggers may be added/removed
// "at any time from any thread except from within a logger callback
// itself").
func (f *Framework) checkReentrantLogger(op string) {
	if f.loggerGuard > 0 {
		f.raiseFatal(op, "re-entrant call to a logger-registration API from within a logger callback")
	}
}

var (
	singletonMu sync.Mutex
	singleton   *Framework
)

// Init increments the framework's init count, creating the singleton on the
// first call. It is not thread-safe with respect to Destroy; call both from
// a quiescent thread.
func Init() *Framework {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = &Framework{
			minSeverity:      SeverityFatal,
			info:             newInfoRegistry(),
			contexts:         make(map[*Context]struct{}),
			defaultMatchRule: MatchGreaterOrEqual,
		}
	}
	singleton.initCount++
	return singleton
}

// Destroy decrements the framework's init count. When it returns to zero,
// every live context is destroyed and every outstanding info snapshot is
// forcibly released.
func Destroy() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		return
	}
	singleton.initCount--
	if singleton.initCount > 0 {
		return
	}
	fw := singleton
	singleton = nil

	fw.mu.Lock()
	ctxs := make([]*Context, 0, len(fw.contexts))
	for c := range fw.contexts {
		ctxs = append(ctxs, c)
	}
	fw.mu.Unlock()

	for _, c := range ctxs {
		c.destroyForShutdown()
	}
	fw.info.drain()
}

// SetFatalHandler installs the callback invoked on fatal programmer errors.
// It may be called at any time except from within a logger callback.
func (f *Framework) SetFatalHandler(h FatalHandler) {
	f.fatalHandler.Store(&h)
}

// AddLogger registers or updates a log subscriber. Adding the same logger
// instance twice updates its severity threshold and context filter in
// place, matching spec §4.1.
func (f *Framework) AddLogger(logger log.Logger, minSev Severity, ctxFilter *Context) {
	f.checkReentrantLogger("add_logger")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.loggers {
		if e.logger == logger {
			e.minSev = minSev
			e.ctxOnly = ctxFilter
			f.recomputeMinSeverityLocked()
			return
		}
	}
	f.loggers = append(f.loggers, &loggerEntry{logger: logger, minSev: minSev, ctxOnly: ctxFilter})
	f.recomputeMinSeverityLocked()
}

// RemoveLogger unregisters a previously added logger.
func (f *Framework) RemoveLogger(logger log.Logger) {
	f.checkReentrantLogger("remove_logger")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.loggers {
		if e.logger == logger {
			f.loggers = append(f.loggers[:i], f.loggers[i+1:]...)
			break
		}
	}
	f.recomputeMinSeverityLocked()
}

func (f *Framework) recomputeMinSeverityLocked() {
	if len(f.loggers) == 0 {
		f.minSeverity = SeverityFatal + 1
		return
	}
	min := f.loggers[0].minSev
	for _, e := range f.loggers[1:] {
		if e.minSev < min {
			min = e.minSev
		}
	}
	f.minSeverity = min
}

// IsLogged reports whether a message at sev would reach at least one
// subscriber, using the cached minimum severity so the common path is a
// cheap compare.
func (f *Framework) IsLogged(sev Severity) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sev >= f.minSeverity
}

// Log delivers msg to every subscriber whose threshold is satisfied and
// whose context filter is either absent or equal to ctx. Delivery is
// serialized: the framework lock is held across each logger callback so log
// output from concurrent callers never interleaves.
func (f *Framework) Log(ctx *Context, sev Severity, msg string) {
	if !f.IsLogged(sev) {
		return
	}
	pluginID := ""
	if ctx != nil && ctx.ownerPlugin != nil {
		pluginID = ctx.ownerPlugin.Descriptor.ID
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.loggers {
		if e.minSev > sev {
			continue
		}
		if e.ctxOnly != nil && e.ctxOnly != ctx {
			continue
		}
		helper := log.NewHelper(e.logger)
		if ctx != nil {
			ctx.guard.enter(inLogger)
		}
		f.loggerGuard++
		logAt(helper, sev, pluginID, msg)
		f.loggerGuard--
		if ctx != nil {
			ctx.guard.exit(inLogger)
		}
	}
}

func logAt(h *log.Helper, sev Severity, pluginID, msg string) {
	kv := []any{"plugin", pluginID, "msg", msg}
	if pluginID == "" {
		kv = []any{"msg", msg}
	}
	switch sev {
	case SeverityDebug:
		h.Debugw(kv...)
	case SeverityInfo:
		h.Infow(kv...)
	case SeverityWarn:
		h.Warnw(kv...)
	case SeverityError:
		h.Errorw(kv...)
	default:
		h.Errorw(kv...)
	}
}

func (f *Framework) registerContext(c *Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts[c] = struct{}{}
}

func (f *Framework) unregisterContext(c *Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.contexts, c)
}
