package plugins

import (
	"testing"

	"github.com/go-kratos/kratos/v2/log"
)

// TestLoggerSeverityFiltering checks that AddLogger's minSev threshold is
// honored and that IsLogged's cached minimum tracks the loosest subscriber.
func TestLoggerSeverityFiltering(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	rec := &recordingLogger{}
	fw.AddLogger(rec, SeverityWarn, nil)

	if fw.IsLogged(SeverityInfo) {
		t.Fatalf("expected SeverityInfo not to be logged with a Warn threshold subscriber")
	}
	if !fw.IsLogged(SeverityWarn) {
		t.Fatalf("expected SeverityWarn to be logged with a Warn threshold subscriber")
	}

	fw.Log(nil, SeverityInfo, "below threshold")
	fw.Log(nil, SeverityWarn, "at threshold")
	fw.Log(nil, SeverityError, "above threshold")

	if len(rec.entries) != 2 {
		t.Fatalf("expected 2 delivered log entries, got %d: %+v", len(rec.entries), rec.entries)
	}
	if rec.entries[0].level != log.LevelWarn {
		t.Errorf("entry 0 level = %v, want LevelWarn", rec.entries[0].level)
	}
	if rec.entries[1].level != log.LevelError {
		t.Errorf("entry 1 level = %v, want LevelError", rec.entries[1].level)
	}
}

// TestLoggerAddTwiceUpdatesInPlace checks that re-registering the same
// logger instance updates its threshold rather than adding a second
// subscription.
func TestLoggerAddTwiceUpdatesInPlace(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	rec := &recordingLogger{}
	fw.AddLogger(rec, SeverityError, nil)
	fw.AddLogger(rec, SeverityDebug, nil)

	fw.Log(nil, SeverityDebug, "now visible")
	if len(rec.entries) != 1 {
		t.Fatalf("expected the second AddLogger call to loosen the threshold in place, got %d entries", len(rec.entries))
	}
}

// TestRemoveLoggerStopsDelivery checks that RemoveLogger both stops future
// delivery and recomputes the cached minimum severity.
func TestRemoveLoggerStopsDelivery(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	rec := &recordingLogger{}
	fw.AddLogger(rec, SeverityDebug, nil)
	fw.RemoveLogger(rec)

	if fw.IsLogged(SeverityFatal) {
		t.Fatalf("expected IsLogged to report false once every subscriber is removed")
	}
	fw.Log(nil, SeverityFatal, "nobody listening")
	if len(rec.entries) != 0 {
		t.Fatalf("expected no entries delivered to a removed logger, got %d", len(rec.entries))
	}
}

// TestLoggerContextFilter checks that a logger registered with a context
// filter only receives messages logged against that specific context.
func TestLoggerContextFilter(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	ctxA := fw.CreateContext(nil)
	t.Cleanup(ctxA.Destroy)
	ctxB := fw.CreateContext(nil)
	t.Cleanup(ctxB.Destroy)

	rec := &recordingLogger{}
	fw.AddLogger(rec, SeverityDebug, ctxA)

	fw.Log(ctxB, SeverityError, "wrong context")
	fw.Log(ctxA, SeverityError, "right context")

	if len(rec.entries) != 1 {
		t.Fatalf("expected only the ctxA-logged message to be delivered, got %d entries", len(rec.entries))
	}
}

// TestInitDestroyRefCounting checks that the singleton framework only tears
// down its contexts once a matching number of Destroy calls brings the
// init count to zero, per the reference-counted lifecycle in framework.go.
func TestInitDestroyRefCounting(t *testing.T) {
	fw1 := Init()
	fw2 := Init()
	if fw1 != fw2 {
		t.Fatalf("expected a second Init to return the same singleton")
	}

	ctx := fw1.CreateContext(nil)
	if err := ctx.InstallPlugin(testDescriptor("a", "1.0.0", nil, nil)); err != nil {
		t.Fatalf("install: %v", err)
	}

	Destroy()
	// One Destroy call against two Init calls must not have torn the
	// context down yet.
	if _, err := ctx.GetPluginState("a"); err != nil {
		t.Fatalf("expected the context to survive a partial Destroy, got %v", err)
	}

	Destroy()
	// The second Destroy brings the ref count to zero; the context (and
	// every plug-in installed in it) should have been force-uninstalled.
	if _, err := ctx.GetPluginState("a"); err == nil {
		t.Fatalf("expected the context to have been torn down once the init count reached zero")
	}
}

// TestFatalHandlerInvokedBeforePanic checks that a registered FatalHandler
// runs before the framework panics on a re-entrancy violation, and that the
// panic value is a *FatalError.
func TestFatalHandlerInvokedBeforePanic(t *testing.T) {
	fw, ctx := newTestContext(t)

	var handlerCalled bool
	var handlerMsg string
	fw.SetFatalHandler(func(msg string) {
		handlerCalled = true
		handlerMsg = msg
	})

	var subID string
	var fired bool
	subID = ctx.AddPluginListener(func(_ *Context, _ PluginStateEvent) {
		// Only the first invocation re-enters, so the uninstall event that
		// ctx.Destroy delivers during cleanup does not raise a second fatal.
		if fired {
			return
		}
		fired = true
		// Calling a listener-registration API from within a listener is a
		// forbidden re-entrant call (spec §7).
		ctx.RemovePluginListener(subID)
	})

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected a re-entrant listener-registration call to panic")
			}
			if _, ok := r.(*FatalError); !ok {
				t.Fatalf("expected the panic value to be a *FatalError, got %T", r)
			}
		}()
		if err := ctx.InstallPlugin(testDescriptor("a", "1.0.0", nil, nil)); err != nil {
			t.Fatalf("install: %v", err)
		}
	}()

	if !handlerCalled {
		t.Fatalf("expected the FatalHandler to have been invoked")
	}
	if handlerMsg == "" {
		t.Fatalf("expected the FatalHandler to receive a non-empty message")
	}
}

// reentrantLogger calls back into AddLogger/RemoveLogger from within its
// own Log method, the scenario that used to self-deadlock on f.mu before
// checkReentrantLogger existed.
type reentrantLogger struct {
	fw   *Framework
	call func(fw *Framework)
}

func (l *reentrantLogger) Log(level log.Level, keyvals ...any) error {
	l.call(l.fw)
	return nil
}

// TestAddLoggerReentrantFromCallbackIsFatal checks that calling AddLogger
// from within a logger callback raises a *FatalError instead of
// self-deadlocking on f.mu, which Log holds across every subscriber
// invocation.
func TestAddLoggerReentrantFromCallbackIsFatal(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	other := &recordingLogger{}
	rl := &reentrantLogger{fw: fw}
	rl.call = func(fw *Framework) { fw.AddLogger(other, SeverityDebug, nil) }
	fw.AddLogger(rl, SeverityDebug, nil)

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected a re-entrant AddLogger call from within a logger callback to panic")
			}
			if _, ok := r.(*FatalError); !ok {
				t.Fatalf("expected the panic value to be a *FatalError, got %T", r)
			}
		}()
		fw.Log(nil, SeverityDebug, "trigger")
	}()
}

// TestRemoveLoggerReentrantFromCallbackIsFatal is the RemoveLogger half of
// the same check.
func TestRemoveLoggerReentrantFromCallbackIsFatal(t *testing.T) {
	fw := Init()
	t.Cleanup(Destroy)

	rl := &reentrantLogger{fw: fw}
	rl.call = func(fw *Framework) { fw.RemoveLogger(rl) }
	fw.AddLogger(rl, SeverityDebug, nil)

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected a re-entrant RemoveLogger call from within a logger callback to panic")
			}
			if _, ok := r.(*FatalError); !ok {
				t.Fatalf("expected the panic value to be a *FatalError, got %T", r)
			}
		}()
		fw.Log(nil, SeverityDebug, "trigger")
	}()
}
