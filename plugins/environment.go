package plugins

import "sync"

// extPointEntry pairs a declared extension point with the record that owns
// it, so listing APIs can return a stable snapshot tracing back to its
// descriptor.
type extPointEntry struct {
	decl  ExtensionPointDecl
	owner *Record
}

// extensionEntry pairs a declared extension with its owning record.
type extensionEntry struct {
	decl  ExtensionDecl
	owner *Record
}

// Environment is the mutable state a Context exclusively owns (or shares,
// when the Context represents a plug-in's own enclosing environment):
// directories, plug-in records, and the extension-point/extension indices.
type Environment struct {
	// mu is the context lock of spec §5: shared by a host context and every
	// plug-in-owned context instantiated against it, since they all
	// reference this one Environment. Lock order is context (this) before
	// framework.
	mu sync.Mutex

	argv []string

	directories []string

	plugins map[string]*Record // id -> record, unique

	started []*Record // start order; exactly the ACTIVE set

	extPoints   map[string]*extPointEntry  // global id -> entry, unique
	extensions  map[string][]*extensionEntry // ext-point id -> ordered contributions
}

func newEnvironment(argv []string) *Environment {
	return &Environment{
		argv:       argv,
		plugins:    make(map[string]*Record),
		extPoints:  make(map[string]*extPointEntry),
		extensions: make(map[string][]*extensionEntry),
	}
}

func (e *Environment) addToStarted(r *Record) {
	e.started = append(e.started, r)
}

func (e *Environment) removeFromStarted(r *Record) {
	for i, s := range e.started {
		if s == r {
			e.started = append(e.started[:i], e.started[i+1:]...)
			return
		}
	}
}

// startedReverse returns the started sequence in reverse order, for
// symmetric stop-all teardown (spec §5).
func (e *Environment) startedReverse() []*Record {
	out := make([]*Record, len(e.started))
	for i := range e.started {
		out[i] = e.started[len(e.started)-1-i]
	}
	return out
}

// assertClean is the debug-mode invariant check described in spec §9: every
// record's transient "processed" mark must be false between top-level
// operations. Tests call this after a full install/start/stop/uninstall
// cycle and after a nested start through ResolveSymbol.
func (e *Environment) assertClean() bool {
	for _, r := range e.plugins {
		if r.processed {
			return false
		}
	}
	return true
}
