package plugins

// PluginState is a position in the plug-in lifecycle state machine (§4.2).
type PluginState int

const (
	StateUninstalled PluginState = iota
	StateInstalled
	StateResolved
	StateStarting
	StateActive
	StateStopping
)

func (s PluginState) String() string {
	switch s {
	case StateUninstalled:
		return "UNINSTALLED"
	case StateInstalled:
		return "INSTALLED"
	case StateResolved:
		return "RESOLVED"
	case StateStarting:
		return "STARTING"
	case StateActive:
		return "ACTIVE"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// CreateFunc produces a plug-in's opaque instance data; ok=false means
// failure. Required — a descriptor whose runtime omits it fails resolve.
type CreateFunc func(ctx *Context) (instance any, ok bool)

// StartFunc is the optional start hook; a false return means failure.
type StartFunc func(instance any) bool

// StopFunc is the optional stop hook.
type StopFunc func(instance any)

// DestroyFunc releases a plug-in's instance data. Required.
type DestroyFunc func(instance any)

// RuntimeFunctions is the four-slot function table a plug-in's runtime
// library exports, resolved during Resolve via the RuntimeSpec's symbol
// name. Create and Destroy must be non-nil; Start and Stop are optional.
type RuntimeFunctions struct {
	Create  CreateFunc
	Start   StartFunc
	Stop    StopFunc
	Destroy DestroyFunc
}

// LibraryHandle is an opaque handle to a loaded shared library, as returned
// by a LibraryLoader.
type LibraryHandle interface {
	// Symbol resolves a named export, or returns ok=false.
	Symbol(name string) (ptr any, ok bool)
	// Close unloads the library.
	Close() error
}

// LibraryLoader is the collaborator interface for the shared-library loader
// named in spec §1 as out of scope: an opaque open/sym/close triple. The
// core depends only on this interface so a host can supply a real dlopen
// wrapper, a static registry, or a test fake.
type LibraryLoader interface {
	Open(path string) (LibraryHandle, error)
}

// providerInfo tracks one plug-in's usage as a dynamic-symbol provider for
// a single consumer context (spec §4.5).
type providerInfo struct {
	imported bool // true if a static import edge already covers this pair
	usage    int
	provider *Record
}

// symbolInfo tracks one resolved symbol pointer's usage within a
// plug-in-owned context.
type symbolInfo struct {
	usage    int
	provider *providerInfo
}

// Record is the mutable per-plug-in state: lifecycle phase, dependency
// edges, runtime handle, instance data, and defined symbols. Records are
// created at Install and destroyed at Uninstall.
type Record struct {
	Descriptor *Descriptor
	State      PluginState

	imported  map[string]*Record // pluginID -> record, resolved dependency edges
	importing map[string]*Record // reverse edges

	library   LibraryHandle
	functions *RuntimeFunctions
	instance  any

	definedSymbols map[string]any // name -> pointer, while ACTIVE

	symbolUsage int // outstanding handed-out symbols; checked before stop

	processed bool // transient graph-algorithm mark; must be false between ops

	ownContext *Context // the context created for this plug-in's create/start

	descHandle infoHandle // this record's owning reference on its descriptor
}

func newRecord(d *Descriptor) *Record {
	return &Record{
		Descriptor:     d,
		State:          StateUninstalled,
		imported:       make(map[string]*Record),
		importing:      make(map[string]*Record),
		definedSymbols: make(map[string]any),
	}
}

func (r *Record) addImport(dep *Record) {
	r.imported[dep.Descriptor.ID] = dep
	dep.importing[r.Descriptor.ID] = r
}

func (r *Record) removeImport(dep *Record) {
	delete(r.imported, dep.Descriptor.ID)
	delete(dep.importing, r.Descriptor.ID)
}
