package plugins

import (
	"github.com/google/uuid"
)

// Context is an isolated cooperation environment: plug-ins installed into
// one context resolve dependencies and share symbol visibility only within
// that context (spec §5, "a context is self-contained").
type Context struct {
	fw *Framework

	env *Environment

	// ownerPlugin is non-nil for a context the framework created to host a
	// single plug-in's create/start/stop/destroy invocations; nil for a
	// host-owned context.
	ownerPlugin *Record

	listeners []*listenerEntry
	guard     invocationGuard

	// Plug-in-owned bookkeeping for the dynamic symbol engine (spec §4.5).
	resolvedSymbols map[any]*symbolInfo
	symbolProviders map[*Record]*providerInfo

	userData any

	loader LibraryLoader
}

// SetLibraryLoader installs the shared-library loader this context uses to
// load a runtime during Resolve. The context created for a plug-in started
// through this context takes the loader set at that moment. Plug-ins with
// no runtime never consult it.
func (ctx *Context) SetLibraryLoader(loader LibraryLoader) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	ctx.loader = loader
}

// CreateContext creates a new host-owned context with its own environment.
// ownerData is stored and retrievable via GetContextData.
func (f *Framework) CreateContext(ownerData any) *Context {
	ctx := &Context{
		fw:              f,
		env:             newEnvironment(nil),
		resolvedSymbols: make(map[any]*symbolInfo),
		symbolProviders: make(map[*Record]*providerInfo),
		userData:        ownerData,
	}
	f.registerContext(ctx)
	return ctx
}

// newPluginContext creates the context the framework instantiates for a
// single plug-in, sharing the enclosing environment rather than owning one.
func newPluginContext(f *Framework, env *Environment, owner *Record) *Context {
	ctx := &Context{
		fw:              f,
		env:             env,
		ownerPlugin:     owner,
		resolvedSymbols: make(map[any]*symbolInfo),
		symbolProviders: make(map[*Record]*providerInfo),
	}
	f.registerContext(ctx)
	return ctx
}

func (ctx *Context) framework() *Framework { return ctx.fw }

// Destroy releases ctx. Any plug-ins still installed in its environment are
// uninstalled first, per the invariant that all of a context's plug-ins are
// uninstalled before the context is released.
func (ctx *Context) Destroy() {
	ctx.checkReentrant("destroy_context")
	ctx.UninstallAllPlugins()
	ctx.fw.unregisterContext(ctx)
}

// destroyForShutdown is invoked by Framework.Destroy for every context still
// alive when the init-count reaches zero. It bypasses the re-entrancy check
// since shutdown is assumed to run on a quiescent thread.
func (ctx *Context) destroyForShutdown() {
	ctx.UninstallAllPlugins()
	ctx.fw.unregisterContext(ctx)
}

// SetContextData replaces the context's host-owned user data pointer.
func (ctx *Context) SetContextData(data any) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	ctx.userData = data
}

// GetContextData returns the context's current host-owned user data.
func (ctx *Context) GetContextData() any {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	return ctx.userData
}

// AddPluginListener subscribes listener to this context's plug-in state
// transitions and returns a subscription id for RemovePluginListener.
func (ctx *Context) AddPluginListener(listener PluginListener) string {
	ctx.checkReentrant("add_plugin_listener")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	id := uuid.NewString()
	ctx.listeners = append(ctx.listeners, &listenerEntry{id: id, listener: listener})
	return id
}

// RemovePluginListener unsubscribes a listener previously added with
// AddPluginListener.
func (ctx *Context) RemovePluginListener(id string) {
	ctx.checkReentrant("remove_plugin_listener")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	for i, e := range ctx.listeners {
		if e.id == id {
			ctx.listeners = append(ctx.listeners[:i], ctx.listeners[i+1:]...)
			return
		}
	}
}
