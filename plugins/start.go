package plugins

import "sort"

// StartPlugin resolves id (if needed) and recursively starts it and its
// resolved import graph depth-first. A dependency cycle is tolerated with a
// logged warning: a plug-in already being visited earlier in this same call
// is left alone rather than re-entered.
func (ctx *Context) StartPlugin(id string) error {
	ctx.checkReentrant("start_plugin")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	r, ok := ctx.env.plugins[id]
	if !ok {
		return newErr(CodeUnknown, id, "start_plugin", "no such plug-in", nil)
	}
	if err := ctx.resolveLocked(r); err != nil {
		return err
	}
	var visited []*Record
	err := ctx.startRecursive(r, &visited)
	for _, v := range visited {
		v.processed = false
	}
	return err
}

// startRecursive uses r.processed as a transient per-call visited mark,
// not StateStarting, to detect a graph cycle: a plug-in with no runtime at
// all never enters StateStarting (hasStart is false throughout), so relying
// on that state to break a cycle would recurse forever on scenarios like
// x<->y with empty runtimes.
func (ctx *Context) startRecursive(r *Record, visited *[]*Record) error {
	if r.State == StateActive {
		return nil
	}
	if r.processed {
		ctx.fw.Log(ctx, SeverityWarn, "dependency cycle detected while starting "+r.Descriptor.ID)
		return nil
	}
	r.processed = true
	*visited = append(*visited, r)

	for _, dep := range r.imported {
		if err := ctx.startRecursive(dep, visited); err != nil {
			return err
		}
	}

	hasStart := r.functions != nil && r.functions.Start != nil
	preStartState := r.State

	if hasStart {
		r.State = StateStarting
		ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: preStartState, NewState: StateStarting})
	}

	var instance any
	if r.functions != nil {
		if r.ownContext == nil {
			r.ownContext = newPluginContext(ctx.fw, ctx.env, r)
			r.ownContext.loader = ctx.loader
		}
		var inst any
		var created bool
		ctx.runUnlocked(r.ownContext, inCreateFunc, func() {
			inst, created = r.functions.Create(r.ownContext)
		})
		if !created {
			if hasStart {
				r.State = StateResolved
				ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: StateStarting, NewState: StateResolved})
			}
			return newErr(CodeRuntime, r.Descriptor.ID, "start_plugin", "create returned failure", nil)
		}
		instance = inst
	}
	r.instance = instance

	if hasStart {
		var started bool
		ctx.runUnlocked(r.ownContext, inStartFunc, func() {
			started = r.functions.Start(instance)
		})
		if !started {
			if r.functions.Stop != nil {
				ctx.runUnlocked(r.ownContext, inStopFunc, func() { r.functions.Stop(instance) })
			}
			ctx.runUnlocked(r.ownContext, inDestroyFunc, func() { r.functions.Destroy(instance) })
			r.instance = nil
			r.State = StateResolved
			ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: StateStarting, NewState: StateResolved})
			return newErr(CodeRuntime, r.Descriptor.ID, "start_plugin", "start returned failure", nil)
		}
	}

	old := r.State
	r.State = StateActive
	ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: old, NewState: StateActive})
	ctx.env.addToStarted(r)
	return nil
}

// StartAllPlugins starts every installed plug-in in id order, stopping at
// (and returning) the first error. For hosts that want a simple "start
// everything".
func (ctx *Context) StartAllPlugins() error {
	ctx.checkReentrant("start_all_plugins")
	ctx.env.mu.Lock()
	ids := make([]string, 0, len(ctx.env.plugins))
	for id := range ctx.env.plugins {
		ids = append(ids, id)
	}
	ctx.env.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := ctx.StartPlugin(id); err != nil {
			return err
		}
	}
	return nil
}
