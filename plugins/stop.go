package plugins

// StopPlugin recursively stops id: every plug-in currently ACTIVE that
// imports id is stopped first (the reverse of Start's direction), then id
// itself. Stopping a plug-in whose outstanding symbol-usage counter is
// non-zero is a fatal error (spec §4.2) — a consumer must ReleaseSymbol
// every handle it resolved from it first.
func (ctx *Context) StopPlugin(id string) error {
	ctx.checkReentrant("stop_plugin")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	r, ok := ctx.env.plugins[id]
	if !ok {
		return newErr(CodeUnknown, id, "stop_plugin", "no such plug-in", nil)
	}
	var visited []*Record
	err := ctx.stopRecursive(r, &visited)
	for _, v := range visited {
		v.processed = false
	}
	return err
}

// stopRecursive marks each record it visits (the same transient flag the
// resolver and starter use) so a dependency cycle among ACTIVE plug-ins
// doesn't send an importer's importer back into this one before its own
// stop body has run: x active-importing y and y active-importing x would
// otherwise recurse forever the same way an unguarded startRecursive did.
func (ctx *Context) stopRecursive(r *Record, visited *[]*Record) error {
	if r.State != StateActive {
		return nil
	}
	if r.processed {
		return nil
	}
	r.processed = true
	*visited = append(*visited, r)

	for _, importer := range snapshotRecords(r.importing) {
		if importer.State == StateActive {
			if err := ctx.stopRecursive(importer, visited); err != nil {
				return err
			}
		}
	}

	if r.symbolUsage != 0 {
		ctx.fw.raiseFatal("stop_plugin", "plug-in "+r.Descriptor.ID+" has outstanding resolved symbols")
	}

	if r.ownContext != nil {
		for ptr := range r.ownContext.resolvedSymbols {
			r.ownContext.releaseSymbolLocked(ptr)
		}
	}
	r.definedSymbols = make(map[string]any)

	hasStop := r.functions != nil && r.functions.Stop != nil
	old := r.State
	if hasStop {
		r.State = StateStopping
		ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: old, NewState: StateStopping})
		ctx.runUnlocked(r.ownContext, inStopFunc, func() { r.functions.Stop(r.instance) })
	}

	if r.functions != nil {
		ctx.runUnlocked(r.ownContext, inDestroyFunc, func() { r.functions.Destroy(r.instance) })
	}
	r.instance = nil

	if r.ownContext != nil {
		ctx.fw.unregisterContext(r.ownContext)
		r.ownContext = nil
	}

	ctx.env.removeFromStarted(r)
	final := r.State
	r.State = StateResolved
	ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: final, NewState: StateResolved})
	return nil
}

// StopAllPlugins stops every ACTIVE plug-in in reverse start order, for
// symmetric teardown.
func (ctx *Context) StopAllPlugins() error {
	ctx.checkReentrant("stop_all_plugins")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	for _, r := range ctx.env.startedReverse() {
		var visited []*Record
		err := ctx.stopRecursive(r, &visited)
		for _, v := range visited {
			v.processed = false
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func snapshotRecords(m map[string]*Record) []*Record {
	out := make([]*Record, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}
