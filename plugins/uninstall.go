package plugins

// UninstallPlugin stops id (recursively, per StopPlugin), then tears down
// its dependency edges, unloads its runtime, unregisters its declared
// extension points and extensions, removes its record, and releases the
// framework's reference on its descriptor.
func (ctx *Context) UninstallPlugin(id string) error {
	ctx.checkReentrant("uninstall_plugin")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	r, ok := ctx.env.plugins[id]
	if !ok {
		return newErr(CodeUnknown, id, "uninstall_plugin", "no such plug-in", nil)
	}
	var visited []*Record
	err := ctx.stopRecursive(r, &visited)
	for _, v := range visited {
		v.processed = false
	}
	if err != nil {
		return err
	}
	ctx.uninstallLocked(r)
	return nil
}

func (ctx *Context) uninstallLocked(r *Record) {
	for _, dep := range snapshotRecords(r.imported) {
		r.removeImport(dep)
	}
	for _, dependent := range snapshotRecords(r.importing) {
		dependent.removeImport(r)
	}

	if r.library != nil {
		if err := r.library.Close(); err != nil {
			ctx.fw.Log(ctx, SeverityError, "uninstall_plugin: "+r.Descriptor.ID+": "+err.Error())
		}
		r.library = nil
		r.functions = nil
	}

	for _, ep := range r.Descriptor.ExtensionPoints {
		delete(ctx.env.extPoints, ep.GlobalID)
	}
	for extPointID, entries := range ctx.env.extensions {
		kept := entries[:0]
		for _, e := range entries {
			if e.owner != r {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(ctx.env.extensions, extPointID)
		} else {
			ctx.env.extensions[extPointID] = kept
		}
	}

	delete(ctx.env.plugins, r.Descriptor.ID)
	old := r.State
	r.State = StateUninstalled
	ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: old, NewState: StateUninstalled})
	ctx.fw.info.release(r.descHandle)
}

// UninstallAllPlugins uninstalls every plug-in in the environment.
func (ctx *Context) UninstallAllPlugins() {
	ctx.checkReentrant("uninstall_all_plugins")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	for _, r := range snapshotRecords(ctx.env.plugins) {
		if _, ok := ctx.env.plugins[r.Descriptor.ID]; !ok {
			continue // already removed as a side effect of uninstalling another record
		}
		var visited []*Record
		ctx.stopRecursive(r, &visited)
		for _, v := range visited {
			v.processed = false
		}
		ctx.uninstallLocked(r)
	}
}
