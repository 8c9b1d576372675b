package plugins

// InstallPlugin admits d into ctx's environment. It fails with CONFLICT if a
// record with the same identifier already exists, or if any extension point
// d declares collides with an existing global id; either failure rolls back
// every registration this call made before returning.
func (ctx *Context) InstallPlugin(d *Descriptor) error {
	ctx.checkReentrant("install_plugin")
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	if _, exists := ctx.env.plugins[d.ID]; exists {
		return newErr(CodeConflict, d.ID, "install_plugin", "a plug-in with this identifier is already installed", nil)
	}
	for _, ep := range d.ExtensionPoints {
		if _, exists := ctx.env.extPoints[ep.GlobalID]; exists {
			return newErr(CodeConflict, d.ID, "install_plugin", "extension point "+ep.GlobalID+" is already declared", nil)
		}
	}

	r := newRecord(d)
	for _, ep := range d.ExtensionPoints {
		ctx.env.extPoints[ep.GlobalID] = &extPointEntry{decl: ep, owner: r}
	}

	for _, ext := range d.Extensions {
		ctx.env.extensions[ext.ExtPointID] = append(ctx.env.extensions[ext.ExtPointID], &extensionEntry{decl: ext, owner: r})
	}

	r.descHandle = ctx.fw.info.register(func() {})
	ctx.env.plugins[d.ID] = r
	r.State = StateInstalled

	ctx.notify(PluginStateEvent{PluginID: d.ID, OldState: StateUninstalled, NewState: StateInstalled})
	return nil
}
