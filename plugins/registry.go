package plugins

import "sort"

// PluginInfo is a stable snapshot of a plug-in record's descriptor-level
// attributes plus its current state.
type PluginInfo struct {
	ID       string
	Version  Version
	Provider string
	Path     string
	State    PluginState
}

// ExtPointInfo is a stable snapshot of one declared extension point.
type ExtPointInfo struct {
	GlobalID   string
	LocalID    string
	Name       string
	SchemaPath string
	OwnerID    string
}

// ExtensionInfo is a stable snapshot of one extension contribution.
type ExtensionInfo struct {
	GlobalID   string
	LocalID    string
	Name       string
	ExtPointID string
	OwnerID    string
	Config     *ConfigElement
}

// GetPluginInfo returns a snapshot of the named plug-in and a handle for
// ReleaseInfo, or CodeUnknown if no such plug-in is installed. Per spec
// §4.3, the returned handle holds a reference on the plug-in's own
// descriptor handle (r.descHandle, registered at Install) for as long as
// the snapshot is held, so the descriptor survives Uninstall while a caller
// still has it checked out.
func (ctx *Context) GetPluginInfo(id string) (*PluginInfo, infoHandle, error) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	r, ok := ctx.env.plugins[id]
	if !ok {
		return nil, "", newErr(CodeUnknown, id, "get_plugin_info", "no such plug-in", nil)
	}
	info := pluginInfoOf(r)
	ctx.fw.info.acquire(r.descHandle)
	dh := r.descHandle
	h := ctx.fw.info.register(func() { ctx.fw.info.release(dh) })
	return info, h, nil
}

// GetPluginsInfo returns a snapshot of every installed plug-in and a handle
// for ReleaseInfo. The handle holds one reference on every included
// plug-in's descriptor handle, released together when the snapshot itself
// is released.
func (ctx *Context) GetPluginsInfo() ([]*PluginInfo, infoHandle) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	out := make([]*PluginInfo, 0, len(ctx.env.plugins))
	handles := make([]infoHandle, 0, len(ctx.env.plugins))
	for _, r := range ctx.env.plugins {
		out = append(out, pluginInfoOf(r))
		ctx.fw.info.acquire(r.descHandle)
		handles = append(handles, r.descHandle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	h := ctx.fw.info.register(func() {
		for _, dh := range handles {
			ctx.fw.info.release(dh)
		}
	})
	return out, h
}

func pluginInfoOf(r *Record) *PluginInfo {
	return &PluginInfo{
		ID:       r.Descriptor.ID,
		Version:  r.Descriptor.Version,
		Provider: r.Descriptor.Provider,
		Path:     r.Descriptor.Path,
		State:    r.State,
	}
}

// GetPluginState returns the current state of the named plug-in.
func (ctx *Context) GetPluginState(id string) (PluginState, error) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	r, ok := ctx.env.plugins[id]
	if !ok {
		return StateUninstalled, newErr(CodeUnknown, id, "get_plugin_state", "no such plug-in", nil)
	}
	return r.State, nil
}

// GetExtPointsInfo returns a snapshot of every declared extension point in
// the environment and a handle for ReleaseInfo. The handle holds one
// reference on each entry's owning plug-in's descriptor handle (an owner
// contributing several extension points is acquired once per entry).
func (ctx *Context) GetExtPointsInfo() ([]*ExtPointInfo, infoHandle) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	out := make([]*ExtPointInfo, 0, len(ctx.env.extPoints))
	handles := make([]infoHandle, 0, len(ctx.env.extPoints))
	for _, e := range ctx.env.extPoints {
		out = append(out, &ExtPointInfo{
			GlobalID:   e.decl.GlobalID,
			LocalID:    e.decl.LocalID,
			Name:       e.decl.Name,
			SchemaPath: e.decl.SchemaPath,
			OwnerID:    e.owner.Descriptor.ID,
		})
		ctx.fw.info.acquire(e.owner.descHandle)
		handles = append(handles, e.owner.descHandle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalID < out[j].GlobalID })
	h := ctx.fw.info.register(func() {
		for _, dh := range handles {
			ctx.fw.info.release(dh)
		}
	})
	return out, h
}

// GetExtensionsInfo returns a snapshot of every extension contributed
// against extPointID, or every extension in the environment when extPointID
// is "". The handle holds one reference on each entry's owning plug-in's
// descriptor handle.
func (ctx *Context) GetExtensionsInfo(extPointID string) ([]*ExtensionInfo, infoHandle) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	var out []*ExtensionInfo
	var handles []infoHandle
	appendEntries := func(entries []*extensionEntry) {
		for _, e := range entries {
			out = append(out, &ExtensionInfo{
				GlobalID:   e.decl.GlobalID,
				LocalID:    e.decl.LocalID,
				Name:       e.decl.Name,
				ExtPointID: e.decl.ExtPointID,
				OwnerID:    e.owner.Descriptor.ID,
				Config:     e.decl.Config,
			})
			ctx.fw.info.acquire(e.owner.descHandle)
			handles = append(handles, e.owner.descHandle)
		}
	}
	if extPointID == "" {
		for _, entries := range ctx.env.extensions {
			appendEntries(entries)
		}
	} else {
		appendEntries(ctx.env.extensions[extPointID])
	}
	h := ctx.fw.info.register(func() {
		for _, dh := range handles {
			ctx.fw.info.release(dh)
		}
	})
	return out, h
}

// ReleaseInfo decrements the refcount of a handle obtained from one of the
// Get*Info snapshot operations. Releasing an unregistered handle is a fatal
// error (spec §7).
func (ctx *Context) ReleaseInfo(h infoHandle) {
	if !ctx.fw.info.release(h) {
		ctx.fw.raiseFatal("release_info", "release of an unregistered info handle")
	}
}
