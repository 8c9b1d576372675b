package plugins

// ScanFlags controls ScanPlugins' behavior toward plug-ins already
// installed in the context (spec §4.2).
type ScanFlags int

const (
	// FlagUpgrade allows a newly discovered descriptor to replace an
	// already-installed plug-in of the same identifier when its version is
	// higher.
	FlagUpgrade ScanFlags = 1 << iota
	// FlagStopAllOnUpgrade stops every active plug-in before any upgrade
	// replacement is made.
	FlagStopAllOnUpgrade
	// FlagStopAllOnInstall stops every active plug-in before any new
	// (non-replacing) install is made.
	FlagStopAllOnInstall
	// FlagRestartActive remembers which plug-ins were ACTIVE before the
	// scan and starts them again once it completes.
	FlagRestartActive
)

// DescriptorSource is the collaborator interface for the directory-walking
// scanner named out of scope in spec §1: given the context's registered
// directories, it discovers and parses candidate descriptors. The core
// only deduplicates and orchestrates install/replace/restart around its
// output.
type DescriptorSource interface {
	Discover(dirs []string) ([]*Descriptor, error)
}

// RegisterPluginDir adds path to the context's registered plug-in
// directories, consulted by the next ScanPlugins call.
func (ctx *Context) RegisterPluginDir(path string) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	for _, d := range ctx.env.directories {
		if d == path {
			return
		}
	}
	ctx.env.directories = append(ctx.env.directories, path)
}

// UnregisterPluginDir removes path from the context's registered plug-in
// directories.
func (ctx *Context) UnregisterPluginDir(path string) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	for i, d := range ctx.env.directories {
		if d == path {
			ctx.env.directories = append(ctx.env.directories[:i], ctx.env.directories[i+1:]...)
			return
		}
	}
}

// ScanPlugins discovers candidates via source, deduplicates by identifier
// keeping the highest version (discovery order breaks ties), and installs
// them subject to flags. The interleaving with already-installed plug-ins
// is fixed by construction: stop-all, then uninstall replaced plug-ins,
// then install new/replacement descriptors, then (if FlagRestartActive)
// restart whatever was active beforehand.
func (ctx *Context) ScanPlugins(flags ScanFlags, source DescriptorSource) error {
	ctx.env.mu.Lock()
	dirs := append([]string(nil), ctx.env.directories...)
	ctx.env.mu.Unlock()

	// Per spec §7, IO and MALFORMED errors during discovery are per-candidate:
	// the scan continues over whatever descriptors the source did manage to
	// produce. source.Discover aggregates those with multierror so none of
	// them get silently dropped from the log.
	candidates, discoverErr := source.Discover(dirs)
	if discoverErr != nil {
		ctx.fw.Log(ctx, SeverityError, "scan_plugins: "+discoverErr.Error())
	}
	deduped := dedupeByVersion(candidates)

	ctx.env.mu.Lock()
	var replacing, fresh []*Descriptor
	for _, d := range deduped {
		existing, ok := ctx.env.plugins[d.ID]
		if !ok {
			fresh = append(fresh, d)
			continue
		}
		if flags&FlagUpgrade != 0 && d.Version.Compare(existing.Descriptor.Version) > 0 {
			replacing = append(replacing, d)
		}
	}

	var wasActive []string
	if flags&FlagRestartActive != 0 {
		for _, r := range ctx.env.started {
			wasActive = append(wasActive, r.Descriptor.ID)
		}
	}
	ctx.env.mu.Unlock()

	if (len(replacing) > 0 && flags&FlagStopAllOnUpgrade != 0) ||
		(len(fresh) > 0 && flags&FlagStopAllOnInstall != 0) {
		if err := ctx.StopAllPlugins(); err != nil {
			return err
		}
	}

	for _, d := range replacing {
		if err := ctx.UninstallPlugin(d.ID); err != nil {
			return err
		}
	}
	for _, d := range append(append([]*Descriptor{}, replacing...), fresh...) {
		if err := ctx.InstallPlugin(d); err != nil {
			return err
		}
	}

	if flags&FlagRestartActive != 0 {
		for _, id := range wasActive {
			ctx.env.mu.Lock()
			_, ok := ctx.env.plugins[id]
			ctx.env.mu.Unlock()
			if !ok {
				continue
			}
			if err := ctx.StartPlugin(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// dedupeByVersion keeps, per identifier, the highest-version descriptor;
// ties are resolved by discovery order (first wins).
func dedupeByVersion(candidates []*Descriptor) []*Descriptor {
	best := make(map[string]*Descriptor)
	order := make([]string, 0, len(candidates))
	for _, d := range candidates {
		cur, ok := best[d.ID]
		if !ok {
			best[d.ID] = d
			order = append(order, d.ID)
			continue
		}
		if d.Version.Compare(cur.Version) > 0 {
			best[d.ID] = d
		}
	}
	out := make([]*Descriptor, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}
