package plugins

// DefineSymbol stores ptr under name on the plug-in that owns ctx. ctx must
// be a plug-in-owned context (the one passed to that plug-in's create
// hook); calling it on a host context is a programmer error. CONFLICT if
// name is already defined. The symbol lives for the plug-in's ACTIVE state
// and is cleared at stop.
func (ctx *Context) DefineSymbol(name string, ptr any) error {
	if ctx.ownerPlugin == nil {
		ctx.fw.raiseFatal("define_symbol", "define_symbol called on a non-plugin-owned context")
	}
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	r := ctx.ownerPlugin
	if _, exists := r.definedSymbols[name]; exists {
		return newErr(CodeConflict, r.Descriptor.ID, "define_symbol", "symbol "+name+" is already defined", nil)
	}
	r.definedSymbols[name] = ptr
	return nil
}

// ResolveSymbol starts providerID if it is not already ACTIVE, then looks
// up name: first as a context-specific symbol defined by the provider via
// DefineSymbol, falling back to the global symbol exported by the
// provider's runtime library. The first resolution by this consumer of a
// given provider adds a dynamic dependency edge unless a static import
// already covers the pair.
//
// This is deliberately written to start the provider via the internal
// resolveLocked/startRecursive helpers rather than the public StartPlugin:
// ResolveSymbol is meant to be callable from inside a plug-in's own
// create/start hook (that is its whole purpose — a consumer wires up a
// dependency on demand instead of declaring a static import), and at that
// point the enclosing StartPlugin call is still in progress (runUnlocked has
// released ctx.env.mu only for the duration of the hook) and checkReentrant
// would (correctly, for any other caller) treat a nested StartPlugin call
// as a forbidden re-entrant lifecycle call. Starting the provider here is
// an internal continuation of this same resolve_symbol call, not a second
// public lifecycle invocation.
func (ctx *Context) ResolveSymbol(providerID, name string) (any, error) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()

	provider, ok := ctx.env.plugins[providerID]
	if !ok {
		return nil, newErr(CodeUnknown, providerID, "resolve_symbol", "no such plug-in", nil)
	}

	if provider.State != StateActive {
		if err := ctx.resolveLocked(provider); err != nil {
			return nil, err
		}
		var visited []*Record
		err := ctx.startRecursive(provider, &visited)
		for _, v := range visited {
			v.processed = false
		}
		if err != nil {
			return nil, err
		}
	}

	ptr, ok := provider.definedSymbols[name]
	if !ok {
		ptr, ok = ctx.globalSymbol(provider, name)
		if !ok {
			return nil, newErr(CodeUnknown, providerID, "resolve_symbol", "symbol "+name+" not found", nil)
		}
	}

	pinfo, ok := ctx.symbolProviders[provider]
	if !ok {
		staticallyImported := ctx.consumerImports(provider)
		pinfo = &providerInfo{imported: staticallyImported, provider: provider}
		ctx.symbolProviders[provider] = pinfo
		if !staticallyImported && ctx.ownerPlugin != nil {
			ctx.ownerPlugin.addImport(provider)
		}
	}
	pinfo.usage++
	provider.symbolUsage++

	sinfo, ok := ctx.resolvedSymbols[ptr]
	if !ok {
		sinfo = &symbolInfo{provider: pinfo}
		ctx.resolvedSymbols[ptr] = sinfo
	}
	sinfo.usage++

	return ptr, nil
}

// globalSymbol resolves name against the provider's loaded runtime
// library, when it has one.
func (ctx *Context) globalSymbol(provider *Record, name string) (any, bool) {
	if provider.library == nil {
		return nil, false
	}
	return provider.library.Symbol(name)
}

func (ctx *Context) consumerImports(provider *Record) bool {
	if ctx.ownerPlugin == nil {
		return false
	}
	_, ok := ctx.ownerPlugin.imported[provider.Descriptor.ID]
	return ok
}

// ReleaseSymbol releases one resolution of ptr obtained from ResolveSymbol.
// When the symbol's usage count reaches zero its entry is removed; when the
// owning provider's usage count then reaches zero, any dynamic dependency
// edge created on first use is withdrawn. Releasing an unknown pointer is
// logged but not fatal.
func (ctx *Context) ReleaseSymbol(ptr any) {
	ctx.env.mu.Lock()
	defer ctx.env.mu.Unlock()
	ctx.releaseSymbolLocked(ptr)
}

// releaseSymbolLocked is ReleaseSymbol's body, for callers (the stop path)
// that already hold ctx.env.mu.
func (ctx *Context) releaseSymbolLocked(ptr any) {
	sinfo, ok := ctx.resolvedSymbols[ptr]
	if !ok {
		ctx.fw.Log(ctx, SeverityWarn, "release_symbol called with an unresolved pointer")
		return
	}
	sinfo.usage--
	if sinfo.usage <= 0 {
		delete(ctx.resolvedSymbols, ptr)
	}

	pinfo := sinfo.provider
	pinfo.usage--
	pinfo.provider.symbolUsage--
	if pinfo.usage <= 0 {
		delete(ctx.symbolProviders, pinfo.provider)
		if !pinfo.imported && ctx.ownerPlugin != nil {
			ctx.ownerPlugin.removeImport(pinfo.provider)
		}
	}
}
