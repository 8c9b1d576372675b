package plugins

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// resolveEdge is one static import edge created during a resolve attempt,
// kept so a failed attempt can withdraw exactly what it added.
type resolveEdge struct {
	from, to *Record
}

// resolveAttempt accumulates the work of one top-level resolve call so a
// failure anywhere in the dependency graph can be rolled back atomically
// (spec §4.2, "two-phase" resolution).
type resolveAttempt struct {
	order      []*Record // discovery sequence (first visit), becomes the commit order
	visited    []*Record // every node the recursive pass touched, for mark cleanup
	edges      []resolveEdge
	loadedLibs []*Record
}

// resolveLocked resolves root and its transitive mandatory dependencies.
// Callers must hold ctx.env.mu. A no-op if root is already RESOLVED or later.
func (ctx *Context) resolveLocked(root *Record) error {
	if root.State >= StateResolved {
		return nil
	}
	attempt := &resolveAttempt{}
	err := ctx.resolvePass(root, attempt)
	for _, r := range attempt.visited {
		r.processed = false
	}
	if err != nil {
		ctx.rollbackResolve(attempt)
		return err
	}
	ctx.commitResolve(attempt)
	return nil
}

func (ctx *Context) resolvePass(node *Record, attempt *resolveAttempt) error {
	if node.State >= StateResolved {
		return nil
	}
	if node.processed {
		// Already being visited earlier in this same pass: a dependency
		// cycle. Leave it for the commit pass once the whole attempt
		// succeeds.
		return nil
	}
	node.processed = true
	attempt.visited = append(attempt.visited, node)
	// Recorded at discovery time, not completion time: the commit pass
	// delivers events in the order nodes first entered this attempt, which
	// for a cycle means the node that started the recursion fires first.
	attempt.order = append(attempt.order, node)

	for _, imp := range node.Descriptor.Imports {
		dep, ok := ctx.env.plugins[imp.PluginID]
		if !ok {
			if imp.Optional {
				continue
			}
			return newErr(CodeDependency, node.Descriptor.ID, "resolve", "missing mandatory import "+imp.PluginID, nil)
		}
		if !imp.MatchRule.Satisfies(dep.Descriptor.Version, imp.Version) {
			if imp.Optional {
				continue
			}
			return newErr(CodeDependency, node.Descriptor.ID, "resolve",
				"import "+imp.PluginID+" does not satisfy version constraint", nil)
		}
		if err := ctx.resolvePass(dep, attempt); err != nil {
			if imp.Optional {
				continue
			}
			return err
		}
		node.addImport(dep)
		attempt.edges = append(attempt.edges, resolveEdge{from: node, to: dep})
	}

	if node.Descriptor.hasRuntime() && node.library == nil {
		if err := ctx.loadRuntime(node, attempt); err != nil {
			return err
		}
	}

	return nil
}

func (ctx *Context) loadRuntime(node *Record, attempt *resolveAttempt) error {
	if ctx.loader == nil {
		return newErr(CodeRuntime, node.Descriptor.ID, "resolve", "no library loader configured for a runtime-declaring plug-in", nil)
	}
	handle, err := ctx.loader.Open(node.Descriptor.Runtime.LibraryPath)
	if err != nil {
		return newErr(CodeRuntime, node.Descriptor.ID, "resolve", "failed to load runtime library", err)
	}
	sym, ok := handle.Symbol(node.Descriptor.Runtime.SymbolName)
	if !ok {
		handle.Close()
		return newErr(CodeRuntime, node.Descriptor.ID, "resolve", "runtime function table symbol not found", nil)
	}
	fns, ok := sym.(*RuntimeFunctions)
	if !ok || fns.Create == nil || fns.Destroy == nil {
		handle.Close()
		return newErr(CodeRuntime, node.Descriptor.ID, "resolve", "runtime function table missing required create/destroy", nil)
	}
	node.library = handle
	node.functions = fns
	attempt.loadedLibs = append(attempt.loadedLibs, node)
	return nil
}

func (ctx *Context) rollbackResolve(attempt *resolveAttempt) {
	for _, e := range attempt.edges {
		e.from.removeImport(e.to)
	}
	var unloadErrs *multierror.Error
	for _, r := range attempt.loadedLibs {
		if err := r.library.Close(); err != nil {
			unloadErrs = multierror.Append(unloadErrs, fmt.Errorf("%s: %w", r.Descriptor.ID, err))
		}
		r.library = nil
		r.functions = nil
	}
	if unloadErrs.ErrorOrNil() != nil {
		ctx.fw.Log(ctx, SeverityError, "resolve rollback: "+unloadErrs.Error())
	}
}

func (ctx *Context) commitResolve(attempt *resolveAttempt) {
	for _, r := range attempt.order {
		if r.State >= StateResolved {
			continue
		}
		old := r.State
		r.State = StateResolved
		ctx.notify(PluginStateEvent{PluginID: r.Descriptor.ID, OldState: old, NewState: StateResolved})
	}
}
