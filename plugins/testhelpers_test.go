package plugins

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// fakeLibrary is an in-memory LibraryHandle: symbols are pre-populated by
// the test instead of being resolved from an actual shared object.
type fakeLibrary struct {
	symbols  map[string]any
	closeErr error
	closed   bool
}

func (l *fakeLibrary) Symbol(name string) (any, bool) {
	v, ok := l.symbols[name]
	return v, ok
}

func (l *fakeLibrary) Close() error {
	l.closed = true
	return l.closeErr
}

// fakeLoader is an in-memory LibraryLoader keyed by path.
type fakeLoader struct {
	libs map[string]*fakeLibrary
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{libs: make(map[string]*fakeLibrary)}
}

func (f *fakeLoader) Open(path string) (LibraryHandle, error) {
	lib, ok := f.libs[path]
	if !ok {
		return nil, fmt.Errorf("fakeLoader: no such library %q", path)
	}
	return lib, nil
}

func (f *fakeLoader) add(path string, fns *RuntimeFunctions, globals map[string]any) {
	symbols := map[string]any{"functions": fns}
	for k, v := range globals {
		symbols[k] = v
	}
	f.libs[path] = &fakeLibrary{symbols: symbols}
}

// testDescriptor builds a Descriptor with a runtime whose function table is
// registered in loader under the plugin's own id as both library path and
// symbol name, for brevity.
func testDescriptor(id, version string, imports []Import, fns *RuntimeFunctions) *Descriptor {
	d := &Descriptor{
		ID:      id,
		Version: ParseVersion(version),
		Imports: imports,
	}
	if fns != nil {
		d.Runtime = RuntimeSpec{LibraryPath: id, SymbolName: "functions"}
	}
	return d
}

func mandatoryImport(id, version string) Import {
	return Import{PluginID: id, Version: ParseVersion(version), MatchRule: MatchGreaterOrEqual}
}

func optionalImport(id, version string) Import {
	return Import{PluginID: id, Version: ParseVersion(version), MatchRule: MatchGreaterOrEqual, Optional: true}
}

// noopFns is a minimal valid runtime function table: required Create/Destroy
// only, no Start/Stop.
func noopFns() *RuntimeFunctions {
	return &RuntimeFunctions{
		Create:  func(ctx *Context) (any, bool) { return struct{}{}, true },
		Destroy: func(instance any) {},
	}
}

// recordingLogger is a fake kratos log.Logger capturing every call for
// assertions, instead of writing anywhere.
type recordingLogger struct {
	entries []recordedEntry
}

type recordedEntry struct {
	level   log.Level
	keyvals []any
}

func (l *recordingLogger) Log(level log.Level, keyvals ...any) error {
	l.entries = append(l.entries, recordedEntry{level: level, keyvals: keyvals})
	return nil
}
