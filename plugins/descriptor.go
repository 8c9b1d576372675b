package plugins

// Import is one entry of a descriptor's import list: a required or
// optional dependency on another plug-in, constrained by a version and a
// MatchRule.
type Import struct {
	PluginID   string
	Version    Version
	MatchRule  MatchRule
	Optional   bool
}

// RuntimeSpec names the shared library and function-table symbol a
// descriptor's runtime declares. A descriptor with no runtime has a zero
// RuntimeSpec (empty LibraryPath).
type RuntimeSpec struct {
	LibraryPath string
	SymbolName  string
}

// ExtensionPointDecl is one extension point declared by a descriptor.
type ExtensionPointDecl struct {
	LocalID    string
	GlobalID   string
	Name       string
	SchemaPath string
}

// ExtensionDecl is one extension contribution declared by a descriptor,
// targeting an extension point (by global id) declared by some plug-in.
type ExtensionDecl struct {
	ExtPointID string
	LocalID    string
	GlobalID   string // optional; empty if the descriptor left it unset
	Name       string
	Config     *ConfigElement
}

// Descriptor is the immutable, shared, ref-counted plug-in descriptor
// produced by the (out-of-scope) descriptor parser and passed by reference
// into Install. The core never mutates a Descriptor after it is installed.
type Descriptor struct {
	ID             string
	Version        Version
	Provider       string
	Path           string
	Imports        []Import
	Runtime        RuntimeSpec
	ExtensionPoints []ExtensionPointDecl
	Extensions     []ExtensionDecl
}

func (d *Descriptor) hasRuntime() bool { return d.Runtime.LibraryPath != "" }
