package plugins

// FrameworkOptions are host-supplied bootstrap settings, filled in by the
// host rather than parsed from a file by the core (spec.md's configuration
// model is the plug-in's own in-memory ConfigElement tree, not a core
// bootstrap format).
type FrameworkOptions struct {
	// DefaultMatchRule is the MatchRule that Framework.NewImport assigns.
	// An Import built directly without a MatchRule keeps the zero value,
	// MatchNone; resolve does not substitute this default.
	DefaultMatchRule MatchRule
	// LogSeverityThreshold seeds the cached minimum severity before any
	// logger is added, so early log() calls before AddLogger runs are cheap
	// no-ops rather than defaulting to "log everything".
	LogSeverityThreshold Severity
}

// DefaultFrameworkOptions returns the options a host gets by leaving
// FrameworkOptions unset: GREATER_OR_EQUAL matching and nothing logged
// until a logger is registered.
func DefaultFrameworkOptions() FrameworkOptions {
	return FrameworkOptions{
		DefaultMatchRule:     MatchGreaterOrEqual,
		LogSeverityThreshold: SeverityFatal,
	}
}

// InitWithOptions is Init with host-supplied bootstrap options applied to
// the singleton on first creation. Subsequent calls (nested Init) ignore
// opts and simply increment the reference count, matching Init.
func InitWithOptions(opts FrameworkOptions) *Framework {
	singletonMu.Lock()
	firstInit := singleton == nil
	singletonMu.Unlock()

	f := Init()
	if firstInit {
		f.mu.Lock()
		f.minSeverity = opts.LogSeverityThreshold
		f.defaultMatchRule = opts.DefaultMatchRule
		f.mu.Unlock()
	}
	return f
}

// NewImport builds an Import using the framework's configured
// DefaultMatchRule, for descriptor-construction helpers (tests, or a host
// assembling descriptors without the XML parser) that don't need to pick a
// match rule per import.
func (f *Framework) NewImport(pluginID string, version Version, optional bool) Import {
	f.mu.Lock()
	rule := f.defaultMatchRule
	f.mu.Unlock()
	return Import{PluginID: pluginID, Version: version, MatchRule: rule, Optional: optional}
}
