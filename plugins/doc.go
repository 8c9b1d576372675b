// Package plugins implements the core of an embeddable plug-in framework.
//
// A Framework is a process-global singleton reference-counted by Init/Destroy.
// Each Context is an isolated cooperation environment in which plug-ins are
// installed, resolved, started, stopped and uninstalled. Plug-ins declare
// extension points and contribute extensions against extension points
// declared by other plug-ins, and may expose dynamic symbols that peers
// resolve at runtime with automatic, reference-counted dependency tracking.
//
// The directory-walking scanner, the XML descriptor parser, and the
// shared-library loader are collaborators outside this package; the core
// consumes their output (a *Descriptor, a LibraryLoader) rather than
// implementing them.
package plugins
