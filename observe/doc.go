// Package observe provides logging, metrics and tracing for remote calls.
//
// It is a pure instrumentation library. It runs no calls and owns no
// transport; the only I/O is exporter setup. A remote.Source takes a
// Middleware built from an Observer and reports every fetch through it:
// one span named remote.<source>.<operation>, the remote.call.* metrics,
// cache lookups, limiter waits and one structured log line per call.
package observe
