// Package cache provides a typed in-memory TTL cache for remote call
// results.
//
// Each call site owns a [Cache] parameterized by its value type, so reads
// never need a downcast. Expiry is lazy: entries are checked on every Get
// and evicted when stale; there is no background sweep. Keys can be removed
// one at a time, all at once, or by regular expression.
//
// [DefaultKeyer] derives deterministic keys from request inputs and
// [Policy] clamps TTLs. The presets [TTLShort], [TTLDefault] and [TTLLong]
// cover the usual freshness needs.
package cache
