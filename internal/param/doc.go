// Package param implements deferred parameter binding.
//
// A Parameter names a placeholder slot and holds a live reference to a value
// owned by the caller. The value is read each time a statement is executed,
// never when the query is built, so mutating the referenced variable between
// two enumerations changes what the backend receives.
//
// The package does not synchronize caller mutation of referenced variables.
// Cell adds a mutex for callers that share a value across goroutines.
package param
