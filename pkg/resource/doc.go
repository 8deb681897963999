// Package resource resolves template paths to canonical template handles and keeps a
// preload pool of ready-made spare instances.
//
// # Template cache
//
// A path maps to at most one template and the first registration wins. Resolving a
// cached path returns the same handle every time, which is what lets the pool
// manager key its sets by template identity.
//
// # Preload pool
//
// AddPreload builds inactive spares under a hidden, persistent, inactive container.
// Instantiate hands spares out in insertion order before building anything new.
//
// # Concurrency
//
// A Cache is not safe for concurrent use. Every method is called while holding the
// scheduler baton; the async variants suspend the calling task instead of blocking.
package resource
