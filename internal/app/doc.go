// Package app wires configuration into a ready document store.
//
// OpenStore picks the backend named by store.backend, wraps it with
// Prometheus instrumentation when a registerer is given and with the Redis
// read-through cache when cache.enabled is set. cmd/server and cmd/docrepo
// share it so both binaries see the same store.
package app
