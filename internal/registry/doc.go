// Package registry defines the read-only view of the host platform's entity
// registry consumed by the matching engine.
//
// The engine never mutates the host registry; it receives point-in-time
// snapshots (via the HTTP API or the MQTT snapshot topic) and validates them
// once at this boundary, so downstream components never branch on the shape
// of host data.
package registry
