// Package database provides SQLite persistence for IntuiTherm Pattern Core.
//
// The engine's durable footprint is deliberately tiny: one key/value blobs
// table holding the learned-pattern subset. Built-in patterns ship with the
// binary and are never written to disk.
//
// SQLite is configured with WAL mode and a busy timeout for safe operation
// alongside whatever else runs on the host box. The BlobStore's Save is
// transactional so partial writes can never be observed.
package database
