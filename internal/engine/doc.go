// Package engine wires the detection pipeline to the MQTT transport.
//
// The host platform publishes entity-registry snapshots; the engine runs
// extraction, matching, and conflict resolution over each one and publishes
// the resulting role assignments as a match event. The HTTP API offers the
// same pipeline synchronously; this package is the asynchronous path.
package engine
