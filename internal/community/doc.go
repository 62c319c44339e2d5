// Package community handles opt-in sharing of learned patterns.
//
// Submissions are scrubbed pattern records wrapped in an HS256-signed JWT
// envelope and published over MQTT. The signature lets an aggregation
// service drop submissions from unknown installations without the envelope
// carrying any identity beyond the shared key.
//
// Sharing is fire-and-forget. A failed submission is logged and dropped;
// it never affects local matching or learning.
//
// The reverse direction uses the same envelope format: aggregated pattern
// batches distributed back to installations are verified and merged into
// the local store by the Importer.
package community
