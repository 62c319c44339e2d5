// Package pattern implements the device pattern learning and matching engine
// for IntuiTherm battery-control auto-detection.
//
// The engine answers one question: given the host platform's entity registry,
// which entities are the battery-control points (force-charge switch, minimum
// SOC number, work-mode select, ...) of the user's solar inverter?
//
// It is organised as a small pipeline:
//
//	registry snapshot -> Extract (signature.go) -> Matcher (matcher.go)
//	user feedback     -> Learner (learner.go)   -> Store (store.go)
//	Store             -> Exporter (export.go)   -> community / backup
//
// # Ownership
//
// The Store exclusively owns the canonical pattern collection. The Matcher
// receives read-only copies; all mutations flow through the Learner's single
// write path. Scoring is a bounded, explainable heuristic (fraction of rule
// tokens found as substrings of the entity's name tokens, weighted by the
// pattern's confidence), not a statistical model.
//
// # Privacy
//
// SharedPatternRecord is the only type that leaves the local system. It is
// scrubbed by construction: the type has no entity ID, friendly name or
// install-specific timestamp fields, so nothing install-identifying can be
// serialised from it.
package pattern
