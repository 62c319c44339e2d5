package pattern

import (
	"strings"

	"github.com/intuitherm/pattern-core/internal/registry"
)

// Extract derives a normalised DeviceSignature from one host entity record and
// its optional device metadata.
//
// This is a pure function: same input always yields an identical signature.
// No I/O, no side effects. Shape quirks of host data are absorbed here so the
// Matcher and Learner only ever see well-formed signatures.
//
// Tokenisation lower-cases the friendly name and splits on every
// non-alphanumeric rune. If the friendly name yields no tokens, the entity ID
// itself is tokenised (with its domain prefix dropped) so that NameTokens is
// never empty for a non-empty entity ID.
func Extract(entity registry.EntityRecord, device *registry.DeviceRecord) DeviceSignature {
	sig := DeviceSignature{
		EntityID: entity.EntityID,
		Domain:   DomainFromEntityID(entity.EntityID),
	}

	sig.NameTokens = Tokenize(entity.FriendlyName)
	if len(sig.NameTokens) == 0 && entity.EntityID != "" {
		// Fall back to the raw ID. "switch.fox_ess_force_charge" tokenises
		// to [fox ess force charge] once the domain prefix is removed.
		_, object, found := strings.Cut(entity.EntityID, ".")
		if !found {
			object = entity.EntityID
		}
		sig.NameTokens = Tokenize(object)
	}

	if device != nil {
		if device.Model != nil {
			sig.ModelHint = strings.ToLower(strings.TrimSpace(*device.Model))
		}
		if device.Manufacturer != nil {
			sig.ManufacturerHint = strings.ToLower(strings.TrimSpace(*device.Manufacturer))
		}
	}

	return sig
}

// ExtractAll derives signatures for every entity in the snapshot, in snapshot
// order. Entities with empty IDs are skipped (the registry boundary rejects
// them before matching, this is belt-and-braces for direct callers).
func ExtractAll(snap *registry.Snapshot) []DeviceSignature {
	sigs := make([]DeviceSignature, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		if e.EntityID == "" {
			continue
		}
		sigs = append(sigs, Extract(e, snap.DeviceFor(e)))
	}
	return sigs
}

// Tokenize lower-cases s and splits it into tokens on every run of
// non-alphanumeric characters. Empty tokens are dropped.
func Tokenize(s string) []string {
	lower := strings.ToLower(s)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
		(r >= 'A' && r <= 'Z') || r > 127
}
