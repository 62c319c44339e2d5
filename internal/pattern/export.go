package pattern

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExportLocal maps every learned-local pattern in the store to its scrubbed,
// shareable form. Built-in patterns are excluded (there is no value in
// resharing them), as are community-sourced patterns, which would only be
// echoed back.
//
// The scrubbing is structural: SharedPatternRecord has no fields for entity
// IDs, friendly names, pattern IDs or timestamps, so nothing install-specific
// survives the conversion.
func ExportLocal(store *Store) []SharedPatternRecord {
	learned := store.Learned()
	records := make([]SharedPatternRecord, 0, len(learned))
	for i := range learned {
		p := &learned[i]
		if p.Origin != OriginLearnedLocal {
			continue
		}
		records = append(records, SharedPatternRecord{
			Brand:            p.Brand,
			Role:             p.Role,
			Rules:            p.Rules.Clone(),
			ConfidenceWeight: p.ConfidenceWeight,
			SuccessCount:     p.SuccessCount,
			FailureCount:     p.FailureCount,
		})
	}
	return records
}

// ExportPayload is the full local pattern backup: built-ins included so a
// restored install can diff against the library it shipped with. This is a
// user-facing artifact and is never submitted to the community channel.
type ExportPayload struct {
	Version     int             `json:"version"`
	GeneratedAt time.Time       `json:"generated_at"`
	Patterns    []DevicePattern `json:"patterns"`
}

// ToJSONExport serialises the given pattern set as an indented, human-
// readable JSON document for user backup.
func ToJSONExport(patterns []DevicePattern, generatedAt time.Time) ([]byte, error) {
	payload := ExportPayload{
		Version:     storageVersion,
		GeneratedAt: generatedAt.UTC(),
		Patterns:    patterns,
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding pattern export: %w", err)
	}
	return raw, nil
}
