package registry

import (
	"errors"
	"fmt"
)

// Domain errors for the registry package.
var (
	// ErrEmptyEntityID is returned when a snapshot contains an entity record
	// without an entity ID.
	ErrEmptyEntityID = errors.New("registry: empty entity id")

	// ErrDuplicateEntity is returned when a snapshot lists the same entity
	// ID more than once.
	ErrDuplicateEntity = errors.New("registry: duplicate entity id")
)

// EntityRecord is one entity as reported by the host registry.
type EntityRecord struct {
	EntityID     string  `json:"entity_id"`
	FriendlyName string  `json:"friendly_name"`
	DeviceID     *string `json:"device_id,omitempty"`
}

// DeviceRecord is the device metadata associated with one or more entities.
// Model and Manufacturer are optional; the host may not know either.
type DeviceRecord struct {
	DeviceID     string  `json:"device_id"`
	Model        *string `json:"model,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
}

// Snapshot is a point-in-time, read-only view of the host entity registry.
type Snapshot struct {
	Entities []EntityRecord `json:"entities"`
	Devices  []DeviceRecord `json:"devices,omitempty"`
}

// Validate checks the snapshot's structural invariants.
// An empty snapshot is valid (matching then yields an empty result set).
func (s *Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Entities))
	for i := range s.Entities {
		id := s.Entities[i].EntityID
		if id == "" {
			return fmt.Errorf("%w: entity at index %d", ErrEmptyEntityID, i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// DeviceFor returns the device record referenced by the entity, or nil if the
// entity has no device or the device is not present in the snapshot.
func (s *Snapshot) DeviceFor(e EntityRecord) *DeviceRecord {
	if e.DeviceID == nil {
		return nil
	}
	for i := range s.Devices {
		if s.Devices[i].DeviceID == *e.DeviceID {
			return &s.Devices[i]
		}
	}
	return nil
}
