package registry

import (
	"errors"
	"testing"
)

func TestSnapshotValidate(t *testing.T) {
	cases := []struct {
		name    string
		snap    Snapshot
		wantErr error
	}{
		{
			name:    "empty snapshot is valid",
			snap:    Snapshot{},
			wantErr: nil,
		},
		{
			name: "valid entities",
			snap: Snapshot{Entities: []EntityRecord{
				{EntityID: "switch.a"},
				{EntityID: "switch.b"},
			}},
			wantErr: nil,
		},
		{
			name: "empty entity id",
			snap: Snapshot{Entities: []EntityRecord{
				{EntityID: "switch.a"},
				{EntityID: ""},
			}},
			wantErr: ErrEmptyEntityID,
		},
		{
			name: "duplicate entity id",
			snap: Snapshot{Entities: []EntityRecord{
				{EntityID: "switch.a"},
				{EntityID: "switch.a"},
			}},
			wantErr: ErrDuplicateEntity,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.snap.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSnapshotDeviceFor(t *testing.T) {
	devID := "dev1"
	otherID := "dev2"
	snap := Snapshot{
		Entities: []EntityRecord{
			{EntityID: "switch.a", DeviceID: &devID},
			{EntityID: "switch.b"},
			{EntityID: "switch.c", DeviceID: &otherID},
		},
		Devices: []DeviceRecord{{DeviceID: devID}},
	}

	if got := snap.DeviceFor(snap.Entities[0]); got == nil || got.DeviceID != devID {
		t.Errorf("DeviceFor(a) = %v, want device %s", got, devID)
	}
	if got := snap.DeviceFor(snap.Entities[1]); got != nil {
		t.Errorf("DeviceFor(b) = %v, want nil for entity without device", got)
	}
	if got := snap.DeviceFor(snap.Entities[2]); got != nil {
		t.Errorf("DeviceFor(c) = %v, want nil for device missing from snapshot", got)
	}
}
