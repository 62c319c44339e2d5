package pattern

import (
	"reflect"
	"testing"

	"github.com/intuitherm/pattern-core/internal/registry"
)

func TestExtractTokenisesFriendlyName(t *testing.T) {
	cases := []struct {
		name   string
		entity registry.EntityRecord
		want   DeviceSignature
	}{
		{
			name: "plain name",
			entity: registry.EntityRecord{
				EntityID:     "switch.foxess_force_charge",
				FriendlyName: "FoxESS Force Charge",
			},
			want: DeviceSignature{
				EntityID:   "switch.foxess_force_charge",
				Domain:     DomainSwitch,
				NameTokens: []string{"foxess", "force", "charge"},
			},
		},
		{
			name: "punctuation and mixed separators",
			entity: registry.EntityRecord{
				EntityID:     "number.soc",
				FriendlyName: "SUN2000-7KTL: End-of-charge SOC (%)",
			},
			want: DeviceSignature{
				EntityID:   "number.soc",
				Domain:     DomainNumber,
				NameTokens: []string{"sun2000", "7ktl", "end", "of", "charge", "soc"},
			},
		},
		{
			name: "empty friendly name falls back to entity id",
			entity: registry.EntityRecord{
				EntityID:     "switch.fox_ess_force_charge",
				FriendlyName: "",
			},
			want: DeviceSignature{
				EntityID:   "switch.fox_ess_force_charge",
				Domain:     DomainSwitch,
				NameTokens: []string{"fox", "ess", "force", "charge"},
			},
		},
		{
			name: "unknown domain prefix",
			entity: registry.EntityRecord{
				EntityID:     "light.inverter_lamp",
				FriendlyName: "Inverter Lamp",
			},
			want: DeviceSignature{
				EntityID:   "light.inverter_lamp",
				Domain:     DomainUnknown,
				NameTokens: []string{"inverter", "lamp"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.entity, nil)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Extract() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestExtractDeviceHints(t *testing.T) {
	model := "  SUN2000-10KTL-M1  "
	manufacturer := "Huawei"
	device := &registry.DeviceRecord{
		DeviceID:     "dev1",
		Model:        &model,
		Manufacturer: &manufacturer,
	}
	entity := registry.EntityRecord{
		EntityID:     "switch.forcible_charge",
		FriendlyName: "Forcible Charge",
	}

	got := Extract(entity, device)
	if got.ModelHint != "sun2000-10ktl-m1" {
		t.Errorf("ModelHint = %q, want lower-cased trimmed model", got.ModelHint)
	}
	if got.ManufacturerHint != "huawei" {
		t.Errorf("ManufacturerHint = %q, want huawei", got.ManufacturerHint)
	}
}

func TestExtractIsPure(t *testing.T) {
	entity := registry.EntityRecord{
		EntityID:     "switch.foxess_force_charge",
		FriendlyName: "FoxESS Force Charge",
	}
	first := Extract(entity, nil)
	for i := 0; i < 3; i++ {
		if again := Extract(entity, nil); !reflect.DeepEqual(first, again) {
			t.Fatalf("Extract() not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestExtractAll(t *testing.T) {
	deviceID := "dev1"
	model := "H1-5.0-E"
	snap := &registry.Snapshot{
		Entities: []registry.EntityRecord{
			{EntityID: "switch.a", FriendlyName: "A", DeviceID: &deviceID},
			{EntityID: "", FriendlyName: "skipped"},
			{EntityID: "number.b", FriendlyName: "B"},
		},
		Devices: []registry.DeviceRecord{
			{DeviceID: deviceID, Model: &model},
		},
	}

	sigs := ExtractAll(snap)
	if len(sigs) != 2 {
		t.Fatalf("ExtractAll() returned %d signatures, want 2", len(sigs))
	}
	if sigs[0].ModelHint != "h1-5.0-e" {
		t.Errorf("ModelHint = %q, want device model carried through", sigs[0].ModelHint)
	}
	if sigs[1].EntityID != "number.b" {
		t.Errorf("second signature = %s, want number.b (snapshot order)", sigs[1].EntityID)
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"FoxESS Force Charge", []string{"foxess", "force", "charge"}},
		{"min_soc-on/grid", []string{"min", "soc", "on", "grid"}},
		{"   ", nil},
		{"", nil},
		{"SUN2000L1", []string{"sun2000l1"}},
	}
	for _, tc := range cases {
		got := Tokenize(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDomainFromEntityID(t *testing.T) {
	cases := []struct {
		in   string
		want Domain
	}{
		{"switch.x", DomainSwitch},
		{"number.x", DomainNumber},
		{"select.x", DomainSelect},
		{"sensor.x", DomainSensor},
		{"binary_sensor.x", DomainBinarySensor},
		{"light.x", DomainUnknown},
		{"nodot", DomainUnknown},
		{"", DomainUnknown},
	}
	for _, tc := range cases {
		if got := DomainFromEntityID(tc.in); got != tc.want {
			t.Errorf("DomainFromEntityID(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
