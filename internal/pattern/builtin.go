package pattern

// Built-in pattern library.
//
// Confidence weights reflect field verification: FoxESS patterns are verified
// in production installs (0.9); other brands are derived from published entity
// naming of their integrations and start slightly lower.

// builtinDef is the compact source form of a built-in pattern.
type builtinDef struct {
	brand  string
	role   Role
	tokens []string
	domain Domain
	weight float64
}

var builtinDefs = []builtinDef{
	// FoxESS (verified in production)
	{"foxess", RoleForceCharge, []string{"foxess", "force", "charge"}, DomainSwitch, 0.9},
	{"foxess", RoleForceDischarge, []string{"foxess", "force", "discharge"}, DomainSwitch, 0.9},
	{"foxess", RoleMinSOC, []string{"foxess", "min", "soc"}, DomainNumber, 0.9},
	{"foxess", RoleMaxSOC, []string{"foxess", "max", "soc"}, DomainNumber, 0.9},
	{"foxess", RoleChargePower, []string{"foxess", "charge", "power"}, DomainNumber, 0.85},
	{"foxess", RoleWorkMode, []string{"foxess", "work", "mode"}, DomainSelect, 0.9},

	// GivEnergy
	{"givenergy", RoleForceCharge, []string{"givenergy", "force", "charge"}, DomainSwitch, 0.85},
	{"givenergy", RoleForceDischarge, []string{"givenergy", "force", "discharge"}, DomainSwitch, 0.85},
	{"givenergy", RoleMinSOC, []string{"givenergy", "reserve", "soc"}, DomainNumber, 0.85},
	{"givenergy", RoleChargePower, []string{"givenergy", "charge", "rate"}, DomainNumber, 0.8},

	// Huawei SUN2000
	{"huawei", RoleForceCharge, []string{"sun2000", "forcible", "charge"}, DomainSwitch, 0.85},
	{"huawei", RoleForceDischarge, []string{"sun2000", "forcible", "discharge"}, DomainSwitch, 0.85},
	{"huawei", RoleMinSOC, []string{"sun2000", "end", "soc"}, DomainNumber, 0.8},
	{"huawei", RoleWorkMode, []string{"sun2000", "working", "mode"}, DomainSelect, 0.85},

	// SolarEdge
	{"solaredge", RoleChargePower, []string{"solaredge", "charge", "limit"}, DomainNumber, 0.8},
	{"solaredge", RoleWorkMode, []string{"solaredge", "storage", "mode"}, DomainSelect, 0.8},

	// Sungrow
	{"sungrow", RoleForceCharge, []string{"sungrow", "forced", "charge"}, DomainSwitch, 0.8},
	{"sungrow", RoleMinSOC, []string{"sungrow", "min", "soc"}, DomainNumber, 0.8},
	{"sungrow", RoleWorkMode, []string{"sungrow", "ems", "mode"}, DomainSelect, 0.8},

	// Growatt
	{"growatt", RoleForceCharge, []string{"growatt", "charge"}, DomainSwitch, 0.75},
	{"growatt", RoleMinSOC, []string{"growatt", "stop", "soc"}, DomainNumber, 0.75},

	// Solis
	{"solis", RoleForceCharge, []string{"solis", "timed", "charge"}, DomainSwitch, 0.75},
	{"solis", RoleMinSOC, []string{"solis", "overdischarge", "soc"}, DomainNumber, 0.75},

	// Sofar
	{"sofar", RoleForceCharge, []string{"sofar", "charge"}, DomainSwitch, 0.75},
	{"sofar", RoleWorkMode, []string{"sofar", "energy", "mode"}, DomainSelect, 0.75},
}

// BuiltinPatterns returns a fresh copy of the shipped pattern library.
//
// IDs are stable across releases ("builtin-<brand>-<role>") so that feedback
// counters recorded against a built-in pattern refer to the same rule after an
// upgrade. Timestamps are zero: built-ins carry no install-specific times.
func BuiltinPatterns() []DevicePattern {
	patterns := make([]DevicePattern, 0, len(builtinDefs))
	for _, def := range builtinDefs {
		tokens := make([]string, len(def.tokens))
		copy(tokens, def.tokens)
		patterns = append(patterns, DevicePattern{
			ID:    "builtin-" + def.brand + "-" + string(def.role),
			Brand: def.brand,
			Role:  def.role,
			Rules: MatchRules{
				Tokens: tokens,
				Domain: def.domain,
			},
			ConfidenceWeight: def.weight,
			Origin:           OriginBuiltin,
		})
	}
	return patterns
}
