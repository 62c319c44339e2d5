package pattern

import (
	"sort"
	"strings"
	"time"
)

// Role is a functional battery-control capability category.
// Each role corresponds to one entity the host platform needs to locate.
type Role string

// Battery-control roles.
const (
	RoleForceCharge    Role = "battery_force_charge"
	RoleForceDischarge Role = "battery_force_discharge"
	RoleMinSOC         Role = "battery_min_soc"
	RoleMaxSOC         Role = "battery_max_soc"
	RoleChargePower    Role = "battery_charge_power"
	RoleWorkMode       Role = "inverter_work_mode"
)

// AllRoles returns all valid roles in their canonical order.
// The order is load-bearing: matching iterates roles in this order so that
// results are deterministic across runs.
func AllRoles() []Role {
	return []Role{
		RoleForceCharge, RoleForceDischarge, RoleMinSOC,
		RoleMaxSOC, RoleChargePower, RoleWorkMode,
	}
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// Domain is the capability category of a host entity, classified from the
// entity ID's namespace prefix (everything before the first dot).
type Domain string

// Domain constants.
const (
	DomainSwitch       Domain = "switch"
	DomainNumber       Domain = "number"
	DomainSelect       Domain = "select"
	DomainSensor       Domain = "sensor"
	DomainBinarySensor Domain = "binary_sensor"
	DomainUnknown      Domain = "unknown"
)

// DomainFromEntityID classifies an entity ID by its namespace prefix.
// Unrecognised or missing prefixes classify as DomainUnknown.
func DomainFromEntityID(entityID string) Domain {
	prefix, _, found := strings.Cut(entityID, ".")
	if !found {
		return DomainUnknown
	}
	switch Domain(prefix) {
	case DomainSwitch, DomainNumber, DomainSelect, DomainSensor, DomainBinarySensor:
		return Domain(prefix)
	default:
		return DomainUnknown
	}
}

// Origin is the provenance tag of a pattern.
type Origin string

// Origin constants.
const (
	// OriginBuiltin marks patterns shipped with the engine. Immutable,
	// never pruned, never exported for sharing.
	OriginBuiltin Origin = "builtin"

	// OriginLearnedLocal marks patterns learned from user confirmations on
	// this install. These strengthen with reuse and may be pruned.
	OriginLearnedLocal Origin = "learned_local"

	// OriginCommunity marks patterns imported from community aggregation.
	OriginCommunity Origin = "community"
)

// MatchRules is the predicate set of a pattern: tokens matched as substrings
// of a signature's name tokens (or model hint), plus an optional domain
// constraint ("" means any domain).
//
// Substring matching tolerates model-variant suffixes: the rule token
// "sun2000" matches the name token "sun2000l1".
type MatchRules struct {
	Tokens []string `json:"tokens"`
	Domain Domain   `json:"domain,omitempty"`
}

// Clone returns an independent copy of the rules.
func (r MatchRules) Clone() MatchRules {
	cpy := r
	if r.Tokens != nil {
		cpy.Tokens = make([]string, len(r.Tokens))
		copy(cpy.Tokens, r.Tokens)
	}
	return cpy
}

// tokenSet returns the rule tokens as a set for subset comparisons.
func (r MatchRules) tokenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Tokens))
	for _, t := range r.Tokens {
		set[t] = struct{}{}
	}
	return set
}

// Equal reports whether two rule sets are behaviourally identical:
// same token set (order-independent) and same domain constraint.
func (r MatchRules) Equal(other MatchRules) bool {
	if r.Domain != other.Domain || len(r.Tokens) != len(other.Tokens) {
		return false
	}
	set := other.tokenSet()
	for _, t := range r.Tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Overlaps reports whether one rule set's tokens are a subset or superset of
// the other's, under the same domain constraint. Used by the Learner for
// near-duplicate detection before inserting a synthesised pattern.
func (r MatchRules) Overlaps(other MatchRules) bool {
	if r.Domain != other.Domain {
		return false
	}
	return r.subsetOf(other) || other.subsetOf(r)
}

func (r MatchRules) subsetOf(other MatchRules) bool {
	if len(r.Tokens) == 0 {
		return false
	}
	set := other.tokenSet()
	for _, t := range r.Tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// DevicePattern is a persisted, reusable rule describing how one inverter
// brand names the entity for one functional role.
type DevicePattern struct {
	ID               string     `json:"id"`
	Brand            string     `json:"brand"`
	Role             Role       `json:"role"`
	Rules            MatchRules `json:"match_rules"`
	ConfidenceWeight float64    `json:"confidence_weight"`
	SuccessCount     int        `json:"success_count"`
	FailureCount     int        `json:"failure_count"`
	Origin           Origin     `json:"origin"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
}

// Clone returns an independent copy of the pattern.
func (p *DevicePattern) Clone() DevicePattern {
	cpy := *p
	cpy.Rules = p.Rules.Clone()
	return cpy
}

// Builtin reports whether the pattern is part of the shipped library.
func (p *DevicePattern) Builtin() bool {
	return p.Origin == OriginBuiltin
}

// DeviceSignature is the normalised, derived description of one host entity,
// produced by Extract. Ephemeral: it lives for a single matching run and is
// never persisted.
type DeviceSignature struct {
	EntityID         string   `json:"entity_id"`
	Domain           Domain   `json:"domain"`
	NameTokens       []string `json:"name_tokens"`
	ModelHint        string   `json:"model_hint,omitempty"`
	ManufacturerHint string   `json:"manufacturer_hint,omitempty"`
}

// MatchResult is one scored (entity, pattern) pairing for a role.
// Rank is 1-based within the role group.
type MatchResult struct {
	EntityID  string  `json:"entity_id"`
	PatternID string  `json:"pattern_id"`
	Brand     string  `json:"brand"`
	Role      Role    `json:"role"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

// SharedPatternRecord is the privacy-scrubbed, shareable form of a learned
// pattern. It deliberately has no entity ID, friendly-name or timestamp
// fields; see the package documentation for the privacy guarantee.
type SharedPatternRecord struct {
	Brand            string     `json:"brand"`
	Role             Role       `json:"role"`
	Rules            MatchRules `json:"match_rules"`
	ConfidenceWeight float64    `json:"confidence_weight"`
	SuccessCount     int        `json:"success_count"`
	FailureCount     int        `json:"failure_count"`
}

// sortResults orders results per the deterministic tie-break policy:
// score descending, confidence weight descending, entity ID ascending.
// Confidence weights are looked up from the pattern index by pattern ID.
func sortResults(results []MatchResult, weight map[string]float64) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if weight[a.PatternID] != weight[b.PatternID] {
			return weight[a.PatternID] > weight[b.PatternID]
		}
		return a.EntityID < b.EntityID
	})
}
