package pattern

import (
	"context"
	"reflect"
	"testing"
)

func sigFromName(entityID, friendlyName string) DeviceSignature {
	return DeviceSignature{
		EntityID:   entityID,
		Domain:     DomainFromEntityID(entityID),
		NameTokens: Tokenize(friendlyName),
	}
}

func TestScoreVerifiedBrandFullMatch(t *testing.T) {
	// A production FoxESS install: three of three rule tokens present, so the
	// score is the pattern's full confidence weight.
	sig := sigFromName("switch.foxess_force_charge", "FoxESS Force Charge")
	p := findBuiltin(t, "foxess", RoleForceCharge)

	got := Score(&sig, p)
	if got != 0.9 {
		t.Errorf("Score() = %v, want 0.9", got)
	}
}

func TestScorePartialMatch(t *testing.T) {
	// Two of three tokens: 2/3 * 0.9 = 0.6.
	sig := sigFromName("switch.foxess_charge", "FoxESS Charge")
	p := findBuiltin(t, "foxess", RoleForceCharge)

	got := Score(&sig, p)
	if got < 0.599 || got > 0.601 {
		t.Errorf("Score() = %v, want 0.6", got)
	}
}

func TestScoreDomainConstraint(t *testing.T) {
	// Right words, wrong domain: a sensor can't be a force-charge switch.
	sig := sigFromName("sensor.foxess_force_charge", "FoxESS Force Charge")
	p := findBuiltin(t, "foxess", RoleForceCharge)

	if got := Score(&sig, p); got != 0 {
		t.Errorf("Score() = %v, want 0 for domain mismatch", got)
	}
}

func TestScoreSubstringToleratesModelSuffix(t *testing.T) {
	// Rule token "sun2000" must match the variant name token "sun2000l1".
	sig := sigFromName("switch.h1", "SUN2000L1 Forcible Charge")
	p := findBuiltin(t, "huawei", RoleForceCharge)

	if got := Score(&sig, p); got != 0.85 {
		t.Errorf("Score() = %v, want full 0.85 via substring match", got)
	}
}

func TestScoreModelHintCounts(t *testing.T) {
	sig := sigFromName("switch.inv_forcible_charge", "Forcible Charge")
	sig.ModelHint = "sun2000-10ktl"
	p := findBuiltin(t, "huawei", RoleForceCharge)

	if got := Score(&sig, p); got != 0.85 {
		t.Errorf("Score() = %v, want 0.85 with model hint supplying the brand token", got)
	}
}

func TestScoreEmptyRules(t *testing.T) {
	sig := sigFromName("switch.x", "anything")
	p := &DevicePattern{ID: "empty", ConfidenceWeight: 1}
	if got := Score(&sig, p); got != 0 {
		t.Errorf("Score() = %v, want 0 for pattern with no tokens", got)
	}
}

func TestRankThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// One pattern at weight 0.4 with a single token: a full match scores
	// exactly the 0.4 threshold and must be included.
	exact := testLearnedPattern("exact", "luxpower", RoleForceCharge)
	exact.ConfidenceWeight = 0.4
	if err := store.ReplaceLearned(ctx, []DevicePattern{exact}); err != nil {
		t.Fatalf("ReplaceLearned() error = %v", err)
	}

	m := NewMatcher(store, MatcherConfig{AcceptThreshold: 0.4})
	sigs := []DeviceSignature{sigFromName("switch.lux", "LuxPower Charge")}

	results := m.Rank(sigs, RoleForceCharge)
	if len(results) != 1 {
		t.Fatalf("Rank() returned %d results, want 1 (score == threshold is accepted)", len(results))
	}
	if results[0].Score != 0.4 {
		t.Errorf("score = %v, want 0.4", results[0].Score)
	}
	if results[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", results[0].Rank)
	}
}

func TestRankExcludesBelowThreshold(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewMatcher(store, MatcherConfig{AcceptThreshold: 0.4})

	// One of three foxess tokens: 1/3 * 0.9 = 0.3 < 0.4.
	sigs := []DeviceSignature{sigFromName("switch.foxess_thing", "FoxESS Something")}
	if results := m.Rank(sigs, RoleForceCharge); len(results) != 0 {
		t.Errorf("Rank() = %v, want no results below threshold", results)
	}
}

func TestRankEmptyInput(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewMatcher(store, MatcherConfig{})

	if results := m.Rank(nil, RoleForceCharge); len(results) != 0 {
		t.Errorf("Rank(nil) = %v, want empty", results)
	}
	if all := m.RankAll(nil); len(all) != 0 {
		t.Errorf("RankAll(nil) = %v, want empty map", all)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewMatcher(store, MatcherConfig{})

	// Two identically named entities differ only in ID: equal scores, so
	// ascending entity ID decides, and the ordering is total.
	sigs := []DeviceSignature{
		sigFromName("switch.foxess_force_charge_b", "FoxESS Force Charge B"),
		sigFromName("switch.foxess_force_charge_a", "FoxESS Force Charge A"),
	}

	results := m.Rank(sigs, RoleForceCharge)
	if len(results) != 2 {
		t.Fatalf("Rank() returned %d results, want 2", len(results))
	}
	if results[0].EntityID != "switch.foxess_force_charge_a" {
		t.Errorf("first = %s, want the lexicographically smaller entity", results[0].EntityID)
	}
	if results[0].Rank != 1 || results[1].Rank != 2 {
		t.Errorf("ranks = %d,%d, want 1,2", results[0].Rank, results[1].Rank)
	}
}

func TestRankIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewMatcher(store, MatcherConfig{})

	sigs := []DeviceSignature{
		sigFromName("switch.foxess_force_charge", "FoxESS Force Charge"),
		sigFromName("switch.foxess_force_discharge", "FoxESS Force Discharge"),
		sigFromName("number.foxess_min_soc", "FoxESS Min SoC"),
		sigFromName("select.foxess_work_mode", "FoxESS Work Mode"),
	}

	first := m.RankAll(sigs)
	for i := 0; i < 5; i++ {
		if again := m.RankAll(sigs); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed from first run:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestRankBestPairingPerEntity(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// Two patterns for the same role both match the same entity; the entity
	// must appear once, paired with the higher-scoring pattern.
	strong := testLearnedPattern("strong", "deye", RoleForceCharge)
	strong.Rules = MatchRules{Tokens: []string{"deye"}, Domain: DomainSwitch}
	strong.ConfidenceWeight = 0.8

	weak := testLearnedPattern("weak", "deye", RoleForceCharge)
	weak.Rules = MatchRules{Tokens: []string{"deye", "grid"}, Domain: DomainSwitch}
	weak.ConfidenceWeight = 0.8 // 1/2 tokens -> 0.4

	if err := store.ReplaceLearned(ctx, []DevicePattern{strong, weak}); err != nil {
		t.Fatalf("ReplaceLearned() error = %v", err)
	}

	m := NewMatcher(store, MatcherConfig{})
	sigs := []DeviceSignature{sigFromName("switch.deye_charge", "Deye Charge")}

	results := m.Rank(sigs, RoleForceCharge)
	if len(results) != 1 {
		t.Fatalf("Rank() returned %d results, want 1 (one entity, one pairing)", len(results))
	}
	if results[0].PatternID != "strong" {
		t.Errorf("paired pattern = %s, want strong", results[0].PatternID)
	}
}

func TestAssignResolvesCrossRoleConflict(t *testing.T) {
	// One entity tops two roles; the higher-scoring role keeps it, the other
	// falls back to its next candidate.
	ranked := map[Role][]MatchResult{
		RoleForceCharge: {
			{EntityID: "switch.shared", PatternID: "a", Role: RoleForceCharge, Score: 0.9, Rank: 1},
			{EntityID: "switch.other", PatternID: "b", Role: RoleForceCharge, Score: 0.5, Rank: 2},
		},
		RoleForceDischarge: {
			{EntityID: "switch.shared", PatternID: "c", Role: RoleForceDischarge, Score: 0.6, Rank: 1},
		},
	}

	assigned := Assign(ranked)
	if got := assigned[RoleForceCharge].EntityID; got != "switch.shared" {
		t.Errorf("force_charge entity = %s, want switch.shared", got)
	}
	if _, ok := assigned[RoleForceDischarge]; ok {
		t.Error("force_discharge got an assignment, want none (only candidate was taken)")
	}

	// Give discharge a fallback and it must use it.
	ranked[RoleForceDischarge] = append(ranked[RoleForceDischarge],
		MatchResult{EntityID: "switch.backup", PatternID: "d", Role: RoleForceDischarge, Score: 0.45, Rank: 2})
	assigned = Assign(ranked)
	if got := assigned[RoleForceDischarge].EntityID; got != "switch.backup" {
		t.Errorf("force_discharge entity = %s, want fallback switch.backup", got)
	}
}

func TestAssignTieBrokenByRoleName(t *testing.T) {
	// Equal top scores: role name ascending decides who picks first.
	ranked := map[Role][]MatchResult{
		RoleMaxSOC: {{EntityID: "number.soc", PatternID: "a", Role: RoleMaxSOC, Score: 0.8, Rank: 1}},
		RoleMinSOC: {{EntityID: "number.soc", PatternID: "b", Role: RoleMinSOC, Score: 0.8, Rank: 1}},
	}

	assigned := Assign(ranked)
	// "battery_max_soc" < "battery_min_soc"
	if got := assigned[RoleMaxSOC].EntityID; got != "number.soc" {
		t.Errorf("max_soc entity = %s, want number.soc", got)
	}
	if _, ok := assigned[RoleMinSOC]; ok {
		t.Error("min_soc got an assignment, want none after losing the tie")
	}
}

func TestMatcherDefaultThreshold(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewMatcher(store, MatcherConfig{})
	if m.threshold != DefaultAcceptThreshold {
		t.Errorf("threshold = %v, want default %v", m.threshold, DefaultAcceptThreshold)
	}
}

// findBuiltin locates a shipped pattern by brand and role.
func findBuiltin(t *testing.T, brand string, role Role) *DevicePattern {
	t.Helper()
	patterns := BuiltinPatterns()
	for i := range patterns {
		if patterns[i].Brand == brand && patterns[i].Role == role {
			return &patterns[i]
		}
	}
	t.Fatalf("no built-in pattern for %s/%s", brand, role)
	return nil
}
