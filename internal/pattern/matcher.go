package pattern

import (
	"sort"
	"strings"
)

// MatcherConfig carries the matching policy knobs.
// These map to the engine section of config.yaml.
type MatcherConfig struct {
	// AcceptThreshold is the minimum score for a candidate to appear in
	// results for a role. Default 0.4.
	AcceptThreshold float64
}

// DefaultAcceptThreshold is used when the configured threshold is zero.
const DefaultAcceptThreshold = 0.4

// Matcher scores candidate signatures against the pattern library and
// produces ranked, thresholded results per role.
//
// Matching is read-only: the Matcher never writes to the store, so a run can
// be abandoned at any point without leaving persisted state partially
// updated. A run snapshots the pattern set once, which makes two runs over an
// unchanged registry and store yield identical result sequences.
type Matcher struct {
	store     *Store
	threshold float64
	logger    Logger
}

// NewMatcher creates a matcher reading from the given store.
func NewMatcher(store *Store, cfg MatcherConfig) *Matcher {
	threshold := cfg.AcceptThreshold
	if threshold <= 0 {
		threshold = DefaultAcceptThreshold
	}
	return &Matcher{
		store:     store,
		threshold: threshold,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the matcher.
func (m *Matcher) SetLogger(logger Logger) {
	m.logger = logger
}

// Rank scores every signature against every pattern for one role and returns
// the ranked results: score descending, confidence weight descending, entity
// ID ascending. Candidates below the acceptance threshold are excluded.
//
// An empty signature slice yields an empty result set, not an error.
func (m *Matcher) Rank(sigs []DeviceSignature, role Role) []MatchResult {
	return m.rank(sigs, role, m.store.Patterns())
}

// RankAll ranks candidates for every role over a single pattern-set snapshot.
// The returned map contains an entry for each role with at least one
// candidate above the threshold.
func (m *Matcher) RankAll(sigs []DeviceSignature) map[Role][]MatchResult {
	patterns := m.store.Patterns()
	out := make(map[Role][]MatchResult)
	for _, role := range AllRoles() {
		if ranked := m.rank(sigs, role, patterns); len(ranked) > 0 {
			out[role] = ranked
		}
	}
	return out
}

func (m *Matcher) rank(sigs []DeviceSignature, role Role, patterns []DevicePattern) []MatchResult {
	// Best pairing per entity: a single entity holds one rank per role even
	// when several patterns match it.
	best := make(map[string]MatchResult)
	weight := make(map[string]float64)

	for pi := range patterns {
		p := &patterns[pi]
		if p.Role != role {
			continue
		}
		weight[p.ID] = p.ConfidenceWeight

		for si := range sigs {
			score := Score(&sigs[si], p)
			if score < m.threshold {
				continue
			}
			candidate := MatchResult{
				EntityID:  sigs[si].EntityID,
				PatternID: p.ID,
				Brand:     p.Brand,
				Role:      role,
				Score:     score,
			}
			if !betterPairing(candidate, best[candidate.EntityID], weight) {
				continue
			}
			best[candidate.EntityID] = candidate
		}
	}

	results := make([]MatchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sortResults(results, weight)
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// betterPairing reports whether candidate should replace current as the
// entity's pairing for a role. The ordering is total: score, then confidence
// weight, then lexicographically smaller pattern ID.
func betterPairing(candidate, current MatchResult, weight map[string]float64) bool {
	if current.PatternID == "" {
		return true
	}
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	if weight[candidate.PatternID] != weight[current.PatternID] {
		return weight[candidate.PatternID] > weight[current.PatternID]
	}
	return candidate.PatternID < current.PatternID
}

// Score computes the match score of one signature against one pattern:
// the fraction of rule tokens found as substrings of any name token or of
// the model hint, multiplied by the pattern's confidence weight.
//
// A pattern with a domain constraint scores zero against signatures of any
// other domain. A pattern with no rule tokens scores zero.
func Score(sig *DeviceSignature, p *DevicePattern) float64 {
	if len(p.Rules.Tokens) == 0 {
		return 0
	}
	if p.Rules.Domain != "" && p.Rules.Domain != sig.Domain {
		return 0
	}

	matched := 0
	for _, token := range p.Rules.Tokens {
		if tokenMatches(token, sig) {
			matched++
		}
	}
	base := float64(matched) / float64(len(p.Rules.Tokens))
	return base * p.ConfidenceWeight
}

// tokenMatches reports whether a rule token appears as a substring of any
// name token or of the model hint. Rule tokens and signatures are both
// lower-cased at their boundaries, so comparison here is byte-wise.
func tokenMatches(token string, sig *DeviceSignature) bool {
	for _, name := range sig.NameTokens {
		if strings.Contains(name, token) {
			return true
		}
	}
	return sig.ModelHint != "" && strings.Contains(sig.ModelHint, token)
}

// Assign resolves cross-role conflicts over ranked results: if one entity is
// the top candidate for two roles, the role with the higher score keeps it
// and the other falls back to its next-ranked candidate.
//
// Resolution is a stable single pass, not an iterative optimisation. Roles
// are visited in descending order of their top score (ties by role name
// ascending), and each takes its best candidate whose entity is still free.
func Assign(ranked map[Role][]MatchResult) map[Role]MatchResult {
	roles := make([]Role, 0, len(ranked))
	for role := range ranked {
		if len(ranked[role]) > 0 {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		a, b := ranked[roles[i]][0], ranked[roles[j]][0]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return roles[i] < roles[j]
	})

	taken := make(map[string]struct{})
	assigned := make(map[Role]MatchResult, len(roles))
	for _, role := range roles {
		for _, candidate := range ranked[role] {
			if _, used := taken[candidate.EntityID]; used {
				continue
			}
			taken[candidate.EntityID] = struct{}{}
			assigned[role] = candidate
			break
		}
	}
	return assigned
}
