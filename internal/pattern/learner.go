package pattern

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LearnerConfig carries the learning policy knobs.
// These map to the engine section of config.yaml.
type LearnerConfig struct {
	// ConfidenceStep is added to a learned pattern's confidence weight on
	// each confirmation. Default 0.05.
	ConfidenceStep float64

	// ConfidenceCap is the maximum confidence a learned pattern can reach.
	// Default 0.95, deliberately below verified built-ins.
	ConfidenceCap float64

	// InitialConfidence is the starting weight for a newly synthesised
	// pattern. Default 0.5.
	InitialConfidence float64

	// PruneMargin: a learned pattern whose failure count exceeds its success
	// count by more than this margin is removed on the next compaction.
	// Default 3.
	PruneMargin int
}

// Learner policy defaults.
const (
	DefaultConfidenceStep    = 0.05
	DefaultConfidenceCap     = 0.95
	DefaultInitialConfidence = 0.5
	DefaultPruneMargin       = 3
)

// withDefaults fills zero values with the documented defaults.
func (c LearnerConfig) withDefaults() LearnerConfig {
	if c.ConfidenceStep <= 0 {
		c.ConfidenceStep = DefaultConfidenceStep
	}
	if c.ConfidenceCap <= 0 {
		c.ConfidenceCap = DefaultConfidenceCap
	}
	if c.InitialConfidence <= 0 {
		c.InitialConfidence = DefaultInitialConfidence
	}
	if c.PruneMargin <= 0 {
		c.PruneMargin = DefaultPruneMargin
	}
	return c
}

// stopTokens are model-agnostic words that describe the function of an
// entity rather than the brand or model exposing it. They are excluded when
// synthesising a pattern from a confirmed signature, so learned rules key on
// brand/model vocabulary ("huawei", "sun2000") rather than on words every
// inverter uses ("charge", "soc").
var stopTokens = map[string]struct{}{
	"battery": {}, "charge": {}, "discharge": {}, "charging": {},
	"force": {}, "forced": {}, "forcible": {}, "timed": {},
	"min": {}, "max": {}, "minimum": {}, "maximum": {},
	"soc": {}, "capacity": {}, "reserve": {}, "target": {},
	"power": {}, "current": {}, "rate": {}, "limit": {},
	"mode": {}, "work": {}, "working": {}, "state": {}, "status": {},
	"start": {}, "stop": {}, "end": {}, "on": {}, "off": {},
	"enable": {}, "enabled": {}, "disable": {}, "disabled": {},
	"switch": {}, "sensor": {}, "number": {}, "select": {},
	"inverter": {}, "solar": {}, "energy": {}, "storage": {}, "grid": {},
	"time": {}, "period": {}, "the": {}, "of": {}, "a": {},
}

// Learner incorporates user feedback on match results and is the store's
// single mutation path.
type Learner struct {
	store  *Store
	cfg    LearnerConfig
	logger Logger
	now    func() time.Time
	newID  func() string
}

// NewLearner creates a learner writing through the given store.
func NewLearner(store *Store, cfg LearnerConfig) *Learner {
	return &Learner{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: noopLogger{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetLogger sets the logger for the learner.
func (l *Learner) SetLogger(logger Logger) {
	l.logger = logger
}

// SetClock overrides the time source. Intended for tests.
func (l *Learner) SetClock(now func() time.Time) {
	l.now = now
}

// Confirm records that the user accepted the match produced by the given
// pattern. Learned patterns strengthen: their confidence weight rises by the
// configured step, capped below verified built-ins. Built-in patterns only
// have their session counters bumped; their rules and weight never change.
func (l *Learner) Confirm(ctx context.Context, patternID string) error {
	if l.store.recordBuiltinOutcome(patternID, true) {
		return nil
	}

	return l.store.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		p := findByID(learned, patternID)
		if p == nil {
			return nil, ErrPatternNotFound
		}
		p.SuccessCount++
		p.LastUsedAt = l.now().UTC()
		if p.Origin == OriginLearnedLocal {
			p.ConfidenceWeight = min(p.ConfidenceWeight+l.cfg.ConfidenceStep, l.cfg.ConfidenceCap)
		}
		l.logger.Debug("pattern confirmed",
			"brand", p.Brand,
			"role", p.Role,
			"confidence", p.ConfidenceWeight,
			"successes", p.SuccessCount,
		)
		return learned, nil
	})
}

// Reject records that the user rejected the match produced by the given
// pattern. A learned pattern whose failures outrun its successes by more than
// the prune margin is removed on the next Compact. Built-ins are never
// pruned regardless of failure history.
func (l *Learner) Reject(ctx context.Context, patternID string) error {
	if l.store.recordBuiltinOutcome(patternID, false) {
		return nil
	}

	return l.store.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		p := findByID(learned, patternID)
		if p == nil {
			return nil, ErrPatternNotFound
		}
		p.FailureCount++
		p.LastUsedAt = l.now().UTC()
		if p.FailureCount-p.SuccessCount > l.cfg.PruneMargin {
			l.logger.Info("learned pattern marked for pruning",
				"brand", p.Brand,
				"role", p.Role,
				"failures", p.FailureCount,
				"successes", p.SuccessCount,
			)
		}
		return learned, nil
	})
}

// Compact removes learned patterns previously marked for pruning.
// Safe to call at any time; built-ins are untouched.
func (l *Learner) Compact(ctx context.Context) (int, error) {
	return l.store.Compact(ctx, l.cfg.PruneMargin)
}

// Correct handles a user-confirmed mapping for which no pattern matched: it
// synthesises a new learned pattern from the signature's brand-significant
// tokens and persists it.
//
// If a behaviourally near-duplicate pattern already exists for the same
// (brand, role), meaning its token set is a subset or superset of the
// synthesised one, the confirmation merges into the existing pattern's counters instead of
// inserting a duplicate. The returned pattern is the one that absorbed the
// confirmation.
func (l *Learner) Correct(ctx context.Context, brand string, role Role, sig DeviceSignature) (DevicePattern, error) {
	if brand == "" {
		return DevicePattern{}, ErrInvalidBrand
	}
	if !ValidRole(role) {
		return DevicePattern{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	tokens := significantTokens(sig.NameTokens)
	if len(tokens) == 0 {
		return DevicePattern{}, fmt.Errorf("%w: entity %q", ErrNoSignificantTokens, sig.EntityID)
	}
	rules := MatchRules{Tokens: tokens, Domain: sig.Domain}

	// A built-in already covering this mapping absorbs the confirmation;
	// built-ins are immutable so only their session counters move.
	if id, ok := l.findBuiltinOverlap(brand, role, rules); ok {
		l.store.recordBuiltinOutcome(id, true)
		return l.store.Get(id)
	}

	var result DevicePattern
	err := l.store.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		now := l.now().UTC()
		for i := range learned {
			p := &learned[i]
			if p.Brand != brand || p.Role != role || !p.Rules.Overlaps(rules) {
				continue
			}
			p.SuccessCount++
			p.LastUsedAt = now
			if p.Origin == OriginLearnedLocal {
				p.ConfidenceWeight = min(p.ConfidenceWeight+l.cfg.ConfidenceStep, l.cfg.ConfidenceCap)
			}
			result = p.Clone()
			return learned, nil
		}

		fresh := DevicePattern{
			ID:               l.newID(),
			Brand:            brand,
			Role:             role,
			Rules:            rules,
			ConfidenceWeight: l.cfg.InitialConfidence,
			SuccessCount:     1,
			Origin:           OriginLearnedLocal,
			CreatedAt:        now,
			LastUsedAt:       now,
		}
		result = fresh.Clone()
		l.logger.Info("new pattern learned",
			"brand", brand,
			"role", role,
			"tokens", tokens,
		)
		return append(learned, fresh), nil
	})
	if err != nil {
		return DevicePattern{}, err
	}
	return result, nil
}

// ImportCommunity merges verified community pattern records into the store
// and returns the number of patterns added.
//
// A record already covered by a built-in, or by an existing learned pattern
// for the same brand and role with overlapping rules, is skipped, so
// re-importing a batch is idempotent. Imported patterns carry the community
// origin and keep the batch's counters; their confidence weight is clamped
// to the configured cap so no import outranks a verified built-in.
func (l *Learner) ImportCommunity(ctx context.Context, records []SharedPatternRecord) (int, error) {
	added := 0
	err := l.store.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		now := l.now().UTC()
		for i := range records {
			rec := &records[i]
			if rec.Brand == "" || !ValidRole(rec.Role) || len(rec.Rules.Tokens) == 0 {
				continue
			}
			if l.covered(learned, rec) {
				continue
			}
			weight := rec.ConfidenceWeight
			if weight <= 0 {
				weight = l.cfg.InitialConfidence
			}
			weight = min(weight, l.cfg.ConfidenceCap)
			learned = append(learned, DevicePattern{
				ID:               l.newID(),
				Brand:            rec.Brand,
				Role:             rec.Role,
				Rules:            rec.Rules.Clone(),
				ConfidenceWeight: weight,
				SuccessCount:     rec.SuccessCount,
				FailureCount:     rec.FailureCount,
				Origin:           OriginCommunity,
				CreatedAt:        now,
				LastUsedAt:       now,
			})
			added++
			l.logger.Info("community pattern imported",
				"brand", rec.Brand,
				"role", rec.Role,
				"confidence", weight,
			)
		}
		return learned, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// covered reports whether a community record duplicates coverage the store
// already has: a built-in or learned pattern for the same brand and role
// whose rules overlap the record's. Patterns appended earlier in the same
// import batch count, so duplicates within one batch collapse too.
func (l *Learner) covered(learned []DevicePattern, rec *SharedPatternRecord) bool {
	if _, ok := l.findBuiltinOverlap(rec.Brand, rec.Role, rec.Rules); ok {
		return true
	}
	for i := range learned {
		p := &learned[i]
		if p.Brand == rec.Brand && p.Role == rec.Role && p.Rules.Overlaps(rec.Rules) {
			return true
		}
	}
	return false
}

// findBuiltinOverlap looks for a built-in pattern behaviourally covering the
// synthesised rules.
func (l *Learner) findBuiltinOverlap(brand string, role Role, rules MatchRules) (string, bool) {
	for _, p := range BuiltinPatterns() {
		if p.Brand == brand && p.Role == role && p.Rules.Overlaps(rules) {
			return p.ID, true
		}
	}
	return "", false
}

// significantTokens filters a signature's name tokens down to the
// brand-significant subset: stop tokens and pure numbers are dropped.
func significantTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopTokens[t]; stop {
			continue
		}
		if pureNumber(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// pureNumber reports whether every rune of t is a decimal digit.
func pureNumber(t string) bool {
	if t == "" {
		return true
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// findByID returns a pointer into the slice for in-place mutation.
func findByID(patterns []DevicePattern, id string) *DevicePattern {
	for i := range patterns {
		if patterns[i].ID == id {
			return &patterns[i]
		}
	}
	return nil
}
