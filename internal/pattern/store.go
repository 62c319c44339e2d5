package pattern

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the engine components.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BlobStore is the host persistent storage contract: a durable blob with
// load/save semantics. Load returns (nil, nil) when no blob has been saved
// yet. Implementations must make Save atomic: after a failed Save the
// previously stored blob must still be readable.
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// storedPatterns is the on-disk envelope for the learned-pattern subset.
// Built-in patterns are never written; they ship with the binary.
type storedPatterns struct {
	Version  int             `json:"version"`
	Patterns []DevicePattern `json:"patterns"`
}

// storageVersion is the current blob envelope version.
const storageVersion = 1

// Store owns the canonical collection of device patterns: the immutable
// built-in library plus the locally learned subset.
//
// All mutations go through the mutateLearned critical section (read-modify-
// write under the store lock, persisted before the in-memory swap), so a
// failed write leaves the previous complete set observable, never a torn
// mixture. There are no concurrent direct writers; the Learner is the single
// mutation path.
type Store struct {
	blob     BlobStore
	builtins []DevicePattern
	learned  []DevicePattern

	mu     sync.Mutex // held for every read-modify-write
	logger Logger
	now    func() time.Time
}

// NewStore creates a pattern store backed by the given blob storage.
// Call Load before first use to hydrate the learned subset.
func NewStore(blob BlobStore) *Store {
	return &Store{
		blob:     blob,
		builtins: BuiltinPatterns(),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// lock acquires the store's exclusive section.
func (s *Store) lock() {
	s.mu.Lock()
}

// unlock releases the exclusive section. Always deferred so every exit path,
// including serialisation failures, releases it.
func (s *Store) unlock() {
	s.mu.Unlock()
}

// Load hydrates the learned subset from the blob store.
//
// A missing blob means "no learned patterns yet". A malformed blob degrades
// to built-ins only: the corruption is logged and Load still succeeds, so the
// caller can always match against at least the shipped library. Only a
// failure of the storage layer itself is returned as an error.
func (s *Store) Load(ctx context.Context) error {
	s.lock()
	defer s.unlock()

	raw, err := s.blob.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading learned patterns: %w", err)
	}
	if len(raw) == 0 {
		s.learned = nil
		return nil
	}

	learned, err := decodeLearned(raw)
	if err != nil {
		s.logger.Warn("learned patterns corrupt, falling back to built-ins",
			"error", err,
		)
		s.learned = nil
		return nil
	}

	s.learned = learned
	s.logger.Info("learned patterns loaded", "count", len(learned))
	return nil
}

// decodeLearned parses and sanity-checks the stored blob.
func decodeLearned(raw []byte) ([]DevicePattern, error) {
	var stored storedPatterns
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	if stored.Version != storageVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrStorageCorrupt, stored.Version)
	}
	for i := range stored.Patterns {
		p := &stored.Patterns[i]
		if p.Origin == OriginBuiltin {
			return nil, fmt.Errorf("%w: built-in origin in learned blob", ErrStorageCorrupt)
		}
		if p.ID == "" || p.Brand == "" || !ValidRole(p.Role) {
			return nil, fmt.Errorf("%w: incomplete pattern at index %d", ErrStorageCorrupt, i)
		}
	}
	return stored.Patterns, nil
}

// Patterns returns the full ordered pattern set: built-ins first (in library
// order), then learned patterns (in stored order). The returned patterns are
// copies; callers can safely modify them.
func (s *Store) Patterns() []DevicePattern {
	s.lock()
	defer s.unlock()

	out := make([]DevicePattern, 0, len(s.builtins)+len(s.learned))
	for i := range s.builtins {
		out = append(out, s.builtins[i].Clone())
	}
	for i := range s.learned {
		out = append(out, s.learned[i].Clone())
	}
	return out
}

// Learned returns copies of the learned-only ordered view.
func (s *Store) Learned() []DevicePattern {
	s.lock()
	defer s.unlock()

	out := make([]DevicePattern, 0, len(s.learned))
	for i := range s.learned {
		out = append(out, s.learned[i].Clone())
	}
	return out
}

// Get returns a copy of the pattern with the given ID.
// Returns ErrPatternNotFound if no such pattern exists.
func (s *Store) Get(id string) (DevicePattern, error) {
	s.lock()
	defer s.unlock()

	for i := range s.builtins {
		if s.builtins[i].ID == id {
			return s.builtins[i].Clone(), nil
		}
	}
	for i := range s.learned {
		if s.learned[i].ID == id {
			return s.learned[i].Clone(), nil
		}
	}
	return DevicePattern{}, ErrPatternNotFound
}

// mutateLearned runs fn over a copy of the learned subset, persists the
// result, and swaps it in. If marshalling or the blob write fails the
// in-memory set is left untouched, so readers observe either the old or the
// new complete set.
func (s *Store) mutateLearned(ctx context.Context, fn func(learned []DevicePattern) ([]DevicePattern, error)) error {
	s.lock()
	defer s.unlock()

	working := make([]DevicePattern, 0, len(s.learned))
	for i := range s.learned {
		working = append(working, s.learned[i].Clone())
	}

	next, err := fn(working)
	if err != nil {
		return err
	}

	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.learned = next
	return nil
}

// persistLocked writes the given learned subset to the blob store.
// Caller must hold the store lock.
func (s *Store) persistLocked(ctx context.Context, learned []DevicePattern) error {
	raw, err := json.Marshal(storedPatterns{
		Version:  storageVersion,
		Patterns: learned,
	})
	if err != nil {
		return fmt.Errorf("encoding learned patterns: %w", err)
	}
	if err := s.blob.Save(ctx, raw); err != nil {
		return fmt.Errorf("saving learned patterns: %w", err)
	}
	return nil
}

// ReplaceLearned atomically replaces the learned subset.
// Built-in patterns are rejected; built-ins are never rewritten.
func (s *Store) ReplaceLearned(ctx context.Context, patterns []DevicePattern) error {
	for i := range patterns {
		if patterns[i].Builtin() {
			return ErrProtectedPattern
		}
	}
	return s.mutateLearned(ctx, func([]DevicePattern) ([]DevicePattern, error) {
		next := make([]DevicePattern, len(patterns))
		for i := range patterns {
			next[i] = patterns[i].Clone()
		}
		return next, nil
	})
}

// DeleteByIndex removes exactly one learned pattern by its position in the
// learned-only ordered view. Returns ErrIndexOutOfRange when i is outside
// [0, len). Built-ins are not part of this view and cannot be deleted.
func (s *Store) DeleteByIndex(ctx context.Context, i int) error {
	return s.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		if i < 0 || i >= len(learned) {
			return nil, fmt.Errorf("%w: index %d, learned count %d", ErrIndexOutOfRange, i, len(learned))
		}
		s.logger.Info("learned pattern deleted",
			"brand", learned[i].Brand,
			"role", learned[i].Role,
			"index", i,
		)
		return append(learned[:i], learned[i+1:]...), nil
	})
}

// Delete removes a pattern by ID. Deleting a built-in pattern fails with
// ErrProtectedPattern; an unknown ID fails with ErrPatternNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	for i := range s.builtins {
		if s.builtins[i].ID == id {
			return ErrProtectedPattern
		}
	}
	return s.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		for i := range learned {
			if learned[i].ID == id {
				return append(learned[:i], learned[i+1:]...), nil
			}
		}
		return nil, ErrPatternNotFound
	})
}

// Compact removes learned patterns whose failure count exceeds their success
// count by more than margin. Built-ins are never pruned regardless of failure
// history. Returns the number of patterns removed.
func (s *Store) Compact(ctx context.Context, margin int) (int, error) {
	removed := 0
	err := s.mutateLearned(ctx, func(learned []DevicePattern) ([]DevicePattern, error) {
		kept := learned[:0]
		for i := range learned {
			p := learned[i]
			if p.Origin == OriginLearnedLocal && p.FailureCount-p.SuccessCount > margin {
				removed++
				s.logger.Info("pruning failing learned pattern",
					"brand", p.Brand,
					"role", p.Role,
					"successes", p.SuccessCount,
					"failures", p.FailureCount,
				)
				continue
			}
			kept = append(kept, p)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// recordBuiltinOutcome bumps a built-in pattern's counters in memory.
// Built-ins are never persisted, so these counters are process-lifetime only;
// the rules and confidence weight of a built-in never change.
func (s *Store) recordBuiltinOutcome(id string, success bool) bool {
	s.lock()
	defer s.unlock()

	for i := range s.builtins {
		if s.builtins[i].ID != id {
			continue
		}
		if success {
			s.builtins[i].SuccessCount++
		} else {
			s.builtins[i].FailureCount++
		}
		s.builtins[i].LastUsedAt = s.now().UTC()
		return true
	}
	return false
}

// HealthCheck verifies the backing blob store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.blob.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pattern store health check: %w", err)
	}
	return nil
}
