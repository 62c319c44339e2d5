package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/intuitherm/pattern-core/internal/infrastructure/influxdb"
	"github.com/intuitherm/pattern-core/internal/pattern"
	"github.com/intuitherm/pattern-core/internal/registry"
)

// publishTimeout bounds the match-event publish after a snapshot scan.
const publishTimeout = 5 * time.Second

// Publisher sends a payload to an MQTT topic.
// Satisfied by mqtt.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// Logger is the narrow logging interface this package needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Engine runs the snapshot-to-assignment pipeline.
type Engine struct {
	matcher *pattern.Matcher
	metrics *influxdb.Client // optional
	pub     Publisher
	topic   string
	logger  Logger
}

// New creates an engine.
//
// Parameters:
//   - matcher: Configured matcher over the pattern store
//   - pub: Transport match events are published through
//   - topic: Destination topic for match events
//   - logger: Structured logger (required)
func New(matcher *pattern.Matcher, pub Publisher, topic string, logger Logger) *Engine {
	return &Engine{
		matcher: matcher,
		pub:     pub,
		topic:   topic,
		logger:  logger,
	}
}

// SetMetrics enables detection-quality metric writes.
func (e *Engine) SetMetrics(client *influxdb.Client) {
	e.metrics = client
}

// matchEvent is the JSON body published after each snapshot scan.
type matchEvent struct {
	Assignments map[pattern.Role]pattern.MatchResult `json:"assignments"`
	EntityCount int                                  `json:"entity_count"`
	ScannedAt   string                               `json:"scanned_at"`
}

// HandleSnapshot processes one registry snapshot payload.
//
// It parses and validates the snapshot, runs the full detection pipeline,
// and publishes the conflict-free assignments as a match event. Intended
// as an mqtt.MessageHandler target; parse failures are returned so the
// transport layer logs them.
func (e *Engine) HandleSnapshot(_ string, payload []byte) error {
	var snap registry.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return fmt.Errorf("parsing registry snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid registry snapshot: %w", err)
	}

	start := time.Now()
	sigs := pattern.ExtractAll(&snap)
	ranked := e.matcher.RankAll(sigs)
	assigned := pattern.Assign(ranked)
	duration := time.Since(start)

	e.logger.Info("snapshot scanned",
		"entities", len(sigs),
		"roles_ranked", len(ranked),
		"roles_assigned", len(assigned),
		"duration_ms", duration.Milliseconds(),
	)

	if e.metrics != nil {
		e.metrics.WriteMatchRun(len(sigs), len(assigned), duration)
		for role, result := range assigned {
			e.metrics.WriteRoleMatch(result.Brand, string(role), result.Score, len(ranked[role]))
		}
	}

	event := matchEvent{
		Assignments: assigned,
		EntityCount: len(sigs),
		ScannedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding match event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := e.pub.Publish(ctx, e.topic, body, false); err != nil {
		// Assignment already happened; a lost event is a transport problem.
		e.logger.Warn("match event publish failed", "error", err)
	}

	return nil
}
