package community

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/intuitherm/pattern-core/internal/pattern"
)

// Sentinel errors for community sharing.
var (
	// ErrNoPatterns indicates there were no learned patterns to share.
	ErrNoPatterns = errors.New("community: no patterns to share")

	// ErrInvalidEnvelope indicates a received envelope failed verification.
	ErrInvalidEnvelope = errors.New("community: invalid envelope")
)

// envelopeIssuer identifies the producing software, not the installation.
const envelopeIssuer = "pattern-core"

// maxEnvelopeAge bounds how old a received envelope may be.
const maxEnvelopeAge = 30 * 24 * time.Hour

// Publisher sends a payload to an MQTT topic.
// Satisfied by mqtt.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// Logger is the narrow logging interface this package needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// submissionClaims is the JWT claim set wrapping a batch of shared patterns.
//
// Deliberately minimal: a batch ID, issue time, issuer, and the scrubbed
// records. No subject, no audience, nothing tying the batch to a site.
type submissionClaims struct {
	jwt.RegisteredClaims
	Patterns []pattern.SharedPatternRecord `json:"patterns"`
}

// Submitter signs and publishes learned-pattern batches.
type Submitter struct {
	publisher  Publisher
	topic      string
	signingKey []byte
	logger     Logger

	now   func() time.Time
	newID func() string
}

// NewSubmitter creates a submitter.
//
// Parameters:
//   - publisher: Transport the signed envelope is published through
//   - topic: Destination MQTT topic
//   - signingKey: HS256 key shared with the aggregation service
func NewSubmitter(publisher Publisher, topic string, signingKey []byte) *Submitter {
	return &Submitter{
		publisher:  publisher,
		topic:      topic,
		signingKey: signingKey,
		logger:     noopLogger{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SetLogger sets the logger. Passing nil restores the no-op logger.
func (s *Submitter) SetLogger(logger Logger) {
	if logger == nil {
		s.logger = noopLogger{}
		return
	}
	s.logger = logger
}

// Submit signs the given records and publishes them.
//
// Records are assumed already scrubbed (pattern.ExportLocal produces them
// that way). Returns ErrNoPatterns when the batch is empty; transport
// errors are returned for the caller to log and drop.
func (s *Submitter) Submit(ctx context.Context, records []pattern.SharedPatternRecord) error {
	if len(records) == 0 {
		return ErrNoPatterns
	}

	claims := submissionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       s.newID(),
			Issuer:   envelopeIssuer,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
		Patterns: records,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return fmt.Errorf("community: signing envelope: %w", err)
	}

	if err := s.publisher.Publish(ctx, s.topic, []byte(signed), false); err != nil {
		return fmt.Errorf("community: publishing envelope: %w", err)
	}

	s.logger.Info("shared learned patterns",
		"count", len(records),
		"batch_id", claims.ID,
	)
	return nil
}
