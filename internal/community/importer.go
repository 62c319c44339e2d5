package community

import (
	"context"
	"fmt"
	"time"

	"github.com/intuitherm/pattern-core/internal/pattern"
)

// importTimeout bounds the store merge after a verified envelope arrives.
const importTimeout = 5 * time.Second

// PatternSink receives verified community pattern records.
// Satisfied by pattern.Learner.
type PatternSink interface {
	ImportCommunity(ctx context.Context, records []pattern.SharedPatternRecord) (int, error)
}

// Importer verifies pattern envelopes the aggregation service distributes
// back to installations and merges their records into the local store.
type Importer struct {
	sink       PatternSink
	signingKey []byte
	logger     Logger
}

// NewImporter creates an importer.
//
// Parameters:
//   - sink: Destination the verified records are merged into
//   - signingKey: HS256 key shared with the aggregation service
func NewImporter(sink PatternSink, signingKey []byte) *Importer {
	return &Importer{
		sink:       sink,
		signingKey: signingKey,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger. Passing nil restores the no-op logger.
func (i *Importer) SetLogger(logger Logger) {
	if logger == nil {
		i.logger = noopLogger{}
		return
	}
	i.logger = logger
}

// HandleEnvelope processes one received envelope payload.
//
// Intended as an mqtt.MessageHandler target. Verification failures are
// returned so the transport layer logs them; a batch that adds nothing new
// is not an error.
func (i *Importer) HandleEnvelope(_ string, payload []byte) error {
	records, err := VerifyEnvelope(payload, i.signingKey)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()

	added, err := i.sink.ImportCommunity(ctx, records)
	if err != nil {
		return fmt.Errorf("community: importing patterns: %w", err)
	}

	i.logger.Info("community patterns imported",
		"received", len(records),
		"added", added,
	)
	return nil
}
