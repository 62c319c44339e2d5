package community

import (
	"context"
	"errors"
	"testing"

	"github.com/intuitherm/pattern-core/internal/pattern"
)

// mockSink records imported pattern batches.
type mockSink struct {
	records []pattern.SharedPatternRecord
	added   int
	err     error
	calls   int
}

func (m *mockSink) ImportCommunity(_ context.Context, records []pattern.SharedPatternRecord) (int, error) {
	m.calls++
	m.records = records
	return m.added, m.err
}

// signedEnvelope builds a valid envelope the way the aggregation service
// would: same claim layout, same signing key.
func signedEnvelope(t *testing.T, records []pattern.SharedPatternRecord) []byte {
	t.Helper()
	pub := &mockPublisher{}
	sub := NewSubmitter(pub, "t", testKey)
	if err := sub.Submit(context.Background(), records); err != nil {
		t.Fatalf("building envelope: %v", err)
	}
	return pub.payload
}

func TestHandleEnvelopeImportsRecords(t *testing.T) {
	sink := &mockSink{added: 1}
	imp := NewImporter(sink, testKey)

	if err := imp.HandleEnvelope("intuitherm/community/updates", signedEnvelope(t, testRecords())); err != nil {
		t.Fatalf("HandleEnvelope() error = %v", err)
	}
	if sink.calls != 1 {
		t.Fatalf("sink calls = %d, want 1", sink.calls)
	}
	if len(sink.records) != 1 || sink.records[0].Brand != "deye" {
		t.Errorf("sink records = %+v, want the envelope's records", sink.records)
	}
}

func TestHandleEnvelopeRejectsBadSignature(t *testing.T) {
	sink := &mockSink{}
	imp := NewImporter(sink, []byte("ffffffffffffffffffffffffffffffff"))

	err := imp.HandleEnvelope("t", signedEnvelope(t, testRecords()))
	if !errors.Is(err, ErrInvalidEnvelope) {
		t.Errorf("HandleEnvelope(wrong key) error = %v, want ErrInvalidEnvelope", err)
	}
	if sink.calls != 0 {
		t.Errorf("sink calls = %d, want 0 for an unverified envelope", sink.calls)
	}
}

func TestHandleEnvelopeSinkFailure(t *testing.T) {
	sink := &mockSink{err: errors.New("disk full")}
	imp := NewImporter(sink, testKey)

	if err := imp.HandleEnvelope("t", signedEnvelope(t, testRecords())); err == nil {
		t.Error("HandleEnvelope() = nil, want store error surfaced")
	}
}

func TestHandleEnvelopeNothingNew(t *testing.T) {
	sink := &mockSink{added: 0}
	imp := NewImporter(sink, testKey)

	if err := imp.HandleEnvelope("t", signedEnvelope(t, testRecords())); err != nil {
		t.Errorf("HandleEnvelope() error = %v, want nil when batch adds nothing", err)
	}
}
