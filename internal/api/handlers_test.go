package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/intuitherm/pattern-core/internal/community"
	"github.com/intuitherm/pattern-core/internal/infrastructure/config"
	"github.com/intuitherm/pattern-core/internal/infrastructure/logging"
	"github.com/intuitherm/pattern-core/internal/pattern"
)

const testAPIKey = "test-key-0123456789"

// memBlob is an in-memory pattern.BlobStore for handler tests.
type memBlob struct {
	data []byte
}

func (m *memBlob) Load(_ context.Context) ([]byte, error) { return m.data, nil }
func (m *memBlob) Save(_ context.Context, blob []byte) error {
	m.data = append([]byte(nil), blob...)
	return nil
}

// capturePublisher records community submissions.
type capturePublisher struct {
	calls int
}

func (c *capturePublisher) Publish(_ context.Context, _ string, _ []byte, _ bool) error {
	c.calls++
	return nil
}

type serverOpts struct {
	submitter *community.Submitter
}

func newTestServer(t *testing.T, opts serverOpts) (*Server, *pattern.Store) {
	t.Helper()

	store := pattern.NewStore(&memBlob{})
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}

	srv, err := New(Deps{
		Config:    config.APIConfig{},
		Security:  config.SecurityConfig{APIKey: testAPIKey},
		Logger:    logging.Default(),
		Store:     store,
		Matcher:   pattern.NewMatcher(store, pattern.MatcherConfig{}),
		Learner:   pattern.NewLearner(store, pattern.LearnerConfig{}),
		Submitter: opts.submitter,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, store
}

// doRequest performs an authenticated request against the router.
func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestHealthNoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"wrong key", "Bearer wrong-key-0123456789"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/learned/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestDetectEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	body := map[string]any{
		"snapshot": map[string]any{
			"entities": []map[string]any{
				{"entity_id": "switch.foxess_force_charge", "friendly_name": "FoxESS Force Charge"},
				{"entity_id": "number.foxess_min_soc", "friendly_name": "FoxESS Min SoC"},
				{"entity_id": "sensor.kitchen_temp", "friendly_name": "Kitchen Temperature"},
			},
		},
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/detect", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("detect status = %d, body %s", rec.Code, rec.Body)
	}

	var resp detectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.EntityCount != 3 {
		t.Errorf("EntityCount = %d, want 3", resp.EntityCount)
	}
	fc, ok := resp.Assignments[pattern.RoleForceCharge]
	if !ok {
		t.Fatal("no assignment for battery_force_charge")
	}
	if fc.EntityID != "switch.foxess_force_charge" {
		t.Errorf("force_charge entity = %s, want switch.foxess_force_charge", fc.EntityID)
	}
	if fc.Score != 0.9 {
		t.Errorf("force_charge score = %v, want 0.9", fc.Score)
	}
	if ms, ok := resp.Assignments[pattern.RoleMinSOC]; !ok || ms.EntityID != "number.foxess_min_soc" {
		t.Errorf("min_soc assignment = %+v, want number.foxess_min_soc", ms)
	}
}

func TestDetectRejectsInvalidSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	body := map[string]any{
		"snapshot": map[string]any{
			"entities": []map[string]any{
				{"entity_id": "switch.a"},
				{"entity_id": "switch.a"},
			},
		},
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/detect", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("detect(dup) status = %d, want 400", rec.Code)
	}
}

func TestFeedbackConfirmAndLearnedLifecycle(t *testing.T) {
	srv, store := newTestServer(t, serverOpts{})

	// Correct teaches a new mapping.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/feedback", map[string]any{
		"outcome": "correct",
		"brand":   "deye",
		"role":    "battery_force_charge",
		"signature": map[string]any{
			"entity_id":   "switch.deye_grid_charge",
			"domain":      "switch",
			"name_tokens": []string{"deye", "sg04lp3", "charge"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback correct status = %d, body %s", rec.Code, rec.Body)
	}

	learned := store.Learned()
	if len(learned) != 1 {
		t.Fatalf("learned count = %d, want 1", len(learned))
	}

	// Confirm strengthens it.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/feedback", map[string]any{
		"outcome":    "confirm",
		"pattern_id": learned[0].ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback confirm status = %d", rec.Code)
	}
	after, _ := store.Get(learned[0].ID)
	if after.SuccessCount != learned[0].SuccessCount+1 {
		t.Errorf("SuccessCount = %d, want %d", after.SuccessCount, learned[0].SuccessCount+1)
	}

	// List shows it at index 0; delete removes it.
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/learned/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/learned/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body)
	}
	if got := len(store.Learned()); got != 0 {
		t.Errorf("learned count after delete = %d, want 0", got)
	}
}

func TestFeedbackValidation(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown outcome", map[string]any{"outcome": "maybe"}, http.StatusBadRequest},
		{"confirm without id", map[string]any{"outcome": "confirm"}, http.StatusBadRequest},
		{"confirm unknown id", map[string]any{"outcome": "confirm", "pattern_id": "ghost"}, http.StatusNotFound},
		{"correct without signature", map[string]any{"outcome": "correct", "brand": "x", "role": "battery_min_soc"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/feedback", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestDeleteLearnedIndexOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	rec := doRequest(t, srv, http.MethodDelete, "/api/v1/learned/0", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete on empty collection status = %d, want 404", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/learned/banana", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete with non-integer index status = %d, want 400", rec.Code)
	}
}

func TestExportBackup(t *testing.T) {
	srv, store := newTestServer(t, serverOpts{})

	// Teach one pattern, then export the full backup.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/feedback", map[string]any{
		"outcome": "correct",
		"brand":   "deye",
		"role":    "battery_min_soc",
		"signature": map[string]any{
			"entity_id":   "number.deye_soc",
			"domain":      "number",
			"name_tokens": []string{"deye", "soc"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/learned/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}

	var payload pattern.ExportPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if payload.Version != 1 {
		t.Errorf("Version = %d, want 1", payload.Version)
	}
	if payload.GeneratedAt.IsZero() {
		t.Error("GeneratedAt missing")
	}

	// Full backup: the entire pattern set, built-ins included.
	if want := len(store.Patterns()); len(payload.Patterns) != want {
		t.Fatalf("exported %d patterns, want the full set of %d", len(payload.Patterns), want)
	}
	var builtins, learned int
	var taught pattern.DevicePattern
	for i := range payload.Patterns {
		switch p := payload.Patterns[i]; p.Origin {
		case pattern.OriginBuiltin:
			builtins++
		case pattern.OriginLearnedLocal:
			learned++
			taught = p
		}
	}
	if builtins == 0 {
		t.Error("backup contains no built-in patterns")
	}
	if learned != 1 || taught.Brand != "deye" {
		t.Fatalf("backup learned patterns = %d, want exactly the taught deye pattern", learned)
	}
	if taught.ID == "" || taught.CreatedAt.IsZero() {
		t.Error("backup must keep pattern IDs and timestamps for restore")
	}
}

func TestShareDisabled(t *testing.T) {
	srv, _ := newTestServer(t, serverOpts{})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/share", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("share status = %d, want 409 when sharing disabled", rec.Code)
	}
}

func TestShareSubmitsLearnedPatterns(t *testing.T) {
	pub := &capturePublisher{}
	submitter := community.NewSubmitter(pub, "intuitherm/community/patterns",
		[]byte("0123456789abcdef0123456789abcdef"))
	srv, _ := newTestServer(t, serverOpts{submitter: submitter})

	// Nothing learned yet.
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/share", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("share status = %d", rec.Code)
	}
	if pub.calls != 0 {
		t.Errorf("publish calls = %d, want 0 with nothing to share", pub.calls)
	}

	// Teach something, then share again.
	rec = doRequest(t, srv, http.MethodPost, "/api/v1/feedback", map[string]any{
		"outcome": "correct",
		"brand":   "deye",
		"role":    "battery_force_charge",
		"signature": map[string]any{
			"entity_id":   "switch.deye_charge",
			"domain":      "switch",
			"name_tokens": []string{"deye", "charge"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/v1/share", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("share status = %d, body %s", rec.Code, rec.Body)
	}
	if pub.calls != 1 {
		t.Errorf("publish calls = %d, want 1", pub.calls)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding share response: %v", err)
	}
	if resp["status"] != "shared" {
		t.Errorf("status = %v, want shared", resp["status"])
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	store := pattern.NewStore(&memBlob{})
	deps := Deps{
		Logger:  logging.Default(),
		Store:   store,
		Matcher: pattern.NewMatcher(store, pattern.MatcherConfig{}),
		Learner: pattern.NewLearner(store, pattern.LearnerConfig{}),
	}

	for _, tc := range []struct {
		name   string
		mutate func(*Deps)
	}{
		{"logger", func(d *Deps) { d.Logger = nil }},
		{"store", func(d *Deps) { d.Store = nil }},
		{"matcher", func(d *Deps) { d.Matcher = nil }},
		{"learner", func(d *Deps) { d.Learner = nil }},
	} {
		t.Run(fmt.Sprintf("missing %s", tc.name), func(t *testing.T) {
			broken := deps
			tc.mutate(&broken)
			if _, err := New(broken); err == nil {
				t.Error("New() = nil error, want missing-dependency failure")
			}
		})
	}
}
