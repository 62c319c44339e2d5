package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/intuitherm/pattern-core/internal/community"
	"github.com/intuitherm/pattern-core/internal/pattern"
	"github.com/intuitherm/pattern-core/internal/registry"
)

// detectRequest carries an entity-registry snapshot to scan.
type detectRequest struct {
	Snapshot registry.Snapshot `json:"snapshot"`
}

// roleCandidates is the per-role slice of ranked candidates.
type roleCandidates struct {
	Role       pattern.Role          `json:"role"`
	Candidates []pattern.MatchResult `json:"candidates"`
}

// detectResponse holds ranked candidates and conflict-free assignments.
type detectResponse struct {
	Roles       []roleCandidates                     `json:"roles"`
	Assignments map[pattern.Role]pattern.MatchResult `json:"assignments"`
	EntityCount int                                  `json:"entity_count"`
	DurationMs  int64                                `json:"duration_ms"`
}

// handleDetect scans a registry snapshot and returns ranked candidates per
// role plus the final conflict-free assignment.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if err := req.Snapshot.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	start := time.Now()
	sigs := pattern.ExtractAll(&req.Snapshot)
	ranked := s.matcher.RankAll(sigs)
	assigned := pattern.Assign(ranked)
	duration := time.Since(start)

	// Stable role order in the response body.
	roles := make([]roleCandidates, 0, len(ranked))
	for _, role := range pattern.AllRoles() {
		if candidates, ok := ranked[role]; ok {
			roles = append(roles, roleCandidates{Role: role, Candidates: candidates})
		}
	}

	s.recordMatchRun(len(sigs), ranked, assigned, duration)

	writeJSON(w, http.StatusOK, detectResponse{
		Roles:       roles,
		Assignments: assigned,
		EntityCount: len(sigs),
		DurationMs:  duration.Milliseconds(),
	})
}

// recordMatchRun writes detection metrics when InfluxDB is wired.
func (s *Server) recordMatchRun(entityCount int, ranked map[pattern.Role][]pattern.MatchResult, assigned map[pattern.Role]pattern.MatchResult, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.WriteMatchRun(entityCount, len(assigned), duration)
	for role, result := range assigned {
		s.metrics.WriteRoleMatch(result.Brand, string(role), result.Score, len(ranked[role]))
	}
}

// feedbackRequest carries one piece of user feedback.
//
// Outcome "confirm" and "reject" need PatternID; "correct" needs Brand,
// Role, and the signature of the entity the user pointed at.
type feedbackRequest struct {
	Outcome   string                   `json:"outcome"`
	PatternID string                   `json:"pattern_id,omitempty"`
	Brand     string                   `json:"brand,omitempty"`
	Role      pattern.Role             `json:"role,omitempty"`
	Signature *pattern.DeviceSignature `json:"signature,omitempty"`
}

// handleFeedback applies a confirmation, rejection, or correction.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	ctx := r.Context()
	switch req.Outcome {
	case "confirm":
		if req.PatternID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "pattern_id is required for confirm")
			return
		}
		if err := s.learner.Confirm(ctx, req.PatternID); err != nil {
			s.writeFeedbackError(w, err)
			return
		}
		s.recordFeedback("confirm", req.PatternID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed"})

	case "reject":
		if req.PatternID == "" {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "pattern_id is required for reject")
			return
		}
		if err := s.learner.Reject(ctx, req.PatternID); err != nil {
			s.writeFeedbackError(w, err)
			return
		}
		s.recordFeedback("reject", req.PatternID)
		writeJSON(w, http.StatusOK, map[string]any{"status": "rejected"})

	case "correct":
		if req.Signature == nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "signature is required for correct")
			return
		}
		learned, err := s.learner.Correct(ctx, req.Brand, req.Role, *req.Signature)
		if err != nil {
			s.writeFeedbackError(w, err)
			return
		}
		s.recordFeedback("correct", learned.ID)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "corrected",
			"pattern": learned,
		})

	default:
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			"outcome must be one of: confirm, reject, correct")
	}
}

// writeFeedbackError maps learner errors onto HTTP responses.
func (s *Server) writeFeedbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pattern.ErrPatternNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, pattern.ErrInvalidRole),
		errors.Is(err, pattern.ErrInvalidBrand),
		errors.Is(err, pattern.ErrNoSignificantTokens):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("feedback failed", "error", err)
		writeInternalError(w, "feedback could not be applied")
	}
}

// recordFeedback writes a feedback metric when InfluxDB is wired.
func (s *Server) recordFeedback(outcome, patternID string) {
	if s.metrics == nil {
		return
	}
	origin := "unknown"
	if p, err := s.store.Get(patternID); err == nil {
		origin = string(p.Origin)
	}
	s.metrics.WriteFeedback(outcome, origin)
	s.metrics.WriteLearnedCount(len(s.store.Learned()))
}

// handleListLearned returns the learned pattern collection in stable order.
// Indexes in the response are the ones DELETE /learned/{index} accepts.
func (s *Server) handleListLearned(w http.ResponseWriter, _ *http.Request) {
	learned := s.store.Learned()
	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": learned,
		"count":    len(learned),
	})
}

// handleDeleteLearned removes one learned pattern by its list index.
func (s *Server) handleDeleteLearned(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "index must be an integer")
		return
	}

	if err := s.store.DeleteByIndex(r.Context(), index); err != nil {
		switch {
		case errors.Is(err, pattern.ErrIndexOutOfRange):
			writeNotFound(w, err.Error())
		default:
			s.logger.Error("deleting learned pattern", "error", err)
			writeInternalError(w, "pattern could not be deleted")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "index": index})
}

// handleExportBackup returns the full local pattern set, built-ins included,
// as an indented JSON document for user backup. The scrubbed shareable form
// is produced only by the share path.
func (s *Server) handleExportBackup(w http.ResponseWriter, _ *http.Request) {
	raw, err := pattern.ToJSONExport(s.store.Patterns(), time.Now())
	if err != nil {
		s.logger.Error("encoding pattern export", "error", err)
		writeInternalError(w, "patterns could not be exported")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(raw)
}

// handleShare signs the scrubbed learned patterns and publishes them to the
// community topic. Returns 409 when sharing is disabled and 200 with a
// count of shared records otherwise.
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, "community sharing is disabled")
		return
	}

	records := pattern.ExportLocal(s.store)
	err := s.submitter.Submit(r.Context(), records)
	switch {
	case errors.Is(err, community.ErrNoPatterns):
		writeJSON(w, http.StatusOK, map[string]any{"status": "nothing_to_share", "count": 0})
	case err != nil:
		// Fire-and-forget: a failed publish is reported but nothing retries.
		s.logger.Warn("community share failed", "error", err)
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "share_failed", "count": 0})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "shared", "count": len(records)})
	}
}
