// Package api serves the question envelope and the decision ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davidahmann/tally/internal/agent"
	"github.com/davidahmann/tally/internal/auth"
	"github.com/davidahmann/tally/internal/ledger"
	"github.com/davidahmann/tally/pkg/types"
)

const (
	HeaderDecisionID = "X-Tally-Decision-Id"
	HeaderRequestID  = "X-Tally-Request-Id"

	maxBodyBytes = 64 << 10
)

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, question string) (types.Envelope, agent.Trace)
}

type Handler struct {
	Auth   auth.Authenticator
	Agent  Asker
	Ledger ledger.Store
}

type AskRequest struct {
	Question string `json:"question"`
}

type DecisionSummary struct {
	DecisionID string `json:"decision_id"`
	RequestID  string `json:"request_id"`
	CreatedAt  string `json:"created_at"`
	Decision   string `json:"decision"`
	ReasonCode string `json:"reason_code"`
	Path       string `json:"path"`
	Cause      string `json:"cause,omitempty"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Agent == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "agent not configured"})
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing question"})
		return
	}

	env, tr := h.Agent.Ask(r.Context(), req.Question)
	if tr.DecisionID != "" {
		w.Header().Set(HeaderDecisionID, tr.DecisionID)
	}
	w.Header().Set(HeaderRequestID, tr.RequestID)
	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) Decision(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Ledger == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "ledger not configured"})
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing decision_id"})
		return
	}
	row, ok := h.Ledger.GetDecision(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "decision not found"})
		return
	}
	rec, err := ledger.DecodeDecision(row)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "corrupt decision record"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Decisions(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}
	if h.Ledger == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "ledger not configured"})
		return
	}

	limit := ledger.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, ledger.DefaultListLimit)
	}

	rows, err := h.Ledger.ListDecisions(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list decisions failed"})
		return
	}
	out := make([]DecisionSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, DecisionSummary{
			DecisionID: row.DecisionID,
			RequestID:  row.RequestID,
			CreatedAt:  row.CreatedAt,
			Decision:   row.Decision,
			ReasonCode: row.ReasonCode,
			Path:       row.Path,
			Cause:      row.Cause,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": out})
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	if h.Auth == nil {
		return true
	}
	if _, err := h.Auth.Authenticate(r); err != nil {
		msg := auth.ErrInvalidToken.Error()
		if errors.Is(err, auth.ErrMissingBearer) {
			msg = auth.ErrMissingBearer.Error()
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
