// Package server exposes the sync orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncer"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

const maxRequestSize = 64 << 10

// Syncer runs one sync request.
type Syncer interface {
	Sync(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

// ErrorResponse represents an API error response.
// Raw echoes the upstream payload when its shape was not recognized.
type ErrorResponse struct {
	Error string          `json:"error"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// BalanceResponse represents the response for a balance sync.
type BalanceResponse struct {
	Data json.RawMessage `json:"data"`
}

// New creates the HTTP handler for the sync endpoint.
func New(s Syncer) http.Handler {
	h := &handler{syncer: s}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	r.Get("/health", h.health)
	r.Post("/sync", h.sync)

	return r
}

type handler struct {
	syncer Syncer
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sync handles POST /sync.
func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncer.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestSize))
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeJSONError(w, http.StatusBadRequest, ErrorResponse{Error: msg})
		return
	}

	result, err := h.syncer.Sync(r.Context(), req)
	if err != nil {
		status := syncerr.HTTPStatus(err)
		resp := ErrorResponse{Error: err.Error()}

		var se *syncerr.Error
		if errors.As(err, &se) && se.Kind == syncerr.KindShape {
			resp.Raw = echoRaw(se.Raw)
		}

		slog.Error("Sync failed",
			"request_id", middleware.GetReqID(r.Context()),
			"action", req.Action,
			"kind", syncerr.KindOf(err),
			"status", status,
			"error", err,
		)
		writeJSONError(w, status, resp)
		return
	}

	if result.Action == syncer.ActionBalance {
		writeJSON(w, http.StatusOK, BalanceResponse{Data: result.Balance})
		return
	}
	writeJSON(w, http.StatusOK, result.Summary)
}

// echoRaw returns raw as-is when it is valid JSON, otherwise as a JSON string.
func echoRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}
