package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_pricesheet/internal/app"
	"hotel_pricesheet/internal/domain"
)

const (
	maxBatchBytes    = 16 << 20
	readTimeout      = 15 * time.Second
	reconcileTimeout = 3 * time.Minute
)

// Reconciler runs one batch against the template.
type Reconciler interface {
	Reconcile(ctx context.Context, b domain.Batch) domain.Result
}

type Handlers struct {
	R Reconciler
	Q *app.QueryService
	// A is optional; without it the reload route is not mounted.
	A *app.AliasService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// reconcileResponse is the Result contract plus the offers the mapper dropped.
type reconcileResponse struct {
	domain.Result
	Rejected []app.Reject `json:"rejected,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(readTimeout))
		r.Get("/v1/runs", h.listRuns)
		r.Get("/v1/runs/{id}", h.getRun)
		r.Get("/v1/runs/{id}/misses", h.listMisses)
	})

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(reconcileTimeout))
		r.Use(JSONBody(maxBatchBytes))
		r.Post("/v1/reconcile", h.reconcile)
		if h.A != nil {
			r.Post("/v1/aliases/reload", h.reloadAliases)
		}
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func (h *Handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid batch", err.Error())
		return
	}
	b, rejects, err := app.MapBatch(payload)
	if err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid batch", err.Error())
		return
	}
	if len(rejects) > 0 {
		log.Warn().Int("rejected", len(rejects)).Str("destination", b.Destination).Msg("offers rejected by mapper")
	}

	res := h.R.Reconcile(r.Context(), b)
	if res.RunID != "" {
		w.Header().Set(RunIDHeader, res.RunID)
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, reconcileResponse{Result: res, Rejected: rejects})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return app.DefaultListLimit, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > app.MaxListLimit {
		writeProblem(w, http.StatusBadRequest, "Invalid limit",
			"limit must be an integer between 1 and "+strconv.Itoa(app.MaxListLimit))
		return 0, false
	}
	return l, true
}

func queryProblem(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", what+" not found")
	case errors.Is(err, app.ErrHistoryDisabled):
		writeProblem(w, http.StatusServiceUnavailable, "History disabled", err.Error())
	default:
		log.Error().Err(err).Str("query", what).Msg("query failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "query failed")
	}
}

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListRuns(r.Context(), limit)
	if err != nil {
		queryProblem(w, err, "runs")
		return
	}
	writeCached(w, r, map[string]any{"items": out})
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		queryProblem(w, err, "run")
		return
	}
	writeCached(w, r, out)
}

func (h *Handlers) listMisses(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListMisses(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		queryProblem(w, err, "misses")
		return
	}
	writeCached(w, r, map[string]any{"items": out})
}

func (h *Handlers) reloadAliases(w http.ResponseWriter, r *http.Request) {
	idx, err := h.A.Reload(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("alias reload failed")
		writeProblem(w, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"aliases": idx.Size()})
}
