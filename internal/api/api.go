// Package api implements the REST surface of spec.md §6 over
// net/http's method+wildcard ServeMux patterns, reading and writing
// through the same Persistence Gateway the crawler uses.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/emailengineer/email-extractor/internal/storage"
)

const (
	defaultLimit = 50
	maxDomains   = 10000
	minDomains   = 1
)

// Store is the subset of *storage.DB the REST API needs.
type Store interface {
	CreateSearch(ctx context.Context, batchName *string, domains []string) (*storage.Search, error)
	GetSearch(ctx context.Context, id int64) (*storage.Search, error)
	ListSearches(ctx context.Context, status string, limit, offset int) ([]storage.Search, error)
	SearchStats(ctx context.Context, searchID int64) (*storage.SearchStatistics, error)
	ListDomains(ctx context.Context, searchID int64, status string, limit, offset int) ([]storage.Domain, error)
	EmailsForSearch(ctx context.Context, searchID int64, limit, offset int) ([]storage.Email, error)
	EmailsForDomain(ctx context.Context, domainID int64, limit, offset int) ([]storage.Email, error)
	PauseSearch(ctx context.Context, id int64) (bool, error)
	ResumeSearch(ctx context.Context, id int64) (bool, error)
	CancelSearch(ctx context.Context, id int64) (found, alreadyTerminal bool, err error)
}

// API wires Store onto an http.ServeMux.
type API struct {
	store  Store
	logger *zerolog.Logger
}

// New builds an API handler.
func New(store Store, logger *zerolog.Logger) *API {
	return &API{store: store, logger: logger}
}

// Handler returns the routed http.Handler for the REST surface.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/searches", a.createSearch)
	mux.HandleFunc("GET /api/searches", a.listSearches)
	mux.HandleFunc("GET /api/searches/{id}", a.getSearch)
	mux.HandleFunc("GET /api/searches/{id}/statistics", a.getSearchStatistics)
	mux.HandleFunc("GET /api/searches/{id}/domains", a.listDomains)
	mux.HandleFunc("GET /api/searches/{id}/emails", a.listSearchEmails)
	mux.HandleFunc("GET /api/domains/{id}/emails", a.listDomainEmails)
	mux.HandleFunc("PATCH /api/searches/{id}/pause", a.pauseSearch)
	mux.HandleFunc("PATCH /api/searches/{id}/resume", a.resumeSearch)
	mux.HandleFunc("DELETE /api/searches/{id}", a.cancelSearch)

	return mux
}

type createSearchRequest struct {
	BatchName *string  `json:"batch_name,omitempty"`
	Domains   []string `json:"domains"`
}

func (a *API) createSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Domains) < minDomains || len(req.Domains) > maxDomains {
		writeError(w, http.StatusBadRequest, "domains must contain between 1 and 10000 entries")
		return
	}

	search, err := a.store.CreateSearch(r.Context(), req.BatchName, req.Domains)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to create search")
		writeError(w, http.StatusInternalServerError, "failed to create search")

		return
	}

	writeJSON(w, http.StatusCreated, search)
}

func (a *API) listSearches(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit, offset := pagination(r)

	searches, err := a.store.ListSearches(r.Context(), status, limit, offset)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list searches")
		writeError(w, http.StatusInternalServerError, "failed to list searches")

		return
	}

	writeJSON(w, http.StatusOK, searches)
}

func (a *API) getSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	search, err := a.store.GetSearch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}

	writeJSON(w, http.StatusOK, search)
}

func (a *API) getSearchStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	stats, err := a.store.SearchStats(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to compute search statistics")
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")

		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (a *API) listDomains(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	limit, offset := pagination(r)

	domains, err := a.store.ListDomains(r.Context(), id, status, limit, offset)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list domains")
		writeError(w, http.StatusInternalServerError, "failed to list domains")

		return
	}

	writeJSON(w, http.StatusOK, domains)
}

func (a *API) listSearchEmails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)

	emails, err := a.store.EmailsForSearch(r.Context(), id, limit, offset)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list search emails")
		writeError(w, http.StatusInternalServerError, "failed to list emails")

		return
	}

	writeJSON(w, http.StatusOK, emails)
}

func (a *API) listDomainEmails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)

	emails, err := a.store.EmailsForDomain(r.Context(), id, limit, offset)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to list domain emails")
		writeError(w, http.StatusInternalServerError, "failed to list emails")

		return
	}

	writeJSON(w, http.StatusOK, emails)
}

func (a *API) pauseSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ok, err := a.store.PauseSearch(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to pause search")
		writeError(w, http.StatusInternalServerError, "failed to pause search")

		return
	}

	if !ok {
		writeError(w, http.StatusBadRequest, "search is not in_progress")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": storage.SearchStatusPaused})
}

func (a *API) resumeSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ok, err := a.store.ResumeSearch(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to resume search")
		writeError(w, http.StatusInternalServerError, "failed to resume search")

		return
	}

	if !ok {
		writeError(w, http.StatusBadRequest, "search is not paused")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": storage.SearchStatusInProgress})
}

// cancelSearch implements the status-code matrix adopted from
// original_source/engine/api.py (SPEC_FULL.md "SUPPLEMENTED FEATURES"):
// 404 if the search does not exist, 400 if already terminal, 200
// otherwise.
func (a *API) cancelSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	found, alreadyTerminal, err := a.store.CancelSearch(r.Context(), id)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to cancel search")
		writeError(w, http.StatusInternalServerError, "failed to cancel search")

		return
	}

	if !found {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}

	if alreadyTerminal {
		writeError(w, http.StatusBadRequest, "search is already in a terminal state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": storage.SearchStatusCancelled})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}

	return id, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	offset = 0

	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // best-effort encode
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
