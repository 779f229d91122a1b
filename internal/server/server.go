// Package server exposes the catalog over HTTP so read commands and the
// verification harness can reach a shared instance.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scbrown/clicat/internal/ledger"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/store"
)

// maxBody bounds POST bodies.
const maxBody = 8 << 20

// Recorder folds verification results into compatibility records.
// *score.Scorer implements it.
type Recorder interface {
	Record(ctx context.Context, r model.VerificationResult) (model.CompatibilityRecord, error)
}

// Server serves a store.Reader and, when a Recorder is set, accepts
// verification results.
type Server struct {
	store      store.Reader
	recorder   Recorder
	log        *slog.Logger
	router     chi.Router
	srv        *http.Server
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Server. rec may be nil, in which case POST
// /api/v1/verifications answers 501.
func New(st store.Reader, rec Recorder, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{store: st, recorder: rec, log: log, router: chi.NewRouter(), now: time.Now}
	s.routes()
	return s
}

// WithStaleness sets how long a compatibility record stays current. Older
// records are served as unknown. Zero means score.DefaultStaleAfter.
func (s *Server) WithStaleness(d time.Duration) *Server {
	s.staleAfter = d
	return s
}

// WithClock replaces the clock used to judge staleness.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// view applies staleness to compatibility records in place.
func (s *Server) view(recs []model.CompatibilityRecord) {
	now := s.now()
	for i := range recs {
		recs[i] = score.View(recs[i], now, s.staleAfter)
	}
}

func (s *Server) viewProfiles(profiles []model.Profile) {
	for i := range profiles {
		s.view(profiles[i].Compatibility)
	}
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/profiles", s.handleListProfiles)
	r.Route("/api/v1/profiles/{slug}", func(r chi.Router) {
		r.Get("/", s.handleGetProfile)
		r.Get("/versions", s.handleVersions)
		r.Get("/diff", s.handleDiff)
		r.Get("/compatibility", s.handleListCompat)
		r.Get("/compatibility/{agent}", s.handleGetCompat)
		r.Get("/commands/{id}", s.handleCommandExists)
	})
	r.Get("/api/v1/binaries/{binary}", s.handleByBinary)
	r.Post("/api/v1/verifications", s.handleVerifications)
	r.Get("/api/v1/curation", s.handleCuration)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = s.httpServer(addr)
	return s.srv.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	s.srv = s.httpServer("")
	return s.srv.Serve(ln)
}

func (s *Server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Handler returns the HTTP handler for use with httptest.Server or custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	profiles, err := s.store.ListProfiles(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing profiles: %v", err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	s.viewProfiles(profiles)
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := s.store.GetProfile(r.Context(), slug)
	if err != nil {
		writeStoreErr(w, err, "profile %q", slug)
		return
	}
	s.view(p.Compatibility)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleByBinary(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListByBinary(r.Context(), chi.URLParam(r, "binary"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing by binary: %v", err)
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	s.viewProfiles(profiles)
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	versions, err := s.store.VersionHistory(r.Context(), slug)
	if err != nil {
		writeStoreErr(w, err, "profile %q", slug)
		return
	}
	if versions == nil {
		versions = []model.ListingVersion{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	from, err := parseInt(r, "from")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	to, err := parseInt(r, "to")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	versions, err := s.store.VersionHistory(r.Context(), slug)
	if err != nil {
		writeStoreErr(w, err, "profile %q", slug)
		return
	}
	if to == 0 && len(versions) > 0 {
		to = versions[len(versions)-1].Number
	}
	changes, err := ledger.Diff(versions, from, to)
	if errors.Is(err, ledger.ErrRange) {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "diff: %v", err)
		return
	}
	if changes == nil {
		changes = []model.FieldChange{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleListCompat(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListCompatibility(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing compatibility: %v", err)
		return
	}
	if recs == nil {
		recs = []model.CompatibilityRecord{}
	}
	s.view(recs)
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetCompat(w http.ResponseWriter, r *http.Request) {
	slug, agent := chi.URLParam(r, "slug"), chi.URLParam(r, "agent")
	rec, err := s.store.GetCompatibility(r.Context(), slug, agent)
	if err != nil {
		writeStoreErr(w, err, "compatibility %s/%s", slug, agent)
		return
	}
	writeJSON(w, http.StatusOK, score.View(*rec, s.now(), s.staleAfter))
}

func (s *Server) handleCommandExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.store.CommandExists(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "command lookup: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

// verificationResponse reports how many results were folded in and which
// were refused, by position in the request.
type verificationResponse struct {
	Recorded int                   `json:"recorded"`
	Errors   []verificationFailure `json:"errors,omitempty"`
}

type verificationFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (s *Server) handleVerifications(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeErr(w, http.StatusNotImplemented, "verification intake is disabled")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "reading request body: %v", err)
		return
	}
	results, err := decodeResults(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	var (
		resp    verificationResponse
		lastErr error
	)
	for i, res := range results {
		if _, err := s.recorder.Record(r.Context(), res); err != nil {
			lastErr = err
			resp.Errors = append(resp.Errors, verificationFailure{Index: i, Error: err.Error()})
			continue
		}
		resp.Recorded++
	}
	if len(results) == 1 && len(resp.Errors) == 1 {
		status := http.StatusUnprocessableEntity
		if errors.Is(lastErr, score.ErrUnknownSlug) {
			status = http.StatusNotFound
		}
		writeErr(w, status, "%s", resp.Errors[0].Error)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeResults accepts one result object or an array of them.
func decodeResults(body []byte) ([]model.VerificationResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if body[0] == '[' {
		var rs []model.VerificationResult
		if err := json.Unmarshal(body, &rs); err != nil {
			return nil, err
		}
		return rs, nil
	}
	var one model.VerificationResult
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []model.VerificationResult{one}, nil
}

func (s *Server) handleCuration(w http.ResponseWriter, r *http.Request) {
	opts, err := parseCurationOpts(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "%v", err)
		return
	}
	items, err := s.store.ListCuration(r.Context(), opts)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "listing curation: %v", err)
		return
	}
	if items == nil {
		items = []model.CurationItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// writeErr writes a JSON error response.
func writeErr(w http.ResponseWriter, status int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreErr maps store.ErrNotFound to 404 and everything else to 500.
func writeStoreErr(w http.ResponseWriter, err error, format string, args ...any) {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusNotFound, "%s not found", what)
		return
	}
	writeErr(w, http.StatusInternalServerError, "%s: %v", what, err)
}
