package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vjranagit/mbseries/pkg/align"
	"github.com/vjranagit/mbseries/pkg/provider"
	"github.com/vjranagit/mbseries/pkg/series"
	"github.com/vjranagit/mbseries/pkg/storage"
	"github.com/vjranagit/mbseries/pkg/types"
)

// Options wires the optional collaborators of the server.
type Options struct {
	// Cached, SeriesCache and Store feed /metrics and /api/v1/snapshots.
	// Any of them may be nil.
	Cached      *provider.Cached
	SeriesCache *storage.SeriesCache
	Store       storage.Store

	Timeout time.Duration
	Logger  *slog.Logger
}

// Server implements the HTTP API server
type Server struct {
	service *series.Service
	opts    Options
	logger  *slog.Logger
	addr    string
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(addr string, svc *series.Service, opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: svc,
		opts:    opts,
		logger:  logger,
		addr:    addr,
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/series", s.handleSeries)
	mux.HandleFunc("GET /api/v1/revisions", s.handleRevisions)
	mux.HandleFunc("GET /api/v1/describe", s.handleDescribe)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/field", s.handleField)
	mux.HandleFunc("POST /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/tickers/bloomberg", s.handleBloomberg)
	mux.HandleFunc("GET /api/v1/snapshots", s.handleSnapshots)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	return s.withRequestLog(mux)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.Timeout,
		WriteTimeout: s.opts.Timeout,
	}

	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type failure struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

func failuresOf(errs []error) []failure {
	out := make([]failure, 0, len(errs))
	for _, err := range errs {
		id, _ := types.FailedID(err)
		out = append(out, failure{ID: id, Error: err.Error()})
	}
	return out
}

type seriesResponse struct {
	Table    *types.AlignedTable `json:"table"`
	Failures []failure           `json:"failures"`
}

// handleSeries aligns the requested series, converting them first when a
// currency is given.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r, "ids", "currency") {
		return
	}

	ids := splitList(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "Missing ids parameter")
		return
	}

	var (
		res *align.Result
		err error
	)
	if r.URL.Query().Has("currency") {
		req := &provider.UnifiedRequest{IDs: ids, Currency: r.URL.Query().Get("currency")}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err = s.service.Unified(r.Context(), ids, req.Currency)
	} else {
		res, err = s.service.Aligned(r.Context(), ids)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, seriesResponse{Table: res.Table, Failures: failuresOf(res.Failures)})
}

func (s *Server) handleRevisions(w http.ResponseWriter, r *http.Request) {
	id, ok := requiredParam(w, r, "id")
	if !ok {
		return
	}

	table, err := s.service.Revisions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type describeResponse struct {
	Rows     []types.DescriptiveRow `json:"rows"`
	Failures []failure              `json:"failures"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r, "ids") {
		return
	}

	ids := splitList(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "Missing ids parameter")
		return
	}

	res := s.service.Describe(r.Context(), ids)
	writeJSON(w, http.StatusOK, describeResponse{Rows: res.Rows, Failures: failuresOf(res.Failures)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := requiredParam(w, r, "id")
	if !ok {
		return
	}

	st, err := s.service.Status(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r, "id", "key") {
		return
	}
	id, key := r.URL.Query().Get("id"), r.URL.Query().Get("key")
	if id == "" || key == "" {
		writeError(w, http.StatusBadRequest, "Both id and key are required")
		return
	}

	value, err := s.service.Field(r.Context(), id, key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"key":   key,
		"value": value,
	})
}

// handleSearch decodes a search query, rejecting options it does not know.
// An empty body searches with every default.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r) {
		return
	}

	q := provider.NewSearchQuery()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(q); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}
	if err := q.Normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	names, err := s.service.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

func (s *Server) handleBloomberg(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r, "tickers", "fields") {
		return
	}

	tickers := splitList(r.URL.Query().Get("tickers"))
	if len(tickers) == 0 {
		writeError(w, http.StatusBadRequest, "Missing tickers parameter")
		return
	}
	var fields []string
	if r.URL.Query().Has("fields") {
		// Empty entries are kept so fields stay positional.
		fields = strings.Split(r.URL.Query().Get("fields"), ",")
	}

	ids, err := s.service.BloombergTickers(tickers, fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

type snapshotInfo struct {
	ID       string     `json:"id"`
	Releases []int      `json:"releases"`
	First    types.Date `json:"first"`
	Last     types.Date `json:"last"`
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if !allowParams(w, r) {
		return
	}

	out := []snapshotInfo{}
	if s.opts.Store != nil {
		for _, info := range s.opts.Store.List() {
			out = append(out, snapshotInfo{
				ID:       info.ID,
				Releases: info.Releases,
				First:    info.Span.First,
				Last:     info.Span.Last,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": out})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nre *types.NoRevisionsError
		pe  *types.ProviderError
		se  *types.SeriesError
	)
	switch {
	case errors.As(err, &nre):
		writeJSON(w, http.StatusNotFound, map[string]string{"id": nre.ID, "error": nre.Reason})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusNotFound, map[string]string{"id": pe.ID, "error": pe.Message})
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, map[string]string{"id": se.ID, "error": se.Err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// allowParams rejects query parameters outside names.
func allowParams(w http.ResponseWriter, r *http.Request, names ...string) bool {
	for key := range r.URL.Query() {
		known := false
		for _, n := range names {
			if key == n {
				known = true
				break
			}
		}
		if !known {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown parameter %q", key))
			return false
		}
	}
	return true
}

func requiredParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	if !allowParams(w, r, name) {
		return "", false
	}
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing %s parameter", name))
		return "", false
	}
	return v, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
