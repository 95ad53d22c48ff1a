// Package rpcserver exposes the Analyzer's two callables, heartbeat and
// get_pages, to the front-end bridge over plain JSON/HTTP. The bridge's own
// wire protocol is an external collaborator; this package only needs a
// transport the bridge can reach, not the bridge's own framework.
package rpcserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/elodkocsis/tenebra/internal/analyzer"
)

// PageLister is the subset of *analyzer.Manager the RPC surface needs.
type PageLister interface {
	GetPages(ctx context.Context, query string, n int) ([]analyzer.PageView, bool)
}

// Server serves heartbeat and get_pages over HTTP, authenticating every
// request against a shared secret supplied out of band.
type Server struct {
	manager PageLister
	key     string
	logger  *slog.Logger

	httpServer *http.Server
}

// New builds a Server bound to addr. key is the shared secret the bridge
// must present in the X-Uplink-Key header on every request.
func New(addr, key string, manager PageLister, logger *slog.Logger) *Server {
	s := &Server{manager: manager, key: key, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("/get_pages", s.handleGetPages)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until the server is shut down,
// returning nil on a clean Shutdown rather than http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (logger *slog.Logger, ok bool) {
	reqID := uuid.NewString()
	logger = s.logger.With("request_id", reqID, "remote_addr", r.RemoteAddr, "path", r.URL.Path)

	if r.Header.Get("X-Uplink-Key") != s.key {
		logger.Warn("rejected request with missing or wrong uplink key")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return logger, false
	}
	return logger, true
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	logger, ok := s.authorize(w, r)
	if !ok {
		return
	}
	logger.Debug("heartbeat")
	writeJSON(w, logger, true)
}

type pageResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleGetPages(w http.ResponseWriter, r *http.Request) {
	logger, ok := s.authorize(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("query")
	n, err := strconv.Atoi(r.URL.Query().Get("num"))
	if err != nil {
		n = 10
	}
	logger = logger.With("query", query, "num", n)

	results, ready := s.manager.GetPages(r.Context(), query, n)
	if !ready {
		logger.Info("get_pages called while setting_up")
		writeJSON(w, logger, "setting_up")
		return
	}

	out := make([]pageResult, 0, len(results))
	for _, p := range results {
		out = append(out, pageResult{URL: p.URL, Title: p.Title, Description: p.Description})
	}
	logger.Info("get_pages served", "results", len(out))
	writeJSON(w, logger, out)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response failed", "error", err)
	}
}
