// Package api is the local HTTP surface of `pageparser serve`: configuration
// CRUD, guarded page parsing and a per-domain status probe.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/fetch"
	"github.com/lingyjava/page-parser/internal/pageparser"
	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/storage"
)

// maxBodyBytes bounds request bodies; parse requests may carry a whole page.
const maxBodyBytes = 16 << 20

// ConfigStore is the part of *storage.Store the server needs.
type ConfigStore interface {
	Get(ctx context.Context, domain string) (*siteconfig.Site, error)
	Save(ctx context.Context, domain string, site *siteconfig.Site) error
	Delete(ctx context.Context, domain string) error
	All(ctx context.Context) (siteconfig.Bundle, error)
}

// PageLoader turns a parse request into a page.
type PageLoader interface {
	Load(ctx context.Context, input fetch.Input) (*fetch.HTMLPage, error)
}

// Server serves the API. Build it with New.
type Server struct {
	store  ConfigStore
	parser *pageparser.Parser
	loader PageLoader
	guard  *pageparser.Guard
	logger *zap.Logger
}

// New returns a Server. A nil guard admits every request; a nil logger is
// replaced by a no-op logger.
func New(store ConfigStore, parser *pageparser.Parser, loader PageLoader, guard *pageparser.Guard, logger *zap.Logger) *Server {
	if guard == nil {
		guard = pageparser.NewGuard(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, parser: parser, loader: loader, guard: guard, logger: logger}
}

// ParseRequest is the body of POST /api/parse. When HTML is set it is parsed
// as the page at URL; otherwise URL is fetched.
type ParseRequest struct {
	URL    string `json:"url"`
	HTML   string `json:"html,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Domain     string `json:"domain"`
	Configured bool   `json:"configured"`
	Busy       bool   `json:"busy"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/configs", s.listConfigs)
	mux.HandleFunc("GET /api/configs/{domain}", s.getConfig)
	mux.HandleFunc("PUT /api/configs/{domain}", s.putConfig)
	mux.HandleFunc("DELETE /api/configs/{domain}", s.deleteConfig)
	mux.HandleFunc("POST /api/parse", s.parse)
	mux.HandleFunc("GET /api/status", s.status)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) listConfigs(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.All(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	site, err := s.store.Get(r.Context(), domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if site == nil {
		s.fail(w, http.StatusNotFound, fmt.Errorf("%s: %w", domain, storage.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	var site siteconfig.Site
	if err := decodeBody(w, r, &site); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Save(r.Context(), domain, &site); err != nil {
		s.fail(w, saveStatus(err), err)
		return
	}

	saved, err := s.store.Get(r.Context(), domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("config saved", zap.String("domain", domain), zap.Int("fields", saved.Selectors.Len()))
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deleteConfig(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	site, err := s.store.Get(r.Context(), domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if site == nil {
		s.fail(w, http.StatusNotFound, fmt.Errorf("%s: %w", domain, storage.ErrNotFound))
		return
	}
	if err := s.store.Delete(r.Context(), domain); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("config deleted", zap.String("domain", domain))
	w.WriteHeader(http.StatusNoContent)
}

// parse answers with an Outcome. Only malformed requests (400) and guard
// rejections (429) use a non-200 status; a failed load or a missing
// configuration is a failed Outcome.
func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" && req.HTML == "" {
		s.fail(w, http.StatusBadRequest, errors.New("url or html is required"))
		return
	}

	release, err := s.guard.Acquire()
	if err != nil {
		writeJSON(w, http.StatusTooManyRequests, pageparser.Failed(err.Error()))
		return
	}
	defer release()

	input := fetch.Input{URL: req.URL}
	if req.HTML != "" {
		input = fetch.Input{Stdin: strings.NewReader(req.HTML), BaseURL: req.URL}
	}
	page, err := s.loader.Load(r.Context(), input)
	if err != nil {
		s.logger.Warn("load page", zap.String("url", req.URL), zap.Error(err))
		reason := err.Error()
		if errors.Is(err, fetch.ErrUnsupportedPage) {
			reason = fetch.ErrUnsupportedPage.Error()
		}
		writeJSON(w, http.StatusOK, pageparser.Failed(reason))
		return
	}

	out := s.parser.ParsePage(r.Context(), page, pageparser.WithDomain(req.Domain))
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		s.fail(w, http.StatusBadRequest, errors.New("domain is required"))
		return
	}
	ok, err := s.parser.Status(r.Context(), domain)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Domain: domain, Configured: ok, Busy: s.guard.Busy()})
}

func (s *Server) fail(w http.ResponseWriter, code int, err error) {
	if code >= 500 {
		s.logger.Error("api error", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// saveStatus maps validation failures to 400.
func saveStatus(err error) int {
	for _, target := range []error{
		storage.ErrEmptyDomain,
		siteconfig.ErrNilSite,
		siteconfig.ErrNoSelectors,
		siteconfig.ErrEmptyField,
		siteconfig.ErrReservedField,
		siteconfig.ErrDuplicateField,
		siteconfig.ErrEmptySelector,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
