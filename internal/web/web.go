package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"time"

	"epdnews/internal/config"
	appLog "epdnews/internal/log"
	"epdnews/internal/model"
	"epdnews/internal/news"
	"epdnews/internal/session"
)

// StatusSource is what the server observes. *session.Session implements it.
type StatusSource interface {
	Status() session.Status
	Document() *model.Document
}

// Server exposes the running session over HTTP.
type Server struct {
	cfg    *config.Config
	source StatusSource
	stream http.Handler
	mux    *http.ServeMux
}

// NewServer constructs a new Server. stream, if non-nil, is served at
// /stream (typically a periph videosink).
func NewServer(cfg *config.Config, source StatusSource, stream http.Handler) *Server {
	s := &Server{
		cfg:    cfg,
		source: source,
		stream: stream,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="EPDNews", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is done, then shuts the
// server down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, source StatusSource, stream http.Handler) error {
	s := NewServer(cfg, source, stream)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/news", s.handleNews)
	s.mux.HandleFunc("/api/news.md", s.handleNewsMarkdown)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	if s.stream != nil {
		s.mux.Handle("/stream", s.stream)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStatus returns the session snapshot: phase, page index, page text
// and the wrapped lines on the panel.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Status())
}

func (s *Server) handleNews(w http.ResponseWriter, _ *http.Request) {
	doc := s.source.Document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "no document loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleNewsMarkdown renders the current document as a Markdown digest.
func (s *Server) handleNewsMarkdown(w http.ResponseWriter, _ *http.Request) {
	doc := s.source.Document()
	if doc == nil {
		writeError(w, http.StatusServiceUnavailable, "no document loaded yet")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(news.Markdown(doc)))
}

// handlePreview encodes the last rendered page as PNG.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	frame := s.source.Status().Frame
	if frame == nil {
		http.Error(w, "no page rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame); err != nil {
		appLog.Error("failed to encode preview", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
