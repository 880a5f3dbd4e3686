package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partywatch/internal/config"
	appLog "partywatch/internal/log"
	"partywatch/internal/model"
	"partywatch/internal/scan"
	"partywatch/internal/scheduler"
	"partywatch/internal/settings"
)

// Scanner is the part of the scan orchestrator the API exposes.
type Scanner interface {
	LastReport() (scan.Report, bool)
	ConfiguredGroups(ctx context.Context) []model.InterestGroup
	ClearNotified(ctx context.Context) error
	NotifiedCount() int
}

// Trigger controls the pass schedule.
type Trigger interface {
	RunNow()
	Reschedule(spec string) error
	Spec() string
}

// Server provides the admin HTTP API: status, groups, settings and the
// notified-ID reset.
type Server struct {
	cfg      *config.Config
	scanner  Scanner
	settings *settings.Store
	trigger  Trigger
	mux      *http.ServeMux
}

// NewServer constructs a new Server. trigger may be nil when no scheduler
// runs (single-pass mode).
func NewServer(cfg *config.Config, scanner Scanner, st *settings.Store, trigger Trigger) *Server {
	s := &Server{
		cfg:      cfg,
		scanner:  scanner,
		settings: st,
		trigger:  trigger,
		mux:      http.NewServeMux(),
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
		// /health stays open for liveness probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="partywatch", charset="UTF-8"`)
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

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/groups", s.handleGroups)
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	s.mux.HandleFunc("DELETE /api/notified", s.handleClearNotified)
	s.mux.HandleFunc("POST /api/scan", s.handleScan)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusResponse is the JSON response shape for /api/status.
type statusResponse struct {
	LastPass      *scan.Report `json:"last_pass"`
	NotifiedCount int          `json:"notified_count"`
	Schedule      string       `json:"schedule,omitempty"`
	Source        string       `json:"source"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		NotifiedCount: s.scanner.NotifiedCount(),
		Source:        s.cfg.Site.Source,
	}
	if rep, ok := s.scanner.LastReport(); ok {
		resp.LastPass = &rep
	}
	if s.trigger != nil {
		resp.Schedule = s.trigger.Spec()
	}
	writeJSON(w, http.StatusOK, resp)
}

// groupDTO is a JSON-friendly view of a group. The webhook URL carries a
// secret token and is reported only as present or absent.
type groupDTO struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	Color      string   `json:"color"`
	Thumbnail  string   `json:"thumbnail,omitempty"`
	Enabled    bool     `json:"enabled"`
	HasWebhook bool     `json:"has_webhook"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.scanner.ConfiguredGroups(r.Context())
	dtos := make([]groupDTO, 0, len(groups))
	for _, g := range groups {
		dtos = append(dtos, groupDTO{
			Name:       g.Name,
			Keywords:   g.Keywords,
			Color:      fmt.Sprintf("#%06x", g.Color),
			Thumbnail:  g.Thumbnail,
			Enabled:    g.Enabled,
			HasWebhook: g.Webhook != "",
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Load(r.Context())
	if err != nil {
		// Defaults are still returned; the scanner uses them too.
		appLog.Error("api settings: load failed; serving defaults", err)
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePutSettings merges the request body over the stored document.
// Fields absent from the body keep their stored values, inside each group
// override too.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	st, err := s.settings.Load(ctx)
	if err != nil {
		appLog.Error("api settings: load failed; updating defaults", err)
	}

	var patch settings.Patch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings document: "+err.Error())
		return
	}

	known := make(map[string]bool)
	for _, g := range s.cfg.Groups {
		known[g.Name] = true
	}
	for name := range patch.GroupSettings {
		if !known[name] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown group %q", name))
			return
		}
	}

	st = st.Apply(patch)
	if err := s.settings.Save(ctx, st); err != nil {
		appLog.Error("api settings: save failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	appLog.Info("api settings: updated", "notify", st.Notify, "refresh_seconds", st.RefreshSeconds)

	// A cron override in the config file wins over refreshSeconds.
	if s.trigger != nil && s.cfg.RefreshCron == "" {
		if err := s.trigger.Reschedule(scheduler.SpecFor("", st.RefreshInterval())); err != nil {
			appLog.Error("api settings: reschedule failed", err)
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClearNotified(w http.ResponseWriter, r *http.Request) {
	if err := s.scanner.ClearNotified(r.Context()); err != nil {
		appLog.Error("api notified: clear failed", err)
		writeError(w, http.StatusInternalServerError, "failed to persist cleared set")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	s.trigger.RunNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
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
