// Package api provides the local HTTP API for playback control.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"actionreplay/internal/action"
	"actionreplay/internal/library"
	"actionreplay/internal/playback"
	"actionreplay/internal/protocol"
)

// Player is the playback engine driven by the API
type Player interface {
	Start(ctx context.Context, g *action.Group) playback.Result
	Cancel() bool
	State() playback.Status
	Current() *action.Group
}

// Groups is the group source served by the API
type Groups interface {
	List() []*action.Group
	Get(ref string) (*action.Group, error)
}

// Options configures a Server
type Options struct {
	// Token, when set, must be sent as "Authorization: Bearer <token>"
	// (or ?token= for WebSocket clients).
	Token    string
	GameMode bool
	Logger   *slog.Logger
}

// Server provides HTTP API for playback control
type Server struct {
	groups   Groups
	player   Player
	token    string
	gameMode bool
	logger   *slog.Logger
	wsMgr    *WSManager

	mu      sync.Mutex
	baseCtx context.Context
	plays   sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(groups Groups, player Player, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		groups:   groups,
		player:   player,
		token:    opts.Token,
		gameMode: opts.GameMode,
		logger:   opts.Logger,
		baseCtx:  context.Background(),
	}
	s.wsMgr = newWSManager(s)
	return s
}

// Handler returns the routed handler with auth and panic recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	s.wsMgr.ensureStarted()
	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves on 127.0.0.1:port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the API on ln until ctx is cancelled, then cancels any playback
// it started and waits for it to end.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	defer s.Close()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API: listening", "addr", ln.Addr().String())
	err := server.Serve(ln)
	s.plays.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects WebSocket clients
func (s *Server) Close() {
	s.wsMgr.stop()
}

// Publish forwards a playback event to WebSocket clients. It never blocks.
func (s *Server) Publish(ev playback.Event) {
	s.wsMgr.Broadcast(protocol.FromEvent(ev))
}

// Play looks up ref and starts it in the background. Obvious conflicts are
// reported synchronously; the orchestrator still has the final say.
func (s *Server) Play(ref string) (*action.Group, error) {
	g, err := s.groups.Get(ref)
	if err != nil {
		return nil, err
	}
	if g.IsSimulating() {
		return g, playback.ErrAlreadySimulating
	}
	if s.player.State() == playback.StatusRunning {
		return g, playback.ErrBusy
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.plays.Add(1)
	go func() {
		defer s.plays.Done()
		res := s.player.Start(ctx, g)
		if res.Err != nil {
			s.logger.Warn("API: playback ended with error", "group", g.Name, "error", res.Err)
		}
	}()
	return g, nil
}

func (s *Server) status() protocol.StatusPayload {
	st := protocol.StatusPayload{
		State:    s.player.State().String(),
		GameMode: s.gameMode,
	}
	if g := s.player.Current(); g != nil {
		st.Group = g.Name
	}
	return st
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("API: handler panicked", "path", r.URL.Path, "panic", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("API: request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" && r.URL.Path == "/ws" {
			got = r.URL.Query().Get("token")
		}
		if !tokenMatches(got, s.token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tokenMatches compares in constant time for equal-length inputs
func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

type groupInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Items      int    `json:"items"`
	Modifiers  int    `json:"modifiers"`
	SpanMS     int64  `json:"span_ms"`
	Simulating bool   `json:"simulating"`
}

// handleGroups handles GET /api/groups
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	groups := s.groups.List()
	out := make([]groupInfo, len(groups))
	for i, g := range groups {
		out[i] = groupInfo{
			ID:         g.ID,
			Name:       g.Name,
			Items:      len(g.Items),
			Modifiers:  len(g.Modifiers),
			SpanMS:     g.Span().Milliseconds(),
			Simulating: g.IsSimulating(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePlay handles POST /api/play?group=<name or id>
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ref := r.URL.Query().Get("group")
	if ref == "" {
		http.Error(w, "Missing group parameter", http.StatusBadRequest)
		return
	}

	g, err := s.Play(ref)
	switch {
	case errors.Is(err, library.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, playback.ErrAlreadySimulating), errors.Is(err, playback.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("API: playing group", "group", g.Name, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"group":  g.Name,
		"id":     g.ID,
	})
}

// handleCancel handles POST /api/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cancelled := s.player.Cancel()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
