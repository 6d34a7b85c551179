// Package adminapi exposes a read-only HTTP status surface over the control
// server's live state and its persisted audit log (C12): health, a peer
// directory snapshot, and recent operational events. It never mutates
// server state — all mutation happens over the control protocol.
package adminapi

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/thaakir07/voicehub/internal/server"
	"github.com/thaakir07/voicehub/internal/store"
)

// CallStats reports how many calls are currently in progress.
type CallStats interface {
	ActiveCalls() int
}

// VoiceNoteStats reports voice-note transfer activity.
type VoiceNoteStats interface {
	ReceivedCount() uint64
}

// Server serves the admin HTTP API.
type Server struct {
	registry *server.Registry
	store    *store.Store   // optional; nil disables /audit
	calls    CallStats      // optional; nil reports 0 active calls
	notes    VoiceNoteStats // optional; nil reports 0 voice notes received
	echo     *echo.Echo
}

// New constructs a Server and registers all routes. st may be nil, in
// which case /audit reports an empty log instead of failing. calls and
// notes may be nil, in which case /stats reports zero for the fields they
// back.
func New(registry *server.Registry, st *store.Store, calls CallStats, notes VoiceNoteStats) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{registry: registry, store: st, calls: calls, notes: notes, echo: e}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/stats", s.handleStats)
	s.echo.GET("/peers", s.handlePeers)
	s.echo.GET("/audit", s.handleAudit)
}

// Run starts the Echo HTTP server on addr and blocks until ctx is
// canceled.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[adminapi] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.echo.Shutdown(shutCtx) //nolint:errcheck
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Peers  int    `json:"peers"`
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Peers:  s.registry.Count(),
	})
}

// StatsResponse is the payload for GET /stats.
type StatsResponse struct {
	Peers              int    `json:"peers"`
	Groups             int    `json:"groups"`
	ActiveCalls        int    `json:"active_calls"`
	VoiceNotesReceived uint64 `json:"voice_notes_received"`
}

func (s *Server) handleStats(c echo.Context) error {
	resp := StatsResponse{
		Peers:  s.registry.Count(),
		Groups: s.registry.GroupCount(),
	}
	if s.calls != nil {
		resp.ActiveCalls = s.calls.ActiveCalls()
	}
	if s.notes != nil {
		resp.VoiceNotesReceived = s.notes.ReceivedCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// PeersResponse is the payload for GET /peers.
type PeersResponse struct {
	Names []string `json:"names"`
}

func (s *Server) handlePeers(c echo.Context) error {
	names := s.registry.Names()
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, PeersResponse{Names: names})
}

func (s *Server) handleAudit(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusOK, []store.AuditEntry{})
	}
	kind := c.QueryParam("kind")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	entries, err := s.store.GetAuditLog(kind, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// jsonErrorHandler ensures all error responses have a consistent JSON body:
//
//	{"error": "message"}
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
