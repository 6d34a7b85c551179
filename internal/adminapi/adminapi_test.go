package adminapi

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/thaakir07/voicehub/internal/server"
	"github.com/thaakir07/voicehub/internal/store"
)

type fakeConn struct{ net.Conn }

func (fakeConn) Write(b []byte) (int, error) { return len(b), nil }
func (fakeConn) Close() error                { return nil }

func newTestRegistry(t *testing.T, names ...string) *server.Registry {
	t.Helper()
	reg := server.NewRegistry()
	for _, n := range names {
		if !reg.Register(server.NewPeer(n, "10.0.0.1", fakeConn{})) {
			t.Fatalf("Register(%q) failed", n)
		}
	}
	return reg
}

func TestHealthzEmptyRegistry(t *testing.T) {
	s := New(newTestRegistry(t), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	if err := s.handleHealthz(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Peers != 0 {
		t.Fatalf("got %+v, want {ok 0}", resp)
	}
}

func TestStatsAndPeersReflectRegistry(t *testing.T) {
	s := New(newTestRegistry(t, "Alice", "Bob"), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	if err := s.handleStats(s.echo.NewContext(req, rec)); err != nil {
		t.Fatalf("handleStats: %v", err)
	}
	var stats StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.Peers != 2 {
		t.Fatalf("stats.Peers = %d, want 2", stats.Peers)
	}

	req = httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec = httptest.NewRecorder()
	if err := s.handlePeers(s.echo.NewContext(req, rec)); err != nil {
		t.Fatalf("handlePeers: %v", err)
	}
	var peers PeersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &peers); err != nil {
		t.Fatalf("unmarshal peers: %v", err)
	}
	if len(peers.Names) != 2 {
		t.Fatalf("peers.Names = %v, want 2 entries", peers.Names)
	}
}

func TestAuditWithoutStoreReturnsEmpty(t *testing.T) {
	s := New(newTestRegistry(t), nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit", nil)
	rec := httptest.NewRecorder()
	if err := s.handleAudit(s.echo.NewContext(req, rec)); err != nil {
		t.Fatalf("handleAudit: %v", err)
	}
	var entries []store.AuditEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty audit log, got %v", entries)
	}
}

type fakeCallStats int

func (f fakeCallStats) ActiveCalls() int { return int(f) }

type fakeVoiceNoteStats uint64

func (f fakeVoiceNoteStats) ReceivedCount() uint64 { return uint64(f) }

func TestStatsReportsCallsAndVoiceNotes(t *testing.T) {
	s := New(newTestRegistry(t), nil, fakeCallStats(3), fakeVoiceNoteStats(7))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	if err := s.handleStats(s.echo.NewContext(req, rec)); err != nil {
		t.Fatalf("handleStats: %v", err)
	}
	var stats StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.ActiveCalls != 3 || stats.VoiceNotesReceived != 7 {
		t.Fatalf("got %+v, want ActiveCalls=3 VoiceNotesReceived=7", stats)
	}
}

func TestAuditWithStoreFiltersByKind(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	st.InsertAuditLog("connect", "Alice", "")      //nolint:errcheck
	st.InsertAuditLog("call_start", "Alice", "Bob") //nolint:errcheck

	s := New(newTestRegistry(t), st, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/audit?kind=call_start", nil)
	rec := httptest.NewRecorder()
	if err := s.handleAudit(s.echo.NewContext(req, rec)); err != nil {
		t.Fatalf("handleAudit: %v", err)
	}
	var entries []store.AuditEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != "call_start" {
		t.Fatalf("got %+v, want one call_start entry", entries)
	}
}
