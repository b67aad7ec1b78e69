package crmchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// chatServer is an in-process room endpoint for client tests.
type chatServer struct {
	*httptest.Server

	mu       sync.Mutex
	dials    int
	reject   bool
	paths    []string
	tokens   []string
	received [][]byte
	closes   []websocket.StatusCode

	// handle runs per accepted socket; nth counts accepted sockets from 1.
	// When nil the server just reads until the client goes away.
	handle func(ctx context.Context, ws *websocket.Conn, nth int)
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	s := &chatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.dials++
	nth := s.dials
	reject := s.reject
	s.paths = append(s.paths, r.URL.Path)
	s.tokens = append(s.tokens, r.URL.Query().Get("token"))
	handle := s.handle
	s.mu.Unlock()

	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	if handle != nil {
		handle(r.Context(), ws, nth)
		return
	}
	s.readAll(r.Context(), ws)
}

// readAll records frames until the socket fails and then records the close code.
func (s *chatServer) readAll(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			s.mu.Lock()
			s.closes = append(s.closes, websocket.CloseStatus(err))
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.received = append(s.received, data)
		s.mu.Unlock()
	}
}

func (s *chatServer) setHandle(fn func(ctx context.Context, ws *websocket.Conn, nth int)) {
	s.mu.Lock()
	s.handle = fn
	s.mu.Unlock()
}

func (s *chatServer) setReject(v bool) {
	s.mu.Lock()
	s.reject = v
	s.mu.Unlock()
}

func (s *chatServer) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *chatServer) frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

func (s *chatServer) closeCodes() []websocket.StatusCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]websocket.StatusCode(nil), s.closes...)
}

// config returns a client config pointing at the server with fast retries.
func (s *chatServer) config() Config {
	cfg := DefaultConfig()
	cfg.URL = s.URL + "/ws/chat"
	cfg.Token = "test-token"
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.ReconnectInterval = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 40 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestClient(t *testing.T, cfg Config, roomID int64) *Client {
	t.Helper()
	c := NewClient(cfg, roomID)
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}
