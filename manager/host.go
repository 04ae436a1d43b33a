package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"liveshare/domain"
	"liveshare/hub"
	"liveshare/metrics"
	"liveshare/protocol"
	"liveshare/session"
	"liveshare/websocket"
)

// StartHost binds bindAddr, starts a new session and accepts clients at
// /ws/{sessionID} until the session ends or the listener fails.
func (m *Manager) StartHost(bindAddr string) (string, error) {
	a, relay, err := m.bindHost(bindAddr)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionActive) {
			m.fail("%v", err)
		}
		return "", err
	}

	slog.Info("hosting session", "sessionId", a.sessionID, "addr", a.listener.Addr().String())
	m.Emit(domain.SessionStarted{SessionID: a.sessionID, IsHost: true})

	go m.relay(relay, a.relayDone)
	go m.acceptLoop(a)

	m.announce(a)
	return a.sessionID, nil
}

// bindHost claims the manager for a new hosted session and binds its listener.
func (m *Manager) bindHost(bindAddr string) (*active, *hub.Subscription[domain.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, nil, domain.ErrSessionActive
	}

	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("bind %s: %w", bindAddr, err)
	}

	s := session.New(m.self, m.opts.BroadcastCapacity)
	relay, err := s.Subscribe()
	if err != nil {
		ln.Close()
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &active{
		role:      roleHost,
		sessionID: s.ID,
		session:   s,
		listener:  ln,
		ctx:       ctx,
		cancel:    cancel,
		relayDone: make(chan struct{}),
	}
	a.server = &http.Server{
		Handler:           m.router(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.active = a
	return a, relay, nil
}

// announce runs outside m.mu since registering can block. A session that ended
// meanwhile is withdrawn right away.
func (m *Manager) announce(a *active) {
	if m.opts.Announcer == nil {
		return
	}
	port := a.listener.Addr().(*net.TCPAddr).Port
	instance := m.self.DisplayName
	if instance == "" {
		instance = m.self.ID
	}
	stop, err := m.opts.Announcer.Announce(instance, a.sessionID, m.self.ID, port)
	if err != nil {
		m.fail("announce session %s: %v", a.sessionID, err)
		return
	}

	a.mu.Lock()
	if a.ending {
		a.mu.Unlock()
		stop()
		return
	}
	a.stopAnnounce = stop
	a.mu.Unlock()
}

// Addr returns the host's listening address, or "" when not hosting.
func (m *Manager) Addr() string {
	a := m.current()
	if a == nil || a.role != roleHost {
		return ""
	}
	return a.listener.Addr().String()
}

func (m *Manager) acceptLoop(a *active) {
	err := a.server.Serve(a.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	m.endHost(a, fmt.Errorf("listener failed: %w", err))
}

// relay turns every message on the host's own broadcast stream into a
// MessageReceived event.
func (m *Manager) relay(sub *hub.Subscription[domain.Message], done chan<- struct{}) {
	defer close(done)
	defer sub.Close()
	for {
		msg, err := sub.Recv(context.Background())
		var lag *hub.LagError
		if errors.As(err, &lag) {
			m.fail("host event relay missed %d messages", lag.Missed)
			continue
		}
		if err != nil {
			return
		}
		if _, ok := msg.(domain.Close); ok {
			return
		}
		m.Emit(domain.MessageReceived{Message: msg})
	}
}

// endHost tears hosting down once: Close is broadcast, the stream is closed so
// every outbound pump drains and exits, the listener stops, connections still
// waiting for Hello are cancelled. SessionEnded follows every relayed message.
func (m *Manager) endHost(a *active, cause error) {
	a.endOnce.Do(func() {
		a.mu.Lock()
		a.ending = true
		stopAnnounce := a.stopAnnounce
		a.mu.Unlock()
		m.release(a)

		if cause != nil {
			m.fail("session %s: %v", a.sessionID, cause)
		}

		_ = a.session.Publish(domain.Close{})
		a.session.Close()
		if stopAnnounce != nil {
			stopAnnounce()
		}
		if err := a.server.Close(); err != nil {
			slog.Warn("closing listener", "sessionId", a.sessionID, "error", err)
		}
		a.cancel()

		if !waitTimeout(&a.handlers, m.opts.ShutdownTimeout) {
			slog.Warn("connections still open after shutdown timeout", "sessionId", a.sessionID)
		}
		<-a.relayDone
		slog.Info("session ended", "sessionId", a.sessionID)
		m.Emit(domain.SessionEnded{SessionID: a.sessionID})
	})
}

func (m *Manager) router(a *active) http.Handler {
	origins := m.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/ws/{sessionID}", m.wsHandler(a))
	r.Get("/health", healthHandler)
	r.Get("/stats", m.statsHandler(a))
	if m.opts.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

func (m *Manager) wsHandler(a *active) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "sessionID") != a.sessionID {
			http.NotFound(w, r)
			return
		}

		a.mu.Lock()
		if a.ending {
			a.mu.Unlock()
			http.Error(w, "session ended", http.StatusServiceUnavailable)
			return
		}
		a.handlers.Add(1)
		a.mu.Unlock()
		defer a.handlers.Done()

		conn, err := websocket.Upgrade(w, r, m.opts.Transport)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}
		slog.Debug("connection accepted", "sessionId", a.sessionID, "remote", conn.RemoteAddr())

		if err := protocol.NewHandler(a.session, m).Serve(a.ctx, conn); err != nil {
			slog.Debug("connection ended", "sessionId", a.sessionID, "error", err)
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type stats struct {
	SessionID    string `json:"sessionId"`
	Participants int    `json:"participants"`
	Subscribers  int    `json:"subscribers"`
}

func (m *Manager) statsHandler(a *active) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats{
			SessionID:    a.sessionID,
			Participants: a.session.Roster.Len(),
			Subscribers:  a.session.Subscribers(),
		})
	}
}
