// Package manager is the process-facing entry point: it hosts a session or joins
// one, sends messages, ends the session and publishes outward events.
//
// A Manager holds at most one session at a time, in either the host or the
// client role.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"liveshare/domain"
	"liveshare/hub"
	"liveshare/session"
	"liveshare/websocket"
)

const (
	defaultEventCapacity   = 256
	defaultShutdownTimeout = 5 * time.Second
)

// Announcer advertises a hosted session, e.g. over mDNS.
type Announcer interface {
	Announce(instance, sessionID, hostID string, port int) (stop func(), err error)
}

type Options struct {
	BroadcastCapacity int
	EventCapacity     int
	ShutdownTimeout   time.Duration
	Transport         websocket.Options
	Announcer         Announcer
	Metrics           bool
	AllowedOrigins    []string // empty allows any origin
}

type role int

const (
	roleHost role = iota + 1
	roleClient
)

// active is the state of the one session a Manager currently holds.
type active struct {
	role      role
	sessionID string

	mu      sync.Mutex
	session *session.Session
	conn    domain.Transport
	ending  bool

	// host only
	listener     net.Listener
	server       *http.Server
	ctx          context.Context
	cancel       context.CancelFunc
	handlers     sync.WaitGroup
	relayDone    chan struct{}
	stopAnnounce func()

	endOnce sync.Once
}

func (a *active) currentSession() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

type Manager struct {
	self   domain.Participant
	opts   Options
	events *hub.Hub[domain.Event]

	mu     sync.Mutex
	active *active
}

func New(self domain.Participant, opts Options) *Manager {
	if opts.EventCapacity <= 0 {
		opts.EventCapacity = defaultEventCapacity
	}
	if opts.BroadcastCapacity <= 0 {
		opts.BroadcastCapacity = session.DefaultBroadcastCapacity
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	self.IsHost = false
	return &Manager{
		self:   self,
		opts:   opts,
		events: hub.New[domain.Event]("events", opts.EventCapacity),
	}
}

func (m *Manager) Self() domain.Participant {
	return m.self
}

// Events subscribes to the outward event stream. Like the session stream it
// is lossy for subscribers that fall behind.
func (m *Manager) Events() (*hub.Subscription[domain.Event], error) {
	return m.events.Subscribe()
}

// Emit publishes an outward event. It implements domain.EventSink.
func (m *Manager) Emit(evt domain.Event) {
	slog.Debug("event", "type", fmt.Sprintf("%T", evt))
	_, _ = m.events.Publish(evt)
}

// SessionID returns the active session id, or "" when idle or when a client
// has not been welcomed yet.
func (m *Manager) SessionID() string {
	a := m.current()
	if a == nil {
		return ""
	}
	if s := a.currentSession(); s != nil {
		return s.ID
	}
	return ""
}

func (m *Manager) IsHost() bool {
	a := m.current()
	return a != nil && a.role == roleHost
}

// Roster returns the host's roster or the client's mirror of it.
func (m *Manager) Roster() []domain.Participant {
	a := m.current()
	if a == nil {
		return nil
	}
	if s := a.currentSession(); s != nil {
		return s.Roster.Snapshot()
	}
	return nil
}

// Send publishes msg to every participant. Only the host can send; clients get
// domain.ErrClientSendUnsupported and nothing is delivered. A host Close ends
// the session exactly like EndSession.
func (m *Manager) Send(msg domain.Message) error {
	a := m.current()
	if a == nil {
		return domain.ErrNoSession
	}
	if a.role == roleClient {
		return domain.ErrClientSendUnsupported
	}
	if msg == nil {
		return domain.ErrInvalidMessage
	}
	if _, ok := msg.(domain.Close); ok {
		return m.end(a)
	}
	if err := a.currentSession().Publish(msg); err != nil {
		if session.IsClosed(err) {
			return domain.ErrNoSession
		}
		return err
	}
	return nil
}

// EndSession ends the active session. It fails with domain.ErrNoSession, and
// emits nothing, when there is none.
func (m *Manager) EndSession() error {
	a := m.current()
	if a == nil {
		return domain.ErrNoSession
	}
	return m.end(a)
}

// end ends a if it is still the active session.
func (m *Manager) end(a *active) error {
	m.mu.Lock()
	if m.active != a {
		m.mu.Unlock()
		return domain.ErrNoSession
	}
	m.active = nil
	m.mu.Unlock()

	switch a.role {
	case roleHost:
		m.endHost(a, nil)
	case roleClient:
		m.sayGoodbye(a)
		m.endClient(a, nil)
	}
	return nil
}

// Close ends any active session and then the outward event stream.
func (m *Manager) Close() {
	if err := m.EndSession(); err != nil && !errors.Is(err, domain.ErrNoSession) {
		slog.Warn("end session on close", "error", err)
	}
	m.events.Close()
}

func (m *Manager) current() *active {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// claim reserves the manager for a new session.
func (m *Manager) claim(a *active) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return domain.ErrSessionActive
	}
	m.active = a
	return nil
}

func (m *Manager) release(a *active) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == a {
		m.active = nil
	}
}

func (m *Manager) fail(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	slog.Warn(text)
	m.Emit(domain.Failure{Text: text})
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
