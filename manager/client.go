package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"liveshare/domain"
	"liveshare/metrics"
	"liveshare/protocol"
	"liveshare/session"
	"liveshare/websocket"
)

var errSessionIDRequired = errors.New("session id required")

// Connect joins the session sessionID served at hostAddr (host:port or a
// ws:// base URL). It returns once Hello has been sent; the session
// materializes, and SessionStarted is emitted, when the host's Welcome arrives.
func (m *Manager) Connect(ctx context.Context, hostAddr, sessionID string) error {
	if sessionID == "" {
		return errSessionIDRequired
	}
	a := &active{role: roleClient, sessionID: sessionID}
	if err := m.claim(a); err != nil {
		return err
	}

	conn, err := websocket.Dial(ctx, SessionURL(hostAddr, sessionID), m.opts.Transport)
	if err != nil {
		m.release(a)
		err = fmt.Errorf("connect: %w", err)
		m.fail("%v", err)
		return err
	}

	hello, err := protocol.Encode(domain.Hello{Participant: m.self})
	if err == nil {
		err = conn.Write(ctx, hello)
	}
	if err != nil {
		conn.Close()
		m.release(a)
		err = fmt.Errorf("send hello: %w", err)
		m.fail("%v", err)
		return err
	}

	a.mu.Lock()
	if a.ending {
		a.mu.Unlock()
		conn.Close()
		return domain.ErrNoSession
	}
	a.conn = conn
	a.mu.Unlock()

	slog.Info("connected", "sessionId", sessionID, "host", hostAddr)
	go m.clientPump(a, conn)
	return nil
}

// SessionURL builds the WebSocket URL of a hosted session.
func SessionURL(hostAddr, sessionID string) string {
	base := strings.TrimSuffix(hostAddr, "/")
	if !strings.HasPrefix(base, "ws://") && !strings.HasPrefix(base, "wss://") {
		base = "ws://" + base
	}
	return base + "/ws/" + url.PathEscape(sessionID)
}

// clientPump is the only reader of a client connection. It keeps the local
// roster mirror and translates wire messages into outward events.
func (m *Manager) clientPump(a *active, conn domain.Transport) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			m.endClient(a, err)
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			metrics.DecodeFailures.Inc()
			m.endClient(a, err)
			return
		}

		switch msg := msg.(type) {
		case domain.Welcome:
			if msg.SessionID != a.sessionID {
				m.endClient(a, fmt.Errorf("%w: %s", domain.ErrSessionMismatch, msg.SessionID))
				return
			}
			s := session.Restore(msg, m.opts.BroadcastCapacity)
			a.mu.Lock()
			a.session = s
			a.mu.Unlock()
			slog.Info("joined session", "sessionId", s.ID, "participants", s.Roster.Len())
			m.Emit(domain.SessionStarted{SessionID: s.ID, IsHost: false})

		case domain.RosterChanged:
			s := a.currentSession()
			if s == nil {
				slog.Debug("roster change before welcome ignored", "sessionId", a.sessionID)
				continue
			}
			before := s.Roster.Replace(msg.Participants)
			joined, left := session.Diff(before, msg.Participants)
			for _, p := range joined {
				m.Emit(domain.ParticipantJoined{Participant: p})
			}
			for _, p := range left {
				m.Emit(domain.ParticipantLeft{Participant: p})
			}
			m.Emit(domain.MessageReceived{Message: msg})

		case domain.Close:
			m.endClient(a, nil)
			return

		case domain.Hello:
			continue

		default:
			m.Emit(domain.MessageReceived{Message: msg})
		}
	}
}

// sayGoodbye sends a best-effort Close to the host.
func (m *Manager) sayGoodbye(a *active) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}
	data, err := protocol.Encode(domain.Close{})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		slog.Debug("goodbye not delivered", "sessionId", a.sessionID, "error", err)
	}
}

func (m *Manager) endClient(a *active, cause error) {
	a.endOnce.Do(func() {
		a.mu.Lock()
		a.ending = true
		conn, s := a.conn, a.session
		a.mu.Unlock()
		m.release(a)

		if conn != nil {
			conn.Close()
		}
		if s != nil {
			s.Close()
		}
		if !protocol.IsNormalClosure(cause) {
			m.fail("session %s: %v", a.sessionID, cause)
		}
		slog.Info("left session", "sessionId", a.sessionID)
		m.Emit(domain.SessionEnded{SessionID: a.sessionID})
	})
}
