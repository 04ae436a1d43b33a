package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"liveshare/domain"
	"liveshare/hub"
	"liveshare/metrics"
	"liveshare/session"
)

var (
	errPeerClosed    = errors.New("peer sent close")
	errSessionClosed = errors.New("session closed")
)

// Handler runs the host side of one accepted connection: admission handshake,
// then paired outbound/inbound pumps until either side ends.
type Handler struct {
	session *session.Session
	events  domain.EventSink
}

func NewHandler(s *session.Session, events domain.EventSink) *Handler {
	return &Handler{session: s, events: events}
}

// Serve drives t until the connection ends and always closes t. Cancelling ctx
// aborts a connection that has not completed its handshake; once admitted, a
// connection ends when the peer leaves or the session stream closes. Normal
// endings return nil.
func (h *Handler) Serve(ctx context.Context, t domain.Transport) error {
	defer t.Close()
	metrics.ConnectionsAccepted.Inc()

	p, err := h.awaitHello(ctx, t)
	if err != nil {
		return h.finish(err, "")
	}
	log := slog.With("sessionId", h.session.ID, "participantId", p.ID)

	p.IsHost = false

	sub, err := h.session.Subscribe()
	if err != nil {
		return h.finish(err, p.ID)
	}
	defer sub.Close()

	// Only admitted participants reach past this point, so a connection that
	// never said Hello, or reused a taken id, never produces ParticipantLeft.
	admitted := h.session.Roster.Admit(p, func() {
		h.emit(domain.ParticipantJoined{Participant: p})
	})
	if !admitted {
		log.Warn("rejecting participant, id already in use")
		_ = h.write(ctx, t, domain.Error{Message: domain.ErrParticipantIDInUse.Error()})
		return domain.ErrParticipantIDInUse
	}
	metrics.ParticipantsActive.Inc()
	log.Info("participant joined", "participants", h.session.Roster.Len())
	defer func() {
		metrics.ParticipantsActive.Dec()
		h.emit(domain.ParticipantLeft{Participant: p})
		h.session.Roster.Remove(p.ID)
		log.Info("participant left", "participants", h.session.Roster.Len())
	}()

	welcome := domain.Welcome{
		SessionID:          h.session.ID,
		Host:               h.session.Host,
		ActiveParticipants: h.session.Roster.Snapshot(),
	}
	if err := h.write(ctx, t, welcome); err != nil {
		return h.finish(err, p.ID)
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	stop := context.AfterFunc(gctx, func() { _ = t.Close() })
	defer stop()

	g.Go(func() error { return h.outbound(gctx, t, sub, p.ID) })
	g.Go(func() error { return h.inbound(gctx, t) })

	return h.finish(g.Wait(), p.ID)
}

func (h *Handler) awaitHello(ctx context.Context, t domain.Transport) (domain.Participant, error) {
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	for {
		data, err := t.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Participant{}, ctx.Err()
			}
			return domain.Participant{}, err
		}
		msg, err := h.decode(data)
		if err != nil {
			return domain.Participant{}, err
		}
		hello, ok := msg.(domain.Hello)
		if !ok {
			slog.Debug("ignoring message before hello", "sessionId", h.session.ID, "type", msg.Type())
			continue
		}
		return hello.Participant, nil
	}
}

func (h *Handler) outbound(ctx context.Context, t domain.Transport, sub *hub.Subscription[domain.Message], participantID string) error {
	for {
		msg, err := sub.Recv(ctx)
		var lag *hub.LagError
		if errors.As(err, &lag) {
			slog.Warn("subscriber lagged", "sessionId", h.session.ID, "participantId", participantID, "missed", lag.Missed)
			msg = domain.Error{Message: fmt.Sprintf("missed %d messages", lag.Missed)}
		} else if err != nil {
			if session.IsClosed(err) {
				return errSessionClosed
			}
			return err
		}

		if err := h.write(ctx, t, msg); err != nil {
			return err
		}
		if _, ok := msg.(domain.Close); ok {
			return errSessionClosed
		}
	}
}

func (h *Handler) inbound(ctx context.Context, t domain.Transport) error {
	for {
		data, err := t.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := h.decode(data)
		if err != nil {
			return err
		}

		switch msg.(type) {
		case domain.Hello:
			continue
		case domain.Close:
			return errPeerClosed
		}

		if err := h.session.Publish(msg); err != nil {
			if session.IsClosed(err) {
				return errSessionClosed
			}
			return err
		}
		metrics.MessagesRelayed.WithLabelValues(string(msg.Type())).Inc()
	}
}

func (h *Handler) write(ctx context.Context, t domain.Transport, msg domain.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := t.Write(ctx, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type(), err)
	}
	return nil
}

func (h *Handler) decode(data []byte) (domain.Message, error) {
	msg, err := Decode(data)
	if err != nil {
		metrics.DecodeFailures.Inc()
		return nil, err
	}
	return msg, nil
}

// finish reports abnormal endings as Failure events and swallows normal ones.
func (h *Handler) finish(err error, participantID string) error {
	if IsNormalClosure(err) {
		return nil
	}
	slog.Warn("connection failed", "sessionId", h.session.ID, "participantId", participantID, "error", err)
	h.emit(domain.Failure{Text: fmt.Sprintf("connection %s: %v", describe(participantID), err)})
	return err
}

func (h *Handler) emit(evt domain.Event) {
	if h.events != nil {
		h.events.Emit(evt)
	}
}

// IsNormalClosure reports whether err marks an orderly end of a connection
// rather than a transport failure.
func IsNormalClosure(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, errPeerClosed) ||
		errors.Is(err, errSessionClosed) ||
		errors.Is(err, hub.ErrClosed)
}

func describe(participantID string) string {
	if participantID == "" {
		return "(before hello)"
	}
	return participantID
}
