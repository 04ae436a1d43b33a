package session

import (
	"errors"

	"github.com/google/uuid"

	"liveshare/domain"
	"liveshare/hub"
)

// DefaultBroadcastCapacity is how many messages a subscriber may have pending
// before it starts losing messages.
const DefaultBroadcastCapacity = 100

// Session is one running collaboration instance. It owns its roster and its
// broadcast stream. The stream is lossy: a subscriber that falls more than the
// stream capacity behind observes a gap (hub.LagError) and continues after it.
type Session struct {
	ID     string
	Host   domain.Participant
	Roster *Roster
	stream *hub.Hub[domain.Message]
}

// New starts a fresh session hosted by host, with a newly generated id and the
// host already on the roster.
func New(host domain.Participant, capacity int) *Session {
	host.IsHost = true
	return newSession(uuid.NewString(), host, []domain.Participant{host}, capacity)
}

// Restore materializes the client-side view of a session from a Welcome.
func Restore(w domain.Welcome, capacity int) *Session {
	return newSession(w.SessionID, w.Host, w.ActiveParticipants, capacity)
}

func newSession(id string, host domain.Participant, members []domain.Participant, capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultBroadcastCapacity
	}
	s := &Session{
		ID:     id,
		Host:   host,
		stream: hub.New[domain.Message]("session", capacity),
	}
	s.Roster = NewRoster(nil)
	s.Roster.Replace(members)
	s.Roster.pub = s
	return s
}

// Publish is fire-and-forget: zero subscribers is fine. It fails only once the
// session has been closed.
func (s *Session) Publish(msg domain.Message) error {
	if msg == nil {
		return domain.ErrInvalidMessage
	}
	_, err := s.stream.Publish(msg)
	return err
}

func (s *Session) Subscribe() (*hub.Subscription[domain.Message], error) {
	return s.stream.Subscribe()
}

func (s *Session) Subscribers() int {
	return s.stream.Stats()
}

// Close ends the broadcast stream. Subscribers drain what was already
// published and then see hub.ErrClosed.
func (s *Session) Close() {
	s.stream.Close()
}

func (s *Session) Closed() bool {
	return s.stream.Closed()
}

func IsClosed(err error) bool {
	return errors.Is(err, hub.ErrClosed)
}
