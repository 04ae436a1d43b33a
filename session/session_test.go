package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveshare/domain"
	"liveshare/hub"
)

func TestNew_SeedsRosterWithHost(t *testing.T) {
	host := domain.Participant{ID: "host", DisplayName: "Host"}

	s := New(host, 0)

	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Host.IsHost)
	require.Equal(t, 1, s.Roster.Len())
	p, ok := s.Roster.Get("host")
	require.True(t, ok)
	assert.True(t, p.IsHost)
}

func TestNew_UniqueIDs(t *testing.T) {
	host := domain.Participant{ID: "host"}
	assert.NotEqual(t, New(host, 0).ID, New(host, 0).ID)
}

func TestSession_RosterMutationIsBroadcast(t *testing.T) {
	s := New(domain.Participant{ID: "host"}, 10)
	sub, err := s.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	s.Roster.Add(domain.Participant{ID: "c1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Recv(ctx)
	require.NoError(t, err)
	rc, ok := msg.(domain.RosterChanged)
	require.True(t, ok)
	assert.Equal(t, []string{"host", "c1"}, ids(rc.Participants))
}

func TestSession_PublishWithoutSubscribers(t *testing.T) {
	s := New(domain.Participant{ID: "host"}, 10)
	assert.NoError(t, s.Publish(domain.Chat{SenderID: "host", Text: "hi"}))
	assert.ErrorIs(t, s.Publish(nil), domain.ErrInvalidMessage)
}

func TestSession_Close(t *testing.T) {
	s := New(domain.Participant{ID: "host"}, 10)
	sub, err := s.Subscribe()
	require.NoError(t, err)

	require.NoError(t, s.Publish(domain.Close{}))
	s.Close()

	msg, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Close{}, msg)
	_, err = sub.Recv(context.Background())
	assert.True(t, IsClosed(err))

	assert.ErrorIs(t, s.Publish(domain.Chat{}), hub.ErrClosed)
	assert.True(t, s.Closed())
	// roster mutations after close must not panic
	s.Roster.Remove("host")
}

func TestRestore(t *testing.T) {
	host := domain.Participant{ID: "host", IsHost: true}
	w := domain.Welcome{
		SessionID:          "s1",
		Host:               host,
		ActiveParticipants: []domain.Participant{host, {ID: "c1"}},
	}

	s := Restore(w, 0)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, host, s.Host)
	assert.Equal(t, []string{"host", "c1"}, ids(s.Roster.Snapshot()))
}
