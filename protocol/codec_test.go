package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveshare/domain"
)

func TestCodec_EveryVariantSurvivesTheWire(t *testing.T) {
	h := domain.Participant{ID: "host", DisplayName: "Host", IsHost: true}
	c := domain.Participant{ID: "c1", DisplayName: "Client"}
	messages := []domain.Message{
		domain.Hello{Participant: c},
		domain.Welcome{SessionID: "s1", Host: h, ActiveParticipants: []domain.Participant{h, c}},
		domain.RosterChanged{Participants: []domain.Participant{h}},
		domain.TextUpdate{Path: "src/lib.rs", Content: "fn main() {}\n"},
		domain.CursorUpdate{ParticipantID: "c1", Line: 10, Column: 4},
		domain.CommandRequest{Command: "make test"},
		domain.CommandResult{Command: "make test", Output: "ok", Success: true},
		domain.Chat{SenderID: "host", Text: "hi"},
		domain.Error{Message: "boom"},
		domain.Close{},
	}

	for _, msg := range messages {
		t.Run(string(msg.Type()), func(t *testing.T) {
			data, err := Encode(msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestCodec_WireShape(t *testing.T) {
	data, err := Encode(domain.Hello{Participant: domain.Participant{ID: "c1", DisplayName: "Client"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"hello","payload":{"participant":{"id":"c1","display_name":"Client","is_host":false}}}`, string(data))

	data, err = Encode(domain.Close{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"close"}`, string(data))
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "not json", input: "not json", wantErr: domain.ErrInvalidMessage},
		{name: "unknown tag", input: `{"type":"teleport","payload":{}}`, wantErr: domain.ErrUnknownMessageType},
		{name: "missing tag", input: `{"payload":{}}`, wantErr: domain.ErrUnknownMessageType},
		{name: "missing payload", input: `{"type":"chat"}`, wantErr: domain.ErrInvalidMessage},
		{name: "wrong payload shape", input: `{"type":"chat","payload":[1,2]}`, wantErr: domain.ErrInvalidMessage},
		{name: "hello without id", input: `{"type":"hello","payload":{"participant":{"display_name":"x"}}}`, wantErr: domain.ErrInvalidMessage},
		{name: "negative cursor", input: `{"type":"cursor_update","payload":{"participant_id":"c1","line":-1,"column":0}}`, wantErr: domain.ErrInvalidMessage},
		{name: "roster entry without id", input: `{"type":"roster_changed","payload":{"participants":[{"display_name":"x"}]}}`, wantErr: domain.ErrInvalidMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEncode_Nil(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"sender_id": "c1", "text": "hi", "extra": true})
	require.NoError(t, err)
	data, err := json.Marshal(map[string]any{"type": "chat", "payload": json.RawMessage(payload)})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, domain.Chat{SenderID: "c1", Text: "hi"}, msg)
}
