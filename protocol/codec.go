package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"liveshare/domain"
)

var validate = validator.New()

// envelope is the on-the-wire frame: {"type": "...", "payload": {...}}.
type envelope struct {
	Type    domain.MessageType `json:"type"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

func Encode(msg domain.Message) ([]byte, error) {
	if msg == nil {
		return nil, domain.ErrInvalidMessage
	}
	env := envelope{Type: msg.Type()}
	if _, isClose := msg.(domain.Close); !isClose {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
		}
		env.Payload = payload
	}
	return json.Marshal(env)
}

// Decode parses one frame. Unknown tags and payloads failing validation are
// errors; they are never turned into a message.
func Decode(data []byte) (domain.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	var msg domain.Message
	var err error
	switch env.Type {
	case domain.TypeHello:
		msg, err = decodePayload[domain.Hello](env)
	case domain.TypeWelcome:
		msg, err = decodePayload[domain.Welcome](env)
	case domain.TypeRosterChanged:
		msg, err = decodePayload[domain.RosterChanged](env)
	case domain.TypeTextUpdate:
		msg, err = decodePayload[domain.TextUpdate](env)
	case domain.TypeCursorUpdate:
		msg, err = decodePayload[domain.CursorUpdate](env)
	case domain.TypeCommandRequest:
		msg, err = decodePayload[domain.CommandRequest](env)
	case domain.TypeCommandResult:
		msg, err = decodePayload[domain.CommandResult](env)
	case domain.TypeChat:
		msg, err = decodePayload[domain.Chat](env)
	case domain.TypeError:
		msg, err = decodePayload[domain.Error](env)
	case domain.TypeClose:
		return domain.Close{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func decodePayload[T domain.Message](env envelope) (domain.Message, error) {
	var v T
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s without payload", domain.ErrInvalidMessage, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidMessage, env.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidMessage, env.Type, err)
	}
	return v, nil
}
