package domain

import "errors"

var (
	ErrSessionActive         = errors.New("a session is already active")
	ErrNoSession             = errors.New("no active session")
	ErrClientSendUnsupported = errors.New("client send not supported")
	ErrUnknownMessageType    = errors.New("unknown message type")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrParticipantIDInUse    = errors.New("participant id already in use")
	ErrSessionMismatch       = errors.New("welcome for a different session")
)
