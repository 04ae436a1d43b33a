package domain

import "context"

// Participant is immutable once created; ID is the identity key within a session.
type Participant struct {
	ID          string `json:"id" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"max=256"`
	IsHost      bool   `json:"is_host"`
}

// Transport is a message-oriented duplex channel: one logical message per frame.
// Read and Write may be called concurrently with each other, but neither
// concurrently with itself. Close unblocks a pending Read.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// EventSink receives outward events.
type EventSink interface {
	Emit(evt Event)
}
