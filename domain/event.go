package domain

// Event is an application-facing notification. Consumers observe it; they
// never change session state through it.
type Event interface {
	isEvent()
}

type SessionStarted struct {
	SessionID string
	IsHost    bool
}

type SessionEnded struct {
	SessionID string
}

type ParticipantJoined struct {
	Participant Participant
}

type ParticipantLeft struct {
	Participant Participant
}

type MessageReceived struct {
	Message Message
}

// Failure reports a transport, decode or listener error.
type Failure struct {
	Text string
}

func (SessionStarted) isEvent()    {}
func (SessionEnded) isEvent()      {}
func (ParticipantJoined) isEvent() {}
func (ParticipantLeft) isEvent()   {}
func (MessageReceived) isEvent()   {}
func (Failure) isEvent()           {}
