package domain

// MessageType is the wire tag of a Message.
type MessageType string

const (
	TypeHello          MessageType = "hello"
	TypeWelcome        MessageType = "welcome"
	TypeRosterChanged  MessageType = "roster_changed"
	TypeTextUpdate     MessageType = "text_update"
	TypeCursorUpdate   MessageType = "cursor_update"
	TypeCommandRequest MessageType = "command_request"
	TypeCommandResult  MessageType = "command_result"
	TypeChat           MessageType = "chat"
	TypeError          MessageType = "error"
	TypeClose          MessageType = "close"
)

// Message is the closed set of events exchanged between host and clients.
// Only the types in this file implement it.
type Message interface {
	Type() MessageType
	isMessage()
}

type Hello struct {
	Participant Participant `json:"participant"`
}

type Welcome struct {
	SessionID          string        `json:"session_id" validate:"required"`
	Host               Participant   `json:"host"`
	ActiveParticipants []Participant `json:"active_participants" validate:"dive"`
}

// RosterChanged always carries the full roster, never a delta.
type RosterChanged struct {
	Participants []Participant `json:"participants" validate:"dive"`
}

type TextUpdate struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type CursorUpdate struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	Line          int    `json:"line" validate:"min=0"`
	Column        int    `json:"column" validate:"min=0"`
}

type CommandRequest struct {
	Command string `json:"command"`
}

type CommandResult struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

type Chat struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// Error is a wire-level error notice. It is not a Go error.
type Error struct {
	Message string `json:"message"`
}

type Close struct{}

func (Hello) Type() MessageType          { return TypeHello }
func (Welcome) Type() MessageType        { return TypeWelcome }
func (RosterChanged) Type() MessageType  { return TypeRosterChanged }
func (TextUpdate) Type() MessageType     { return TypeTextUpdate }
func (CursorUpdate) Type() MessageType   { return TypeCursorUpdate }
func (CommandRequest) Type() MessageType { return TypeCommandRequest }
func (CommandResult) Type() MessageType  { return TypeCommandResult }
func (Chat) Type() MessageType           { return TypeChat }
func (Error) Type() MessageType          { return TypeError }
func (Close) Type() MessageType          { return TypeClose }

func (Hello) isMessage()          {}
func (Welcome) isMessage()        {}
func (RosterChanged) isMessage()  {}
func (TextUpdate) isMessage()     {}
func (CursorUpdate) isMessage()   {}
func (CommandRequest) isMessage() {}
func (CommandResult) isMessage()  {}
func (Chat) isMessage()           {}
func (Error) isMessage()          {}
func (Close) isMessage()          {}
