package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/samber/lo"

	"liveshare/domain"
	"liveshare/hub"
)

var (
	styleSession = color.New(color.FgGreen, color.OpBold)
	styleEnded   = color.New(color.FgYellow)
	styleMember  = color.New(color.FgCyan)
	styleRoster  = color.New(color.FgGray)
	styleChat    = color.New(color.FgWhite)
	styleError   = color.New(color.FgRed)
)

type printer struct {
	mu     sync.Mutex
	out    io.Writer
	colour bool
}

func newPrinter(out io.Writer, colour bool) *printer {
	return &printer{out: out, colour: colour}
}

// follow prints events until SessionEnded or the stream closes.
func (p *printer) follow(sub *hub.Subscription[domain.Event]) {
	for {
		evt, err := sub.Recv(context.Background())
		var lag *hub.LagError
		if errors.As(err, &lag) {
			p.println(styleError, fmt.Sprintf("missed %d events", lag.Missed))
			continue
		}
		if err != nil {
			return
		}
		p.event(evt)
		if _, ok := evt.(domain.SessionEnded); ok {
			return
		}
	}
}

func (p *printer) event(evt domain.Event) {
	style, line := describe(evt)
	p.println(style, line)
}

func (p *printer) failure(err error) {
	p.println(styleError, "error: "+err.Error())
}

func (p *printer) println(style color.Style, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.colour {
		line = style.Render(line)
	}
	fmt.Fprintln(p.out, line)
}

func describe(evt domain.Event) (color.Style, string) {
	switch evt := evt.(type) {
	case domain.SessionStarted:
		if evt.IsHost {
			return styleSession, "hosting session " + evt.SessionID
		}
		return styleSession, "joined session " + evt.SessionID
	case domain.SessionEnded:
		return styleEnded, "session " + evt.SessionID + " ended"
	case domain.ParticipantJoined:
		return styleMember, name(evt.Participant) + " joined"
	case domain.ParticipantLeft:
		return styleMember, name(evt.Participant) + " left"
	case domain.Failure:
		return styleError, "error: " + evt.Text
	case domain.MessageReceived:
		return describeMessage(evt.Message)
	}
	return styleError, fmt.Sprintf("unknown event %T", evt)
}

func describeMessage(msg domain.Message) (color.Style, string) {
	switch msg := msg.(type) {
	case domain.Chat:
		return styleChat, fmt.Sprintf("<%s> %s", msg.SenderID, msg.Text)
	case domain.RosterChanged:
		return styleRoster, "participants: " + strings.Join(lo.Map(msg.Participants, func(p domain.Participant, _ int) string {
			return name(p)
		}), ", ")
	case domain.TextUpdate:
		return styleChat, fmt.Sprintf("%s updated (%d bytes)", msg.Path, len(msg.Content))
	case domain.CursorUpdate:
		return styleRoster, fmt.Sprintf("%s cursor at %d:%d", msg.ParticipantID, msg.Line, msg.Column)
	case domain.CommandRequest:
		return styleChat, "$ " + msg.Command
	case domain.CommandResult:
		status := "ok"
		if !msg.Success {
			status = "failed"
		}
		return styleChat, fmt.Sprintf("$ %s: %s\n%s", msg.Command, status, msg.Output)
	case domain.Error:
		return styleError, "host error: " + msg.Message
	}
	return styleRoster, string(msg.Type())
}

func name(p domain.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}
