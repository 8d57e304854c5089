// Package link carries commands between the main controller and the camera
// controller. Every message is one kind byte from the T/S/F alphabet plus an
// optional correlation id; in legacy mode only the bare byte is on the wire.
package link

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the command alphabet.
type Kind byte

const (
	Trigger Kind = 'T'
	Success Kind = 'S'
	Failure Kind = 'F'
)

func (k Kind) String() string {
	switch k {
	case Trigger:
		return "TRIGGER"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

func (k Kind) valid() bool {
	return k == Trigger || k == Success || k == Failure
}

// Message is one command or response. ID is empty for legacy peers.
type Message struct {
	Kind Kind
	ID   string
}

// NewTrigger returns a TRIGGER with a fresh correlation id.
func NewTrigger() Message {
	return Message{Kind: Trigger, ID: uuid.NewString()}
}

// Reply returns the SUCCESS or FAILURE answering m.
func (m Message) Reply(ok bool) Message {
	if ok {
		return Message{Kind: Success, ID: m.ID}
	}
	return Message{Kind: Failure, ID: m.ID}
}

func (m Message) String() string {
	if m.ID == "" {
		return m.Kind.String()
	}
	return m.Kind.String() + "[" + m.ID + "]"
}

// Link is one end of the controller-to-controller channel. Send never waits
// for an answer; TryRecv never blocks longer than the port's read timeout.
type Link interface {
	Send(m Message) error
	TryRecv() (Message, bool)
}
