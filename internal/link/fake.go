package link

import "sync"

type queue struct {
	mu   sync.Mutex
	msgs []Message
}

func (q *queue) push(m Message) {
	q.mu.Lock()
	q.msgs = append(q.msgs, m)
	q.mu.Unlock()
}

func (q *queue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return Message{}, false
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, true
}

// Fake is an in-memory Link endpoint for tests.
type Fake struct {
	in  *queue
	out *queue

	mu   sync.Mutex
	sent []Message

	// SendError, if set, is returned by Send and nothing is delivered.
	SendError error

	// Drop, if set, makes Send record but not deliver messages.
	Drop bool
}

// Pipe returns two connected endpoints.
func Pipe() (*Fake, *Fake) {
	ab, ba := &queue{}, &queue{}
	return &Fake{in: ba, out: ab}, &Fake{in: ab, out: ba}
}

// Send records m and delivers it to the peer.
func (f *Fake) Send(m Message) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.mu.Lock()
	f.sent = append(f.sent, m)
	drop := f.Drop
	f.mu.Unlock()
	if !drop {
		f.out.push(m)
	}
	return nil
}

// TryRecv returns the next message from the peer.
func (f *Fake) TryRecv() (Message, bool) {
	return f.in.pop()
}

// Sent returns a copy of every message sent from this endpoint.
func (f *Fake) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}
