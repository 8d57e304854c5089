package mqtt

import (
	"sync"

	"github.com/sweeney/mailguard/internal/logic"
)

// FakePublisher is an in-memory Publisher and ConnectionStatus. Read the
// recorded slices only after the code under test has stopped publishing.
type FakePublisher struct {
	mu sync.Mutex

	Events       []logic.Event // mirrored mailbox events, in order
	Payloads     [][]byte      // JSON for each entry of Events
	SystemEvents []SystemEvent

	// Errors returned instead of recording.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish formats and records event unless PublishError is set.
func (f *FakePublisher) Publish(event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records event unless PublishSystemError is set.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// SystemEventNames lists the recorded lifecycle events by name.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, e := range f.SystemEvents {
		names = append(names, e.Event)
	}
	return names
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}
