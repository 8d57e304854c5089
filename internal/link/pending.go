package link

import (
	"log"
	"time"
)

// Pending tracks triggers awaiting a reply. It never resends; it only
// classifies what came back (or did not).
type Pending struct {
	timeout time.Duration
	order   []string
	sentAt  map[string]time.Time
	legacy  []time.Time // send times of unanswered triggers without ids

	Successes int
	Failures  int
	Lost      int
	Unknown   int
}

// NewPending creates a tracker that forgets triggers after timeout.
func NewPending(timeout time.Duration) *Pending {
	return &Pending{timeout: timeout, sentAt: map[string]time.Time{}}
}

// Sent records an outgoing trigger.
func (p *Pending) Sent(m Message, now time.Time) {
	if m.ID == "" {
		p.legacy = append(p.legacy, now)
		return
	}
	p.order = append(p.order, m.ID)
	p.sentAt[m.ID] = now
}

// Resolve matches a reply to its trigger and reports whether it matched.
// Replies without an id answer the oldest outstanding trigger.
func (p *Pending) Resolve(m Message) bool {
	id := m.ID
	if id == "" {
		if len(p.legacy) > 0 {
			p.legacy = p.legacy[1:]
			p.count(m.Kind)
			return true
		}
		if len(p.order) == 0 {
			p.Unknown++
			return false
		}
		id = p.order[0]
	}
	if _, ok := p.sentAt[id]; !ok {
		p.Unknown++
		return false
	}
	p.remove(id)
	p.count(m.Kind)
	return true
}

// Expire forgets triggers older than the timeout and returns their ids.
// Expired triggers without ids count as lost but have no id to return.
func (p *Pending) Expire(now time.Time) []string {
	for len(p.legacy) > 0 && now.Sub(p.legacy[0]) >= p.timeout {
		log.Printf("link: no reply to trigger sent at %s after %v", p.legacy[0].Format(time.RFC3339), p.timeout)
		p.legacy = p.legacy[1:]
		p.Lost++
	}
	var expired []string
	for len(p.order) > 0 {
		id := p.order[0]
		if now.Sub(p.sentAt[id]) < p.timeout {
			break
		}
		p.remove(id)
		p.Lost++
		expired = append(expired, id)
		log.Printf("link: no reply to trigger %s after %v", id, p.timeout)
	}
	return expired
}

// Outstanding returns the number of unanswered triggers.
func (p *Pending) Outstanding() int {
	return len(p.order) + len(p.legacy)
}

func (p *Pending) count(k Kind) {
	if k == Success {
		p.Successes++
	} else if k == Failure {
		p.Failures++
	}
}

func (p *Pending) remove(id string) {
	delete(p.sentAt, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}
