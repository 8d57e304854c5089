package mqtt

import "log"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected, oldest first. A
// retained message replaces any retained message already queued for the
// same topic, since the broker would only keep the last one. When full the
// oldest message is dropped. The caller synchronizes.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
	warned   bool
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range o.msgs {
			if m.retained && m.topic == msg.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.warned {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.capacity)
			o.warned = true
		}
		o.msgs = o.msgs[1:]
		o.dropped++
	}
	o.msgs = append(o.msgs, msg)
}

// drain returns the queued messages and empties the outbox.
func (o *outbox) drain() []bufferedMsg {
	out := o.msgs
	o.msgs = nil
	o.warned = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}

func (o *outbox) droppedTotal() int {
	return o.dropped
}
