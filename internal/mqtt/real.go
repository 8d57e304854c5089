package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/mailguard/internal/logic"
)

const (
	bufferCapacity = 256
	publishTimeout = 5 * time.Second
)

// ErrBuffered means the broker was unreachable and the message was queued
// for replay.
var ErrBuffered = errors.New("mqtt: not connected, message buffered")

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down wait in an outbox and are replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	now    func() time.Time

	mu        sync.Mutex
	buf       *outbox
	connected int // successful connections so far
}

// NewRealPublisher starts connecting to broker in the background and returns
// immediately. The broker gets a retained OFFLINE will on the system topic.
func NewRealPublisher(broker, clientID string, topics Topics) *RealPublisher {
	p := newPublisher(nil, topics, time.Now)

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func newPublisher(client paho.Client, topics Topics, now func() time.Time) *RealPublisher {
	return &RealPublisher{
		client: client,
		topics: topics,
		now:    now,
		buf:    newOutbox(bufferCapacity),
	}
}

// Publish mirrors a mailbox event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return ErrBuffered
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays buffered messages. It runs on paho's goroutine, so it
// does not wait on tokens.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	p.connected++
	reconnect := p.connected > 1
	pending := p.buf.drain()
	p.mu.Unlock()

	log.Printf("mqtt: connected, replaying %d buffered messages", len(pending))
	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		p.client.Publish(p.topics.System, 1, false, payload)
	}
	for _, m := range pending {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns how many buffered messages were dropped.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.droppedTotal()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
