package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

// StreamName is the JetStream stream that captures all cardhub subjects.
const (
	StreamName     = "CARDHUB"
	StreamSubjects = "cardhub.>"
)

// JetStream publishes JSON encoded events to NATS JetStream.
type JetStream struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect connects to the NATS server at url and makes sure the cardhub
// stream exists.
func Connect(url string, opts ...nats.Option) (*JetStream, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open jetstream context: %w", err)
	}

	_, err = js.StreamInfo(StreamName)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{StreamSubjects},
			Storage:  nats.FileStorage,
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", StreamName, err)
	}

	return &JetStream{conn: nc, js: js}, nil
}

// Close drains the underlying connection.
func (p *JetStream) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subject.
func (p *JetStream) Publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}

	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, err)
	}

	return nil
}

// Handler handles the data of one message. A non-nil error asks for
// redelivery.
type Handler func(ctx context.Context, data []byte) error

type subscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.err = s.sub.Drain()
	})
	return s.err
}

// Subscribe creates a durable consumer on subject and calls fn for every
// message until ctx is done or the returned closer is closed.
func (p *JetStream) Subscribe(ctx context.Context, subject, durable string, fn Handler) (io.Closer, error) {
	handler := func(msg *nats.Msg) {
		err := fn(ctx, msg.Data)
		if err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	sub, err := p.js.Subscribe(subject, handler, nats.Durable(durable), nats.ManualAck(), nats.AckExplicit())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s := &subscription{sub: sub}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}

// Nop drops all events. Used when no NATS server is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error {
	return nil
}

// Event is an event captured by Memory.
type Event struct {
	Subject string
	Data    json.RawMessage
}

// Memory keeps published events in memory, encoded the same way as
// JetStream. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, Event{Subject: subject, Data: data})
	return nil
}

// Events returns a copy of the events published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Subjects returns the subjects of the events published so far, in order.
func (m *Memory) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Subject)
	}
	return out
}
