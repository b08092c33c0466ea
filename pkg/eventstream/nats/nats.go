package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/aona-labs/aona/pkg/eventstream"
)

// DefaultSubject receives events when none is configured. The event type is
// appended, so subscribers can filter with "aona.events.>".
const DefaultSubject = "aona.events"

// Config configures a Publisher.
type Config struct {
	URL     string
	Subject string
	Name    string
}

// Publisher publishes events as JSON messages.
type Publisher struct {
	conn    *natsgo.Conn
	subject string
}

// NewPublisher connects to the NATS server at cfg.URL.
func NewPublisher(cfg Config) (*Publisher, error) {
	url := cfg.URL
	if url == "" {
		url = natsgo.DefaultURL
	}
	name := cfg.Name
	if name == "" {
		name = "aona"
	}

	conn, err := natsgo.Connect(url,
		natsgo.Name(name),
		natsgo.Timeout(5*time.Second),
		natsgo.MaxReconnects(10),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return NewPublisherWithConn(conn, cfg.Subject), nil
}

// NewPublisherWithConn wraps an existing connection.
func NewPublisherWithConn(conn *natsgo.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event *eventstream.Event) string {
	return p.subject + "." + event.EventType
}

// Publish implements eventstream.Publisher.
func (p *Publisher) Publish(ctx context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := natsgo.NewMsg(p.Subject(event))
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", event.EventID)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing to nats: %w", err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

var _ eventstream.Publisher = (*Publisher)(nil)
