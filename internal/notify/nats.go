package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/nats-io/nats.go"
)

// Publisher forwards session events to NATS as JSON on <prefix>.<event type>
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the NATS server at url. Reconnects are unbounded; events
// published while disconnected are buffered by the client.
func Connect(url, prefix string, opts ...nats.Option) (*Publisher, error) {
	if prefix == "" {
		prefix = "arkwatch"
	}
	opts = append([]nats.Option{
		nats.Name("arkwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &Publisher{conn: nc, prefix: prefix}, nil
}

// Subject returns the subject events of eventType are published on
func (p *Publisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends one event. It has the session listener signature.
func (p *Publisher) Publish(evt domain.Event) error {
	if cmd, ok := evt.Data.(domain.Command); ok && cmd.SuppressNotify && cmd.Err == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", evt.Type, err)
	}
	if err := p.conn.Publish(p.Subject(evt.Type), data); err != nil {
		return fmt.Errorf("publishing %s event: %w", evt.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
