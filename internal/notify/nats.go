package notify

import (
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes breach events on one NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the NATS server at url. The connection
// reconnects indefinitely; events raised while disconnected are buffered by
// the client.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = "warden.breach"
	}
	conn, err := nats.Connect(url,
		nats.Name("warden"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) Publish(payload []byte) error {
	return p.conn.Publish(p.subject, payload)
}

// Close drains the connection so buffered events flush before disconnect.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
