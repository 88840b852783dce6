// Package notify fans breach snapshots out to an external message broker.
// It is the externalized form of a monitor callback: the daemon registers
// Notifier.Callback() with the monitor, and every notified snapshot becomes
// one JSON event on a NATS subject or MQTT topic, throttled so a sustained
// breach cannot flood the broker.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/davidkarpay/warden/internal/guard"
	"github.com/davidkarpay/warden/internal/metrics"
)

// Publisher delivers one opaque payload to the broker. Implementations bind
// the destination (subject or topic) at construction.
type Publisher interface {
	Publish(payload []byte) error
	Close() error
}

// Options selects and tunes a Notifier backend.
type Options struct {
	Backend     string // "nats" or "mqtt"
	URL         string
	Subject     string // nats
	Topic       string // mqtt
	ClientID    string // mqtt
	Burst       int
	MinInterval time.Duration
}

// Event is the JSON document published for one breach snapshot.
type Event struct {
	Host     string         `json:"host"`
	PID      int            `json:"pid"`
	Snapshot guard.Snapshot `json:"snapshot"`
}

// Notifier rate-limits and publishes breach events. Publish failures are
// logged and counted, never propagated: losing an advisory event must not
// affect the monitor.
type Notifier struct {
	pub     Publisher
	limiter *rate.Limiter
	host    string
	pid     int
}

// New connects the backend named in opts and wraps it in a Notifier.
func New(opts Options) (*Notifier, error) {
	var (
		pub Publisher
		err error
	)
	switch opts.Backend {
	case "nats":
		pub, err = NewNATSPublisher(opts.URL, opts.Subject)
	case "mqtt":
		pub, err = NewMQTTPublisher(opts.URL, opts.Topic, opts.ClientID)
	default:
		return nil, fmt.Errorf("unknown notify backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(pub, opts.Burst, opts.MinInterval), nil
}

// NewWithPublisher wraps an already-connected publisher. Burst below 1 becomes
// 1; a non-positive MinInterval means one event per minute.
func NewWithPublisher(pub Publisher, burst int, minInterval time.Duration) *Notifier {
	if burst < 1 {
		burst = 1
	}
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	host, _ := os.Hostname()
	return &Notifier{
		pub:     pub,
		limiter: rate.NewLimiter(rate.Every(minInterval), burst),
		host:    host,
		pid:     os.Getpid(),
	}
}

// Publish emits one event unless the limiter says the broker has heard enough.
func (n *Notifier) Publish(snap guard.Snapshot) {
	if !n.limiter.Allow() {
		metrics.IncNotifyDropped()
		log.Debug().Msg("breach event throttled")
		return
	}
	payload, err := json.Marshal(Event{Host: n.host, PID: n.pid, Snapshot: snap})
	if err != nil {
		metrics.IncNotifyError()
		log.Error().Err(err).Msg("marshal breach event")
		return
	}
	if err := n.pub.Publish(payload); err != nil {
		metrics.IncNotifyError()
		log.Warn().Err(err).Msg("publish breach event")
		return
	}
	metrics.IncNotifyPublished()
}

// Callback adapts the notifier to the monitor's observer signature.
func (n *Notifier) Callback() guard.Callback {
	return func(snap guard.Snapshot) { n.Publish(snap) }
}

// Close shuts the underlying broker connection down.
func (n *Notifier) Close() error {
	return n.pub.Close()
}
