// Package events publishes domain events on NATS subjects of the form
// "<prefix>.<entity>.<action>".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Alijeyrad/labtrace_backend/config"
)

const (
	LotCreated      = "lot.created"
	SpecimenCreated = "specimen.created"
)

type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// LotCreatedEvent is published after a sample lot is stored.
type LotCreatedEvent struct {
	LotID     string    `json:"lot_id"`
	JobID     string    `json:"job_id"`
	ItemNo    string    `json:"item_no"`
	Allocated bool      `json:"allocated"`
	Attempts  int       `json:"attempts"`
	At        time.Time `json:"at"`
}

type SpecimenCreatedEvent struct {
	SpecimenOID string    `json:"specimen_oid"`
	SpecimenID  string    `json:"specimen_id"`
	At          time.Time `json:"at"`
}

// Connect dials NATS with reconnects enabled.
func Connect(cfg config.EventsConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("labtrace"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats: disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats: reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the full subject for event.
func (p *NATSPublisher) Subject(event string) string {
	return Subject(p.prefix, event)
}

func (p *NATSPublisher) Publish(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := p.nc.Publish(p.Subject(event), data); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

func Subject(prefix, event string) string {
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}

// Noop drops every event. It is used when events are disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Event   string
	Payload any
}

func (r *Recorder) Publish(_ context.Context, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event, Payload: payload})
	return nil
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
