package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

const (
	// CoordinateSubject carries every coordinate store write.
	CoordinateSubject = "geopanel.coordinates.changed"

	coordinateStream = "GEOPANEL_COORDINATES"
)

// Publisher implements ports.CoordinatePublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the coordinate stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js, streamConfig()); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext, cfg *nats.StreamConfig) error {
	if _, err := js.AddStream(cfg); err == nil {
		return nil
	}
	// Stream may already exist — try update
	if _, err := js.UpdateStream(cfg); err == nil {
		return nil
	}
	// Storage type cannot be updated in place; the stream only buffers live
	// changes, so recreate it.
	if err := js.DeleteStream(cfg.Name); err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}
	if _, err := js.AddStream(cfg); err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}

// streamConfig keeps coordinate changes in memory only, briefly, so
// publishes are acknowledged without the store's value outliving a restart.
func streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:              coordinateStream,
		Subjects:          []string{"geopanel.coordinates.>"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
		MaxAge:            time.Minute,
		Storage:           nats.MemoryStorage,
	}
}

// PublishCoordinateChange publishes one store write.
func (p *Publisher) PublishCoordinateChange(ctx context.Context, change *domain.CoordinateChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CoordinateSubject, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("geopanel"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
