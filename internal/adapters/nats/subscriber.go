package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// Subscriber implements ports.CoordinateSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeCoordinateChanges delivers every change published after the
// subscription starts. Nothing stored earlier is replayed, so a starting
// instance keeps its initial value. Each instance gets its own ephemeral
// consumer so all of them see every write.
func (s *Subscriber) SubscribeCoordinateChanges(ctx context.Context, handler func(ctx context.Context, change *domain.CoordinateChange) error) error {
	sub, err := s.js.Subscribe(CoordinateSubject, func(msg *nats.Msg) {
		var change domain.CoordinateChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			slog.Warn("drop malformed coordinate change", "error", err)
			return
		}
		if err := handler(ctx, &change); err != nil {
			slog.Warn("apply coordinate change", "origin", change.Origin, "error", err)
		}
	},
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", CoordinateSubject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
