package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/ports"
	"github.com/samirrijal/geopanel/internal/pkg/metrics"
)

// subscriberBuffer is how many undelivered changes a subscriber may hold
// before the oldest is skipped.
const subscriberBuffer = 16

// CoordinateStore is the shared, reactive latitude/longitude state. Any holder
// may read or write either field; values are never validated.
//
// Every write gets the next sequence number and is queued to each subscriber
// while the lock is held, so subscribers see changes in write order. Each
// subscriber runs on its own goroutine; a slow one never blocks writers; if
// it falls behind it skips older changes but always receives the newest.
type CoordinateStore struct {
	origin    string
	publisher ports.CoordinatePublisher

	mu         sync.RWMutex
	coord      domain.Coordinate
	seq        uint64
	subs       map[uint64]*subscriber
	nextID     uint64
	remoteSeqs map[string]uint64 // origin -> last applied Seq
}

type subscriber struct {
	fn   func(domain.CoordinateChange)
	ch   chan domain.CoordinateChange
	done chan struct{}
}

// NewCoordinateStore creates a store holding initial. publisher may be nil.
func NewCoordinateStore(initial domain.Coordinate, publisher ports.CoordinatePublisher) *CoordinateStore {
	return &CoordinateStore{
		origin:     uuid.NewString(),
		publisher:  publisher,
		coord:      initial.Clone(),
		subs:       make(map[uint64]*subscriber),
		remoteSeqs: make(map[string]uint64),
	}
}

// Origin identifies this store in published changes.
func (s *CoordinateStore) Origin() string {
	return s.origin
}

// Latitude returns the current latitude, nil when absent.
func (s *CoordinateStore) Latitude() *float64 {
	return s.Snapshot().Latitude
}

// Longitude returns the current longitude, nil when absent.
func (s *CoordinateStore) Longitude() *float64 {
	return s.Snapshot().Longitude
}

// Snapshot returns a copy of both fields.
func (s *CoordinateStore) Snapshot() domain.Coordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coord.Clone()
}

// Current returns the present value as a change carrying the latest Seq.
// Consumers that mix it with subscribed changes can drop anything with a
// lower Seq.
func (s *CoordinateStore) Current() domain.CoordinateChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CoordinateChange{
		Seq:        s.seq,
		Origin:     s.origin,
		Field:      domain.FieldBoth,
		Coordinate: s.coord.Clone(),
		ChangedAt:  time.Now(),
	}
}

// SetLatitude stores v as the latitude. nil marks it absent.
func (s *CoordinateStore) SetLatitude(ctx context.Context, v *float64) {
	s.write(ctx, domain.FieldLatitude, domain.Coordinate{Latitude: v})
}

// SetLongitude stores v as the longitude. nil marks it absent.
func (s *CoordinateStore) SetLongitude(ctx context.Context, v *float64) {
	s.write(ctx, domain.FieldLongitude, domain.Coordinate{Longitude: v})
}

// Set replaces both fields.
func (s *CoordinateStore) Set(ctx context.Context, c domain.Coordinate) {
	s.write(ctx, domain.FieldBoth, c)
}

// Apply ingests a change made by another store. Changes carrying this
// store's origin, or older than one already applied from the same origin,
// are ignored. Applied changes are not published again.
func (s *CoordinateStore) Apply(ctx context.Context, change *domain.CoordinateChange) error {
	if change == nil || change.Origin == s.origin {
		return nil
	}
	if !change.Field.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCoordinateField, change.Field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.remoteSeqs[change.Origin]; ok && change.Seq <= last {
		return nil
	}
	s.remoteSeqs[change.Origin] = change.Seq
	s.commitLocked(change.Origin, change.Field, change.Coordinate, change.ChangedAt)
	metrics.CoordinateWrites.WithLabelValues(string(change.Field), "remote").Inc()
	return nil
}

// Subscribe registers fn to be called after each write, on a goroutine owned
// by the subscription. The returned func removes the subscription; fn is not
// called once it returns.
func (s *CoordinateStore) Subscribe(fn func(domain.CoordinateChange)) (unsubscribe func()) {
	sub := &subscriber{
		fn:   fn,
		ch:   make(chan domain.CoordinateChange, subscriberBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}
}

func (s *CoordinateStore) write(ctx context.Context, field domain.CoordinateField, c domain.Coordinate) {
	s.mu.Lock()
	change := s.commitLocked(s.origin, field, c, time.Now())
	s.mu.Unlock()
	metrics.CoordinateWrites.WithLabelValues(string(field), "local").Inc()

	if s.publisher != nil {
		if err := s.publisher.PublishCoordinateChange(ctx, &change); err != nil {
			slog.Warn("publish coordinate change", "field", field, "seq", change.Seq, "error", err)
		}
	}
}

// commitLocked applies c to the named field and queues the resulting change
// to every subscriber. s.mu must be held for writing.
func (s *CoordinateStore) commitLocked(origin string, field domain.CoordinateField, c domain.Coordinate, at time.Time) domain.CoordinateChange {
	c = c.Clone()
	switch field {
	case domain.FieldLatitude:
		s.coord.Latitude = c.Latitude
	case domain.FieldLongitude:
		s.coord.Longitude = c.Longitude
	case domain.FieldBoth:
		s.coord = c
	}
	s.seq++

	change := domain.CoordinateChange{
		Seq:        s.seq,
		Origin:     origin,
		Field:      field,
		Coordinate: s.coord.Clone(),
		ChangedAt:  at,
	}
	for _, sub := range s.subs {
		sub.offer(change)
	}
	return change
}

// offer queues c without blocking, skipping the oldest queued change when
// the buffer is full. Only writers holding the store lock call it.
func (sub *subscriber) offer(c domain.CoordinateChange) {
	for {
		select {
		case sub.ch <- c:
			return
		default:
		}
		select {
		case <-sub.ch:
			metrics.CoordinateNotifyDropped.Inc()
		default:
		}
	}
}

func (sub *subscriber) run() {
	for {
		select {
		case <-sub.done:
			return
		case c := <-sub.ch:
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(c)
		}
	}
}
