package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/usecases"
)

// --- Mock CoordinatePublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	published []domain.CoordinateChange
	err       error
}

func (m *mockPublisher) PublishCoordinateChange(ctx context.Context, change *domain.CoordinateChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, *change)
	return m.err
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func TestCoordinateStore_DefaultsToZero(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)

	require.NotNil(t, s.Latitude())
	require.NotNil(t, s.Longitude())
	assert.Equal(t, 0.0, *s.Latitude())
	assert.Equal(t, 0.0, *s.Longitude())
}

func TestCoordinateStore_InitialAbsent(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.AbsentCoordinate(), nil)

	assert.Nil(t, s.Latitude())
	assert.Nil(t, s.Longitude())
}

func TestCoordinateStore_AcceptsAnyNumber(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ctx := context.Background()

	for _, v := range []float64{-90.5, 0, 12.345678, 999, -1e6} {
		s.SetLatitude(ctx, domain.Float(v))
		s.SetLongitude(ctx, domain.Float(-v))
		assert.Equal(t, v, *s.Latitude())
		assert.Equal(t, -v, *s.Longitude())
	}
}

func TestCoordinateStore_AbsenceRoundTrip(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ctx := context.Background()

	s.SetLatitude(ctx, nil)
	assert.Nil(t, s.Latitude())
	require.NotNil(t, s.Longitude(), "fields are independent")

	s.Set(ctx, domain.Coordinate{Latitude: domain.Float(1)})
	assert.Equal(t, 1.0, *s.Latitude())
	assert.Nil(t, s.Longitude())
}

func TestCoordinateStore_ReadsDoNotAlias(t *testing.T) {
	v := 10.0
	s := usecases.NewCoordinateStore(domain.Coordinate{Latitude: &v}, nil)
	v = 20

	lat := s.Latitude()
	assert.Equal(t, 10.0, *lat)
	*lat = 30
	assert.Equal(t, 10.0, *s.Latitude())
}

// collect subscribes to s and returns a channel of delivered changes.
func collect(t *testing.T, s *usecases.CoordinateStore) (<-chan domain.CoordinateChange, func()) {
	t.Helper()
	ch := make(chan domain.CoordinateChange, 256)
	unsubscribe := s.Subscribe(func(c domain.CoordinateChange) { ch <- c })
	t.Cleanup(unsubscribe)
	return ch, unsubscribe
}

func nextChange(t *testing.T, ch <-chan domain.CoordinateChange) domain.CoordinateChange {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
		return domain.CoordinateChange{}
	}
}

func TestCoordinateStore_SubscribersSeeEveryWrite(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ctx := context.Background()
	ch, unsubscribe := collect(t, s)

	s.SetLatitude(ctx, domain.Float(43.26))
	s.SetLongitude(ctx, nil)
	s.Set(ctx, domain.Coordinate{Latitude: domain.Float(1), Longitude: domain.Float(2)})

	got := []domain.CoordinateChange{nextChange(t, ch), nextChange(t, ch), nextChange(t, ch)}
	assert.Equal(t, domain.FieldLatitude, got[0].Field)
	assert.Equal(t, 43.26, *got[0].Coordinate.Latitude)
	assert.Equal(t, 0.0, *got[0].Coordinate.Longitude)
	assert.Equal(t, domain.FieldLongitude, got[1].Field)
	assert.Nil(t, got[1].Coordinate.Longitude)
	assert.Equal(t, domain.FieldBoth, got[2].Field)
	assert.Equal(t, s.Origin(), got[2].Origin)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})

	unsubscribe()
	unsubscribe()
	s.SetLatitude(ctx, domain.Float(5))
	select {
	case c := <-ch:
		t.Fatalf("change delivered after unsubscribe: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoordinateStore_SlowSubscriberDoesNotBlockWriters(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	release := make(chan struct{})
	defer close(release)
	s.Subscribe(func(domain.CoordinateChange) { <-release })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.SetLatitude(context.Background(), domain.Float(float64(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writes blocked on a stalled subscriber")
	}
	assert.Equal(t, 99.0, *s.Latitude())
}

func TestCoordinateStore_SubscriberEndsOnLatestValue(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []domain.CoordinateChange
	var once sync.Once
	s.Subscribe(func(c domain.CoordinateChange) {
		once.Do(func() {
			close(entered)
			<-release
		})
		mu.Lock()
		seen = append(seen, c)
		mu.Unlock()
	})

	s.SetLatitude(ctx, domain.Float(1))
	<-entered
	// The subscriber is stuck on the first change while more writes land,
	// including enough to overflow its queue.
	for i := 2; i <= 40; i++ {
		s.SetLatitude(ctx, domain.Float(float64(i)))
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && *seen[len(seen)-1].Coordinate.Latitude == 40
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Seq, seen[i-1].Seq, "changes arrive in write order")
	}
	assert.Equal(t, 40.0, *s.Latitude())
}

func TestCoordinateStore_ConcurrentWritesNotifyInOrder(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ch, _ := collect(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			s.SetLatitude(context.Background(), domain.Float(v))
		}(float64(i))
	}
	wg.Wait()

	var last domain.CoordinateChange
	for i := 0; i < 8; i++ {
		c := nextChange(t, ch)
		assert.Greater(t, c.Seq, last.Seq)
		last = c
	}
	assert.Equal(t, *s.Latitude(), *last.Coordinate.Latitude, "last notification matches the stored value")
	assert.Equal(t, s.Current().Seq, last.Seq)
}

func TestCoordinateStore_PublishesLocalWrites(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), pub)

	// Publish failures never reject the write.
	s.SetLatitude(context.Background(), domain.Float(7))
	assert.Equal(t, 7.0, *s.Latitude())
	assert.Equal(t, 1, pub.count())
	assert.Equal(t, s.Origin(), pub.published[0].Origin)
}

func TestCoordinateStore_ApplyRemoteChange(t *testing.T) {
	pub := &mockPublisher{}
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), pub)
	ch, _ := collect(t, s)

	remote := &domain.CoordinateChange{
		Seq:        4,
		Origin:     "other-instance",
		Field:      domain.FieldLongitude,
		Coordinate: domain.Coordinate{Latitude: domain.Float(99), Longitude: domain.Float(-3.5)},
		ChangedAt:  time.Now(),
	}
	require.NoError(t, s.Apply(context.Background(), remote))

	assert.Equal(t, -3.5, *s.Longitude())
	assert.Equal(t, 0.0, *s.Latitude(), "only the named field is applied")
	c := nextChange(t, ch)
	assert.Equal(t, "other-instance", c.Origin)
	assert.Equal(t, uint64(1), c.Seq, "local sequence, not the remote one")
	assert.Zero(t, pub.count(), "remote changes are not re-published")
}

func TestCoordinateStore_ApplyIgnoresOwnOrigin(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)

	require.NoError(t, s.Apply(context.Background(), &domain.CoordinateChange{
		Origin:     s.Origin(),
		Field:      domain.FieldBoth,
		Coordinate: domain.AbsentCoordinate(),
	}))
	assert.Equal(t, 0.0, *s.Latitude())
	assert.Zero(t, s.Current().Seq)
}

func TestCoordinateStore_ApplyRejectsUnknownField(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)

	for _, field := range []domain.CoordinateField{"", "altitude"} {
		err := s.Apply(context.Background(), &domain.CoordinateChange{
			Seq:    1,
			Origin: "other-instance",
			Field:  field,
		})
		assert.ErrorIs(t, err, domain.ErrUnknownCoordinateField)
	}
	require.NotNil(t, s.Latitude())
	require.NotNil(t, s.Longitude())
	assert.Equal(t, 0.0, *s.Latitude())
	assert.Equal(t, 0.0, *s.Longitude())
}

func TestCoordinateStore_ApplyDropsStaleRemoteChanges(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	ctx := context.Background()

	apply := func(seq uint64, lat float64) {
		require.NoError(t, s.Apply(ctx, &domain.CoordinateChange{
			Seq:        seq,
			Origin:     "other-instance",
			Field:      domain.FieldLatitude,
			Coordinate: domain.Coordinate{Latitude: domain.Float(lat)},
		}))
	}
	apply(2, 20)
	apply(1, 10) // arrived late
	assert.Equal(t, 20.0, *s.Latitude())

	apply(3, 30)
	assert.Equal(t, 30.0, *s.Latitude())
}

func TestCoordinateStore_IsolatedInstances(t *testing.T) {
	a := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)
	b := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)

	a.SetLatitude(context.Background(), domain.Float(1))
	assert.Equal(t, 0.0, *b.Latitude())
	assert.NotEqual(t, a.Origin(), b.Origin())
}

func TestCoordinateStore_ConcurrentWrites(t *testing.T) {
	s := usecases.NewCoordinateStore(domain.DefaultCoordinate(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			s.SetLatitude(context.Background(), domain.Float(v))
		}(float64(i))
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	assert.NotNil(t, s.Latitude())
}
