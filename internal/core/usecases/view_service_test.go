package usecases_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/ports"
	"github.com/samirrijal/geopanel/internal/core/usecases"
)

// --- Mock ViewSource ---

type mockViewSource struct {
	fetchFn func(ctx context.Context, module string) (*domain.View, error)
	calls   atomic.Int32
}

func (m *mockViewSource) Fetch(ctx context.Context, module string) (*domain.View, error) {
	m.calls.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, module)
	}
	return &domain.View{Module: module, ContentType: "text/html", Body: []byte(module)}, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return b, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newViewService(t *testing.T, src ports.ViewSource, cache ports.CacheService, attempts int) *usecases.ViewService {
	t.Helper()
	table, err := usecases.NewRouteTable(usecases.DefaultRoutes())
	require.NoError(t, err)
	return usecases.NewViewService(table, src, cache, usecases.ViewOptions{
		RetryAttempts: attempts,
		RetryInterval: time.Millisecond,
		LoadTimeout:   2 * time.Second,
	})
}

func TestNavigate_ResolvesAndLoads(t *testing.T) {
	svc := newViewService(t, &mockViewSource{}, nil, 1)

	nav, err := svc.Navigate(context.Background(), "/screens")
	require.NoError(t, err)
	assert.Equal(t, "Screens", nav.Route.Name)
	assert.Equal(t, "PageScreens.html", string(nav.View.Body))
	assert.Equal(t, "Screens", nav.View.Name)
	assert.False(t, nav.Cached)
	assert.True(t, svc.Loaded("Screens"))
	assert.False(t, svc.Loaded("Map"))
}

func TestNavigate_NotFound(t *testing.T) {
	src := &mockViewSource{}
	svc := newViewService(t, src, nil, 1)

	_, err := svc.Navigate(context.Background(), "/nonexistent")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
	assert.Zero(t, src.calls.Load())
}

func TestNavigate_IsDeferredAndMemoized(t *testing.T) {
	src := &mockViewSource{}
	svc := newViewService(t, src, nil, 1)
	assert.Zero(t, src.calls.Load(), "nothing loads before first navigation")

	for i := 0; i < 5; i++ {
		nav, err := svc.Navigate(context.Background(), "/")
		require.NoError(t, err)
		assert.Equal(t, i > 0, nav.Cached)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestNavigate_ConcurrentFirstLoadsShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	src := &mockViewSource{}
	src.fetchFn = func(ctx context.Context, module string) (*domain.View, error) {
		<-release
		return &domain.View{Body: []byte("map")}, nil
	}
	svc := newViewService(t, src, nil, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Navigate(context.Background(), "/")
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestNavigate_FailureIsRecoverable(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	src := &mockViewSource{}
	src.fetchFn = func(ctx context.Context, module string) (*domain.View, error) {
		if fail.Load() {
			return nil, errors.New("network unreachable")
		}
		return &domain.View{Body: []byte("ok")}, nil
	}
	svc := newViewService(t, src, nil, 1)

	_, err := svc.Navigate(context.Background(), "/statistic")
	var loadErr *domain.ViewLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "Statistic", loadErr.Route.Name)
	assert.Contains(t, err.Error(), "network unreachable")
	assert.False(t, svc.Loaded("Statistic"))

	fail.Store(false)
	nav, err := svc.Navigate(context.Background(), "/statistic")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(nav.View.Body))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestNavigate_RetriesTransientErrors(t *testing.T) {
	src := &mockViewSource{}
	src.fetchFn = func(ctx context.Context, module string) (*domain.View, error) {
		if src.calls.Load() < 3 {
			return nil, errors.New("503 from origin")
		}
		return &domain.View{Body: []byte("ok")}, nil
	}
	svc := newViewService(t, src, nil, 3)

	_, err := svc.Navigate(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestNavigate_PermanentErrorsAreNotRetried(t *testing.T) {
	for _, permanent := range []error{domain.ErrModuleNotFound, domain.ErrModuleTooLarge} {
		t.Run(permanent.Error(), func(t *testing.T) {
			src := &mockViewSource{}
			src.fetchFn = func(ctx context.Context, module string) (*domain.View, error) {
				return nil, permanent
			}
			svc := newViewService(t, src, nil, 5)

			_, err := svc.Navigate(context.Background(), "/")
			assert.ErrorIs(t, err, permanent)
			assert.Equal(t, int32(1), src.calls.Load())
			assert.False(t, svc.Loaded("Map"))
		})
	}
}

func TestNavigate_SharedCache(t *testing.T) {
	cache := newMockCache()

	first := &mockViewSource{}
	_, err := newViewService(t, first, cache, 1).Navigate(context.Background(), "/screens")
	require.NoError(t, err)
	assert.Equal(t, int32(1), first.calls.Load())

	// A second instance finds the module in the shared cache.
	second := &mockViewSource{}
	nav, err := newViewService(t, second, cache, 1).Navigate(context.Background(), "/screens")
	require.NoError(t, err)
	assert.Zero(t, second.calls.Load())
	assert.Equal(t, "PageScreens.html", string(nav.View.Body))
}

func TestNavigate_CallerCancellationDoesNotAbortSharedLoad(t *testing.T) {
	release := make(chan struct{})
	src := &mockViewSource{}
	src.fetchFn = func(ctx context.Context, module string) (*domain.View, error) {
		select {
		case <-release:
			return &domain.View{Body: []byte("map")}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	svc := newViewService(t, src, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Navigate(ctx, "/")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	nav, err := svc.Navigate(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "map", string(nav.View.Body))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestPreload(t *testing.T) {
	src := &mockViewSource{}
	svc := newViewService(t, src, nil, 1)

	require.NoError(t, svc.Preload(context.Background()))
	assert.Equal(t, int32(3), src.calls.Load())
	for _, name := range []string{"Map", "Screens", "Statistic"} {
		assert.True(t, svc.Loaded(name), name)
	}
}
