package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/ports"
	"github.com/samirrijal/geopanel/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/geopanel/internal/core/usecases")

// ViewOptions tunes deferred view loading.
type ViewOptions struct {
	LoadTimeout   time.Duration // upper bound for one shared load
	RetryAttempts int           // source fetch attempts per load, including the first
	RetryInterval time.Duration // initial backoff between attempts
	CacheTTL      int           // seconds a module stays in the shared cache
}

// DefaultViewOptions returns the options used when none are configured.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		LoadTimeout:   15 * time.Second,
		RetryAttempts: 3,
		RetryInterval: 200 * time.Millisecond,
		CacheTTL:      3600,
	}
}

// ViewService resolves paths and lazily loads their view modules. The first
// successful load of a module is memoized; failures are not.
type ViewService struct {
	routes *RouteTable
	source ports.ViewSource
	cache  ports.CacheService
	opts   ViewOptions

	mu     sync.RWMutex
	loaded map[string]*domain.View // module -> view
	group  singleflight.Group
}

// NewViewService creates a new ViewService. cache may be nil.
func NewViewService(routes *RouteTable, source ports.ViewSource, cache ports.CacheService, opts ViewOptions) *ViewService {
	def := DefaultViewOptions()
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = def.LoadTimeout
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = def.RetryAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	return &ViewService{
		routes: routes,
		source: source,
		cache:  cache,
		opts:   opts,
		loaded: make(map[string]*domain.View),
	}
}

// ViewCacheKey is the shared cache key for a view module.
func ViewCacheKey(module string) string {
	return "view:" + module
}

// Routes returns the route table the service resolves against.
func (s *ViewService) Routes() *RouteTable {
	return s.routes
}

// Navigate resolves path and returns its loaded view.
// Unmatched paths return domain.ErrRouteNotFound; load failures return
// *domain.ViewLoadError. If ctx ends first, ctx.Err() is returned while the
// shared load keeps running for other waiters.
func (s *ViewService) Navigate(ctx context.Context, path string) (*domain.Navigation, error) {
	entry, err := s.routes.Resolve(path)
	if err != nil {
		metrics.Navigations.WithLabelValues("", "not_found").Inc()
		return nil, err
	}

	view, cached, err := s.Load(ctx, entry)
	if err != nil {
		result := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result = "cancelled"
		}
		metrics.Navigations.WithLabelValues(entry.Name, result).Inc()
		return nil, err
	}

	metrics.Navigations.WithLabelValues(entry.Name, "ok").Inc()
	return &domain.Navigation{Route: entry, View: view, Cached: cached}, nil
}

// Load returns the view for entry, fetching it on first use. cached reports
// that a memoized module was returned without any fetch.
func (s *ViewService) Load(ctx context.Context, entry domain.RouteEntry) (view *domain.View, cached bool, err error) {
	if v := s.memoized(entry.Module); v != nil {
		return v, true, nil
	}
	return s.loadShared(ctx, entry)
}

type loadResult struct {
	view   *domain.View
	cached bool
}

// loadShared joins or starts the single in-flight load of entry's module.
func (s *ViewService) loadShared(ctx context.Context, entry domain.RouteEntry) (*domain.View, bool, error) {
	// The shared load must outlive any single waiter.
	ch := s.group.DoChan(entry.Module, func() (interface{}, error) {
		// An earlier flight may have finished since the caller checked.
		if v := s.memoized(entry.Module); v != nil {
			return loadResult{view: v, cached: true}, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.LoadTimeout)
		defer cancel()

		v, err := s.fetch(loadCtx, entry)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loaded[entry.Module] = v
		s.mu.Unlock()
		return loadResult{view: v}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, &domain.ViewLoadError{Route: entry, Err: res.Err}
		}
		r := res.Val.(loadResult)
		return r.view, r.cached, nil
	}
}

// Preload loads every route's view. It stops at the first failure.
func (s *ViewService) Preload(ctx context.Context) error {
	for _, e := range s.routes.Entries() {
		if _, _, err := s.Load(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Loaded reports whether the named view has been memoized.
func (s *ViewService) Loaded(name string) bool {
	e, ok := s.routes.Lookup(name)
	if !ok {
		return false
	}
	return s.memoized(e.Module) != nil
}

func (s *ViewService) memoized(module string) *domain.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[module]
}

func (s *ViewService) fetch(ctx context.Context, entry domain.RouteEntry) (*domain.View, error) {
	ctx, span := tracer.Start(ctx, "ViewService.fetch", trace.WithAttributes(
		attribute.String("view.name", entry.Name),
		attribute.String("view.module", entry.Module),
	))
	defer span.End()

	start := time.Now()
	cacheKey := ViewCacheKey(entry.Module)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var v domain.View
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.CacheHits.WithLabelValues("view").Inc()
				metrics.ViewLoads.WithLabelValues(entry.Name, "cache", "ok").Inc()
				metrics.ViewLoadDuration.WithLabelValues(entry.Name).Observe(time.Since(start).Seconds())
				span.SetAttributes(attribute.String("view.origin", "cache"))
				return &v, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("view").Inc()
	}

	var attempt int
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.RetryAttempts-1)), ctx)

	var view *domain.View
	err := backoff.RetryNotify(func() error {
		attempt++
		v, err := s.source.Fetch(ctx, entry.Module)
		if err != nil {
			if errors.Is(err, domain.ErrModuleNotFound) || errors.Is(err, domain.ErrModuleTooLarge) {
				return backoff.Permanent(err)
			}
			return err
		}
		view = v
		return nil
	}, policy, func(err error, wait time.Duration) {
		slog.Warn("view fetch failed, retrying",
			"view", entry.Name, "module", entry.Module, "attempt", attempt, "wait", wait.String(), "error", err)
	})

	metrics.ViewLoadDuration.WithLabelValues(entry.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ViewLoads.WithLabelValues(entry.Name, "source", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s after %d attempt(s): %w", entry.Module, attempt, err)
	}
	metrics.ViewLoads.WithLabelValues(entry.Name, "source", "ok").Inc()
	span.SetAttributes(attribute.String("view.origin", "source"), attribute.Int("view.attempts", attempt))

	if view.Name == "" {
		view.Name = entry.Name
	}
	if view.Module == "" {
		view.Module = entry.Module
	}
	if view.LoadedAt.IsZero() {
		view.LoadedAt = time.Now()
	}

	if s.cache != nil {
		if data, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.opts.CacheTTL); err != nil {
				slog.Warn("view cache write failed", "module", entry.Module, "error", err)
			}
		}
	}

	return view, nil
}
