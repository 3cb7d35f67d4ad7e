package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get for a missing key.
var ErrCacheMiss = errors.New("cache miss")

// ViewSource retrieves view modules by identifier. Errors wrapping
// domain.ErrModuleNotFound are permanent; anything else may be retried.
type ViewSource interface {
	Fetch(ctx context.Context, module string) (*domain.View, error)
}

// CacheService provides read-through caching shared between instances.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// CoordinatePublisher propagates local coordinate writes to other instances.
type CoordinatePublisher interface {
	PublishCoordinateChange(ctx context.Context, change *domain.CoordinateChange) error
}

// CoordinateSubscriber delivers coordinate writes made by other instances.
type CoordinateSubscriber interface {
	SubscribeCoordinateChanges(ctx context.Context, handler func(ctx context.Context, change *domain.CoordinateChange) error) error
}
