package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geopanel/internal/adapters/valkey"
	"github.com/samirrijal/geopanel/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Views     *usecases.ViewService
	Store     *usecases.CoordinateStore
	NATS      *nats.Conn
	Cache     *valkey.Cache
	BasePath  string // normalized shell base path, "" for the root
	RateLimit int    // requests per minute per IP, 0 disables limiting
}
