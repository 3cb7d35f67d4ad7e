package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRouteNotFound is returned when no route matches a requested path.
	ErrRouteNotFound = errors.New("no route matched")

	// ErrModuleNotFound is returned by a view source that has no such module.
	// Loads failing with it are not retried within the same navigation.
	ErrModuleNotFound = errors.New("view module not found")

	// ErrModuleTooLarge is returned when a module exceeds the source's size cap.
	ErrModuleTooLarge = errors.New("view module too large")

	// ErrNavigationSuperseded is returned to a navigation replaced by a newer one
	// in the same session.
	ErrNavigationSuperseded = errors.New("navigation superseded")
)

// RouteEntry maps a URL path to a named view and the module its deferred loader fetches.
type RouteEntry struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// View is a loaded view module.
type View struct {
	Name        string    `json:"name"`
	Module      string    `json:"module"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// Navigation is the outcome of resolving a path and loading its view.
type Navigation struct {
	Route  RouteEntry `json:"route"`
	View   *View      `json:"-"`
	Cached bool       `json:"cached"` // memoized module reused
}

// ViewLoadError reports a failed deferred load. It is recoverable: the failed
// result is never memoized, so navigating again retries the load.
type ViewLoadError struct {
	Route RouteEntry
	Err   error
}

func (e *ViewLoadError) Error() string {
	return fmt.Sprintf("load view %s (%s): %v", e.Route.Name, e.Route.Module, e.Err)
}

func (e *ViewLoadError) Unwrap() error {
	return e.Err
}
