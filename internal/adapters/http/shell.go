package http

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// shellPath maps a request path under base to a route table path.
// The base itself maps to "/".
func shellPath(requestPath, base string) string {
	rel := strings.TrimPrefix(requestPath, base)
	if rel == "" {
		return "/"
	}
	return rel
}

// ShellHandler resolves the request path through the route table and serves
// the route's lazily loaded view module.
func ShellHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := shellPath(c.Path(), deps.BasePath)

		nav, err := deps.Views.Navigate(c.UserContext(), path)
		if err != nil {
			return writeNavigationError(c, path, err)
		}

		c.Locals("view", nav.Route.Name)
		c.Set("X-View-Name", nav.Route.Name)
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderContentType, nav.View.ContentType)
		return c.Send(nav.View.Body)
	}
}

func writeNavigationError(c *fiber.Ctx, path string, err error) error {
	var loadErr *domain.ViewLoadError
	switch {
	case errors.Is(err, domain.ErrRouteNotFound):
		return errRouteNotFound(c, path)
	case errors.As(err, &loadErr):
		LoggerFromCtx(c.UserContext()).Warn("view load failed",
			"path", path, "view", loadErr.Route.Name, "error", loadErr.Err)
		return errViewUnavailable(c, "view "+loadErr.Route.Name+" is temporarily unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errViewUnavailable(c, "navigation to "+path+" did not complete")
	default:
		return newError(c, fiber.StatusInternalServerError, "internal_error", err.Error())
	}
}
