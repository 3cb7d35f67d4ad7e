package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// routeInfo is a route table entry plus its load state.
type routeInfo struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Module string `json:"module"`
	Loaded bool   `json:"loaded"`
}

func toRouteInfo(deps *Dependencies, e domain.RouteEntry) routeInfo {
	return routeInfo{Path: e.Path, Name: e.Name, Module: e.Module, Loaded: deps.Views.Loaded(e.Name)}
}

// ListRoutesHandler returns the route table.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries := deps.Views.Routes().Entries()
		out := make([]routeInfo, 0, len(entries))
		for _, e := range entries {
			out = append(out, toRouteInfo(deps, e))
		}
		return c.JSON(fiber.Map{"base_path": deps.BasePath, "routes": out})
	}
}

// ResolveRouteHandler resolves ?path= without loading the view.
func ResolveRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Query("path")
		if path == "" {
			return errBadRequest(c, "path query parameter is required")
		}

		entry, err := deps.Views.Routes().Resolve(path)
		if errors.Is(err, domain.ErrRouteNotFound) {
			return errRouteNotFound(c, path)
		}
		if err != nil {
			return newError(c, fiber.StatusInternalServerError, "internal_error", err.Error())
		}
		return c.JSON(toRouteInfo(deps, entry))
	}
}
