package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// GetCoordinateHandler returns the current coordinate. Absent fields are null.
func GetCoordinateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Store.Snapshot())
	}
}

// PutCoordinateHandler replaces both fields. A missing or null field becomes absent.
// Values are stored as given, without range checks.
func PutCoordinateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body is required")
		}

		var coord domain.Coordinate
		if err := json.Unmarshal(body, &coord); err != nil {
			return errBadRequest(c, "latitude and longitude must be numbers or null")
		}

		deps.Store.Set(c.UserContext(), coord)
		return c.JSON(deps.Store.Snapshot())
	}
}

// PutCoordinateFieldHandler sets one field from {"value": number|null}.
func PutCoordinateFieldHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		field := domain.CoordinateField(c.Params("field"))
		if field != domain.FieldLatitude && field != domain.FieldLongitude {
			return errNotFound(c, "unknown coordinate field "+string(field))
		}

		var req map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		raw, ok := req["value"]
		if !ok {
			return errBadRequest(c, `"value" is required (number or null)`)
		}
		var value *float64
		if err := json.Unmarshal(raw, &value); err != nil {
			return errBadRequest(c, `"value" must be a number or null`)
		}

		if field == domain.FieldLatitude {
			deps.Store.SetLatitude(c.UserContext(), value)
		} else {
			deps.Store.SetLongitude(c.UserContext(), value)
		}
		return c.JSON(deps.Store.Snapshot())
	}
}
