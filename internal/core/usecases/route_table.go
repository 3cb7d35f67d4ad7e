package usecases

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// DefaultRoutes returns the application shell's route table.
func DefaultRoutes() []domain.RouteEntry {
	return []domain.RouteEntry{
		{Path: "/", Name: "Map", Module: "PageMap.html"},
		{Path: "/screens", Name: "Screens", Module: "PageScreens.html"},
		{Path: "/statistic", Name: "Statistic", Module: "PageStatistic.html"},
	}
}

// RouteTable is an immutable path → view mapping. Paths match exactly and
// case-sensitively; there is no trailing-slash normalization.
type RouteTable struct {
	entries []domain.RouteEntry
	byPath  map[string]domain.RouteEntry
	byName  map[string]domain.RouteEntry
}

// NewRouteTable validates entries and builds the table.
func NewRouteTable(entries []domain.RouteEntry) (*RouteTable, error) {
	t := &RouteTable{
		entries: make([]domain.RouteEntry, 0, len(entries)),
		byPath:  make(map[string]domain.RouteEntry, len(entries)),
		byName:  make(map[string]domain.RouteEntry, len(entries)),
	}

	var errs []error
	for i, e := range entries {
		switch {
		case !strings.HasPrefix(e.Path, "/"):
			errs = append(errs, fmt.Errorf("route %d: path %q must start with /", i, e.Path))
			continue
		case e.Name == "":
			errs = append(errs, fmt.Errorf("route %d (%s): name is required", i, e.Path))
			continue
		case e.Module == "":
			errs = append(errs, fmt.Errorf("route %d (%s): module is required", i, e.Path))
			continue
		}
		if _, dup := t.byPath[e.Path]; dup {
			errs = append(errs, fmt.Errorf("route %d: duplicate path %q", i, e.Path))
			continue
		}
		if _, dup := t.byName[e.Name]; dup {
			errs = append(errs, fmt.Errorf("route %d: duplicate name %q", i, e.Name))
			continue
		}
		t.byPath[e.Path] = e
		t.byName[e.Name] = e
		t.entries = append(t.entries, e)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid route table: %w", errors.Join(errs...))
	}
	return t, nil
}

// Resolve returns the entry registered for path.
func (t *RouteTable) Resolve(path string) (domain.RouteEntry, error) {
	e, ok := t.byPath[path]
	if !ok {
		return domain.RouteEntry{}, fmt.Errorf("%w: %s", domain.ErrRouteNotFound, path)
	}
	return e, nil
}

// Lookup returns the entry for a view name.
func (t *RouteTable) Lookup(name string) (domain.RouteEntry, bool) {
	e, ok := t.byName[name]
	return e, ok
}

// Entries returns the routes in definition order.
func (t *RouteTable) Entries() []domain.RouteEntry {
	out := make([]domain.RouteEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
