package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/geopanel/internal/core/domain"
	"github.com/samirrijal/geopanel/internal/core/usecases"
	"github.com/samirrijal/geopanel/internal/pkg/metrics"
)

// wsWriteTimeout bounds every write to a client.
const wsWriteTimeout = 5 * time.Second

// wsMessage is sent by the client.
//
//	{"action":"set","latitude":43.26,"longitude":null}
//	{"action":"navigate","path":"/screens"}
//
// For "set", only the fields present are written; null marks a field absent.
type wsMessage struct {
	Action    string          `json:"action"`
	Path      string          `json:"path,omitempty"`
	Latitude  json.RawMessage `json:"latitude,omitempty"`
	Longitude json.RawMessage `json:"longitude,omitempty"`
}

// wsEvent is sent to the client.
type wsEvent struct {
	Type string      `json:"type"` // coordinate | navigation | error
	Data interface{} `json:"data,omitempty"`
}

type wsNavigation struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Cached      bool   `json:"cached"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// WebSocketHandler streams coordinate changes to the client as they happen
// and accepts coordinate writes and navigations. Each connection has its own
// Navigator, so a newer navigate supersedes one still loading.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		session := uuid.NewString()
		logger := slog.Default().With("ws_session", session, "remote", c.RemoteAddr().String())
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			mu      sync.Mutex
			lastSeq uint64
			sent    bool
		)
		writeLocked := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return c.WriteMessage(websocket.TextMessage, data)
		}
		writeJSON := func(v interface{}) error {
			mu.Lock()
			defer mu.Unlock()
			return writeLocked(v)
		}
		// writeChange drops changes older than the one last sent, so the
		// snapshot and the subscription can race without going backwards.
		writeChange := func(change domain.CoordinateChange) error {
			mu.Lock()
			defer mu.Unlock()
			if sent && change.Seq <= lastSeq {
				return nil
			}
			if err := writeLocked(wsEvent{Type: "coordinate", Data: change}); err != nil {
				return err
			}
			lastSeq, sent = change.Seq, true
			return nil
		}

		unsubscribe := deps.Store.Subscribe(func(change domain.CoordinateChange) {
			if err := writeChange(change); err != nil {
				logger.Warn("ws write failed, closing", "error", err)
				_ = c.Close()
			}
		})
		defer unsubscribe()

		if err := writeChange(deps.Store.Current()); err != nil {
			return
		}

		nav := usecases.NewNavigator(deps.Views)
		defer nav.Close()

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Data: wsError{Code: "bad_request", Message: "invalid JSON"}})
				continue
			}

			switch m.Action {
			case "set":
				if err := applySet(ctx, deps.Store, m); err != nil {
					_ = writeJSON(wsEvent{Type: "error", Data: wsError{Code: "bad_request", Message: err.Error()}})
				}

			case "navigate":
				// Run concurrently so a later navigate can supersede this one.
				go func(path string) {
					result, err := nav.Navigate(ctx, path)
					switch {
					case err == nil:
						_ = writeJSON(wsEvent{Type: "navigation", Data: wsNavigation{
							Path:        path,
							Name:        result.Route.Name,
							Cached:      result.Cached,
							ContentType: result.View.ContentType,
							Size:        len(result.View.Body),
						}})
					case errors.Is(err, domain.ErrNavigationSuperseded):
						logger.Debug("navigation superseded", "path", path)
					default:
						_ = writeJSON(wsEvent{Type: "error", Data: navigationError(path, err)})
					}
				}(m.Path)

			default:
				_ = writeJSON(wsEvent{Type: "error", Data: wsError{Code: "bad_request", Message: "unknown action: " + m.Action}})
			}
		}

		logger.Info("ws client disconnected")
	}
}

func applySet(ctx context.Context, store *usecases.CoordinateStore, m wsMessage) error {
	lat, hasLat, err := rawFloat(m.Latitude)
	if err != nil {
		return errors.New("latitude must be a number or null")
	}
	lon, hasLon, err := rawFloat(m.Longitude)
	if err != nil {
		return errors.New("longitude must be a number or null")
	}

	switch {
	case hasLat && hasLon:
		store.Set(ctx, domain.Coordinate{Latitude: lat, Longitude: lon})
	case hasLat:
		store.SetLatitude(ctx, lat)
	case hasLon:
		store.SetLongitude(ctx, lon)
	default:
		return errors.New("set requires latitude and/or longitude")
	}
	return nil
}

// rawFloat decodes an optional JSON number. present is false when the key was missing.
func rawFloat(raw json.RawMessage) (v *float64, present bool, err error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, true, err
	}
	return v, true, nil
}

func navigationError(path string, err error) wsError {
	var loadErr *domain.ViewLoadError
	switch {
	case errors.Is(err, domain.ErrRouteNotFound):
		return wsError{Code: "route_not_found", Message: err.Error(), Path: path}
	case errors.As(err, &loadErr):
		return wsError{Code: "view_unavailable", Message: err.Error(), Path: path}
	default:
		return wsError{Code: "internal_error", Message: err.Error(), Path: path}
	}
}
