package views

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// maxModuleSize caps a fetched module body.
const maxModuleSize = 8 << 20

// HTTPSource implements ports.ViewSource by fetching modules from a remote
// base URL such as a CDN.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source fetching <baseURL>/<module>. client may be nil.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Fetch downloads one module. 404 and 410 wrap domain.ErrModuleNotFound and
// a body over the size cap wraps domain.ErrModuleTooLarge; other failures
// are transient.
func (s *HTTPSource) Fetch(ctx context.Context, module string) (*domain.View, error) {
	target := s.baseURL + "/" + url.PathEscape(module)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", module, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s (HTTP %d)", domain.ErrModuleNotFound, module, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: HTTP %d", module, resp.StatusCode)
	}

	if resp.ContentLength > maxModuleSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", domain.ErrModuleTooLarge, module, resp.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxModuleSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", module, err)
	}
	if len(body) > maxModuleSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrModuleTooLarge, module, maxModuleSize)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = contentType(module)
	}

	return &domain.View{
		Module:      module,
		ContentType: ct,
		Body:        body,
		LoadedAt:    time.Now(),
	}, nil
}
