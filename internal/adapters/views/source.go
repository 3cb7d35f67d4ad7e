package views

import (
	"fmt"
	"os"

	"github.com/samirrijal/geopanel/internal/core/ports"
)

// New returns the view source selected by kind: "fs" reads from dir,
// "http" fetches from baseURL.
func New(kind, dir, baseURL string) (ports.ViewSource, error) {
	switch kind {
	case "fs":
		return NewFSSource(os.DirFS(dir)), nil
	case "http":
		return NewHTTPSource(baseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown view source %q", kind)
	}
}
