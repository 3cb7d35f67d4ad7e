package views

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"time"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// FSSource implements ports.ViewSource over a file system, typically
// os.DirFS pointed at the built view modules.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource creates a source reading modules from fsys.
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

// Fetch reads the module file. A missing file wraps domain.ErrModuleNotFound.
func (s *FSSource) Fetch(ctx context.Context, module string) (*domain.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(module) {
		return nil, fmt.Errorf("%w: invalid module path %q", domain.ErrModuleNotFound, module)
	}

	body, err := fs.ReadFile(s.fsys, module)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, module)
		}
		return nil, fmt.Errorf("read %s: %w", module, err)
	}

	return &domain.View{
		Module:      module,
		ContentType: contentType(module),
		Body:        body,
		LoadedAt:    time.Now(),
	}, nil
}

func contentType(module string) string {
	if ct := mime.TypeByExtension(path.Ext(module)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
