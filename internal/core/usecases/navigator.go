package usecases

import (
	"context"
	"sync"

	"github.com/samirrijal/geopanel/internal/core/domain"
)

// Navigator is a single client's navigation session. Starting a navigation
// cancels the one still in flight, so only the newest navigation completes.
type Navigator struct {
	views *ViewService

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewNavigator creates a navigation session backed by views.
func NewNavigator(views *ViewService) *Navigator {
	return &Navigator{views: views}
}

// Navigate resolves and loads path. A call replaced by a newer Navigate
// returns domain.ErrNavigationSuperseded.
func (n *Navigator) Navigate(ctx context.Context, path string) (*domain.Navigation, error) {
	navCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.seq++
	id := n.seq
	n.cancel = cancel
	n.mu.Unlock()

	nav, err := n.views.Navigate(navCtx, path)

	n.mu.Lock()
	superseded := n.seq != id
	if !superseded {
		n.cancel = nil
	}
	n.mu.Unlock()

	if superseded {
		return nil, domain.ErrNavigationSuperseded
	}
	return nav, err
}

// Close cancels any navigation in flight.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.seq++
}
