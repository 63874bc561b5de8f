package guard

import (
	"context"
	"fmt"
	"time"
)

// Sides of the mirror. A marker for (id, side) means "side just wrote id,
// drop the change notification it will cause on the other side".
const (
	SideStrapi = "strapi"
	SideMedusa = "medusa"
)

// Store is any key-value backend with server-side expiry.
type Store interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (bool, error)
	Close() error
}

// Guard records and checks echo markers.
type Guard struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Guard{store: store, ttl: ttl}
}

// Key builds the composite marker key for an entity id and side.
func Key(id, side string) string {
	return fmt.Sprintf("%s_ignore_%s", id, side)
}

// Add writes a marker that expires after the configured TTL.
func (g *Guard) Add(ctx context.Context, id, side string) error {
	if err := g.store.Set(ctx, Key(id, side), g.ttl); err != nil {
		return fmt.Errorf("failed to set ignore marker for %s/%s: %w", id, side, err)
	}
	return nil
}

// ShouldIgnore reports whether a live marker exists for id and side.
func (g *Guard) ShouldIgnore(ctx context.Context, id, side string) (bool, error) {
	ok, err := g.store.Get(ctx, Key(id, side))
	if err != nil {
		return false, fmt.Errorf("failed to read ignore marker for %s/%s: %w", id, side, err)
	}
	return ok, nil
}

// TTL is the marker lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

func (g *Guard) Close() error {
	return g.store.Close()
}
