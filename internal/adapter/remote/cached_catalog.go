package remote

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

// CachedCatalog remembers products for the lifetime of a session. Concurrent
// lookups of the same id share one upstream request; failures are not cached.
type CachedCatalog struct {
	next  port.ProductCatalog
	group singleflight.Group

	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewCachedCatalog(next port.ProductCatalog) *CachedCatalog {
	return &CachedCatalog{next: next, products: make(map[string]domain.Product)}
}

func (c *CachedCatalog) FetchProduct(ctx context.Context, productID string) (domain.Product, error) {
	c.mu.RLock()
	p, ok := c.products[productID]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(productID, func() (any, error) {
		p, err := c.next.FetchProduct(ctx, productID)
		if err != nil {
			return domain.Product{}, err
		}
		c.mu.Lock()
		c.products[productID] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

// Invalidate drops every cached product, e.g. when the session ends.
func (c *CachedCatalog) Invalidate() {
	c.mu.Lock()
	c.products = make(map[string]domain.Product)
	c.mu.Unlock()
}
