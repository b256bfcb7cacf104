package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

const (
	DefaultProductLabel = "Товар"
	DefaultVariantLabel = "Вариант"

	defaultLookupConcurrency = 4
)

type HydrationOutcome string

const (
	// HydrationSkipped: nobody is signed in, the cart was reset.
	HydrationSkipped HydrationOutcome = "skipped"
	// HydrationRemote: the remote cart had items and replaced local state.
	HydrationRemote HydrationOutcome = "remote"
	// HydrationSeeded: the remote cart was empty, the local snapshot is kept and pushed.
	HydrationSeeded HydrationOutcome = "seeded"
	// HydrationLocalOnly: the remote cart could not be read, the local snapshot is kept.
	HydrationLocalOnly HydrationOutcome = "local-only"
	// HydrationEmpty: both sides are empty.
	HydrationEmpty HydrationOutcome = "empty"
)

type HydratorOptions struct {
	ProductLabel      string
	VariantLabel      string
	LookupConcurrency int
	Logger            *zap.Logger
}

// Hydrator builds the starting cart of a session from the local snapshot and
// the remote cart.
type Hydrator struct {
	cart    *CartService
	remote  port.RemoteCartService
	catalog port.ProductCatalog
	opts    HydratorOptions
	logger  *zap.Logger
}

func NewHydrator(cart *CartService, remote port.RemoteCartService, catalog port.ProductCatalog, opts HydratorOptions) *Hydrator {
	if opts.ProductLabel == "" {
		opts.ProductLabel = DefaultProductLabel
	}
	if opts.VariantLabel == "" {
		opts.VariantLabel = DefaultVariantLabel
	}
	if opts.LookupConcurrency <= 0 {
		opts.LookupConcurrency = defaultLookupConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hydrator{cart: cart, remote: remote, catalog: catalog, opts: opts, logger: opts.Logger}
}

// Hydrate never fails: a remote read that does not succeed leaves the local
// snapshot in place and raises the load error flag.
//
// A non-empty remote cart replaces the local one outright, including edits
// made while Loading was set; those edits are not pushed. Signed out, the
// cart is emptied and any pending push is dropped.
func (h *Hydrator) Hydrate(ctx context.Context) HydrationOutcome {
	if !h.cart.auth.IsAuthenticated() {
		h.cart.writeMu.Lock()
		h.cart.scheduler.Cancel()
		st := h.cart.commit(func() {
			h.cart.cart = domain.EmptyCart()
			h.cart.loading = false
			h.cart.loadErr = nil
			h.cart.syncErr = nil
		})
		h.cart.notify(st)
		h.cart.writeMu.Unlock()
		return HydrationSkipped
	}

	var (
		remote    domain.RemoteCart
		remoteErr error
		local     domain.Cart
	)

	var g errgroup.Group
	g.Go(func() error {
		local = domain.NewCart(h.cart.mirror.Load(ctx))
		h.publish(ctx, local, true, nil, false)
		return nil
	})
	g.Go(func() error {
		remote, remoteErr = h.remote.FetchCart(ctx)
		return nil
	})
	_ = g.Wait()

	if remoteErr != nil {
		h.logger.Warn("remote cart not loaded, keeping local snapshot",
			zap.Int("local_items", len(local.Items)), zap.Error(remoteErr))
		h.publish(ctx, local, false, fmt.Errorf("%w: %v", ErrRemoteUnavailable, remoteErr), false)
		return HydrationLocalOnly
	}

	if len(remote.Items) > 0 {
		cart := domain.NewCart(h.enrich(ctx, remote.Items))
		h.publish(ctx, cart, false, nil, true)
		h.logger.Info("cart hydrated from remote",
			zap.Int("items", len(cart.Items)), zap.Int("discarded_local_items", len(local.Items)))
		return HydrationRemote
	}

	h.publish(ctx, local, false, nil, false)
	if !local.IsEmpty() {
		h.cart.scheduler.Schedule("seed-remote")
		h.logger.Info("remote cart empty, seeding it from local snapshot", zap.Int("items", len(local.Items)))
		return HydrationSeeded
	}
	return HydrationEmpty
}

func (h *Hydrator) publish(ctx context.Context, cart domain.Cart, loading bool, loadErr error, persist bool) {
	h.cart.writeMu.Lock()
	defer h.cart.writeMu.Unlock()

	st := h.cart.commit(func() {
		h.cart.cart = cart
		h.cart.loading = loading
		h.cart.loadErr = loadErr
	})
	if persist {
		h.cart.mirror.Save(ctx, cart.Items)
	}
	h.cart.notify(st)
}

// enrich turns bare remote rows into line items, looking each distinct
// product up once. A failed lookup only affects the rows of that product.
func (h *Hydrator) enrich(ctx context.Context, rows []domain.RemoteCartItem) []domain.LineItem {
	products := h.lookupProducts(ctx, rows)

	items := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		qty := row.Quantity
		if qty < 1 {
			qty = 1
		}

		product := products[row.ProductID]
		variant, hasVariant := product.Variant(row.VariantID)

		price := row.Price
		if price == "" && hasVariant {
			price = variant.Price
		}

		name := firstNonEmpty(row.ProductName, product.Name, h.opts.ProductLabel)
		label := firstNonEmpty(row.VariantLabel, variant.Weight, h.opts.VariantLabel)

		items = append(items, domain.LineItem{
			ProductID:    row.ProductID,
			VariantID:    row.VariantID,
			Quantity:     qty,
			UnitPrice:    domain.NormalizePrice(price),
			DisplayName:  name,
			VariantLabel: label,
		})
	}
	return items
}

func (h *Hydrator) lookupProducts(ctx context.Context, rows []domain.RemoteCartItem) map[string]domain.Product {
	products := make(map[string]domain.Product)
	if h.catalog == nil {
		return products
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, row := range rows {
		if _, ok := seen[row.ProductID]; ok {
			continue
		}
		seen[row.ProductID] = struct{}{}
		ids = append(ids, row.ProductID)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(h.opts.LookupConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			p, err := h.catalog.FetchProduct(ctx, id)
			if err != nil {
				h.logger.Warn("product lookup failed, using fallback labels",
					zap.String("product_id", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			products[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return products
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
