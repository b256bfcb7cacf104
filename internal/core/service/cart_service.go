package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/port"
)

var (
	ErrSyncFailed        = errors.New("cart sync failed")
	ErrRemoteUnavailable = errors.New("remote cart unavailable")
)

// State is what observers see. SyncErr and LoadErr are recoverable: the cart
// stays usable while they are set.
type State struct {
	Cart          domain.Cart
	Authenticated bool
	Loading       bool
	SyncErr       error
	LoadErr       error
}

type Observer func(State)

type CartOptions struct {
	Remote      port.RemoteCartService
	Store       port.LocalStore
	Auth        AuthState
	Policy      domain.QuantityPolicy
	SnapshotKey string
	Clock       Clock
	Debounce    time.Duration
	SyncTimeout time.Duration
	Logger      *zap.Logger
}

// CartService is the single owner of the shopper's cart. Mutations are
// applied optimistically: totals are recomputed, the snapshot is written
// and observers are notified before the remote push is even scheduled.
//
// Observers run on the mutating goroutine. They may call State but must
// not mutate the cart.
type CartService struct {
	auth      AuthState
	policy    domain.QuantityPolicy
	mirror    *Mirror
	scheduler *SyncScheduler
	logger    *zap.Logger

	// writeMu serialises mutations together with their persist and notify
	// steps; stateMu only guards the fields below.
	writeMu sync.Mutex
	stateMu sync.RWMutex
	cart    domain.Cart
	loading bool
	syncErr error
	loadErr error

	subMu     sync.Mutex
	nextSubID int
	observers map[int]Observer
}

func NewCartService(opts CartOptions) *CartService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Auth == nil {
		opts.Auth = anonymous{}
	}

	s := &CartService{
		auth:      opts.Auth,
		policy:    opts.Policy,
		mirror:    NewMirror(opts.Store, opts.SnapshotKey, opts.Logger),
		logger:    opts.Logger,
		cart:      domain.EmptyCart(),
		observers: make(map[int]Observer),
	}
	s.scheduler = NewSyncScheduler(opts.Remote, s.lines, s.onSyncResult, SchedulerOptions{
		Clock:    opts.Clock,
		Debounce: opts.Debounce,
		Timeout:  opts.SyncTimeout,
		Logger:   opts.Logger.Named("sync"),
	})
	return s
}

func (s *CartService) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.stateLocked()
}

func (s *CartService) Policy() domain.QuantityPolicy { return s.policy }

func (s *CartService) Scheduler() *SyncScheduler { return s.scheduler }

// Subscribe registers fn and immediately calls it with the current state.
// The returned func unregisters it.
func (s *CartService) Subscribe(fn Observer) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.observers[id] = fn
	s.subMu.Unlock()

	fn(s.State())

	return func() {
		s.subMu.Lock()
		delete(s.observers, id)
		s.subMu.Unlock()
	}
}

func (s *CartService) AddItem(ctx context.Context, item domain.LineItem) State {
	item.UnitPrice = domain.NormalizePrice(item.UnitPrice)
	return s.mutate(ctx, "add", func(c domain.Cart) domain.Cart {
		return c.AddItem(item)
	})
}

// SetQuantity applies the service's quantity policy.
func (s *CartService) SetQuantity(ctx context.Context, productID, variantID string, quantity int) State {
	return s.mutate(ctx, "set-quantity", func(c domain.Cart) domain.Cart {
		return c.SetQuantity(productID, variantID, quantity, s.policy)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, productID, variantID string) State {
	return s.mutate(ctx, "remove", func(c domain.Cart) domain.Cart {
		return c.RemoveItem(productID, variantID)
	})
}

// Clear empties the cart and clears the remote cart immediately.
func (s *CartService) Clear(ctx context.Context) State {
	s.writeMu.Lock()
	st := s.commit(func() { s.cart = domain.EmptyCart() })
	authed := st.Authenticated
	if authed {
		s.mirror.Save(ctx, st.Cart.Items)
	}
	s.notify(st)
	if authed {
		s.scheduler.ClearNow("clear")
	}
	s.writeMu.Unlock()
	return st
}

// Reset is the logout path: the in-memory cart and the snapshot go away,
// pending pushes are dropped and the remote cart is left alone.
func (s *CartService) Reset(ctx context.Context) State {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.scheduler.Cancel()
	st := s.commit(func() {
		s.cart = domain.EmptyCart()
		s.loading = false
		s.syncErr = nil
		s.loadErr = nil
	})
	s.mirror.Remove(ctx)
	s.notify(st)
	return st
}

// Settle waits for outstanding pushes and returns the outcome of the last one.
func (s *CartService) Settle(ctx context.Context) error {
	if err := s.scheduler.Settle(ctx); err != nil {
		return err
	}
	return s.State().SyncErr
}

// Resync is Settle for callers that need the remote cart current
// (checkout). Failed pushes are never retried on their own, so when the last
// one failed and no newer change is waiting, the current items are pushed
// again first.
func (s *CartService) Resync(ctx context.Context) error {
	if s.State().SyncErr != nil && !s.scheduler.Pending() && s.auth.IsAuthenticated() {
		s.logger.Info("retrying failed cart sync")
		s.scheduler.PushNow("resync")
	}
	return s.Settle(ctx)
}

// Close stops the scheduler, pushing a pending debounced change first.
func (s *CartService) Close(ctx context.Context) error {
	s.scheduler.Flush()
	return s.scheduler.Close(ctx)
}

func (s *CartService) mutate(ctx context.Context, reason string, fn func(domain.Cart) domain.Cart) State {
	s.writeMu.Lock()
	st := s.commit(func() { s.cart = fn(s.cart) })
	authed := st.Authenticated
	if authed {
		s.mirror.Save(ctx, st.Cart.Items)
	}
	s.notify(st)
	// Scheduling under writeMu keeps a concurrent Reset from slipping in
	// between the change and its push.
	if authed {
		s.scheduler.Schedule(reason)
	}
	s.writeMu.Unlock()
	return st
}

// commit applies fn under stateMu and returns the resulting state.
// Callers hold writeMu.
func (s *CartService) commit(fn func()) State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	fn()
	return s.stateLocked()
}

func (s *CartService) stateLocked() State {
	return State{
		Cart:          s.cart,
		Authenticated: s.auth.IsAuthenticated(),
		Loading:       s.loading,
		SyncErr:       s.syncErr,
		LoadErr:       s.loadErr,
	}
}

func (s *CartService) notify(st State) {
	s.subMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}

func (s *CartService) lines() []domain.CartLine {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cart.Lines()
}

func (s *CartService) onSyncResult(res SyncResult) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st := s.commit(func() {
		if res.Err != nil {
			s.syncErr = fmt.Errorf("%w: %v", ErrSyncFailed, res.Err)
		} else {
			s.syncErr = nil
		}
	})
	s.notify(st)
}

type anonymous struct{}

func (anonymous) IsAuthenticated() bool { return false }
