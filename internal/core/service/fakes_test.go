package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

const testDebounce = 350 * time.Millisecond

// fakeClock only moves when Advance is called. Due timers run on the
// caller's goroutine, outside the clock lock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeRemote plays the storefront cart and order endpoints.
type fakeRemote struct {
	mu          sync.Mutex
	cart        domain.RemoteCart
	fetchErr    error
	replaceErr  error
	clearErr    error
	orderErr    error
	fetches     int
	pushes      [][]domain.CartLine
	clears      int
	orders      []domain.OrderRequest
	inFlight    int
	maxInFlight int

	// started receives once per request when set; block holds requests
	// until it is closed.
	started chan struct{}
	block   chan struct{}
}

func (r *fakeRemote) FetchCart(ctx context.Context) (domain.RemoteCart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	return r.cart, r.fetchErr
}

func (r *fakeRemote) ReplaceItems(ctx context.Context, lines []domain.CartLine) (domain.RemoteCart, error) {
	r.enter(func() { r.pushes = append(r.pushes, lines) })
	r.wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	return r.cart, r.replaceErr
}

func (r *fakeRemote) ClearCart(ctx context.Context) error {
	r.enter(func() { r.clears++ })
	r.wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--
	return r.clearErr
}

func (r *fakeRemote) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orderErr != nil {
		return domain.OrderConfirmation{}, r.orderErr
	}
	r.orders = append(r.orders, req)
	return domain.OrderConfirmation{
		OrderID:        "ord-1",
		CustomerName:   req.CustomerName,
		DeliveryMethod: string(req.Delivery),
		Total:          req.ExpectedTotal,
	}, nil
}

// enter records the request under the lock before announcing it.
func (r *fakeRemote) enter(record func()) {
	r.mu.Lock()
	record()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	started := r.started
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
}

func (r *fakeRemote) wait() {
	r.mu.Lock()
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (r *fakeRemote) setReplaceErr(err error) {
	r.mu.Lock()
	r.replaceErr = err
	r.mu.Unlock()
}

func (r *fakeRemote) pushCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushes)
}

func (r *fakeRemote) lastPush() []domain.CartLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pushes) == 0 {
		return nil
	}
	return r.pushes[len(r.pushes)-1]
}

func (r *fakeRemote) clearCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

func (r *fakeRemote) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	calls    map[string]int
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]domain.Product), calls: make(map[string]int)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) FetchProduct(ctx context.Context, productID string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[productID]++
	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, errors.New("product not found")
	}
	return p, nil
}

func (c *fakeCatalog) callCount(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[productID]
}

// mapStore is an in-memory LocalStore and IdempotencyStore that counts
// every access.
type mapStore struct {
	mu      sync.Mutex
	data    map[string]string
	gets    int
	sets    int
	removes int
	err     error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string]string)}
}

func (s *mapStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes++
	if s.err != nil {
		return s.err
	}
	delete(s.data, key)
	return nil
}

func (s *mapStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = "1"
	return true, nil
}

func (s *mapStore) ReleaseIdempotency(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapStore) value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *mapStore) touched() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets + s.sets + s.removes
}

type staticAuth bool

func (a staticAuth) IsAuthenticated() bool { return bool(a) }

type cartFixture struct {
	clock  *fakeClock
	remote *fakeRemote
	store  *mapStore
	cart   *CartService
}

func newCartFixture(authenticated bool, policy domain.QuantityPolicy) *cartFixture {
	f := &cartFixture{
		clock:  newFakeClock(),
		remote: &fakeRemote{},
		store:  newMapStore(),
	}
	f.cart = NewCartService(CartOptions{
		Remote:   f.remote,
		Store:    f.store,
		Auth:     staticAuth(authenticated),
		Policy:   policy,
		Clock:    f.clock,
		Debounce: testDebounce,
	})
	return f
}

func (f *cartFixture) storedItems() []domain.LineItem {
	raw, ok := f.store.value(DefaultSnapshotKey)
	if !ok {
		return nil
	}
	items, _ := domain.DecodeSnapshot(raw)
	return items
}

func puer(variant string, qty int, price string) domain.LineItem {
	return domain.LineItem{
		ProductID:    "A",
		VariantID:    variant,
		Quantity:     qty,
		UnitPrice:    price,
		DisplayName:  "Пуэр",
		VariantLabel: variant,
	}
}
