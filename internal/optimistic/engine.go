// Package optimistic implements the cart mutation engine. Every mutation
// patches the cached cart view synchronously, then commits upstream after a
// per-key debounce window. Rapid repeats on the same key coalesce into one
// upstream call carrying the final intent. A failed commit rolls the
// affected item back to its pre-burst state; patches on other keys stay in
// place.
//
// The engine is the only writer of the cart cache. Read surfaces go through
// View, which serves the cached snapshot while any commit is in flight so a
// background refetch can never clobber an optimistic patch.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cart-proxy/internal/cache"
	"cart-proxy/internal/model"
)

// ErrClosed resolves pendings abandoned by Close.
var ErrClosed = errors.New("mutation engine closed")

// Mutator is the cart service surface the engine commits through.
type Mutator interface {
	Items(ctx context.Context, session string) []model.CartItem
	Add(ctx context.Context, session string, productID int64, quantity int) (*model.CartItem, error)
	UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*model.CartItem, error)
	Remove(ctx context.Context, session, itemID string) error
}

// Pending tracks one debounced commit. Callers sharing a coalesced burst
// share the same Pending; Done closes when the commit settles either way.
type Pending struct {
	done chan struct{}
	err  error
}

// Done closes once the upstream commit has succeeded or rolled back.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err reports the commit outcome. Only valid after Done is closed.
func (p *Pending) Err() error { return p.err }

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opRemove
)

type opKey struct {
	session string
	key     string
}

// op is one armed debounce slot: the latest intent for its key plus the
// affected item's pre-burst state for rollback.
type op struct {
	kind      opKind
	productID int64
	itemID    string
	quantity  int // accumulated delta for adds, absolute for updates
	timer     *time.Timer
	pending   *Pending
	prior     *model.CartItem // the item before the burst's first patch, nil if absent
	hadEntry  bool            // the cache held an entry when the burst started
}

// Engine debounces and commits cart mutations.
type Engine struct {
	svc         Mutator
	cache       cache.Store
	addDelay    time.Duration
	updateDelay time.Duration
	staleness   time.Duration
	logger      *slog.Logger
	onError     func(session string, err error)

	mu     sync.Mutex
	ops    map[opKey]*op
	closed bool
}

// Options tune the engine's timing and failure reporting.
type Options struct {
	AddDelay    time.Duration // debounce for add bursts
	UpdateDelay time.Duration // debounce for quantity changes and removals
	Staleness   time.Duration // cache freshness window for View

	// OnError fires after a rollback, once per failed commit. Optional.
	OnError func(session string, err error)
}

// New returns an engine committing through svc and patching store.
func New(svc Mutator, store cache.Store, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		svc:         svc,
		cache:       store,
		addDelay:    opts.AddDelay,
		updateDelay: opts.UpdateDelay,
		staleness:   opts.Staleness,
		logger:      logger,
		onError:     opts.OnError,
		ops:         make(map[opKey]*op),
	}
}

// View returns the session's cart, serving the cached snapshot when fresh
// and refetching otherwise. While a commit is pending the cached view wins
// regardless of age.
func (e *Engine) View(ctx context.Context, session string) []model.CartItem {
	entry, err := e.cache.Get(ctx, session)
	if err == nil && (entry.Fresh(e.staleness) || e.hasPending(session)) {
		return entry.Items
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		e.logger.Warn("cart cache read failed, refetching",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
	}

	items := e.svc.Items(ctx, session)
	if err := e.cache.Set(ctx, session, items); err != nil {
		e.logger.Warn("cart cache write failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
	}
	return items
}

// Invalidate drops the session's snapshot so the next View refetches.
// Used after out-of-band cart changes such as a login merge.
func (e *Engine) Invalidate(ctx context.Context, session string) {
	if err := e.cache.Invalidate(ctx, session); err != nil {
		e.logger.Warn("cart cache invalidation failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
	}
}

// Add registers an add intent. The cached view gains the quantity at once;
// the upstream add fires after the debounce window, carrying the summed
// quantity of every Add for the product in the burst.
func (e *Engine) Add(ctx context.Context, session string, productID int64, quantity int) (*Pending, error) {
	if quantity <= 0 {
		return nil, model.NewValidationError("quantity", "must be positive")
	}
	key := opKey{session, fmt.Sprintf("add:%d", productID)}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	if existing, ok := e.ops[key]; ok {
		existing.timer.Stop()
		existing.quantity += quantity
		e.patchLocked(ctx, session, patchAdd(productID, quantity))
		e.armLocked(key, existing, e.addDelay)
		return existing.pending, nil
	}

	o := &op{
		kind:      opAdd,
		productID: productID,
		quantity:  quantity,
		pending:   &Pending{done: make(chan struct{})},
	}
	o.prior, o.hadEntry = e.priorLocked(ctx, session, func(items []model.CartItem) int {
		return model.FindItemByProduct(items, productID)
	})
	e.patchLocked(ctx, session, patchAdd(productID, quantity))
	e.ops[key] = o
	e.armLocked(key, o, e.addDelay)
	return o.pending, nil
}

// UpdateQuantity registers an absolute quantity for the item. Non-positive
// quantities turn into removals, both in the patched view and upstream.
func (e *Engine) UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (*Pending, error) {
	key := opKey{session, "item:" + itemID}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	if existing, ok := e.ops[key]; ok {
		existing.timer.Stop()
		existing.kind = opUpdate
		existing.quantity = quantity
		e.patchLocked(ctx, session, patchSet(itemID, quantity))
		e.armLocked(key, existing, e.updateDelay)
		return existing.pending, nil
	}

	o := &op{
		kind:     opUpdate,
		itemID:   itemID,
		quantity: quantity,
		pending:  &Pending{done: make(chan struct{})},
	}
	o.prior, o.hadEntry = e.priorLocked(ctx, session, func(items []model.CartItem) int {
		return model.FindItem(items, itemID)
	})
	e.patchLocked(ctx, session, patchSet(itemID, quantity))
	e.ops[key] = o
	e.armLocked(key, o, e.updateDelay)
	return o.pending, nil
}

// Remove registers a removal. A pending update on the same item collapses
// into the removal; the last intent wins.
func (e *Engine) Remove(ctx context.Context, session, itemID string) (*Pending, error) {
	key := opKey{session, "item:" + itemID}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	if existing, ok := e.ops[key]; ok {
		existing.timer.Stop()
		existing.kind = opRemove
		e.patchLocked(ctx, session, patchDrop(itemID))
		e.armLocked(key, existing, e.updateDelay)
		return existing.pending, nil
	}

	o := &op{
		kind:    opRemove,
		itemID:  itemID,
		pending: &Pending{done: make(chan struct{})},
	}
	o.prior, o.hadEntry = e.priorLocked(ctx, session, func(items []model.CartItem) int {
		return model.FindItem(items, itemID)
	})
	e.patchLocked(ctx, session, patchDrop(itemID))
	e.ops[key] = o
	e.armLocked(key, o, e.updateDelay)
	return o.pending, nil
}

// Close cancels every armed timer without firing its commit and resolves
// the pendings with ErrClosed. The patched views are left as-is; they age
// out of the cache on their own.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for key, o := range e.ops {
		o.timer.Stop()
		o.pending.resolve(ErrClosed)
		delete(e.ops, key)
	}
}

func (e *Engine) hasPending(session string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.ops {
		if key.session == session {
			return true
		}
	}
	return false
}

// priorLocked copies the affected item's current state so a failed commit
// can restore exactly what its burst patched.
func (e *Engine) priorLocked(ctx context.Context, session string, find func([]model.CartItem) int) (*model.CartItem, bool) {
	entry, err := e.cache.Get(ctx, session)
	if err != nil {
		return nil, false
	}
	if i := find(entry.Items); i >= 0 {
		item := entry.Items[i]
		return &item, true
	}
	return nil, true
}

type patchFn func(items []model.CartItem) []model.CartItem

// patchAdd bumps an existing line for the product or appends a synthesized
// placeholder the refresh will replace with the server's record.
func patchAdd(productID int64, quantity int) patchFn {
	return func(items []model.CartItem) []model.CartItem {
		if i := model.FindItemByProduct(items, productID); i >= 0 {
			items[i].Quantity += quantity
			return items
		}
		return append(items, model.CartItem{
			ID:       model.NewSyntheticID(model.ScopeOptimistic, productID),
			Product:  model.ProductStub(productID),
			Quantity: quantity,
		})
	}
}

func patchSet(itemID string, quantity int) patchFn {
	if quantity <= 0 {
		return patchDrop(itemID)
	}
	return func(items []model.CartItem) []model.CartItem {
		if i := model.FindItem(items, itemID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	}
}

func patchDrop(itemID string) patchFn {
	return func(items []model.CartItem) []model.CartItem {
		out := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				out = append(out, item)
			}
		}
		return out
	}
}

func (e *Engine) patchLocked(ctx context.Context, session string, patch patchFn) {
	entry, err := e.cache.Get(ctx, session)
	var items []model.CartItem
	if err == nil {
		items = entry.Items
	}
	items = patch(items)
	if err := e.cache.Set(ctx, session, items); err != nil {
		e.logger.Warn("optimistic patch write failed",
			slog.String("session", session),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) armLocked(key opKey, o *op, delay time.Duration) {
	o.timer = time.AfterFunc(delay, func() { e.commit(key) })
}

// commit fires when a debounce window closes. The request context that
// queued the intent is long gone, so commits run on a background context.
func (e *Engine) commit(key opKey) {
	e.mu.Lock()
	o, ok := e.ops[key]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}
	delete(e.ops, key)
	e.mu.Unlock()

	ctx := context.Background()
	session := key.session

	var err error
	switch o.kind {
	case opAdd:
		_, err = e.svc.Add(ctx, session, o.productID, o.quantity)
	case opUpdate:
		_, err = e.svc.UpdateQuantity(ctx, session, o.itemID, o.quantity)
	case opRemove:
		err = e.svc.Remove(ctx, session, o.itemID)
	}

	if err != nil {
		e.rollback(ctx, session, o, err)
		return
	}

	// Full re-read replaces every optimistic placeholder with server truth.
	items := e.svc.Items(ctx, session)
	if cerr := e.cache.Set(ctx, session, items); cerr != nil {
		e.logger.Warn("post-commit cache refresh failed",
			slog.String("session", session),
			slog.String("error", cerr.Error()),
		)
	}
	o.pending.resolve(nil)
}

// rollback undoes the failed burst's patch on its own item only. Patches on
// other keys and server truth committed meanwhile stay in place.
func (e *Engine) rollback(ctx context.Context, session string, o *op, cause error) {
	e.logger.Error("cart mutation failed, rolling back",
		slog.String("session", session),
		slog.String("error", cause.Error()),
	)

	if !o.hadEntry {
		// The burst started from a cold cache, so there is no known-good
		// state to restore. Drop the entry and let the next View refetch.
		if err := e.cache.Invalidate(ctx, session); err != nil {
			e.logger.Error("rollback invalidation failed",
				slog.String("session", session),
				slog.String("error", err.Error()),
			)
		}
	} else if entry, err := e.cache.Get(ctx, session); err == nil {
		if err := e.cache.Set(ctx, session, undo(o)(entry.Items)); err != nil {
			e.logger.Error("rollback write failed",
				slog.String("session", session),
				slog.String("error", err.Error()),
			)
		}
	}

	o.pending.resolve(cause)
	if e.onError != nil {
		e.onError(session, cause)
	}
}

// undo inverts a burst's patch: the item returns to its pre-burst quantity,
// reappears if the burst dropped it, or disappears if the burst synthesized
// it.
func undo(o *op) patchFn {
	return func(items []model.CartItem) []model.CartItem {
		switch o.kind {
		case opAdd:
			i := model.FindItemByProduct(items, o.productID)
			if i < 0 {
				return items
			}
			if o.prior == nil {
				return append(items[:i], items[i+1:]...)
			}
			items[i].Quantity = o.prior.Quantity
			return items
		default:
			if o.prior == nil {
				return items
			}
			if i := model.FindItem(items, o.itemID); i >= 0 {
				items[i].Quantity = o.prior.Quantity
				return items
			}
			return append(items, *o.prior)
		}
	}
}
