// Package checkout holds in-progress checkout state per session. The state
// lives only in memory: a restart drops every half-finished checkout, which
// matches how little of it is worth persisting before an order exists.
package checkout

import (
	"sync"
	"time"

	"cart-proxy/internal/model"
)

// DefaultIdleTTL is how long an untouched checkout survives before the
// janitor reclaims it.
const DefaultIdleTTL = 30 * time.Minute

// Store keeps one CheckoutState per session.
type Store struct {
	mu     sync.Mutex
	states map[string]*model.CheckoutState
	ttl    time.Duration
	done   chan struct{}
	once   sync.Once
}

// NewStore returns a Store whose janitor reclaims sessions idle longer than
// ttl. A non-positive ttl uses DefaultIdleTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	s := &Store{
		states: make(map[string]*model.CheckoutState),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Close stops the janitor.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for session, st := range s.states {
		if now.Sub(st.UpdatedAt) > s.ttl {
			delete(s.states, session)
		}
	}
}

// get returns the session's state, creating it on first touch.
// Caller holds s.mu.
func (s *Store) get(session string) *model.CheckoutState {
	st, ok := s.states[session]
	if !ok {
		st = &model.CheckoutState{}
		s.states[session] = st
	}
	st.UpdatedAt = time.Now()
	return st
}

// SetForm records the shipping form. Fields arrive as typed; merging across
// steps is the caller's concern.
func (s *Store) SetForm(session string, form model.CheckoutForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(session).Form = form
}

// SetDelivery records the chosen delivery option.
func (s *Store) SetDelivery(session string, opt model.DeliveryOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(session).Delivery = &opt
}

// SetCard records the card form fields.
func (s *Store) SetCard(session string, card model.PaymentCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(session).Card = &card
}

// State returns a copy of the session's progress. An untouched session gets
// a zero state without creating one.
func (s *Store) State(session string) model.CheckoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[session]
	if !ok {
		return model.CheckoutState{}
	}
	out := *st
	if st.Delivery != nil {
		d := *st.Delivery
		out.Delivery = &d
	}
	if st.Card != nil {
		c := *st.Card
		out.Card = &c
	}
	return out
}

// Summary assembles the order-review view from the session's progress and
// the current cart. Delivery cost only counts once an option is chosen.
func (s *Store) Summary(session string, items []model.CartItem) *model.Summary {
	st := s.State(session)

	subtotal := model.Subtotal(items)
	total := subtotal
	if st.Delivery != nil {
		total += st.Delivery.Price
	}

	return &model.Summary{
		Items:    items,
		Form:     st.Form,
		Delivery: st.Delivery,
		Subtotal: subtotal,
		Total:    total,
	}
}

// Reset discards the session's progress, for checkout completion or abandon.
func (s *Store) Reset(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, session)
}
