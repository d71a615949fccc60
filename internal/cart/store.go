package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/storage"
)

// Store owns the cart. Mutations are serialised; each committed change is
// written to storage as the whole list under storage.KeyCart. A failed write
// is logged and the in-memory list stays authoritative.
type Store struct {
	mu      sync.Mutex
	items   []models.LineItem
	storage storage.Storage
	log     zerolog.Logger
	strict  bool

	subMu   sync.Mutex
	subs    map[int]func([]models.LineItem)
	nextSub int
}

type Option func(*Store)

// WithStrict makes UpdateQuantity fail with ErrNotFound for unknown products.
func WithStrict(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

func NewStore(st storage.Storage, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		items:   []models.LineItem{},
		storage: st,
		log:     log.With().Str("component", "cart").Logger(),
		subs:    make(map[int]func([]models.LineItem)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted cart. Unparsable data is discarded and the
// cart starts empty. Only storage read failures are returned.
func (s *Store) Restore(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, storage.KeyCart)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read cart: %w", err)
	}

	var items []models.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable cart")
		if err := s.storage.Delete(ctx, storage.KeyCart); err != nil {
			s.log.Error().Err(err).Msg("clear unreadable cart failed")
		}
		return nil
	}

	_, err = s.dispatch(ctx, Load{Items: items})
	return err
}

func (s *Store) Add(ctx context.Context, product models.Product, quantity int) error {
	_, err := s.dispatch(ctx, AddItem{Product: product, Quantity: quantity})
	return err
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	_, err := s.dispatch(ctx, RemoveItem{ProductID: productID})
	return err
}

func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	_, err := s.dispatch(ctx, UpdateQuantity{ProductID: productID, Quantity: quantity, Strict: s.strict})
	return err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.dispatch(ctx, Clear{})
	return err
}

// Items returns a copy of the current line items in insertion order.
func (s *Store) Items() []models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

func (s *Store) TotalItemCount() int {
	return TotalItemCount(s.Items())
}

func (s *Store) Subtotal() decimal.Decimal {
	return Subtotal(s.Items())
}

// Subscribe registers fn to receive the item list after every committed
// change. The returned func removes the subscription.
func (s *Store) Subscribe(fn func([]models.LineItem)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) dispatch(ctx context.Context, action Action) ([]models.LineItem, error) {
	s.mu.Lock()
	next, err := Reduce(s.items, action)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.items = next
	s.persist(ctx, next)
	snapshot := clone(next)
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context, items []models.LineItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		s.log.Error().Err(err).Msg("encode cart failed")
		return
	}
	if err := s.storage.Set(ctx, storage.KeyCart, raw); err != nil {
		s.log.Error().Err(err).Int("items", len(items)).Msg("persist cart failed")
	}
}

func (s *Store) notify(items []models.LineItem) {
	s.subMu.Lock()
	fns := make([]func([]models.LineItem), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(clone(items))
	}
}
