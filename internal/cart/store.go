package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/logger"
	"storefront-cart/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	opAdd    = "add"
	opRemove = "remove"
	opUpdate = "update_quantity"
	opClear  = "clear"
	opLoad   = "load"

	defaultPersistTimeout = 2 * time.Second
)

// Store owns the items of one shopping session. Mutations are serialized,
// recompute totals once, and write the record through to the Persister.
// A failed write is logged and the in-memory cart stays authoritative.
type Store struct {
	mu        sync.Mutex
	sessionID string
	items     []LineItem
	totals    Totals

	pricing        Pricing
	persister      Persister
	metrics        *metrics.Metrics
	now            func() time.Time
	newID          func() string
	persistTimeout time.Duration
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) { s.persistTimeout = d }
}

// NewStore returns an empty cart for sessionID without reading storage.
func NewStore(sessionID string, persister Persister, pricing Pricing, opts ...Option) *Store {
	s := &Store{
		sessionID:      sessionID,
		items:          []LineItem{},
		pricing:        pricing,
		persister:      persister,
		now:            time.Now,
		newID:          func() string { return uuid.New().String() },
		persistTimeout: defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.totals = ComputeTotals(s.items, s.pricing)
	return s
}

// Open starts a session: the stored record is reloaded when present, and an
// unreadable or missing record yields an empty cart.
func Open(ctx context.Context, sessionID string, persister Persister, pricing Pricing, opts ...Option) *Store {
	s := NewStore(sessionID, persister, pricing, opts...)
	log := s.log(ctx, "Open")

	if persister == nil {
		return s
	}

	loadCtx, cancel := s.persistContext(ctx)
	defer cancel()

	data, err := persister.Load(loadCtx, sessionID)
	if errors.Is(err, ErrNoRecord) {
		log.Debug("no stored cart, starting empty")
		return s
	}
	if err != nil {
		s.metrics.IncPersistFailure(opLoad)
		log.Error("failed to load stored cart, starting empty", zap.Error(err))
		return s
	}

	items, dropped, err := decodeRecord(data)
	if err != nil {
		s.metrics.IncPersistFailure(opLoad)
		log.Error("stored cart unreadable, starting empty", zap.Error(err))
		return s
	}
	if dropped > 0 {
		log.Warn("dropped malformed stored lines", zap.Int("dropped", dropped))
	}

	s.items = items
	s.totals = ComputeTotals(s.items, s.pricing)

	log.Info("stored cart loaded",
		zap.Int("lines", len(s.items)),
		zap.Int("item_count", s.totals.ItemCount),
	)
	return s
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// AddToCart merges in into the line with the same kind, reference and color,
// or appends a new line. Invalid input leaves the cart unchanged.
func (s *Store) AddToCart(ctx context.Context, in AddInput) (Cart, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}

	log := s.log(ctx, "AddToCart").With(
		zap.String("kind", string(in.Kind)),
		zap.String("reference_id", in.ReferenceID),
		zap.Int("quantity", in.Quantity),
	)
	if err := ValidateAddInput(in); err != nil {
		log.Warn("add to cart rejected", zap.Error(err))
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.items, in.Kind, in.ReferenceID, in.SelectedColor); i >= 0 {
		if s.items[i].Quantity > MaxLineQuantity-in.Quantity {
			err := fmt.Errorf("%w: quantity would exceed %d on line %s", ErrInvalidInput, MaxLineQuantity, s.items[i].ID)
			log.Warn("add to cart rejected", zap.Error(err))
			return s.snapshotLocked(), err
		}
		s.items[i].Quantity += in.Quantity
		log.Info("merged into existing line",
			zap.String("line_id", s.items[i].ID),
			zap.Int("final_qty", s.items[i].Quantity),
		)
	} else {
		item := LineItem{
			ID:              s.newID(),
			Kind:            in.Kind,
			ReferenceID:     in.ReferenceID,
			Name:            in.Name,
			DesignerOrBrand: in.DesignerOrBrand,
			UnitPrice:       in.UnitPrice,
			PackageDiscount: in.PackageDiscount,
			ImageURL:        in.ImageURL,
			Quantity:        in.Quantity,
			AddedAt:         s.now().UTC().Round(0),
		}
		if in.OriginalUnitPrice != nil {
			p := *in.OriginalUnitPrice
			item.OriginalUnitPrice = &p
		}
		if in.SelectedColor != nil {
			c := *in.SelectedColor
			item.SelectedColor = &c
		}
		s.items = append(s.items, item)
		log.Info("appended new line", zap.String("line_id", item.ID))
	}

	s.commit(ctx, opAdd)
	return s.snapshotLocked(), nil
}

// RemoveFromCart deletes the line with id. Unknown ids are a no-op.
func (s *Store) RemoveFromCart(ctx context.Context, id string) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(id) {
		s.log(ctx, "RemoveFromCart").Debug("line not in cart", zap.String("line_id", id))
		return s.snapshotLocked()
	}

	s.commit(ctx, opRemove)
	return s.snapshotLocked()
}

// UpdateQuantity sets the quantity of line id; quantity <= 0 removes the line.
// Unknown ids are a no-op. A quantity above MaxLineQuantity is rejected with
// ErrInvalidInput and leaves the cart unchanged.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, id), nil
	}
	if quantity > MaxLineQuantity {
		err := fmt.Errorf("%w: quantity must be at most %d", ErrInvalidInput, MaxLineQuantity)
		s.log(ctx, "UpdateQuantity").Warn("update rejected", zap.String("line_id", id), zap.Error(err))
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = quantity
			s.commit(ctx, opUpdate)
			return s.snapshotLocked(), nil
		}
	}

	s.log(ctx, "UpdateQuantity").Debug("line not in cart", zap.String("line_id", id))
	return s.snapshotLocked(), nil
}

// Clear empties the cart and drops its durable record.
func (s *Store) Clear(ctx context.Context) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = []LineItem{}
	s.totals = ComputeTotals(s.items, s.pricing)
	s.metrics.IncMutation(opClear)

	if s.persister != nil {
		persistCtx, cancel := s.persistContext(ctx)
		defer cancel()
		if err := s.persister.Delete(persistCtx, s.sessionID); err != nil {
			s.metrics.IncPersistFailure(opClear)
			s.log(ctx, "Clear").Error("failed to delete stored cart", zap.Error(err))
		}
	}

	return s.snapshotLocked()
}

// Snapshot returns a copy of the items with the totals cached at the last mutation.
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Cart {
	items := make([]LineItem, len(s.items))
	for i, it := range s.items {
		items[i] = it.clone()
	}
	return Cart{
		SessionID: s.sessionID,
		Items:     items,
		Totals:    s.totals,
	}
}

func (s *Store) removeLocked(id string) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// commit recomputes totals and writes the record through. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string) {
	s.totals = ComputeTotals(s.items, s.pricing)
	s.metrics.IncMutation(op)

	if s.persister == nil {
		return
	}

	log := s.log(ctx, "persist").With(zap.String("op", op))

	data, err := encodeRecord(s.items)
	if err != nil {
		s.metrics.IncPersistFailure(op)
		log.Error("failed to encode cart", zap.Error(err))
		return
	}

	persistCtx, cancel := s.persistContext(ctx)
	defer cancel()

	if err := s.persister.Save(persistCtx, s.sessionID, data); err != nil {
		s.metrics.IncPersistFailure(op)
		log.Error("failed to persist cart, keeping in-memory state", zap.Error(err))
	}
}

// persistContext detaches storage calls from the caller's cancellation so a
// dropped request does not abort the write-through.
func (s *Store) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
}

func (s *Store) log(ctx context.Context, method string) *zap.Logger {
	return logger.FromCtx(logger.WithSessionID(ctx, s.sessionID)).With(
		zap.String("layer", "store"),
		zap.String("method", method),
	)
}
