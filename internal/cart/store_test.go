package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"storefront-cart/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockPersister is a mock implementation of the Persister interface
type MockPersister struct {
	mock.Mock
}

func (m *MockPersister) Load(ctx context.Context, sessionID string) ([]byte, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPersister) Save(ctx context.Context, sessionID string, record []byte) error {
	args := m.Called(ctx, sessionID, record)
	return args.Error(0)
}

func (m *MockPersister) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("line-%d", n)
	}
}

func newTestStore(p Persister) *Store {
	return NewStore("sess-1", p, DefaultPricing(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual)
}

func productInput(ref string, price string, qty int, color *Color) AddInput {
	return AddInput{
		Kind:            KindProduct,
		ReferenceID:     ref,
		Name:            "Lounge Chair " + ref,
		DesignerOrBrand: "Studio Nord",
		UnitPrice:       dec(price),
		ImageURL:        "https://cdn.example.com/" + ref + ".jpg",
		Quantity:        qty,
		SelectedColor:   color,
	}
}

var (
	red  = &Color{Name: "Red", Hex: "#FF0000"}
	blue = &Color{Name: "Blue", Hex: "#0000FF"}
)

func TestStore_AddToCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Single product", func(t *testing.T) {
		s := newTestStore(NewMemoryPersister())

		c, err := s.AddToCart(ctx, productInput("P1", "300", 2, nil))
		require.NoError(t, err)

		require.Len(t, c.Items, 1)
		assert.Equal(t, "line-1", c.Items[0].ID)
		assert.Equal(t, fixedNow, c.Items[0].AddedAt)
		assert.Equal(t, 2, c.ItemCount)
		assertDec(t, "600", c.Subtotal)
		assertDec(t, "0", c.Shipping)
		assertDec(t, "600", c.Total)
	})

	t.Run("Quantity defaults to one", func(t *testing.T) {
		s := newTestStore(nil)

		c, err := s.AddToCart(ctx, productInput("P1", "10", 0, nil))
		require.NoError(t, err)
		assert.Equal(t, 1, c.Items[0].Quantity)
	})

	t.Run("Merge same variant", func(t *testing.T) {
		s := newTestStore(nil)

		_, err := s.AddToCart(ctx, productInput("P1", "100", 1, red))
		require.NoError(t, err)
		c, err := s.AddToCart(ctx, productInput("P1", "100", 3, &Color{Name: "Red", Hex: "#ff0000"}))
		require.NoError(t, err)

		require.Len(t, c.Items, 1)
		assert.Equal(t, 4, c.Items[0].Quantity)
		assert.Equal(t, "line-1", c.Items[0].ID)

		c, err = s.AddToCart(ctx, productInput("P1", "100", 1, blue))
		require.NoError(t, err)
		require.Len(t, c.Items, 2)
		assert.Equal(t, "Blue", c.Items[1].SelectedColor.Name)
	})

	t.Run("Merge keeps first snapshot", func(t *testing.T) {
		s := newTestStore(nil)

		_, err := s.AddToCart(ctx, productInput("P1", "100", 1, nil))
		require.NoError(t, err)
		later := productInput("P1", "80", 1, nil)
		later.Name = "Renamed"
		c, err := s.AddToCart(ctx, later)
		require.NoError(t, err)

		require.Len(t, c.Items, 1)
		assertDec(t, "100", c.Items[0].UnitPrice)
		assert.Equal(t, "Lounge Chair P1", c.Items[0].Name)
	})

	t.Run("Color and no color are distinct lines", func(t *testing.T) {
		s := newTestStore(nil)

		_, _ = s.AddToCart(ctx, productInput("P1", "100", 1, nil))
		c, err := s.AddToCart(ctx, productInput("P1", "100", 1, red))
		require.NoError(t, err)
		assert.Len(t, c.Items, 2)
	})

	t.Run("Kind is part of the merge key", func(t *testing.T) {
		s := newTestStore(nil)

		_, _ = s.AddToCart(ctx, productInput("X1", "100", 1, nil))
		bundle := productInput("X1", "100", 1, nil)
		bundle.Kind = KindRoomStyleBundle
		c, err := s.AddToCart(ctx, bundle)
		require.NoError(t, err)
		assert.Len(t, c.Items, 2)
	})

	t.Run("Accumulates over many adds", func(t *testing.T) {
		s := newTestStore(nil)
		want := 0
		for q := 1; q <= 6; q++ {
			_, err := s.AddToCart(ctx, productInput("P9", "5", q, red))
			require.NoError(t, err)
			want += q
		}
		c := s.Snapshot()
		require.Len(t, c.Items, 1)
		assert.Equal(t, want, c.Items[0].Quantity)
	})

	t.Run("Preserves insertion order on update", func(t *testing.T) {
		s := newTestStore(nil)
		_, _ = s.AddToCart(ctx, productInput("A", "1", 1, nil))
		_, _ = s.AddToCart(ctx, productInput("B", "1", 1, nil))
		c, _ := s.AddToCart(ctx, productInput("A", "1", 1, nil))

		assert.Equal(t, "A", c.Items[0].ReferenceID)
		assert.Equal(t, "B", c.Items[1].ReferenceID)
	})
}

func TestStore_AddToCart_InvalidInput(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		input AddInput
	}{
		{"Negative price", productInput("P1", "-1", 1, nil)},
		{"Negative quantity", productInput("P1", "10", -2, nil)},
		{"Missing reference", productInput("", "10", 1, nil)},
		{"Unknown kind", func() AddInput {
			in := productInput("P1", "10", 1, nil)
			in.Kind = "gift-card"
			return in
		}()},
		{"Negative original price", func() AddInput {
			in := productInput("P1", "10", 1, nil)
			in.OriginalUnitPrice = decPtr("-5")
			return in
		}()},
		{"Color without hex", productInput("P1", "10", 1, &Color{Name: "Red"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockPersister)
			s := newTestStore(p)

			c, err := s.AddToCart(ctx, tt.input)

			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, c.Items)
			p.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("Zero price is allowed", func(t *testing.T) {
		s := newTestStore(nil)
		_, err := s.AddToCart(ctx, productInput("FREE", "0", 1, nil))
		assert.NoError(t, err)
	})
}

func TestStore_RemoveFromCart(t *testing.T) {
	ctx := context.Background()

	t.Run("Removes line", func(t *testing.T) {
		s := newTestStore(nil)
		_, _ = s.AddToCart(ctx, productInput("A", "10", 1, nil))
		_, _ = s.AddToCart(ctx, productInput("B", "20", 1, nil))

		c := s.RemoveFromCart(ctx, "line-1")

		require.Len(t, c.Items, 1)
		assert.Equal(t, "B", c.Items[0].ReferenceID)
		assertDec(t, "20", c.Subtotal)
	})

	t.Run("Unknown id is a no-op", func(t *testing.T) {
		p := new(MockPersister)
		p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(nil).Once()
		s := newTestStore(p)
		before, _ := s.AddToCart(ctx, productInput("A", "10", 2, nil))

		after := s.RemoveFromCart(ctx, "missing")
		again := s.RemoveFromCart(ctx, "missing")

		assert.Equal(t, before, after)
		assert.Equal(t, before, again)
		p.AssertExpectations(t)
	})
}

func TestStore_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("Sets quantity", func(t *testing.T) {
		s := newTestStore(nil)
		_, _ = s.AddToCart(ctx, productInput("A", "10", 1, nil))

		c, err := s.UpdateQuantity(ctx, "line-1", 7)
		require.NoError(t, err)

		assert.Equal(t, 7, c.Items[0].Quantity)
		assert.Equal(t, 7, c.ItemCount)
		assertDec(t, "70", c.Subtotal)
	})

	t.Run("Zero is equivalent to remove", func(t *testing.T) {
		a := newTestStore(nil)
		b := newTestStore(nil)
		for _, s := range []*Store{a, b} {
			_, _ = s.AddToCart(ctx, productInput("A", "10", 1, nil))
			_, _ = s.AddToCart(ctx, productInput("B", "15", 2, nil))
		}

		updated, err := b.UpdateQuantity(ctx, "line-1", 0)
		require.NoError(t, err)
		assert.Equal(t, a.RemoveFromCart(ctx, "line-1"), updated)
	})

	t.Run("Negative removes", func(t *testing.T) {
		s := newTestStore(nil)
		_, _ = s.AddToCart(ctx, productInput("A", "10", 1, nil))

		c, err := s.UpdateQuantity(ctx, "line-1", -3)
		require.NoError(t, err)
		assert.Empty(t, c.Items)
	})

	t.Run("Unknown id is a no-op", func(t *testing.T) {
		s := newTestStore(nil)
		before, _ := s.AddToCart(ctx, productInput("A", "10", 1, nil))

		after, err := s.UpdateQuantity(ctx, "missing", 4)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("Above the line cap is rejected", func(t *testing.T) {
		p := new(MockPersister)
		p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(nil).Once()

		s := newTestStore(p)
		before, _ := s.AddToCart(ctx, productInput("A", "10", 2, nil))

		after, err := s.UpdateQuantity(ctx, "line-1", MaxLineQuantity+1)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, before, after)
		assert.Equal(t, before, s.Snapshot())
		p.AssertExpectations(t)
	})
}

func TestStore_AddToCart_QuantityCap(t *testing.T) {
	ctx := context.Background()

	t.Run("Input above the cap", func(t *testing.T) {
		s := newTestStore(nil)

		c, err := s.AddToCart(ctx, productInput("P1", "10", math.MaxInt, nil))
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Empty(t, c.Items)
	})

	t.Run("Merge past the cap leaves the cart unchanged", func(t *testing.T) {
		p := new(MockPersister)
		p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(nil).Once()

		s := newTestStore(p)
		before, err := s.AddToCart(ctx, productInput("P1", "10", MaxLineQuantity, nil))
		require.NoError(t, err)

		after, err := s.AddToCart(ctx, productInput("P1", "10", 1, nil))
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, before, after)

		require.Len(t, after.Items, 1)
		assert.Equal(t, MaxLineQuantity, after.Items[0].Quantity)
		assert.Equal(t, MaxLineQuantity, after.ItemCount)
		assertDec(t, "99990", after.Total)
		p.AssertExpectations(t)
	})

	t.Run("Merge up to the cap", func(t *testing.T) {
		s := newTestStore(nil)
		_, _ = s.AddToCart(ctx, productInput("P1", "10", MaxLineQuantity-1, nil))

		c, err := s.AddToCart(ctx, productInput("P1", "10", 1, nil))
		require.NoError(t, err)
		assert.Equal(t, MaxLineQuantity, c.Items[0].Quantity)
	})
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	p := new(MockPersister)
	p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(nil)
	p.On("Delete", mock.Anything, "sess-1").Return(nil).Once()

	s := newTestStore(p)
	_, _ = s.AddToCart(ctx, productInput("A", "900", 1, nil))

	c := s.Clear(ctx)

	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.ItemCount)
	assertDec(t, "50", c.Total)
	p.AssertExpectations(t)
}

func TestStore_Snapshot_IsACopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(nil)
	_, _ = s.AddToCart(ctx, productInput("A", "10", 1, red))

	c := s.Snapshot()
	c.Items[0].Quantity = 99
	c.Items[0].SelectedColor.Name = "Mutated"

	fresh := s.Snapshot()
	assert.Equal(t, 1, fresh.Items[0].Quantity)
	assert.Equal(t, "Red", fresh.Items[0].SelectedColor.Name)
}

func TestStore_PersistenceFailureIsNotFatal(t *testing.T) {
	core, observed := observer.New(zapcore.ErrorLevel)
	original := logger.L()
	logger.Replace(zap.New(core))
	defer logger.Replace(original)

	ctx := context.Background()
	p := new(MockPersister)
	p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(errors.New("disk full"))

	s := newTestStore(p)
	c, err := s.AddToCart(ctx, productInput("A", "10", 2, nil))

	require.NoError(t, err)
	assert.Equal(t, 2, c.ItemCount)
	assert.Equal(t, 2, s.Snapshot().ItemCount)
	assert.NotEmpty(t, observed.FilterMessage("failed to persist cart, keeping in-memory state").All())
}

func TestStore_AddToCart_LogsDefaultedQuantity(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	original := logger.L()
	logger.Replace(zap.New(core))
	defer logger.Replace(original)

	s := newTestStore(nil)
	_, err := s.AddToCart(context.Background(), productInput("A", "10", 0, nil))
	require.NoError(t, err)

	entries := observed.FilterMessage("appended new line").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["quantity"])
}

func TestStore_WritesThroughEveryMutation(t *testing.T) {
	ctx := context.Background()
	p := new(MockPersister)
	p.On("Save", mock.Anything, "sess-1", mock.Anything).Return(nil).Times(3)

	s := newTestStore(p)
	_, _ = s.AddToCart(ctx, productInput("A", "10", 1, nil))
	s.UpdateQuantity(ctx, "line-1", 3)
	s.RemoveFromCart(ctx, "line-1")

	p.AssertExpectations(t)
}

func TestStore_WriteSurvivesCanceledRequest(t *testing.T) {
	p := NewMemoryPersister()
	s := newTestStore(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AddToCart(ctx, productInput("A", "10", 1, nil))
	require.NoError(t, err)

	_, loadErr := p.Load(context.Background(), "sess-1")
	assert.NoError(t, loadErr)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		p := NewMemoryPersister()
		s := newTestStore(p)
		_, _ = s.AddToCart(ctx, productInput("A", "120.50", 2, red))
		bundle := AddInput{
			Kind:              KindDesignerCollectionBundle,
			ReferenceID:       "DC-7",
			Name:              "Nordic Calm",
			DesignerOrBrand:   "Ines Berg",
			UnitPrice:         dec("4000"),
			OriginalUnitPrice: decPtr("4800"),
			PackageDiscount:   true,
			ImageURL:          "https://cdn.example.com/dc7.jpg",
			Quantity:          1,
		}
		_, _ = s.AddToCart(ctx, bundle)
		_, _ = s.AddToCart(ctx, productInput("B", "9.99", 5, nil))
		want := s.Snapshot()

		reloaded := Open(ctx, "sess-1", p, DefaultPricing()).Snapshot()

		assertSameItems(t, want.Items, reloaded.Items)
		assert.Equal(t, want.ItemCount, reloaded.ItemCount)
		assertDec(t, want.Subtotal.String(), reloaded.Subtotal)
		assertDec(t, want.Shipping.String(), reloaded.Shipping)
		assertDec(t, want.Discount.String(), reloaded.Discount)
		assertDec(t, want.Total.String(), reloaded.Total)
	})

	t.Run("Missing record starts empty", func(t *testing.T) {
		c := Open(ctx, "fresh", NewMemoryPersister(), DefaultPricing()).Snapshot()
		assert.Empty(t, c.Items)
		assertDec(t, "50", c.Total)
	})

	t.Run("Load failure starts empty", func(t *testing.T) {
		p := new(MockPersister)
		p.On("Load", mock.Anything, "sess-x").Return(nil, errors.New("connection refused"))

		c := Open(ctx, "sess-x", p, DefaultPricing()).Snapshot()
		assert.Empty(t, c.Items)
	})

	t.Run("Corrupt record starts empty", func(t *testing.T) {
		p := NewMemoryPersister()
		require.NoError(t, p.Save(ctx, "sess-y", []byte("not json")))

		c := Open(ctx, "sess-y", p, DefaultPricing()).Snapshot()
		assert.Empty(t, c.Items)
	})

	t.Run("Malformed lines are dropped", func(t *testing.T) {
		p := NewMemoryPersister()
		require.NoError(t, p.Save(ctx, "sess-z", []byte(`{"items":[
			{"id":"ok","kind":"product","referenceId":"P1","unitPrice":"10","quantity":2,"addedAt":"2026-10-01T10:00:00Z"},
			{"id":"bad","kind":"product","referenceId":"P2","unitPrice":"10","addedAt":"2026-10-01T10:00:00Z"}
		]}`)))

		c := Open(ctx, "sess-z", p, DefaultPricing()).Snapshot()
		require.Len(t, c.Items, 1)
		assert.Equal(t, "ok", c.Items[0].ID)
		assertDec(t, "20", c.Subtotal)
	})
}

func assertSameItems(t *testing.T, want, got []LineItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Kind, g.Kind)
		assert.Equal(t, w.ReferenceID, g.ReferenceID)
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.DesignerOrBrand, g.DesignerOrBrand)
		assert.True(t, w.UnitPrice.Equal(g.UnitPrice), "unit price of %s", w.ID)
		if w.OriginalUnitPrice == nil {
			assert.Nil(t, g.OriginalUnitPrice)
		} else {
			require.NotNil(t, g.OriginalUnitPrice)
			assert.True(t, w.OriginalUnitPrice.Equal(*g.OriginalUnitPrice))
		}
		assert.Equal(t, w.PackageDiscount, g.PackageDiscount)
		assert.Equal(t, w.ImageURL, g.ImageURL)
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.Equal(t, w.SelectedColor, g.SelectedColor)
		assert.True(t, w.AddedAt.Equal(g.AddedAt))
	}
}
