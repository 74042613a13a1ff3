package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"neembleeat/internal/cache"
	"neembleeat/internal/cart"
	"neembleeat/internal/logging"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
	"neembleeat/internal/storage"
)

type mockCreator struct{ mock.Mock }

func (m *mockCreator) CreateOrders(ctx context.Context, key string, orders []models.NewOrder) ([]models.Order, error) {
	args := m.Called(ctx, key, orders)
	out, _ := args.Get(0).([]models.Order)
	return out, args.Error(1)
}

var openSession = &models.TableSession{ID: "s1", TableNumber: 4, Status: models.SessionStatusActive}

func newCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.Load(storage.NewMemoryStore(), cart.Key{RestaurantSlug: "casa-lola", SessionID: "s1", MenuID: "m1"},
		cart.WithLogger(logging.Discard()))
	c.Add(models.CartItem{ID: "burger", Price: decimal.NewFromInt(900), Quantity: 2, AdditionalNotes: "no onions"})
	c.Add(models.CartItem{ID: "fries", Price: decimal.NewFromInt(300), Quantity: 1})
	return c
}

func TestSubmitClearsCartAndInvalidatesOrders(t *testing.T) {
	qc := cache.New(cache.WithLogger(logging.Discard()))
	cache.SetQueryData(qc, cache.SessionOrders("s1"), func([]models.Order, bool) []models.Order { return nil })

	creator := new(mockCreator)
	creator.On("CreateOrders", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(o []models.NewOrder) bool {
		return len(o) == 2 && o[0].ItemID == "burger" && o[0].Quantity == 2 &&
			o[0].AdditionalNote == "no onions" && o[0].MenuID == "m1" && o[0].TableNumber == 4 && o[0].CustomerName == "Ana"
	})).Return([]models.Order{{ID: "o1"}, {ID: "o2"}}, nil).Once()

	rec := &notify.Recorder{}
	svc := NewService(creator, qc, rec, logging.Discard())
	c := newCart(t)

	created, err := svc.Submit(context.Background(), c, openSession, "Ana")
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Zero(t, c.Len())
	creator.AssertExpectations(t)

	_, ok := rec.Last(notify.KindSuccess)
	assert.True(t, ok)

	var calls int
	_, err = cache.Query(context.Background(), qc, cache.SessionOrders("s1"), func(context.Context) ([]models.Order, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "orders refetched after submit")
}

func TestSubmitKeepsLinesAddedDuringRequest(t *testing.T) {
	c := newCart(t)
	creator := new(mockCreator)
	creator.On("CreateOrders", mock.Anything, mock.Anything, mock.MatchedBy(func(o []models.NewOrder) bool {
		return len(o) == 2
	})).Run(func(mock.Arguments) {
		c.Add(models.CartItem{ID: "cola", Price: decimal.NewFromInt(250), Quantity: 1})
		c.Add(models.CartItem{ID: "fries", Price: decimal.NewFromInt(300), Quantity: 1})
	}).Return([]models.Order{{ID: "o1"}, {ID: "o2"}}, nil).Once()

	svc := NewService(creator, cache.New(), nil, logging.Discard())
	_, err := svc.Submit(context.Background(), c, openSession, "")
	require.NoError(t, err)
	creator.AssertExpectations(t)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "fries", items[0].ID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "cola", items[1].ID)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestSubmitFailureKeepsCart(t *testing.T) {
	creator := new(mockCreator)
	creator.On("CreateOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	rec := &notify.Recorder{}
	svc := NewService(creator, cache.New(), rec, logging.Discard())
	c := newCart(t)

	_, err := svc.Submit(context.Background(), c, openSession, "")
	require.Error(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.NumberOfItems())

	last, ok := rec.Last(notify.KindError)
	require.True(t, ok)
	assert.Equal(t, "Your order could not be sent. Please try again.", last.Message)
}

func TestSubmitUsesFreshKeyPerAttempt(t *testing.T) {
	var keys []string
	creator := new(mockCreator)
	creator.On("CreateOrders", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.String(1)) }).
		Return(nil, errors.New("timeout"))

	svc := NewService(creator, cache.New(), nil, logging.Discard())
	c := newCart(t)
	_, _ = svc.Submit(context.Background(), c, openSession, "")
	_, _ = svc.Submit(context.Background(), c, openSession, "")

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
}

func TestSubmitRejects(t *testing.T) {
	creator := new(mockCreator)
	svc := NewService(creator, cache.New(), nil, logging.Discard())

	empty := cart.Load(storage.NewMemoryStore(), cart.Key{}, cart.WithLogger(logging.Discard()))
	_, err := svc.Submit(context.Background(), empty, openSession, "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	closed := &models.TableSession{ID: "s1", Status: models.SessionStatusClosed}
	_, err = svc.Submit(context.Background(), newCart(t), closed, "")
	assert.ErrorIs(t, err, ErrSessionEnded)

	_, err = svc.Submit(context.Background(), newCart(t), nil, "")
	assert.ErrorIs(t, err, ErrSessionEnded)

	creator.AssertNotCalled(t, "CreateOrders", mock.Anything, mock.Anything, mock.Anything)
}
