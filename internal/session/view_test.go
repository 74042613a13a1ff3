package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neembleeat/internal/api"
	"neembleeat/internal/cache"
	"neembleeat/internal/cart"
	"neembleeat/internal/logging"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
	"neembleeat/internal/storage"
)

type fakeBackend struct {
	mu          sync.Mutex
	session     *models.TableSession
	orders      []models.Order
	markErr     error
	statusAfter models.SessionStatus
	markCalls   int
	marked      bool
	ordersErr   error
	orderCalls  int
}

func (f *fakeBackend) GetRestaurantBySlug(_ context.Context, slug string) (*models.Restaurant, error) {
	return &models.Restaurant{ID: "r1", Slug: slug, Name: "Casa Lola"}, nil
}

func (f *fakeBackend) GetActiveSession(context.Context, string, int) (*models.TableSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *fakeBackend) ListSessionOrders(context.Context, string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls++
	if f.marked && f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return append([]models.Order(nil), f.orders...), nil
}

func (f *fakeBackend) MarkNeedsBill(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	f.marked = true
	if f.markErr != nil {
		return f.markErr
	}
	if f.statusAfter != "" {
		f.session.Status = f.statusAfter
	}
	return nil
}

func (f *fakeBackend) GetSession(_ context.Context, sessionID string) (*models.TableSession, error) {
	total := decimal.NewFromInt(500)
	return &models.TableSession{ID: sessionID, RestaurantID: "r1", TableNumber: 4, Status: models.SessionStatusClosed, Total: &total}, nil
}

func (f *fakeBackend) setSession(s *models.TableSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
}

func activeBackend() *fakeBackend {
	return &fakeBackend{
		session: &models.TableSession{ID: "s1", RestaurantID: "r1", TableNumber: 4, Status: models.SessionStatusActive},
		orders: []models.Order{
			{ID: "o1", SessionID: "s1", Total: decimal.NewFromInt(500), PrepStatus: models.PrepStatusQueued},
			{ID: "o2", SessionID: "s1", Total: decimal.NewFromInt(300), PrepStatus: models.PrepStatusCancelled},
		},
		statusAfter: models.SessionStatusNeedsBill,
	}
}

func newTestView(b Backend, rec *notify.Recorder) *View {
	c := cache.New(cache.WithLogger(logging.Discard()))
	return NewView(b, c, WithNotifier(rec), WithLogger(logging.Discard()))
}

func TestLoadWithoutSession(t *testing.T) {
	v := newTestView(&fakeBackend{}, &notify.Recorder{})

	snap, err := v.Load(context.Background(), "casa-lola", 4)
	require.NoError(t, err)
	assert.False(t, snap.Started)
	assert.Empty(t, snap.Orders)
	assert.False(t, snap.CanRequestBill)
	assert.True(t, snap.RunningTotal.IsZero())
	assert.Equal(t, "Casa Lola", snap.Restaurant.Name)
}

func TestRunningTotalExcludesCancelled(t *testing.T) {
	v := newTestView(activeBackend(), &notify.Recorder{})

	snap, err := v.Load(context.Background(), "casa-lola", 4)
	require.NoError(t, err)
	assert.True(t, snap.RunningTotal.Equal(decimal.NewFromInt(500)), "got %s", snap.RunningTotal)
	require.Len(t, snap.Orders, 2)
	assert.False(t, snap.Orders[0].StruckThrough)
	assert.True(t, snap.Orders[1].StruckThrough)
	assert.Equal(t, ToneDanger, snap.Orders[1].Badge.Tone)
	assert.Equal(t, "Open", snap.Status.Label)
	assert.True(t, snap.CanRequestBill)
}

func TestRequestBillSuccess(t *testing.T) {
	rec := &notify.Recorder{}
	b := activeBackend()
	v := newTestView(b, rec)

	snap, err := v.RequestBill(context.Background(), "casa-lola", 4)
	require.NoError(t, err)
	assert.True(t, snap.BillRequested)
	assert.False(t, snap.CanRequestBill)
	assert.Equal(t, models.SessionStatusNeedsBill, snap.Session.Status)

	_, ok := rec.Last(notify.KindSuccess)
	assert.True(t, ok)
	assert.Equal(t, 1, b.markCalls)
}

func TestRequestBillPendingUntilBackendCatchesUp(t *testing.T) {
	b := activeBackend()
	b.statusAfter = ""
	v := newTestView(b, &notify.Recorder{})
	ctx := context.Background()

	snap, err := v.RequestBill(ctx, "casa-lola", 4)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, snap.Session.Status)
	assert.True(t, snap.BillRequested, "pending flag covers the lag")
	assert.False(t, snap.CanRequestBill)

	b.setSession(&models.TableSession{ID: "s1", Status: models.SessionStatusNeedsBill})
	snap, err = v.Refresh(ctx, "casa-lola", 4)
	require.NoError(t, err)
	assert.True(t, snap.BillRequested)
	assert.Empty(t, v.pending, "fetched status replaces the pending flag")
}

func TestRequestBillSucceedsWhenRefetchFails(t *testing.T) {
	b := activeBackend()
	b.ordersErr = errors.New("upstream blip")
	rec := &notify.Recorder{}
	v := newTestView(b, rec)

	snap, err := v.RequestBill(context.Background(), "casa-lola", 4)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, b.markCalls)
	assert.True(t, snap.BillRequested)
	assert.False(t, snap.CanRequestBill)
	assert.Equal(t, "s1", snap.SessionID())

	_, ok := rec.Last(notify.KindSuccess)
	assert.True(t, ok)
	_, failed := rec.Last(notify.KindError)
	assert.False(t, failed)
}

func TestRequestBillFailure(t *testing.T) {
	rec := &notify.Recorder{}
	b := activeBackend()
	b.markErr = &api.Error{Status: http.StatusConflict, Message: "The kitchen is closing this table"}
	v := newTestView(b, rec)

	snap, err := v.RequestBill(context.Background(), "casa-lola", 4)
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.BillRequested)
	assert.True(t, snap.CanRequestBill)

	last, ok := rec.Last(notify.KindError)
	require.True(t, ok)
	assert.Equal(t, "The kitchen is closing this table", last.Message)
	assert.Empty(t, v.pending)
}

func TestRequestBillTransportFailureUsesDefaultMessage(t *testing.T) {
	rec := &notify.Recorder{}
	b := activeBackend()
	b.markErr = errors.New("dial tcp: connection refused")
	v := newTestView(b, rec)

	_, err := v.RequestBill(context.Background(), "casa-lola", 4)
	require.Error(t, err)
	last, _ := rec.Last(notify.KindError)
	assert.Equal(t, api.DefaultErrorMessage, last.Message)
}

func TestRequestBillUnavailable(t *testing.T) {
	b := activeBackend()
	b.session.Status = models.SessionStatusNeedsBill
	v := newTestView(b, &notify.Recorder{})

	_, err := v.RequestBill(context.Background(), "casa-lola", 4)
	assert.ErrorIs(t, err, ErrBillUnavailable)
	assert.Zero(t, b.markCalls)

	v = newTestView(&fakeBackend{}, &notify.Recorder{})
	_, err = v.RequestBill(context.Background(), "casa-lola", 4)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadUsesCache(t *testing.T) {
	b := activeBackend()
	v := newTestView(b, &notify.Recorder{})
	ctx := context.Background()

	_, err := v.Load(ctx, "casa-lola", 4)
	require.NoError(t, err)
	_, err = v.Load(ctx, "casa-lola", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, b.orderCalls)

	_, err = v.Refresh(ctx, "casa-lola", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, b.orderCalls)
}

func TestBadges(t *testing.T) {
	assert.Equal(t, "Preparing", PrepBadge(models.PrepStatusInProgress).Label)
	assert.Equal(t, "Bill requested", StatusBadge(models.SessionStatusNeedsBill).Label)
	assert.Equal(t, Badge{Label: "weird", Tone: ToneNeutral}, PrepBadge("weird"))
}

func waitFor(t *testing.T, ch <-chan *Snapshot, cond func(*Snapshot) bool) *Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "watcher stopped")
			if cond(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}
}

func TestWatcherPurgesCartWhenSessionEnds(t *testing.T) {
	b := activeBackend()
	v := newTestView(b, &notify.Recorder{})

	store := storage.NewMemoryStore()
	carts := cart.NewManager(store, cart.WithLogger(logging.Discard()))
	key := cart.Key{RestaurantSlug: "casa-lola", SessionID: "s1", MenuID: "m1"}
	carts.Open(key).Add(models.CartItem{ID: "burger", Price: decimal.NewFromInt(900), Quantity: 1})

	events := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(v, "casa-lola", 4,
		WithInterval(time.Hour),
		WithEvents(events),
		WithCartPurger(carts),
		WithWatcherLogger(logging.Discard()))
	snaps := w.Watch(ctx)

	waitFor(t, snaps, func(s *Snapshot) bool { return s.SessionID() == "s1" })
	assert.Equal(t, 1, carts.Open(key).Len())

	b.setSession(nil)
	events <- struct{}{}
	snap := waitFor(t, snaps, func(s *Snapshot) bool { return !s.Started })

	_, ok, err := store.Get(key.String())
	require.NoError(t, err)
	assert.False(t, ok, "cart entry removed")
	assert.Zero(t, carts.Open(key).Len())

	require.NotNil(t, snap.Previous, "ended session looked up by id")
	assert.Equal(t, "s1", snap.Previous.ID)
	assert.Equal(t, models.SessionStatusClosed, snap.Previous.Status)
	assert.True(t, snap.Previous.Total.Equal(decimal.NewFromInt(500)))

	b.setSession(&models.TableSession{ID: "s2", RestaurantID: "r1", TableNumber: 4, Status: models.SessionStatusActive})
	events <- struct{}{}
	snap = waitFor(t, snaps, func(s *Snapshot) bool { return s.SessionID() == "s2" })
	assert.Nil(t, snap.Previous)
}

func TestEndedWithoutSessionLookup(t *testing.T) {
	v := newTestView(struct{ Backend }{activeBackend()}, &notify.Recorder{})

	sess, err := v.Ended(context.Background(), "s1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	v := newTestView(activeBackend(), &notify.Recorder{})
	ctx, cancel := context.WithCancel(context.Background())

	snaps := NewWatcher(v, "casa-lola", 4, WithInterval(5*time.Millisecond)).Watch(ctx)
	waitFor(t, snaps, func(*Snapshot) bool { return true })
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-snaps:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
