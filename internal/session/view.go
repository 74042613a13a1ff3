package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/api"
	"neembleeat/internal/cache"
	"neembleeat/internal/models"
	"neembleeat/internal/notify"
)

var (
	// ErrNoSession is returned when the table has no open session
	ErrNoSession = errors.New("session: no active session for this table")

	// ErrBillUnavailable is returned when the bill was already requested
	// or the session is no longer active.
	ErrBillUnavailable = errors.New("session: bill cannot be requested now")
)

// Backend is the part of the API the view reads and writes
type Backend interface {
	GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
	GetActiveSession(ctx context.Context, restaurantID string, tableNumber int) (*models.TableSession, error)
	ListSessionOrders(ctx context.Context, sessionID string) ([]models.Order, error)
	MarkNeedsBill(ctx context.Context, sessionID string) error
}

// SessionFetcher is implemented by backends that can look a session up
// by id, including sessions that are no longer active.
type SessionFetcher interface {
	GetSession(ctx context.Context, sessionID string) (*models.TableSession, error)
}

// OrderLine is an order as the diner sees it
type OrderLine struct {
	models.Order
	Badge Badge `json:"badge"`
	// StruckThrough marks cancelled orders, which stay listed but do not
	// count towards the total.
	StruckThrough bool `json:"struckThrough"`
}

// Snapshot is the lifecycle view of one table at a point in time
type Snapshot struct {
	Restaurant  models.Restaurant    `json:"restaurant"`
	TableNumber int                  `json:"tableNumber"`
	Session     *models.TableSession `json:"session"`
	// Started is false while the table has no open session
	Started        bool            `json:"started"`
	Status         Badge           `json:"status"`
	Orders         []OrderLine     `json:"orders"`
	RunningTotal   decimal.Decimal `json:"runningTotal"`
	BillRequested  bool            `json:"billRequested"`
	CanRequestBill bool            `json:"canRequestBill"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	// Previous is the table's last session once it has ended, while no
	// new session is open.
	Previous *models.TableSession `json:"previousSession,omitempty"`
}

// SessionID returns the open session's id, or "" when none
func (s *Snapshot) SessionID() string {
	if s == nil || s.Session == nil {
		return ""
	}
	return s.Session.ID
}

// View assembles table snapshots from the backend through the cache and
// runs the request-bill action.
type View struct {
	backend  Backend
	cache    *cache.Cache
	notifier notify.Notifier
	log      logrus.FieldLogger

	mu sync.Mutex
	// pending holds sessions whose bill request succeeded but whose
	// refetched status does not show it yet.
	pending map[string]bool
}

// Option configures a View
type Option func(*View)

func WithNotifier(n notify.Notifier) Option {
	return func(v *View) { v.notifier = n }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(v *View) { v.log = l }
}

// NewView creates a view over backend, caching through c
func NewView(backend Backend, c *cache.Cache, opts ...Option) *View {
	v := &View{
		backend:  backend,
		cache:    c,
		notifier: notify.Nop{},
		log:      logrus.StandardLogger(),
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load returns the current snapshot for a table, served from the cache
// where fresh.
func (v *View) Load(ctx context.Context, slug string, tableNumber int) (*Snapshot, error) {
	restaurant, err := cache.Query(ctx, v.cache, cache.RestaurantBySlug(slug), func(ctx context.Context) (*models.Restaurant, error) {
		return v.backend.GetRestaurantBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}

	sess, err := cache.Query(ctx, v.cache, cache.ActiveSession(restaurant.ID, tableNumber), func(ctx context.Context) (*models.TableSession, error) {
		return v.backend.GetActiveSession(ctx, restaurant.ID, tableNumber)
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Restaurant:  *restaurant,
		TableNumber: tableNumber,
		Orders:      []OrderLine{},
		UpdatedAt:   time.Now(),
	}
	if sess == nil {
		return snap, nil
	}

	orders, err := cache.Query(ctx, v.cache, cache.SessionOrders(sess.ID), func(ctx context.Context) ([]models.Order, error) {
		return v.backend.ListSessionOrders(ctx, sess.ID)
	})
	if err != nil {
		return nil, err
	}

	snap.Session = sess
	snap.Started = true
	snap.Status = StatusBadge(sess.Status)
	snap.Orders = orderLines(orders)
	snap.RunningTotal = RunningTotal(orders)
	snap.BillRequested = v.billRequested(sess)
	snap.CanRequestBill = sess.Status == models.SessionStatusActive && !snap.BillRequested
	return snap, nil
}

// Refresh drops the table's cached session data and loads it again
func (v *View) Refresh(ctx context.Context, slug string, tableNumber int) (*Snapshot, error) {
	if r, ok := cache.GetQueryData[*models.Restaurant](v.cache, cache.RestaurantBySlug(slug)); ok && r != nil {
		if s, ok := cache.GetQueryData[*models.TableSession](v.cache, cache.ActiveSession(r.ID, tableNumber)); ok && s != nil {
			v.cache.Invalidate(cache.SessionOrders(s.ID))
		}
		v.cache.Invalidate(cache.ActiveSession(r.ID, tableNumber))
	}
	return v.Load(ctx, slug, tableNumber)
}

// RequestBill marks the table's session as needing the bill. Progress
// is reported through the view's notifier. On success the returned
// snapshot has BillRequested set, even when the refetch that follows
// fails. On failure it is unchanged and the error is returned alongside
// it.
func (v *View) RequestBill(ctx context.Context, slug string, tableNumber int) (*Snapshot, error) {
	snap, err := v.Load(ctx, slug, tableNumber)
	if err != nil {
		return nil, err
	}
	if !snap.Started {
		return snap, ErrNoSession
	}
	if !snap.CanRequestBill {
		return snap, ErrBillUnavailable
	}

	sessionID := snap.Session.ID
	v.setPending(sessionID, true)

	err = notify.Promise(ctx, v.notifier, notify.Messages{
		Loading:   "Requesting the bill...",
		Success:   "A waiter will bring the bill shortly",
		ErrorText: errorText,
	}, func(ctx context.Context) error {
		return v.backend.MarkNeedsBill(ctx, sessionID)
	})
	if err != nil {
		v.setPending(sessionID, false)
		v.log.WithField("session", sessionID).WithError(err).Warn("bill request failed")
		if after, loadErr := v.Load(ctx, slug, tableNumber); loadErr == nil {
			snap = after
		}
		return snap, err
	}

	after, err := v.Refresh(ctx, slug, tableNumber)
	if err != nil {
		v.log.WithField("session", sessionID).WithError(err).Warn("bill requested, refetch failed")
		snap.BillRequested = true
		snap.CanRequestBill = false
		return snap, nil
	}
	return after, nil
}

// Ended returns the final state of a session that is no longer the
// table's active one. It returns nil when the backend cannot look
// sessions up by id.
func (v *View) Ended(ctx context.Context, sessionID string) (*models.TableSession, error) {
	f, ok := v.backend.(SessionFetcher)
	if !ok {
		return nil, nil
	}
	return cache.Query(ctx, v.cache, cache.Session(sessionID), func(ctx context.Context) (*models.TableSession, error) {
		return f.GetSession(ctx, sessionID)
	})
}

func (v *View) setPending(sessionID string, on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on {
		v.pending[sessionID] = true
	} else {
		delete(v.pending, sessionID)
	}
}

// billRequested reconciles the local flag with the fetched status. Once
// the backend reports anything past active the flag is dropped.
func (v *View) billRequested(sess *models.TableSession) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sess.Status != models.SessionStatusActive {
		delete(v.pending, sess.ID)
		return sess.Status == models.SessionStatusNeedsBill
	}
	return v.pending[sess.ID]
}

// RunningTotal sums order totals, skipping cancelled orders
func RunningTotal(orders []models.Order) decimal.Decimal {
	total := decimal.Zero
	for i := range orders {
		if orders[i].IsCancelled() {
			continue
		}
		total = total.Add(orders[i].Total)
	}
	return total
}

func orderLines(orders []models.Order) []OrderLine {
	lines := make([]OrderLine, 0, len(orders))
	for _, o := range orders {
		lines = append(lines, OrderLine{
			Order:         o,
			Badge:         PrepBadge(o.PrepStatus),
			StruckThrough: o.IsCancelled(),
		})
	}
	return lines
}

func errorText(err error) string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, api.ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	}
	return api.DefaultErrorMessage
}
