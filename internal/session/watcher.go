package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"neembleeat/internal/models"
)

// DefaultPollInterval is used when a watcher is given no interval
const DefaultPollInterval = 10 * time.Second

// CartPurger removes the local carts of a finished session
type CartPurger interface {
	PurgeSession(restaurantSlug, sessionID string) int
}

// Watcher keeps a table's snapshot current by polling and, when given
// an event stream, by refreshing whenever the backend signals a change.
type Watcher struct {
	view     *View
	carts    CartPurger
	slug     string
	table    int
	interval time.Duration
	events   <-chan struct{}
	log      logrus.FieldLogger

	// previous is only touched by the Watch goroutine
	previous *models.TableSession
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithInterval sets the polling period
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithEvents refreshes on every receive from events, in addition to polling
func WithEvents(events <-chan struct{}) WatcherOption {
	return func(w *Watcher) { w.events = events }
}

// WithCartPurger clears the carts of a session once it ends
func WithCartPurger(p CartPurger) WatcherOption {
	return func(w *Watcher) { w.carts = p }
}

// WithWatcherLogger sets the watcher logger
func WithWatcherLogger(l logrus.FieldLogger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher creates a watcher for one table
func NewWatcher(view *View, slug string, tableNumber int, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		view:     view,
		slug:     slug,
		table:    tableNumber,
		interval: DefaultPollInterval,
		log:      view.log,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.WithFields(logrus.Fields{"restaurant": slug, "table": tableNumber})
	return w
}

// Watch refreshes immediately and then on every tick or event until ctx
// is done. Only the latest snapshot is kept for a slow reader. The
// returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context) <-chan *Snapshot {
	out := make(chan *Snapshot, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var last string
		for {
			last = w.refresh(ctx, out, last)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case _, ok := <-w.events:
				if !ok {
					w.events = nil
				}
			}
		}
	}()
	return out
}

// refresh publishes a fresh snapshot and returns the session now open,
// purging the carts of last if that session has ended. Until a new
// session opens, snapshots carry the ended session as Previous.
func (w *Watcher) refresh(ctx context.Context, out chan *Snapshot, last string) string {
	snap, err := w.view.Refresh(ctx, w.slug, w.table)
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Warn("session refresh failed")
		}
		return last
	}

	current := snap.SessionID()
	ended := snap.Session != nil && snap.Session.Status.IsTerminal()
	if last != "" && last != current {
		w.purge(last)
		if current == "" {
			w.previous = w.ended(ctx, last)
		}
	}
	switch {
	case ended:
		w.purge(current)
		w.previous = snap.Session
		current = ""
	case current != "":
		w.previous = nil
	}
	snap.Previous = w.previous

	publish(out, snap)
	return current
}

func (w *Watcher) ended(ctx context.Context, sessionID string) *models.TableSession {
	sess, err := w.view.Ended(ctx, sessionID)
	if err != nil {
		w.log.WithField("session", sessionID).WithError(err).Warn("could not look up ended session")
		return nil
	}
	return sess
}

func (w *Watcher) purge(sessionID string) {
	if w.carts == nil || sessionID == "" {
		return
	}
	n := w.carts.PurgeSession(w.slug, sessionID)
	if n == 0 {
		return
	}
	w.log.WithFields(logrus.Fields{"session": sessionID, "carts": n}).Info("session ended, cleared carts")
}

// publish replaces any unread snapshot with snap
func publish(out chan *Snapshot, snap *Snapshot) {
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	default:
	}
}
