package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is the tone of a toast
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Toast is a short user-facing message
type Toast struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier shows toasts to the user
type Notifier interface {
	Notify(t Toast)
}

// Messages are the texts shown for each phase of a Promise
type Messages struct {
	Loading string
	Success string
	// Error is shown on failure. When empty the error's own message is
	// shown; ErrorText can refine that.
	Error     string
	ErrorText func(error) string
}

// Promise runs fn and reports its progress as a loading toast followed
// by a success or an error toast. fn's error is returned unchanged.
func Promise(ctx context.Context, n Notifier, msgs Messages, fn func(context.Context) error) error {
	if n == nil {
		n = Nop{}
	}
	if msgs.Loading != "" {
		n.Notify(Toast{Kind: KindLoading, Message: msgs.Loading, Time: time.Now()})
	}

	err := fn(ctx)
	if err != nil {
		n.Notify(Toast{Kind: KindError, Message: msgs.errorText(err), Time: time.Now()})
		return err
	}
	if msgs.Success != "" {
		n.Notify(Toast{Kind: KindSuccess, Message: msgs.Success, Time: time.Now()})
	}
	return nil
}

func (m Messages) errorText(err error) string {
	if m.Error != "" {
		return m.Error
	}
	if m.ErrorText != nil {
		if s := m.ErrorText(err); s != "" {
			return s
		}
	}
	return err.Error()
}

// Nop discards every toast
type Nop struct{}

func (Nop) Notify(Toast) {}

// Log writes toasts to a logger
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(t Toast) {
	entry := l.Logger.WithField("toast", t.Kind)
	switch t.Kind {
	case KindError:
		entry.Warn(t.Message)
	default:
		entry.Info(t.Message)
	}
}

// Channel forwards toasts to C. When the buffer is full the toast is
// dropped rather than blocking the caller.
type Channel struct {
	C chan Toast
}

// NewChannel creates a Channel with the given buffer size
func NewChannel(size int) *Channel {
	return &Channel{C: make(chan Toast, size)}
}

func (c *Channel) Notify(t Toast) {
	select {
	case c.C <- t:
	default:
	}
}

// Recorder keeps every toast in memory. Used by tests and the HTTP
// server to return toasts alongside a response.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts returns a copy of what was recorded
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Last returns the most recent toast of kind k
func (r *Recorder) Last(k Kind) (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.toasts) - 1; i >= 0; i-- {
		if r.toasts[i].Kind == k {
			return r.toasts[i], true
		}
	}
	return Toast{}, false
}

// Multi fans a toast out to several notifiers
type Multi []Notifier

func (m Multi) Notify(t Toast) {
	for _, n := range m {
		if n != nil {
			n.Notify(t)
		}
	}
}
