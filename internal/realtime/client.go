package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 512 * 1024
)

// Event is a change notification pushed by the backend
type Event struct {
	Type         string `json:"type"`
	RestaurantID string `json:"restaurantId,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	TableNumber  int    `json:"tableNumber,omitempty"`
}

// Client keeps a websocket open to the backend event stream,
// reconnecting with exponential backoff until its context ends.
type Client struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	log        logrus.FieldLogger
}

// Option configures a Client
type Option func(*Client)

// WithHeader sends h on every dial, e.g. the bearer token
func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

// WithBackoff bounds the reconnect delay
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = min
		c.maxBackoff = max
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the websocket at url
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		dialer:     websocket.DefaultDialer,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("realtime", url)
	return c
}

// Subscribe streams decoded events until ctx is done. Messages that are
// not events are skipped. The channel is closed on return.
func (c *Client) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		c.run(ctx, func(msg []byte) {
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil || ev.Type == "" {
				c.log.WithError(err).Debug("skipping realtime message")
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

func (c *Client) run(ctx context.Context, handle func([]byte)) {
	backoff := c.minBackoff
	for {
		connected, err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.minBackoff
		}
		c.log.WithError(err).WithField("retry_in", backoff).Warn("realtime connection lost")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session runs one connection until it fails. connected reports whether
// the dial succeeded.
func (c *Client) session(ctx context.Context, handle func([]byte)) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return false, err
	}
	c.log.Debug("realtime connected")

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("closed by server")
			}
			return true, err
		}
		handle(msg)
	}
}

// keepalive pings until the session ends and closes the connection
// when ctx is cancelled so the blocked read returns.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Signals turns matching events into refresh signals. A pending signal
// absorbs later ones until it is received.
func Signals(ctx context.Context, events <-chan Event, match func(Event) bool) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if match != nil && !match(ev) {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// ForTable matches events about one restaurant table. Events that carry
// no table are assumed to concern every table of the restaurant.
func ForTable(restaurantID string, tableNumber int) func(Event) bool {
	return func(ev Event) bool {
		if ev.RestaurantID != "" && ev.RestaurantID != restaurantID {
			return false
		}
		return ev.TableNumber == 0 || ev.TableNumber == tableNumber
	}
}
