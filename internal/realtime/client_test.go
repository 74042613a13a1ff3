package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neembleeat/internal/logging"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeReconnects(t *testing.T) {
	var dials int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&dials, 1)
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(Event{Type: "order.updated", RestaurantID: "r1", TableNumber: int(n)})
		// drop the connection to force a reconnect
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(wsURL(srv), WithBackoff(5*time.Millisecond, 20*time.Millisecond), WithLogger(logging.Discard()))
	events := c.Subscribe(ctx)

	var got []Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("got %d events before timeout", len(got))
		}
	}
	assert.Equal(t, "order.updated", got[0].Type)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&dials), int32(2))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSignalsFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	events <- Event{Type: "session.updated", RestaurantID: "r1", TableNumber: 4}
	events <- Event{Type: "session.updated", RestaurantID: "r1", TableNumber: 4}
	events <- Event{Type: "session.updated", RestaurantID: "r2", TableNumber: 4}
	close(events)

	signals := Signals(ctx, events, ForTable("r1", 4))

	n := 0
	for range signals {
		n++
	}
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 2, "the other restaurant's event is filtered")
}

func TestForTable(t *testing.T) {
	match := ForTable("r1", 4)
	assert.True(t, match(Event{RestaurantID: "r1", TableNumber: 4}))
	assert.True(t, match(Event{RestaurantID: "r1"}))
	assert.False(t, match(Event{RestaurantID: "r1", TableNumber: 5}))
	assert.False(t, match(Event{RestaurantID: "r2", TableNumber: 4}))
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	table4, stop4 := h.Subscribe(ForTable("r1", 4))
	table5, stop5 := h.Subscribe(ForTable("r1", 5))
	defer stop5()

	h.Publish(Event{Type: "order.updated", RestaurantID: "r1", TableNumber: 4})
	assert.Len(t, table4, 1)
	assert.Len(t, table5, 0)

	stop4()
	stop4()
	assert.Equal(t, 1, h.Len())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 1)
	events <- Event{Type: "session.updated", RestaurantID: "r1"}
	close(events)
	h.Run(ctx, events)
	cancel()
	assert.Len(t, table5, 1)
}
