package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // any origin may watch a table
	},
}

// snapshotConn pushes table snapshots to one browser tab
type snapshotConn struct {
	conn *websocket.Conn
	log  logrus.FieldLogger
}

// handleWebSocket streams the table's snapshot every time it changes
func (s *Server) handleWebSocket(c *gin.Context) {
	slug, table := c.GetString(ctxSlug), c.GetInt(ctxTable)

	// Resolve the restaurant before upgrading so a bad slug is a plain
	// HTTP error.
	first, err := s.view.Load(c.Request.Context(), slug, table)
	if err != nil {
		s.failErr(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	opts := []session.WatcherOption{
		session.WithInterval(s.poll),
		session.WithCartPurger(s.carts),
		session.WithWatcherLogger(s.log),
	}
	if s.events != nil {
		signals, unsubscribe := s.events(first.Restaurant.ID, table)
		defer unsubscribe()
		opts = append(opts, session.WithEvents(signals))
	}
	snapshots := session.NewWatcher(s.view, slug, table, opts...).Watch(ctx)

	sc := &snapshotConn{
		conn: conn,
		log:  s.log.WithFields(logrus.Fields{"restaurant": slug, "table": table}),
	}
	go sc.readPump(cancel)
	sc.writePump(ctx, snapshots)
	cancel()
}

// readPump discards client frames and cancels the stream once the
// browser goes away.
func (sc *snapshotConn) readPump(cancel context.CancelFunc) {
	defer cancel()

	sc.conn.SetReadLimit(4 * 1024)
	sc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := sc.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				sc.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

// writePump sends snapshots and keepalive pings until ctx ends or the
// watcher stops.
func (sc *snapshotConn) writePump(ctx context.Context, snapshots <-chan *session.Snapshot) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sc.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			sc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			sc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case snap, ok := <-snapshots:
			sc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				sc.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				sc.log.WithError(err).Error("could not encode snapshot")
				continue
			}
			if err := sc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
