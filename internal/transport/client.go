package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/liars-games/liarsdice/internal/liarsdice"
	"github.com/liars-games/liarsdice/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// client owns one websocket connection. The read pump decodes request
// envelopes and drives the manager, the write pump drains the send channel.
// Send and Close let the room engine push broadcasts without knowing
// anything about websockets.
type client struct {
	id      string
	conn    *websocket.Conn
	manager *liarsdice.Manager
	logger  *zap.SugaredLogger
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(ctx context.Context, id string, conn *websocket.Conn, manager *liarsdice.Manager) *client {
	return &client{
		id:      id,
		conn:    conn,
		manager: manager,
		logger:  logging.FromContext(ctx).Named("transport.client"),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// Send enqueues a frame for the write pump. It never blocks: a slow or
// closed connection drops the frame and reports false.
func (c *client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.manager.Disconnect(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Infof("connection %s read failed: %v", c.id, err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.logger.Infof("connection %s rate limited, frame dropped", c.id)
			continue
		}

		c.dispatch(ctx, raw)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
