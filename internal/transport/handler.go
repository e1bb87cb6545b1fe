package transport

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liars-games/liarsdice/internal/liarsdice"
	"github.com/liars-games/liarsdice/internal/logging"
)

// Handler upgrades HTTP requests to websocket sessions and binds each
// connection to the room manager under a fresh connection id.
type Handler struct {
	manager  *liarsdice.Manager
	upgrader websocket.Upgrader
}

func NewHandler(manager *liarsdice.Manager, allowedOrigin string) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx).Named("transport.handler")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Infof("websocket upgrade failed: %v", err)
		return
	}

	c := newClient(ctx, uuid.New().String(), conn, h.manager)
	logger.Infof("connection %s open from %s", c.id, r.RemoteAddr)

	go c.writePump()
	c.readPump(ctx)

	logger.Infof("connection %s closed", c.id)
}
