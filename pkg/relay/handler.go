package relay

import (
	"net/http"
	"time"

	"github.com/AzuraForge/api/pkg/common/config"
	"github.com/AzuraForge/api/pkg/common/logger"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP connections to WebSocket sessions bound to one task.
type Handler struct {
	bus           Bus
	resolver      Resolver
	channelPrefix string
	poll          time.Duration
	writeTimeout  time.Duration
	upgrader      websocket.Upgrader
}

func NewHandler(bus Bus, resolver Resolver, cfg *config.Config) *Handler {
	return &Handler{
		bus:           bus,
		resolver:      resolver,
		channelPrefix: cfg.ProgressChannelPrefix,
		poll:          cfg.RelayPollInterval,
		writeTimeout:  cfg.RelayWriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) HandleTaskProgress(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	if taskID == "" {
		http.Error(w, "task_id is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	logger.Log.WithField("task_id", taskID).Info("Progress session opened")

	conn := &deadlineConn{Conn: ws, writeTimeout: h.writeTimeout}
	session := NewSession(taskID, ChannelFor(h.channelPrefix, taskID), conn, h.bus, h.resolver, h.poll)
	session.Run(r.Context())

	logger.Log.WithField("task_id", taskID).Info("Progress session closed")
}

// deadlineConn bounds every frame write so a stalled client cannot wedge the
// session.
type deadlineConn struct {
	*websocket.Conn
	writeTimeout time.Duration
}

func (c *deadlineConn) WriteJSON(v interface{}) error {
	if c.writeTimeout > 0 {
		if err := c.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.Conn.WriteJSON(v)
}
