package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingPeriod = 10 * time.Second
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
)

// Subscriber opens the event channel of one child.
type Subscriber interface {
	Subscribe(ctx context.Context, childID uuid.UUID) (*redis.PubSub, error)
}

// NewUpgrader accepts origins from the same list as CORS.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// Stream forwards the room events of a child over a websocket and keeps the
// child marked online while connected.
func (h *Handler) Stream(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	ctx := c.Request.Context()

	sub, err := h.Events.Subscribe(ctx, childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	defer sub.Close()

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if _, err := h.Profiles.SetOnline(ctx, childID, true); err != nil {
		h.Logger.Warn("Failed to mark child online", zap.String("child_id", childID.String()), zap.Error(err))
	}
	h.Logger.Info("Client connected", zap.String("child_id", childID.String()))
	defer func() {
		// The request context is done once the client is gone.
		offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := h.Profiles.SetOnline(offCtx, childID, false); err != nil {
			h.Logger.Warn("Failed to mark child offline", zap.String("child_id", childID.String()), zap.Error(err))
		}
		h.Logger.Info("Client removed", zap.String("child_id", childID.String()))
	}()

	h.pump(ctx, conn, sub)
}

func (h *Handler) pump(ctx context.Context, conn *websocket.Conn, sub *redis.PubSub) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			// Clients only listen; anything they send is dropped.
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.Logger.Warn("WebSocket error", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	msgs := sub.Channel()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.Logger.Warn("Failed to forward event", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Logger.Info("Ping failed, closing connection", zap.Error(err))
				return
			}
		}
	}
}
