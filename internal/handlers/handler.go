// Package handlers is the HTTP and websocket surface of the server.
package handlers

import (
	"errors"
	"net/http"

	"playroomserver/internal/apperr"
	"playroomserver/internal/auth"
	"playroomserver/internal/billing"
	"playroomserver/internal/friends"
	"playroomserver/internal/middlewares"
	"playroomserver/internal/models"
	"playroomserver/internal/profiles"
	"playroomserver/internal/rooms"
	"playroomserver/internal/sessions"
	"playroomserver/internal/stories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errNotParticipant = errors.New("none of your children is in this room")

// Handler carries the services every route needs.
type Handler struct {
	Profiles *profiles.Service
	Rooms    *rooms.Service
	Sessions *sessions.Service
	Friends  *friends.Service
	Stories  *stories.Service
	Billing  *billing.Service
	Events   Subscriber
	Logger   *zap.Logger
	Upgrader websocket.Upgrader
}

// respondError writes err as {"error", "code"} with the status of its kind.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrCapacity):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrInvalid):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": apperr.Code(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid"})
}

func forbidden(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "forbidden"})
}

// parent returns the parent profile of the caller.
func (h *Handler) parent(c *gin.Context) (*models.ParentProfile, bool) {
	id, ok := middlewares.GetIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": "unauthorized"})
		return nil, false
	}
	p, err := h.Profiles.ParentFor(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return nil, false
	}
	return p, true
}

// actAs checks that the caller's parent owns childID.
func (h *Handler) actAs(c *gin.Context, childID uuid.UUID) bool {
	p, ok := h.parent(c)
	if !ok {
		return false
	}
	if err := h.Profiles.OwnsChild(c.Request.Context(), p.ID, childID); err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	return true
}

// actAsHost checks that the caller's parent owns the host of the referenced room.
func (h *Handler) actAsHost(c *gin.Context, ref rooms.RoomRef) bool {
	host, err := h.Rooms.HostChild(c.Request.Context(), ref)
	if err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	return h.actAs(c, host)
}

// actAsMember checks that one of the caller's children is in roomID.
func (h *Handler) actAsMember(c *gin.Context, roomID uuid.UUID) bool {
	p, ok := h.parent(c)
	if !ok {
		return false
	}
	ctx := c.Request.Context()
	participants, err := h.Rooms.Participants(ctx, roomID)
	if err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	children, err := h.Profiles.ListChildren(ctx, p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return false
	}
	mine := make(map[uuid.UUID]bool, len(children))
	for _, ch := range children {
		mine[ch.ID] = true
	}
	for _, pt := range participants {
		if pt.ChildID != nil && mine[*pt.ChildID] {
			return true
		}
	}
	forbidden(c, errNotParticipant)
	return false
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryChildID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("child_id"))
	if err != nil {
		badRequest(c, "child_id query parameter is required")
		return uuid.Nil, false
	}
	return id, true
}

func identity(c *gin.Context) auth.Identity {
	id, _ := middlewares.GetIdentity(c)
	return id
}
