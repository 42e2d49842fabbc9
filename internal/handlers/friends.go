package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type friendRequest struct {
	ChildID  uuid.UUID `json:"child_id" binding:"required"`
	FriendID uuid.UUID `json:"friend_id" binding:"required"`
}

func (h *Handler) ListFriends(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	list, err := h.Friends.List(c.Request.Context(), childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": list})
}

func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "child_id and friend_id are required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	fr, err := h.Friends.SendRequest(c.Request.Context(), req.ChildID, req.FriendID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, fr)
}

func (h *Handler) PendingFriendRequests(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	reqs, err := h.Friends.Pending(c.Request.Context(), childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	requestID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req childRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "child_id is required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	fr, err := h.Friends.Accept(c.Request.Context(), requestID, req.ChildID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, fr)
}

func (h *Handler) DeclineFriendRequest(c *gin.Context) {
	requestID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req childRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "child_id is required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	if err := h.Friends.Decline(c.Request.Context(), requestID, req.ChildID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request declined"})
}

func (h *Handler) RemoveFriend(c *gin.Context) {
	friendID, ok := paramID(c, "id")
	if !ok {
		return
	}
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	if err := h.Friends.Remove(c.Request.Context(), childID, friendID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}
