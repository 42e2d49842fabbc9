package handlers

import (
	"encoding/json"
	"net/http"

	"playroomserver/internal/sessions"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	RoomID   uuid.UUID       `json:"room_id" binding:"required"`
	GameData json.RawMessage `json:"game_data"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_id is required")
		return
	}
	if !h.actAsMember(c, req.RoomID) {
		return
	}
	session, err := h.Sessions.CreateSession(c.Request.Context(), req.RoomID, req.GameData)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) GetSession(c *gin.Context) {
	sessionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	session, err := h.Sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if !h.actAsMember(c, session.RoomID) {
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) UpdateSession(c *gin.Context) {
	sessionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in sessions.SessionUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	session, err := h.Sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if !h.actAsMember(c, session.RoomID) {
		return
	}
	session, err = h.Sessions.UpdateSession(c.Request.Context(), sessionID, in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) RecordScore(c *gin.Context) {
	var in sessions.ScoreInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.actAsMember(c, in.RoomID) {
		return
	}
	score, err := h.Sessions.RecordScore(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, score)
}

func (h *Handler) RoomScores(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok || !h.actAsMember(c, roomID) {
		return
	}
	scores, err := h.Sessions.RoomScores(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}
