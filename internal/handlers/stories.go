package handlers

import (
	"net/http"

	"playroomserver/internal/stories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type storyRequest struct {
	ChildID uuid.UUID `json:"child_id" binding:"required"`
	stories.StoryInput
}

func (h *Handler) CreateStory(c *gin.Context) {
	var req storyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	story, err := h.Stories.Create(c.Request.Context(), req.ChildID, req.StoryInput)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *Handler) ListStories(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	list, err := h.Stories.List(c.Request.Context(), childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": list})
}

func (h *Handler) GetStory(c *gin.Context) {
	storyID, ok := paramID(c, "id")
	if !ok {
		return
	}
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	story, err := h.Stories.Get(c.Request.Context(), childID, storyID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *Handler) DeleteStory(c *gin.Context) {
	storyID, ok := paramID(c, "id")
	if !ok {
		return
	}
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	if err := h.Stories.Delete(c.Request.Context(), childID, storyID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "story deleted"})
}
