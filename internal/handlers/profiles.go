package handlers

import (
	"net/http"

	"playroomserver/internal/profiles"

	"github.com/gin-gonic/gin"
)

type parentRequest struct {
	Name string `json:"name"`
}

// EnsureParent creates the caller's parent profile on first sign-in.
func (h *Handler) EnsureParent(c *gin.Context) {
	var req parentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	p, err := h.Profiles.EnsureParent(c.Request.Context(), identity(c), req.Name)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetParent(c *gin.Context) {
	p, ok := h.parent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateChild(c *gin.Context) {
	var in profiles.ChildInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name and age_group are required")
		return
	}
	p, ok := h.parent(c)
	if !ok {
		return
	}
	child, err := h.Profiles.CreateChild(c.Request.Context(), p.ID, in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, child)
}

func (h *Handler) ListChildren(c *gin.Context) {
	p, ok := h.parent(c)
	if !ok {
		return
	}
	children, err := h.Profiles.ListChildren(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": children})
}

func (h *Handler) UpdateChild(c *gin.Context) {
	childID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in profiles.ChildUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.actAs(c, childID) {
		return
	}
	if in.VoiceCloneEnabled != nil && *in.VoiceCloneEnabled {
		p, ok := h.parent(c)
		if !ok {
			return
		}
		if err := h.Billing.RequireActive(c.Request.Context(), p.ID); err != nil {
			respondError(c, h.Logger, err)
			return
		}
	}
	child, err := h.Profiles.UpdateChild(c.Request.Context(), childID, in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, child)
}

func (h *Handler) DeleteChild(c *gin.Context) {
	childID, ok := paramID(c, "id")
	if !ok || !h.actAs(c, childID) {
		return
	}
	if err := h.Profiles.DeleteChild(c.Request.Context(), childID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "child profile deleted"})
}

type statusRequest struct {
	IsOnline bool `json:"is_online"`
}

func (h *Handler) SetChildStatus(c *gin.Context) {
	childID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.actAs(c, childID) {
		return
	}
	child, err := h.Profiles.SetOnline(c.Request.Context(), childID, req.IsOnline)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, child)
}
