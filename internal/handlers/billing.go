package handlers

import (
	"net/http"

	"playroomserver/internal/billing"

	"github.com/gin-gonic/gin"
)

// SaveVoiceSubscription stores the subscription the payment provider reported
// for the caller.
func (h *Handler) SaveVoiceSubscription(c *gin.Context) {
	var in billing.SubscriptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, ok := h.parent(c)
	if !ok {
		return
	}
	sub, err := h.Billing.Upsert(c.Request.Context(), p.ID, in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *Handler) GetVoiceSubscription(c *gin.Context) {
	p, ok := h.parent(c)
	if !ok {
		return
	}
	sub, err := h.Billing.Get(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) CancelVoiceSubscription(c *gin.Context) {
	p, ok := h.parent(c)
	if !ok {
		return
	}
	if err := h.Billing.Cancel(c.Request.Context(), p.ID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
