package handlers

import (
	"net/http"

	"playroomserver/internal/rooms"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type roomCodeRequest struct {
	RoomCode string    `json:"room_code" binding:"required"`
	ChildID  uuid.UUID `json:"child_id" binding:"required"`
}

type childRequest struct {
	ChildID uuid.UUID `json:"child_id" binding:"required"`
}

type roomIDRequest struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
}

type inviteRequest struct {
	RoomCode  string      `json:"room_code" binding:"required"`
	FriendIDs []uuid.UUID `json:"friend_ids" binding:"required"`
}

type joinDecision struct {
	RequestID uuid.UUID `json:"request_id" binding:"required"`
	Approve   *bool     `json:"approve" binding:"required"`
}

type invitationRequest struct {
	InvitationID uuid.UUID `json:"invitation_id" binding:"required"`
	ChildID      uuid.UUID `json:"child_id" binding:"required"`
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var in rooms.CreateRoomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.actAs(c, in.HostChildID) {
		return
	}
	room, err := h.Rooms.CreateRoom(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) JoinRoom(c *gin.Context) {
	var req roomCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_code and child_id are required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	room, err := h.Rooms.JoinRoom(c.Request.Context(), req.RoomCode, req.ChildID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	var req childRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "child_id is required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	if err := h.Rooms.LeaveRoom(c.Request.Context(), req.ChildID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

func (h *Handler) CloseRoom(c *gin.Context) {
	var req roomIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_id is required")
		return
	}
	if !h.actAsHost(c, rooms.RoomRef{RoomID: &req.RoomID}) {
		return
	}
	if err := h.Rooms.CloseRoom(c.Request.Context(), req.RoomID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "room closed"})
}

func (h *Handler) StartRoom(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok || !h.actAsHost(c, rooms.RoomRef{RoomID: &roomID}) {
		return
	}
	room, err := h.Rooms.StartRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// CurrentRoom answers {"room": null} for a child outside any room.
func (h *Handler) CurrentRoom(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	room, err := h.Rooms.CurrentRoom(c.Request.Context(), childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *Handler) Participants(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok || !h.actAsMember(c, roomID) {
		return
	}
	participants, err := h.Rooms.Participants(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *Handler) JoinRequests(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok || !h.actAsHost(c, rooms.RoomRef{RoomID: &roomID}) {
		return
	}
	reqs, err := h.Rooms.PendingJoinRequests(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"join_requests": reqs})
}

func (h *Handler) InviteFriends(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_code and friend_ids are required")
		return
	}
	if !h.actAsHost(c, rooms.RoomRef{RoomCode: req.RoomCode}) {
		return
	}
	res, err := h.Rooms.InviteFriends(c.Request.Context(), req.RoomCode, req.FriendIDs)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": res.Invitations, "skipped": res.Skipped})
}

func (h *Handler) RequestToJoin(c *gin.Context) {
	var req roomCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "room_code and child_id are required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	offer, err := h.Rooms.RequestToJoin(c.Request.Context(), req.RoomCode, req.ChildID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

func (h *Handler) HandleJoinRequest(c *gin.Context) {
	var req joinDecision
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request_id and approve are required")
		return
	}
	if !h.actAsHost(c, rooms.RoomRef{OfferID: &req.RequestID}) {
		return
	}
	res, err := h.Rooms.HandleJoinRequest(c.Request.Context(), req.RequestID, *req.Approve)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": res.Request, "room": res.Room})
}

func (h *Handler) PendingInvitations(c *gin.Context) {
	childID, ok := queryChildID(c)
	if !ok || !h.actAs(c, childID) {
		return
	}
	invs, err := h.Rooms.PendingInvitations(c.Request.Context(), childID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

func (h *Handler) AcceptInvitation(c *gin.Context) {
	var req invitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invitation_id and child_id are required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	room, err := h.Rooms.AcceptInvitation(c.Request.Context(), req.InvitationID, req.ChildID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) DeclineInvitation(c *gin.Context) {
	var req invitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invitation_id and child_id are required")
		return
	}
	if !h.actAs(c, req.ChildID) {
		return
	}
	if err := h.Rooms.DeclineInvitation(c.Request.Context(), req.InvitationID, req.ChildID); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invitation declined"})
}
