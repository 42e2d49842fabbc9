package rooms

import (
	"errors"
	"fmt"

	"playroomserver/internal/apperr"
)

var (
	ErrRoomNotFound        = fmt.Errorf("%w: room not found", apperr.ErrNotFound)
	ErrChildNotFound       = fmt.Errorf("%w: child not found", apperr.ErrNotFound)
	ErrNotInRoom           = fmt.Errorf("%w: child is not in a room", apperr.ErrNotFound)
	ErrInvitationNotFound  = fmt.Errorf("%w: invitation not found", apperr.ErrNotFound)
	ErrJoinRequestNotFound = fmt.Errorf("%w: join request not found", apperr.ErrNotFound)
	ErrNoFriendsFound      = fmt.Errorf("%w: no valid friends found", apperr.ErrNotFound)

	ErrAlreadyInRoom    = fmt.Errorf("%w: already in a room, leave current room first", apperr.ErrConflict)
	ErrAlreadyMember    = fmt.Errorf("%w: already a member of this room", apperr.ErrConflict)
	ErrDuplicateRequest = fmt.Errorf("%w: a pending join request already exists", apperr.ErrConflict)
	ErrOfferResolved    = fmt.Errorf("%w: already resolved", apperr.ErrConflict)
	ErrRoomNotWaiting   = fmt.Errorf("%w: room is not waiting for players", apperr.ErrConflict)

	ErrRoomFull = fmt.Errorf("%w: room is full", apperr.ErrCapacity)

	ErrInvalidMaxPlayers = fmt.Errorf("%w: max_players must be between %d and %d", apperr.ErrInvalid, MinPlayers, MaxPlayers)
	ErrGameRequired      = fmt.Errorf("%w: game_id and difficulty are required", apperr.ErrInvalid)
	ErrEmptyRef          = fmt.Errorf("%w: room_id, room_code or request id is required", apperr.ErrInvalid)

	ErrCodeExhausted = errors.New("could not generate a unique room code")
	ErrNoPersonas    = errors.New("synthetic player roster is empty")
)
