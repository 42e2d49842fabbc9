package friends

import (
	"context"
	"testing"

	"playroomserver/internal/apperr"
	"playroomserver/internal/database/testdb"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func seedChildren(t *testing.T, db *gorm.DB, names ...string) []uuid.UUID {
	t.Helper()
	parent := models.ParentProfile{Auth0UserID: "auth0|" + uuid.NewString(), Email: "p@example.com"}
	require.NoError(t, db.Create(&parent).Error)
	ids := make([]uuid.UUID, 0, len(names))
	for _, n := range names {
		c := models.ChildProfile{ParentID: parent.ID, Name: n, AgeGroup: "8-10"}
		require.NoError(t, db.Create(&c).Error)
		ids = append(ids, c.ID)
	}
	return ids
}

func TestFriendRequestFlow(t *testing.T) {
	db := testdb.New(t)
	s := NewService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	ids := seedChildren(t, db, "Alice", "Bob", "Cara")
	alice, bob, cara := ids[0], ids[1], ids[2]

	_, err := s.SendRequest(ctx, alice, alice)
	assert.ErrorIs(t, err, ErrSelf)
	_, err = s.SendRequest(ctx, alice, uuid.New())
	assert.ErrorIs(t, err, ErrChildNotFound)

	req, err := s.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	_, err = s.SendRequest(ctx, bob, alice)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	pending, err := s.Pending(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = s.Accept(ctx, req.ID, cara)
	assert.ErrorIs(t, err, ErrRequestNotFound)
	accepted, err := s.Accept(ctx, req.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.FriendAccepted, accepted.Status)
	_, err = s.Accept(ctx, req.ID, bob)
	assert.ErrorIs(t, err, ErrNotPending)

	ok, err := s.AreFriends(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bob, list[0].ChildID)
	assert.Equal(t, "Bob", list[0].Name)
	assert.Equal(t, req.ID, list[0].FriendshipID)

	require.NoError(t, s.Remove(ctx, bob, alice))
	assert.ErrorIs(t, s.Remove(ctx, bob, alice), ErrFriendshipNotFound)
	list, err = s.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDecline(t *testing.T) {
	db := testdb.New(t)
	s := NewService(db, zaptest.NewLogger(t))
	ctx := context.Background()
	ids := seedChildren(t, db, "Alice", "Bob")

	req, err := s.SendRequest(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.ErrorIs(t, s.Decline(ctx, req.ID, ids[0]), ErrRequestNotFound)
	require.NoError(t, s.Decline(ctx, req.ID, ids[1]))

	_, err = s.SendRequest(ctx, ids[0], ids[1])
	assert.NoError(t, err, "a declined request can be sent again")
}
