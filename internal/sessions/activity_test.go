package sessions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"playroomserver/internal/database/testdb"
	"playroomserver/internal/models"
	"playroomserver/internal/rooms"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// startedRoom opens and starts a room, then ages it past the sweep window.
func startedRoom(t *testing.T, db *gorm.DB, roomSvc *rooms.Service) (*models.GameRoom, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	parent := models.ParentProfile{Auth0UserID: "auth0|" + uuid.NewString(), Email: "parent@example.com"}
	require.NoError(t, db.Create(&parent).Error)
	host := models.ChildProfile{ParentID: parent.ID, Name: "Host", AgeGroup: "5-7"}
	require.NoError(t, db.Create(&host).Error)

	room, err := roomSvc.CreateRoom(ctx, rooms.CreateRoomInput{HostChildID: host.ID, GameID: "trivia", Difficulty: "easy"})
	require.NoError(t, err)
	_, err = roomSvc.StartRoom(ctx, room.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.GameRoom{}).Where("id = ?", room.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-25*time.Hour)).Error)
	return room, host.ID
}

func TestGameplayKeepsRoomFromSweep(t *testing.T) {
	personas := []models.Persona{{Name: "Alex the Explorer", Avatar: "🧭", Personality: "curious"}}
	ctx := context.Background()

	for name, play := range map[string]func(t *testing.T, s *Service, roomID uuid.UUID){
		"session created": func(t *testing.T, s *Service, roomID uuid.UUID) {
			_, err := s.CreateSession(ctx, roomID, json.RawMessage(`{"round":1}`))
			require.NoError(t, err)
		},
		"score recorded": func(t *testing.T, s *Service, roomID uuid.UUID) {
			_, err := s.RecordScore(ctx, ScoreInput{RoomID: roomID, PlayerName: "Host", Score: 3})
			require.NoError(t, err)
		},
	} {
		t.Run(name, func(t *testing.T) {
			db := testdb.New(t)
			logger := zaptest.NewLogger(t)
			roomSvc := rooms.NewService(db, logger, personas)
			room, host := startedRoom(t, db, roomSvc)

			play(t, NewService(db, logger), room.ID)

			n, err := roomSvc.SweepStaleRooms(ctx, 24*time.Hour)
			require.NoError(t, err)
			assert.Zero(t, n)
			current, err := roomSvc.CurrentRoom(ctx, host)
			require.NoError(t, err)
			require.NotNil(t, current)
			assert.Equal(t, room.ID, current.ID)
		})
	}
}

func TestSessionUpdateTouchesRoom(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	s := NewService(db, zaptest.NewLogger(t))
	roomID := seedRoom(t, db)

	session, err := s.CreateSession(ctx, roomID, nil)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-25 * time.Hour)
	require.NoError(t, db.Model(&models.GameRoom{}).Where("id = ?", roomID).UpdateColumn("updated_at", old).Error)

	state := models.SessionPaused
	_, err = s.UpdateSession(ctx, session.ID, SessionUpdate{GameState: &state})
	require.NoError(t, err)

	var room models.GameRoom
	require.NoError(t, db.First(&room, "id = ?", roomID).Error)
	assert.True(t, room.UpdatedAt.After(old.Add(time.Hour)))

	require.NoError(t, db.Delete(&models.GameRoom{}, "id = ?", roomID).Error)
	state = models.SessionFinished
	updated, err := s.UpdateSession(ctx, session.ID, SessionUpdate{GameState: &state})
	require.NoError(t, err, "sessions outlive their room")
	assert.Equal(t, models.SessionFinished, updated.GameState)
}
