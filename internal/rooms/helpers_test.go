package rooms

import (
	"context"
	"sync"
	"testing"
	"time"

	"playroomserver/internal/database/testdb"
	"playroomserver/internal/events"
	"playroomserver/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testPersonas = []models.Persona{
	{Name: "Alex the Explorer", Avatar: "🧭", Personality: "curious"},
	{Name: "Bella the Builder", Avatar: "🏗️", Personality: "creative"},
	{Name: "Charlie the Chef", Avatar: "👨‍🍳", Personality: "adventurous"},
}

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

type recorder struct {
	mu     sync.Mutex
	events []events.RoomEvent
}

func (r *recorder) Publish(_ context.Context, ev events.RoomEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	svc    *Service
	events *recorder
	parent uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, testdb.New(t), opts...)
}

func newFixtureOn(t *testing.T, db *gorm.DB, opts ...Option) *fixture {
	t.Helper()
	parent := models.ParentProfile{Auth0UserID: "auth0|" + uuid.NewString(), Email: "parent@example.com"}
	require.NoError(t, db.Create(&parent).Error)

	rec := &recorder{}
	opts = append([]Option{WithPublisher(rec), WithRand(fixedRand(2))}, opts...)
	return &fixture{
		t:      t,
		db:     db,
		svc:    NewService(db, zaptest.NewLogger(t), testPersonas, opts...),
		events: rec,
		parent: parent.ID,
	}
}

func (f *fixture) child(name string) uuid.UUID {
	f.t.Helper()
	c := models.ChildProfile{ParentID: f.parent, Name: name, AgeGroup: "5-7"}
	require.NoError(f.t, f.db.Create(&c).Error)
	return c.ID
}

func (f *fixture) reload(childID uuid.UUID) models.ChildProfile {
	f.t.Helper()
	var c models.ChildProfile
	require.NoError(f.t, f.db.First(&c, "id = ?", childID).Error)
	return c
}

// roomWith seeds a waiting room whose only player is its host, as left
// after every guest has gone.
func (f *fixture) roomWith(maxPlayers int) (*models.GameRoom, uuid.UUID) {
	f.t.Helper()
	host := f.child("Host")
	code, err := RandomCodes{}.NewCode()
	require.NoError(f.t, err)

	now := time.Now().UTC()
	room := models.GameRoom{
		RoomCode:       code,
		HostChildID:    host,
		GameID:         "trivia",
		Difficulty:     "easy",
		MaxPlayers:     maxPlayers,
		CurrentPlayers: 1,
		Status:         models.RoomWaiting,
	}
	require.NoError(f.t, f.db.Create(&room).Error)
	require.NoError(f.t, f.db.Create(&models.RoomParticipant{
		RoomID:       room.ID,
		ChildID:      &host,
		PlayerName:   "Host",
		PlayerAvatar: models.DefaultAvatar,
		JoinedAt:     now,
	}).Error)
	require.NoError(f.t, f.db.Model(&models.ChildProfile{}).Where("id = ?", host).Update("room_id", room.ID).Error)
	return &room, host
}

// assertConsistent checks the roster invariants over the whole database.
func (f *fixture) assertConsistent() {
	f.t.Helper()

	var rooms []models.GameRoom
	require.NoError(f.t, f.db.Find(&rooms).Error)
	for _, r := range rooms {
		var n int64
		require.NoError(f.t, f.db.Model(&models.RoomParticipant{}).Where("room_id = ?", r.ID).Count(&n).Error)
		assert.Equal(f.t, int64(r.CurrentPlayers), n, "current_players of %s", r.RoomCode)
		assert.LessOrEqual(f.t, r.CurrentPlayers, r.MaxPlayers, "capacity of %s", r.RoomCode)
	}

	var children []models.ChildProfile
	require.NoError(f.t, f.db.Find(&children).Error)
	for _, c := range children {
		var rows []models.RoomParticipant
		require.NoError(f.t, f.db.Where("child_id = ?", c.ID).Find(&rows).Error)
		if c.RoomID == nil {
			assert.Empty(f.t, rows, "child %s has rows but no room", c.Name)
			continue
		}
		if assert.Len(f.t, rows, 1, "child %s", c.Name) {
			assert.Equal(f.t, *c.RoomID, rows[0].RoomID, "child %s", c.Name)
		}
	}
}
