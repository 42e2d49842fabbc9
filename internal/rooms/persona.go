package rooms

import (
	"math/rand"
	"sync"

	"playroomserver/internal/models"
)

// Intn is the randomness PickPersona needs. *rand.Rand satisfies it.
type Intn interface {
	Intn(n int) int
}

// PickPersona selects one persona from roster.
func PickPersona(roster []models.Persona, rnd Intn) (models.Persona, bool) {
	if len(roster) == 0 {
		return models.Persona{}, false
	}
	return roster[rnd.Intn(len(roster))], true
}

// lockedRand makes a *rand.Rand safe for concurrent requests.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
