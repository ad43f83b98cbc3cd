package system

import (
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	coresys "github.com/flocksim/flocksim/internal/core/system"
	"github.com/flocksim/flocksim/internal/game"
)

// MovementSystem moves the player and every live chicken along their nav
// paths. Phase 3 (PostUpdate).
type MovementSystem struct {
	player *game.Player
	mgr    *game.Manager
}

func NewMovementSystem(p *game.Player, mgr *game.Manager) *MovementSystem {
	return &MovementSystem{player: p, mgr: mgr}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *MovementSystem) Update(dt time.Duration) {
	s.player.Body().Step(dt)
	s.mgr.Each(func(c *agent.Chicken) {
		if c.Active() {
			c.Body().Step(dt)
		}
	})
}
