package system

import (
	"time"

	coresys "github.com/flocksim/flocksim/internal/core/system"
	"github.com/flocksim/flocksim/internal/game"
)

// PlayerSystem lets the autopilot pick its target or swing.
// Phase 1 (PreUpdate): intent is settled before the scheduler fires the
// actions it arms.
type PlayerSystem struct {
	player *game.Player
}

func NewPlayerSystem(p *game.Player) *PlayerSystem {
	return &PlayerSystem{player: p}
}

func (s *PlayerSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *PlayerSystem) Update(_ time.Duration) {
	s.player.Update()
}
