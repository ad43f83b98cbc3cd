package system

import (
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	coresys "github.com/flocksim/flocksim/internal/core/system"
)

// ThreatSource is whatever chickens run from (the player).
type ThreatSource interface {
	Threat() agent.Threat
}

// ThreatSystem publishes the frame's threat snapshot before any actor
// thinks. Phase 0 (Input).
type ThreatSystem struct {
	frame  *agent.Frame
	source ThreatSource
}

func NewThreatSystem(frame *agent.Frame, source ThreatSource) *ThreatSystem {
	return &ThreatSystem{frame: frame, source: source}
}

func (s *ThreatSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ThreatSystem) Update(_ time.Duration) {
	s.frame.Refresh(s.source.Threat())
}
