package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput      Phase = iota // 0: refresh the threat snapshot
	PhasePreUpdate               // 1: player intent (target, attack)
	PhaseUpdate                  // 2: scheduler tick, every actor decision runs here
	PhasePostUpdate              // 3: movement along nav paths
	PhaseOutput                  // 4: deliver presentation events
)

// System is the interface every simulation system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
