package system

import (
	"time"

	coresys "github.com/flocksim/flocksim/internal/core/system"
	"github.com/flocksim/flocksim/internal/core/sched"
)

// ScheduleSystem advances the simulation clock. Every deferred action
// (chicken think/reroll, whack delays, effect returns, round timers) fires
// from here. Phase 2 (Update).
type ScheduleSystem struct {
	sched *sched.Scheduler
}

func NewScheduleSystem(s *sched.Scheduler) *ScheduleSystem {
	return &ScheduleSystem{sched: s}
}

func (s *ScheduleSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ScheduleSystem) Update(dt time.Duration) {
	s.sched.Tick(dt)
}
