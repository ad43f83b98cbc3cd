package system

import (
	"time"

	"github.com/flocksim/flocksim/internal/core/event"
	coresys "github.com/flocksim/flocksim/internal/core/system"
	"go.uber.org/zap"
)

// Tally counts presentation events delivered since the last Reset.
type Tally struct {
	Transitions int
	AnimFlips   int
	Cues        map[event.Cue]int
	Effects     map[event.EffectKind]int
	Shown       int
	Hidden      int
	Scores      int
	Rounds      int
}

// PresentationSystem delivers the frame's events. Without a renderer it is
// the only subscriber: it tallies them and traces them at debug level.
// Phase 4 (Output).
type PresentationSystem struct {
	bus   *event.Bus
	log   *zap.Logger
	tally Tally
}

func NewPresentationSystem(bus *event.Bus, log *zap.Logger) *PresentationSystem {
	s := &PresentationSystem{bus: bus, log: log}
	s.Reset()

	event.Subscribe(bus, func(e event.StateChanged) {
		s.tally.Transitions++
		s.log.Debug("state", zap.Int32("actor", e.ActorID), zap.String("from", e.From), zap.String("to", e.To))
	})
	event.Subscribe(bus, func(e event.AnimChanged) {
		s.tally.AnimFlips++
	})
	event.Subscribe(bus, func(e event.SoundPlayed) {
		s.tally.Cues[e.Cue]++
		s.log.Debug("cue", zap.Int32("actor", e.ActorID), zap.Stringer("cue", e.Cue))
	})
	event.Subscribe(bus, func(e event.EffectPlayed) {
		s.tally.Effects[e.Kind]++
		s.log.Debug("effect", zap.Stringer("kind", e.Kind),
			zap.Float64("x", e.Position.X), zap.Float64("z", e.Position.Y))
	})
	event.Subscribe(bus, func(e event.Visibility) {
		if e.Visible {
			s.tally.Shown++
		} else {
			s.tally.Hidden++
		}
	})
	event.Subscribe(bus, func(e event.ScoreChanged) {
		s.tally.Scores++
		s.log.Debug("score", zap.Int("score", e.Score), zap.Int("objective", e.Objective))
	})
	event.Subscribe(bus, func(e event.RoundEnded) {
		s.tally.Rounds++
	})
	return s
}

func (s *PresentationSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *PresentationSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// Tally returns the counters gathered so far.
func (s *PresentationSystem) Tally() Tally { return s.tally }

// Reset zeroes the counters.
func (s *PresentationSystem) Reset() {
	s.tally = Tally{
		Cues:    make(map[event.Cue]int),
		Effects: make(map[event.EffectKind]int),
	}
}
