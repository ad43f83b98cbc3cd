package game

import (
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/sched"
	"github.com/jakecoffman/cp"
)

// Effect is a pooled one-shot visual (whack explosion, impact spark).
// The pool's timed release decides when the instance can be reused; the
// effect hides itself once its duration has run out.
type Effect struct {
	id       int32
	kind     event.EffectKind
	bus      *event.Bus
	sched    *sched.Scheduler
	duration time.Duration
	playing  bool
	pos      cp.Vector
}

func newEffect(kind event.EffectKind, duration time.Duration, env *agent.Env) *Effect {
	return &Effect{id: agent.NextID(), kind: kind, duration: duration, bus: env.Bus, sched: env.Sched}
}

func (e *Effect) ID() int32           { return e.id }
func (e *Effect) Playing() bool       { return e.playing }
func (e *Effect) Position() cp.Vector { return e.pos }

// Play moves the effect and starts it.
func (e *Effect) Play(pos cp.Vector) {
	e.sched.CancelAll(e)
	e.pos = pos
	e.playing = true
	e.sched.Schedule(e, e.duration, e.Stop)
	event.Emit(e.bus, event.EffectPlayed{Kind: e.kind, Position: pos, Duration: e.duration})
}

// Stop cuts the effect short and clears it.
func (e *Effect) Stop() {
	if !e.playing {
		return
	}
	e.Deactivate()
}

func (e *Effect) Deactivate() {
	e.sched.CancelAll(e)
	e.playing = false
	event.Emit(e.bus, event.Visibility{ActorID: e.id, Visible: false, Position: e.pos})
}
