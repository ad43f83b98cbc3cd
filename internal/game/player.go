package game

import (
	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/config"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/pool"
	"github.com/flocksim/flocksim/internal/nav"
	"github.com/jakecoffman/cp"
)

// targetSampleDistance is how far the player's destination may be snapped.
const targetSampleDistance = 10.0

// repathDistance: the chase path is recomputed once the target has moved
// this far from the path's end.
const repathDistance = 0.5

// Targets is what the player hunts.
type Targets interface {
	Nearest(p cp.Vector) (*agent.Chicken, bool)
	InReach(p cp.Vector, r float64) []*agent.Chicken
}

// Player is the autopilot that plays a round: it chases the nearest chicken
// and swings when one is in reach. The hit lands (or misses) after the check
// delay; the player stands still during the swing. Its body is the threat
// every chicken watches.
type Player struct {
	id      int32
	env     *agent.Env
	cfg     config.GameConfig
	body    *nav.Agent
	targets Targets
	impacts *pool.Pool[*Effect]

	target    *agent.Chicken
	canAttack bool
	stopped   bool
	swings    int
	hits      int
}

func NewPlayer(env *agent.Env, cfg config.GameConfig, targets Targets) *Player {
	p := &Player{
		id:      agent.NextID(),
		env:     env,
		cfg:     cfg,
		body:    nav.NewAgent(0.5, cfg.PlayerSpeed),
		targets: targets,
		stopped: true, // until Reset
	}
	p.impacts = pool.New(env.Sched, func() *Effect {
		return newEffect(event.EffectImpact, cfg.ImpactDuration, env)
	}, cfg.ImpactPreload)
	return p
}

func (p *Player) ID() int32           { return p.id }
func (p *Player) Body() *nav.Agent    { return p.body }
func (p *Player) Position() cp.Vector { return p.body.Position() }
func (p *Player) CanAttack() bool     { return p.canAttack }

// Swings and Hits count attacks since the last Reset.
func (p *Player) Swings() int { return p.swings }
func (p *Player) Hits() int   { return p.hits }

// Threat is the snapshot chickens react to this frame.
func (p *Player) Threat() agent.Threat {
	return agent.Threat{Position: p.body.Position(), Velocity: p.body.Velocity()}
}

// Reset puts the player back at the arena centre, ready to attack.
func (p *Player) Reset() {
	p.env.Sched.CancelAll(p)
	p.body.Warp(cp.Vector{})
	p.body.SetSpeed(p.cfg.PlayerSpeed)
	p.target = nil
	p.canAttack = true
	p.stopped = false
	p.swings, p.hits = 0, 0
	event.Emit(p.env.Bus, event.Visibility{ActorID: p.id, Visible: true, Position: cp.Vector{}})
}

// OnGameEnded stops chasing and attacking.
func (p *Player) OnGameEnded() {
	p.env.Sched.CancelAll(p)
	p.canAttack = false
	p.stopped = true
	p.target = nil
	p.body.ResetPath()
}

// Disable hides the player and clears its impact effects.
func (p *Player) Disable() {
	p.OnGameEnded()
	p.impacts.Drain(func(_ pool.Handle, e *Effect) { e.Stop() })
	event.Emit(p.env.Bus, event.Visibility{ActorID: p.id, Visible: false, Position: p.body.Position()})
}

// Update decides this frame's intent. Movement happens later in the frame.
func (p *Player) Update() {
	if p.stopped {
		return
	}
	pos := p.body.Position()
	if p.canAttack && len(p.targets.InReach(pos, p.cfg.PlayerReach)) > 0 {
		p.attack()
		return
	}
	if !p.canAttack {
		return
	}

	c, ok := p.targets.Nearest(pos)
	if !ok {
		p.target = nil
		p.body.ResetPath()
		return
	}
	if c == p.target && p.body.HasPath() && p.body.Destination().Distance(c.Position()) < repathDistance {
		return
	}
	p.target = c
	p.setTargetPosition(c.Position())
}

func (p *Player) setTargetPosition(target cp.Vector) bool {
	dest, ok := p.env.Nav.SampleNear(target, targetSampleDistance)
	if !ok {
		return false
	}
	path, ok := p.env.Nav.PathTo(p.body.Position(), dest)
	if !ok {
		return false
	}
	p.body.SetPath(path)
	return true
}

func (p *Player) attack() {
	p.canAttack = false
	p.swings++
	p.body.SetSpeed(0)
	p.env.Sched.Schedule(p, p.cfg.AttackCheckDelay, p.checkAttack)
}

func (p *Player) checkAttack() {
	p.canAttack = true
	pos := p.body.Position()

	hits := p.targets.InReach(pos, p.cfg.PlayerReach)
	if len(hits) > 0 {
		event.Emit(p.env.Bus, event.SoundPlayed{ActorID: p.id, Cue: event.CueImpact, Position: pos})
		for _, c := range hits {
			// Whack may end the round and stop the player; the swing still lands.
			if c.Whack() {
				p.hits++
			}
			_, fx := p.impacts.AcquireWithTimeout(p.cfg.ImpactDuration)
			fx.Play(c.Position().Lerp(pos, 0.34))
		}
	} else {
		event.Emit(p.env.Bus, event.SoundPlayed{ActorID: p.id, Cue: event.CueSwing, Position: pos})
	}

	if p.stopped {
		p.canAttack = false
		return
	}
	p.body.SetSpeed(p.cfg.PlayerSpeed)
}

// Impacts exposes the impact effect pool.
func (p *Player) Impacts() *pool.Pool[*Effect] { return p.impacts }
