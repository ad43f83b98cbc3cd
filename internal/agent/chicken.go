package agent

import (
	"math"
	"time"

	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/pool"
	"github.com/flocksim/flocksim/internal/core/sched"
	"github.com/flocksim/flocksim/internal/nav"
	"github.com/jakecoffman/cp"
)

// State is a chicken behaviour state. Death is not a state: a whacked
// chicken leaves through Despawn.
type State uint8

const (
	// Idle: stay in place playing a random animation.
	Idle State = iota
	// Wander: walk to a random nearby destination.
	Wander
	// AvoidThreat: flee from the threat, walking or running depending on the danger.
	AvoidThreat
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Wander:
		return "wander"
	case AvoidThreat:
		return "avoid_threat"
	}
	return "unknown"
}

// Chicken is one pooled actor. It drives itself through two scheduled
// tasks: "think" (the state machine, rescheduled after every evaluation)
// and "reroll" (picks idle or wander at random intervals, suppressed while
// avoiding the threat). Both are owned by the chicken in the scheduler, so
// Despawn can drop them in one call.
//
// Accessed only from the game loop goroutine; no locks.
type Chicken struct {
	id     int32
	env    *Env
	tuning *Tuning
	body   *nav.Agent

	// Flee radius multiplier, drawn once so chickens do not react in lock-step.
	jitter float64

	state      State
	anim       [4]bool // indexed by event.AnimParam
	active     bool
	dying      bool
	recovering bool

	owner  Owner
	handle pool.Handle
	think  sched.Handle
	reroll sched.Handle
}

// New builds an inactive chicken. tuning is shared and may be updated
// between spawns.
func New(env *Env, tuning *Tuning) *Chicken {
	c := &Chicken{
		id:     NextID(),
		env:    env,
		tuning: tuning,
		body:   nav.NewAgent(tuning.Radius, tuning.BaseSpeed),
	}
	c.jitter = c.uniform(tuning.FleeJitterMin, tuning.FleeJitterMax)
	return c
}

func (c *Chicken) ID() int32           { return c.id }
func (c *Chicken) State() State        { return c.state }
func (c *Chicken) Body() *nav.Agent    { return c.body }
func (c *Chicken) Position() cp.Vector { return c.body.Position() }
func (c *Chicken) Active() bool        { return c.active }
func (c *Chicken) Dying() bool         { return c.dying }
func (c *Chicken) Handle() pool.Handle { return c.handle }

// Anim reports the current value of an animator flag.
func (c *Chicken) Anim(p event.AnimParam) bool { return c.anim[p] }

// FleeRadiusSq returns the squared radius used when the threat is incoming.
func (c *Chicken) FleeRadiusSq() float64 {
	r := c.tuning.FleeRadius * c.jitter
	return r * r
}

// FastFleeRadiusSq returns the squared radius of the run test.
func (c *Chicken) FastFleeRadiusSq() float64 {
	f := c.tuning.FastFleeFactor
	return c.FleeRadiusSq() * f * f
}

// RelaxedFleeRadiusSq returns the squared radius used when the threat is not incoming.
func (c *Chicken) RelaxedFleeRadiusSq() float64 {
	f := c.tuning.RelaxedFleeFactor
	return c.FleeRadiusSq() * f * f
}

// Deactivate hides the chicken. Called by the pool on creation and by Despawn.
func (c *Chicken) Deactivate() {
	c.active = false
	event.Emit(c.env.Bus, event.Visibility{ActorID: c.id, Visible: false, Position: c.body.Position()})
}

// Spawn places the chicken at the walkable point nearest to origin and
// starts its behaviour. It returns false, leaving the chicken inactive, when
// no walkable point lies within the spawn snap distance.
func (c *Chicken) Spawn(owner Owner, h pool.Handle, origin cp.Vector) bool {
	p, ok := c.env.Nav.SampleNear(origin, c.tuning.SpawnSnapDistance)
	if !ok {
		return false
	}
	c.owner = owner
	c.handle = h

	c.body.Warp(p)
	c.body.SetRadius(c.tuning.Radius)
	c.body.SetSpeed(c.tuning.BaseSpeed)
	c.state = Idle
	c.anim = [4]bool{}
	c.dying = false
	c.recovering = false
	c.active = true
	event.Emit(c.env.Bus, event.Visibility{ActorID: c.id, Visible: true, Position: p})

	// Randomize the start so the flock's work spreads across frames.
	c.think = c.env.Sched.Schedule(c, c.uniformDuration(0, c.tuning.StartSpread), c.start)
	return true
}

func (c *Chicken) start() {
	c.think = 0
	c.rerollTick()
	c.thinkTick()
}

// Despawn cancels every pending action of the chicken, hides it and hands it
// back to its pool. Safe to call on an already despawned chicken.
func (c *Chicken) Despawn() {
	c.env.Sched.CancelAll(c)
	c.think, c.reroll = 0, 0
	if !c.active && c.owner == nil {
		return
	}

	c.body.ResetPath()
	for p := range c.anim {
		c.setAnim(event.AnimParam(p), false)
	}
	c.Deactivate()
	c.dying = false
	c.recovering = false

	owner, h := c.owner, c.handle
	c.owner, c.handle = nil, pool.Handle{}
	if owner != nil {
		owner.Release(h)
	}
}

// Whack receives a hit. The owner is told immediately; the chicken
// disappears after the whack delay. Hits on a dying or inactive chicken are
// ignored and return false.
func (c *Chicken) Whack() bool {
	if c.dying || !c.active {
		return false
	}
	c.dying = true
	if c.owner != nil {
		c.owner.ActorDown(c.body.Position())
	}
	c.env.Sched.Schedule(c, c.tuning.WhackDelay, c.delayedWhack)
	return true
}

func (c *Chicken) delayedWhack() {
	pos := c.body.Position()
	event.Emit(c.env.Bus, event.SoundPlayed{ActorID: c.id, Cue: event.CueWhack, Position: pos})
	if c.owner != nil {
		c.owner.PlayWhackEffect(pos)
	}
	c.Despawn()
}

// ── Scheduled tasks ───────────────────────────────────────────────

func (c *Chicken) thinkTick() {
	c.think = 0
	if c.dying {
		return
	}
	delay := c.step(c.env.Threat.Threat())
	c.think = c.env.Sched.Schedule(c, delay, c.thinkTick)
}

func (c *Chicken) rerollTick() {
	c.reroll = 0
	if c.dying {
		return
	}
	if c.state != AvoidThreat {
		c.selectRandomState()
	}
	d := c.uniformDuration(c.tuning.MinBehaviorDuration, c.tuning.MaxBehaviorDuration)
	c.reroll = c.env.Sched.Schedule(c, d, c.rerollTick)
}

// step evaluates the state machine once and returns the delay until the
// next evaluation.
func (c *Chicken) step(t Threat) time.Duration {
	if c.recovering {
		c.recovering = false
		c.selectRandomState()
	}

	switch c.state {
	case Idle:
		if c.CheckFlee(t) {
			c.setState(AvoidThreat, t)
			return 0
		}
		c.updateIdle()
		return c.tuning.IdleInterval

	case Wander:
		if c.CheckFlee(t) {
			c.setState(AvoidThreat, t)
			return 0
		}
		if c.body.RemainingDistance() < c.tuning.ArriveDistance {
			c.selectRandomState()
			return 0
		}
		return c.tuning.WanderInterval

	case AvoidThreat:
		if !c.CheckFlee(t) {
			c.recovering = true
			return time.Duration(float64(c.tuning.FleeRecoverDuration) * c.env.Rand.Float64())
		}
		c.updateFlee(t, true)
		return c.tuning.FleeInterval
	}
	return c.tuning.IdleInterval
}

// ── Transitions ───────────────────────────────────────────────────

func (c *Chicken) selectRandomState() {
	if c.env.Rand.Float64() < c.tuning.WanderProb {
		c.setState(Wander, c.env.Threat.Threat())
	} else {
		c.setState(Idle, c.env.Threat.Threat())
	}
}

func (c *Chicken) setState(next State, t Threat) {
	// Old-state flags go off before the new state sets its own.
	if c.state != next {
		switch c.state {
		case Idle:
			c.setAnim(event.AnimEat, false)
			c.setAnim(event.AnimTurnHead, false)
		case Wander:
			c.setAnim(event.AnimWalk, false)
		case AvoidThreat:
			c.setAnim(event.AnimWalk, false)
			c.setAnim(event.AnimRun, false)
		}
		event.Emit(c.env.Bus, event.StateChanged{ActorID: c.id, From: c.state.String(), To: next.String()})
	}

	switch next {
	case Idle:
		c.body.SetSpeed(0)
	case Wander:
		c.body.SetSpeed(c.tuning.BaseSpeed)
		c.setAnim(event.AnimWalk, true)
		c.setDestination(c.wanderCandidate)
	case AvoidThreat:
		c.setDestination(func() cp.Vector { return c.fleeCandidate(t) })
		c.updateFlee(t, false)
	}
	c.state = next
}

func (c *Chicken) updateIdle() {
	switch {
	case c.anim[event.AnimEat]:
		c.setAnim(event.AnimEat, false)
	case c.anim[event.AnimTurnHead]:
		c.setAnim(event.AnimTurnHead, false)
	default:
		roll := c.env.Rand.Float64()
		if roll < 1.0/3.0 {
			c.setAnim(event.AnimEat, true)
		} else if roll < 2.0/3.0 {
			c.setAnim(event.AnimTurnHead, true)
		}
	}
}

func (c *Chicken) updateFlee(t Threat, computeDest bool) {
	if c.CheckFastFlee(t) {
		if !c.anim[event.AnimRun] {
			c.body.SetSpeed(c.tuning.BaseSpeed * c.tuning.RunSpeedMultiplier)
			c.setAnim(event.AnimWalk, false)
			c.setAnim(event.AnimRun, true)
			event.Emit(c.env.Bus, event.SoundPlayed{ActorID: c.id, Cue: event.CueChickenFly, Position: c.body.Position()})
		}
	} else if !c.anim[event.AnimWalk] {
		c.body.SetSpeed(c.tuning.BaseSpeed)
		c.setAnim(event.AnimRun, false)
		c.setAnim(event.AnimWalk, true)
	}
	if computeDest {
		c.setDestination(func() cp.Vector { return c.fleeCandidate(t) })
	}
}

func (c *Chicken) setAnim(p event.AnimParam, on bool) {
	if c.anim[p] == on {
		return
	}
	c.anim[p] = on
	event.Emit(c.env.Bus, event.AnimChanged{ActorID: c.id, Param: p, On: on})
}

// ── Threat tests ──────────────────────────────────────────────────

// CheckFlee is the walk-away condition. A threat moving towards the chicken
// is feared from the full flee radius, otherwise only from the relaxed one.
func (c *Chicken) CheckFlee(t Threat) bool {
	d := c.body.Position().Sub(t.Position)
	incoming := t.Velocity.LengthSq() > c.tuning.IncomingSpeedSq &&
		t.Velocity.Dot(d) > c.tuning.IncomingAlignment
	limit := c.RelaxedFleeRadiusSq()
	if incoming {
		limit = c.FleeRadiusSq()
	}
	return d.LengthSq() < limit
}

// CheckFastFlee is the run condition: close, fast and clearly heading this way.
func (c *Chicken) CheckFastFlee(t Threat) bool {
	d := c.body.Position().Sub(t.Position)
	return d.LengthSq() < c.FastFleeRadiusSq() &&
		t.Velocity.LengthSq() > c.tuning.IncomingSpeedSq &&
		t.Velocity.Dot(d) > c.tuning.FastFleeAlignment
}

// ── Destinations ──────────────────────────────────────────────────

func (c *Chicken) setDestination(candidate func() cp.Vector) {
	dest, ok := c.chooseDestination(candidate)
	if !ok {
		c.body.ResetPath()
		return
	}
	path, ok := c.env.Nav.PathTo(c.body.Position(), dest)
	if !ok {
		c.body.ResetPath()
		return
	}
	c.body.SetPath(path)
}

// chooseDestination rejection-samples candidates until one lies inside the
// play area and snaps onto walkable ground that is itself inside the play
// area. After MaxDestinationAttempts it gives up and returns the current
// position with ok=false.
func (c *Chicken) chooseDestination(candidate func() cp.Vector) (cp.Vector, bool) {
	r2 := c.env.PlayArea * c.env.PlayArea
	for i := 0; i < c.tuning.MaxDestinationAttempts; i++ {
		// Written as !(<=) so NaN candidates are rejected too.
		p := candidate()
		if !(p.LengthSq() <= r2) {
			continue
		}
		snapped, ok := c.env.Nav.SampleNear(p, c.tuning.SnapDistance)
		if !ok || !(snapped.LengthSq() <= r2) {
			continue
		}
		return snapped, true
	}
	return c.body.Position(), false
}

func (c *Chicken) wanderCandidate() cp.Vector {
	pos := c.body.Position()
	dir := cp.ForAngle(2 * math.Pi * c.env.Rand.Float64())
	dir = dir.Add(normalize(pos.Neg()).Mult(c.env.Rand.Float64() * c.tuning.WanderCenteringForce))
	if dir.LengthSq() == 0 {
		dir = cp.ForAngle(2 * math.Pi * c.env.Rand.Float64())
	}
	dist := c.uniform(c.tuning.Radius*2, c.tuning.WanderRadius)
	return pos.Add(normalize(dir).Mult(dist))
}

func (c *Chicken) fleeCandidate(t Threat) cp.Vector {
	pos := c.body.Position()
	away := normalize(pos.Sub(t.Position))
	if away.LengthSq() == 0 {
		// Threat on top of the chicken: any direction will do.
		away = cp.ForAngle(2 * math.Pi * c.env.Rand.Float64())
	}
	p := pos.Add(away.Mult(c.tuning.FleeDistance)).Clamp(c.env.PlayArea)
	return p.Add(c.insideUnitDisc().Mult(c.tuning.FleeJitter))
}

// normalize returns v scaled to unit length, or the zero vector for a zero v.
// cp's Normalize yields NaN components for a zero vector.
func normalize(v cp.Vector) cp.Vector {
	if v.LengthSq() == 0 {
		return cp.Vector{}
	}
	return v.Normalize()
}

// ── Random helpers ────────────────────────────────────────────────

func (c *Chicken) uniform(lo, hi float64) float64 {
	return lo + c.env.Rand.Float64()*(hi-lo)
}

func (c *Chicken) uniformDuration(lo, hi time.Duration) time.Duration {
	return lo + time.Duration(c.env.Rand.Float64()*float64(hi-lo))
}

func (c *Chicken) insideUnitDisc() cp.Vector {
	r := math.Sqrt(c.env.Rand.Float64())
	return cp.ForAngle(2 * math.Pi * c.env.Rand.Float64()).Mult(r)
}
