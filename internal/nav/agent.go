package nav

import (
	"time"

	"github.com/jakecoffman/cp"
)

// Agent is a movable body that follows a Path at a fixed speed. It is the
// ground-plane stand-in for an engine nav agent: MovementSystem steps it
// once per frame and actors read back position, velocity and remaining
// distance.
type Agent struct {
	pos    cp.Vector
	vel    cp.Vector
	speed  float64
	radius float64
	path   []cp.Vector
	next   int
}

func NewAgent(radius, speed float64) *Agent {
	return &Agent{radius: radius, speed: speed}
}

func (a *Agent) Position() cp.Vector { return a.pos }
func (a *Agent) Velocity() cp.Vector { return a.vel }
func (a *Agent) Radius() float64     { return a.radius }
func (a *Agent) Speed() float64      { return a.speed }

// SetSpeed changes the travel speed; zero parks the agent without dropping its path.
func (a *Agent) SetSpeed(s float64) {
	if s < 0 {
		s = 0
	}
	a.speed = s
}

// SetRadius changes the footprint.
func (a *Agent) SetRadius(r float64) {
	if r < 0 {
		r = 0
	}
	a.radius = r
}

// Warp teleports the agent and drops its path.
func (a *Agent) Warp(p cp.Vector) {
	a.pos = p
	a.vel = cp.Vector{}
	a.ResetPath()
}

// SetPath starts following p. The first corner is the agent's own position.
func (a *Agent) SetPath(p Path) {
	a.path = append(a.path[:0], p.Corners...)
	a.next = 1
	if len(a.path) == 0 {
		a.next = 0
	}
}

// ResetPath stops path following.
func (a *Agent) ResetPath() {
	a.path = a.path[:0]
	a.next = 0
}

// HasPath reports whether corners remain to be visited.
func (a *Agent) HasPath() bool { return a.next < len(a.path) }

// Destination returns the final corner, or the current position without a path.
func (a *Agent) Destination() cp.Vector {
	if !a.HasPath() {
		return a.pos
	}
	return a.path[len(a.path)-1]
}

// RemainingDistance is the distance still to travel along the path.
func (a *Agent) RemainingDistance() float64 {
	if !a.HasPath() {
		return 0
	}
	total := a.pos.Distance(a.path[a.next])
	for i := a.next + 1; i < len(a.path); i++ {
		total += a.path[i].Distance(a.path[i-1])
	}
	return total
}

// Step advances the agent along its path for dt.
func (a *Agent) Step(dt time.Duration) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	start := a.pos
	budget := a.speed * secs
	for budget > 0 && a.HasPath() {
		target := a.path[a.next]
		seg := target.Sub(a.pos)
		d := seg.Length()
		if d <= budget {
			a.pos = target
			budget -= d
			a.next++
			continue
		}
		a.pos = a.pos.Add(seg.Mult(budget / d))
		budget = 0
	}
	if !a.HasPath() {
		a.ResetPath()
	}
	a.vel = a.pos.Sub(start).Mult(1 / secs)
}
