package agent

import (
	"math/rand"
	"sync/atomic"

	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/pool"
	"github.com/flocksim/flocksim/internal/core/sched"
	"github.com/flocksim/flocksim/internal/nav"
	"github.com/jakecoffman/cp"
)

// actorIDCounter generates unique actor IDs for presentation events.
// Starts at 1000 so effect and player IDs below it never collide.
var actorIDCounter atomic.Int32

func init() {
	actorIDCounter.Store(1000)
}

// NextID returns a unique actor ID.
func NextID() int32 {
	return actorIDCounter.Add(1)
}

// Threat is one frame's view of the thing chickens run away from.
type Threat struct {
	Position cp.Vector
	Velocity cp.Vector
}

// ThreatFeed supplies the current frame's threat snapshot.
type ThreatFeed interface {
	Threat() Threat
}

// Frame is a ThreatFeed refreshed once per frame, before any actor thinks.
type Frame struct {
	threat Threat
	number uint64
}

// Refresh publishes the snapshot for a new frame.
func (f *Frame) Refresh(t Threat) {
	f.threat = t
	f.number++
}

func (f *Frame) Threat() Threat { return f.threat }

// Number returns how many times the frame has been refreshed.
func (f *Frame) Number() uint64 { return f.number }

// Navigator is the navigation query service.
type Navigator interface {
	SampleNear(p cp.Vector, maxDist float64) (cp.Vector, bool)
	PathTo(from, to cp.Vector) (nav.Path, bool)
}

// Owner is the manager a spawned chicken reports to.
type Owner interface {
	// ActorDown fires synchronously from Whack, for scoring.
	ActorDown(pos cp.Vector)
	// PlayWhackEffect fires when the hit delay has elapsed, just before despawn.
	PlayWhackEffect(pos cp.Vector)
	// Release hands the chicken back to its pool.
	Release(h pool.Handle) bool
}

// Env bundles the collaborators shared by every chicken of a flock.
type Env struct {
	Sched  *sched.Scheduler
	Nav    Navigator
	Threat ThreatFeed
	Rand   *rand.Rand
	Bus    *event.Bus
	// PlayArea is the radius around the origin destinations must stay within.
	PlayArea float64
}
