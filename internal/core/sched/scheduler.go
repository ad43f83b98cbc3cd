package sched

import (
	"container/heap"
	"sort"
	"time"
)

// Handle identifies one pending deferred action. Handles increase
// monotonically and are never reused; the zero Handle is never issued.
type Handle uint64

func (h Handle) IsZero() bool { return h == 0 }

type action struct {
	handle Handle
	owner  any
	due    time.Duration
	fn     func()
	index  int // position in the due queue, -1 once popped
}

// Scheduler owns every pending timed callback of the simulation and the
// simulation clock itself. Accessed only from the game loop goroutine; no locks.
//
// Actions are indexed by handle and by owner so a recycled object can drop
// all of its pending work with one CancelAll call.
type Scheduler struct {
	now     time.Duration
	next    Handle
	pending map[Handle]*action
	byOwner map[any]map[Handle]struct{}
	queue   dueQueue
	firing  []*action
}

func New() *Scheduler {
	return &Scheduler{
		pending: make(map[Handle]*action, 256),
		byOwner: make(map[any]map[Handle]struct{}, 64),
		queue:   make(dueQueue, 0, 256),
		firing:  make([]*action, 0, 64),
	}
}

// Now returns the simulation time accumulated by Tick.
func (s *Scheduler) Now() time.Duration { return s.now }

// Len returns the number of pending actions.
func (s *Scheduler) Len() int { return len(s.pending) }

// Pending reports whether h is still waiting to fire.
func (s *Scheduler) Pending(h Handle) bool {
	_, ok := s.pending[h]
	return ok
}

// PendingFor returns how many actions are pending under owner.
func (s *Scheduler) PendingFor(owner any) int {
	return len(s.byOwner[owner])
}

// Schedule registers fn to run once delay has elapsed on the simulation
// clock. A negative delay is clamped to zero. The callback never runs
// synchronously: even a zero delay waits for the next Tick.
//
// owner must be comparable; it is only used as a key for CancelAll.
// A nil fn registers nothing and returns the zero Handle.
func (s *Scheduler) Schedule(owner any, delay time.Duration, fn func()) Handle {
	if fn == nil {
		return 0
	}
	if delay < 0 {
		delay = 0
	}
	s.next++
	a := &action{
		handle: s.next,
		owner:  owner,
		due:    s.now + delay,
		fn:     fn,
	}
	s.pending[a.handle] = a
	set, ok := s.byOwner[owner]
	if !ok {
		set = make(map[Handle]struct{}, 4)
		s.byOwner[owner] = set
	}
	set[a.handle] = struct{}{}
	heap.Push(&s.queue, a)
	return a.handle
}

// Cancel prevents h from firing. Unknown, fired and already cancelled
// handles are ignored.
func (s *Scheduler) Cancel(h Handle) {
	a, ok := s.pending[h]
	if !ok {
		return
	}
	s.forget(a)
	if a.index >= 0 {
		heap.Remove(&s.queue, a.index)
	}
}

// CancelAll cancels every action pending under owner and returns how many
// were cancelled.
func (s *Scheduler) CancelAll(owner any) int {
	set, ok := s.byOwner[owner]
	if !ok {
		return 0
	}
	handles := make([]Handle, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	for _, h := range handles {
		s.Cancel(h)
	}
	return len(handles)
}

// Tick advances the clock by dt and fires, in registration order, every
// action whose due time has been reached. The due set is snapshotted before
// any callback runs: callbacks may freely Schedule and Cancel, actions they
// schedule wait for a later Tick, and an action they cancel is skipped even
// if it is part of the snapshot.
//
// A panicking callback is not recovered.
func (s *Scheduler) Tick(dt time.Duration) {
	if dt > 0 {
		s.now += dt
	}
	for len(s.queue) > 0 && s.queue[0].due <= s.now {
		s.firing = append(s.firing, heap.Pop(&s.queue).(*action))
	}
	if len(s.firing) == 0 {
		return
	}
	sort.Slice(s.firing, func(i, j int) bool {
		return s.firing[i].handle < s.firing[j].handle
	})

	batch := s.firing
	s.firing = s.firing[len(s.firing):]
	for i, a := range batch {
		batch[i] = nil
		if _, ok := s.pending[a.handle]; !ok {
			continue // cancelled by an earlier callback in this batch
		}
		s.forget(a)
		a.fn()
	}
	s.firing = batch[:0]
}

// Reset drops every pending action without firing it. The clock keeps
// running and handles keep increasing.
func (s *Scheduler) Reset() {
	clear(s.pending)
	clear(s.byOwner)
	s.queue = s.queue[:0]
}

func (s *Scheduler) forget(a *action) {
	delete(s.pending, a.handle)
	if set, ok := s.byOwner[a.owner]; ok {
		delete(set, a.handle)
		if len(set) == 0 {
			delete(s.byOwner, a.owner)
		}
	}
}

// dueQueue is a min-heap ordered by due time, then handle.
type dueQueue []*action

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].handle < q[j].handle
}

func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *dueQueue) Push(x any) {
	a := x.(*action)
	a.index = len(*q)
	*q = append(*q, a)
}

func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*q = old[:n-1]
	return a
}
