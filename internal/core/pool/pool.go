package pool

import (
	"sync/atomic"
	"time"

	"github.com/flocksim/flocksim/internal/core/sched"
)

// Poolable is implemented by every pooled type. Deactivate is called once on
// each instance the pool creates, so idle instances start hidden; borrowers
// activate instances themselves and tear them down before releasing.
type Poolable interface {
	Deactivate()
}

// poolIDCounter gives every pool a distinct id so a handle can never be
// honoured by a pool that did not issue it.
var poolIDCounter atomic.Uint32

// Handle identifies one borrow of one pooled instance. The generation bumps
// on every release, invalidating handles held past their borrow.
type Handle struct {
	pool  uint32
	index uint32
	gen   uint32
}

func (h Handle) Index() uint32      { return h.index }
func (h Handle) Generation() uint32 { return h.gen }
func (h Handle) IsZero() bool       { return h.pool == 0 }

type entry[T Poolable] struct {
	item   T
	idle   bool
	gen    uint32
	expire sched.Handle
}

// Pool is an arena of reusable instances. It owns the idle/borrowed
// bookkeeping; the borrower owns the instance's behaviour while borrowed.
// Accessed only from the game loop goroutine; no locks.
type Pool[T Poolable] struct {
	id      uint32
	sched   *sched.Scheduler
	factory func() T
	entries []entry[T]
	free    []uint32 // LIFO: most recently released on top
}

// New creates a pool and eagerly builds preload idle instances.
func New[T Poolable](s *sched.Scheduler, factory func() T, preload int) *Pool[T] {
	p := &Pool[T]{
		id:      poolIDCounter.Add(1),
		sched:   s,
		factory: factory,
		entries: make([]entry[T], 0, max(preload, 8)),
		free:    make([]uint32, 0, max(preload, 8)),
	}
	for i := 0; i < preload; i++ {
		idx := p.create()
		p.free = append(p.free, idx)
	}
	return p
}

func (p *Pool[T]) create() uint32 {
	item := p.factory()
	item.Deactivate()
	idx := uint32(len(p.entries))
	p.entries = append(p.entries, entry[T]{item: item, idle: true})
	return idx
}

// Acquire borrows an idle instance, reusing the most recently released one,
// or grows the pool when none is idle.
func (p *Pool[T]) Acquire() (Handle, T) {
	var idx uint32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		idx = p.create()
	}
	e := &p.entries[idx]
	e.idle = false
	return Handle{pool: p.id, index: idx, gen: e.gen}, e.item
}

// AcquireWithTimeout borrows like Acquire and schedules an automatic Release
// after d. Releasing manually before then cancels the auto-return.
func (p *Pool[T]) AcquireWithTimeout(d time.Duration) (Handle, T) {
	h, item := p.Acquire()
	p.entries[h.index].expire = p.sched.Schedule(h, d, func() { p.Release(h) })
	return h, item
}

// Release returns a borrowed instance to the idle set. Releasing an idle
// instance, a stale handle or another pool's handle is a no-op.
// Release does not deactivate the instance.
func (p *Pool[T]) Release(h Handle) bool {
	e := p.lookup(h)
	if e == nil {
		return false
	}
	if !e.expire.IsZero() {
		p.sched.Cancel(e.expire)
		e.expire = 0
	}
	e.idle = true
	e.gen++
	p.free = append(p.free, h.index)
	return true
}

// Drain tears down and releases every borrowed instance, in arena order.
// teardown may release the handle itself; the follow-up Release is then a no-op.
func (p *Pool[T]) Drain(teardown func(Handle, T)) int {
	n := 0
	for i := range p.entries {
		if p.entries[i].idle {
			continue
		}
		h := Handle{pool: p.id, index: uint32(i), gen: p.entries[i].gen}
		if teardown != nil {
			teardown(h, p.entries[i].item)
		}
		p.Release(h)
		n++
	}
	return n
}

// Get returns the instance borrowed under h.
func (p *Pool[T]) Get(h Handle) (T, bool) {
	if e := p.lookup(h); e != nil {
		return e.item, true
	}
	var zero T
	return zero, false
}

// Owns reports whether h is a live borrow issued by this pool.
func (p *Pool[T]) Owns(h Handle) bool {
	return p.lookup(h) != nil
}

// Each calls fn for every borrowed instance, in arena order. fn may release
// the instance it is given.
func (p *Pool[T]) Each(fn func(Handle, T)) {
	for i := range p.entries {
		e := &p.entries[i]
		if e.idle {
			continue
		}
		fn(Handle{pool: p.id, index: uint32(i), gen: e.gen}, e.item)
	}
}

// Len returns the total number of instances owned by the pool.
func (p *Pool[T]) Len() int { return len(p.entries) }

// Idle returns the number of idle instances.
func (p *Pool[T]) Idle() int { return len(p.free) }

// Borrowed returns the number of instances currently lent out.
func (p *Pool[T]) Borrowed() int { return len(p.entries) - len(p.free) }

// Close cancels pending auto-returns and drops every instance. The pool
// must not be used afterwards.
func (p *Pool[T]) Close() {
	for i := range p.entries {
		if e := &p.entries[i]; !e.expire.IsZero() {
			p.sched.Cancel(e.expire)
		}
	}
	p.entries = nil
	p.free = nil
}

func (p *Pool[T]) lookup(h Handle) *entry[T] {
	if h.pool != p.id || int(h.index) >= len(p.entries) {
		return nil
	}
	e := &p.entries[h.index]
	if e.idle || e.gen != h.gen {
		return nil
	}
	return e
}
