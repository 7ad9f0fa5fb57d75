// Package ksync provides the synchronization primitive layer of the kernel
// core: a busy-wait lock for short metadata critical sections, a
// sleep-capable lock for unbounded waits, a condition variable bound to a
// sleep lock, and a counting semaphore.
//
// The discipline is two-tier: a SpinLock protects fast metadata updates
// (list links, cursors, counters) and must never be held across device I/O
// or a sleep; a SleepLock (or a Cond wait) is used wherever a caller may
// block for an unbounded time. A Cond wait releases its SleepLock
// atomically with going to sleep and reacquires it before returning, so
// there is no window for a lost wakeup.
//
// None of these primitives support cancellation or timeouts: a blocked
// caller waits until another thread satisfies the condition.
package ksync

import (
	"sync"

	"github.com/minikern/minikern/halt"
	"github.com/minikern/minikern/utils"
)

// SpinLock is a non-reentrant mutual-exclusion lock for short critical
// sections.
//
// The name reflects its role (the busy-wait tier of the two-tier locking
// discipline) rather than its mechanism: sync.Mutex already spins briefly
// before parking, which is the right behavior on a preemptible scheduler.
//
// The zero value is an unlocked SpinLock.
type SpinLock struct {
	wrapped sync.Mutex
	Name    string // optional, for diagnostics
}

func (sl *SpinLock) Lock() {
	sl.wrapped.Lock()
}

func (sl *SpinLock) Unlock() {
	sl.wrapped.Unlock()
}

// SleepLock is a non-reentrant mutual-exclusion lock that suspends the
// calling goroutine while the lock is busy. It tracks its holder, so misuse
// (unlocking a lock the caller does not hold) is detected and is fatal.
//
// The zero value is an unlocked SleepLock.
type SleepLock struct {
	mu       sync.Mutex // guards the fields below
	lockWait *sync.Cond // where Lock() contenders sleep
	locked   bool
	holder   uint64 // goroutine id of the holder, valid while locked
	Name     string // optional, for diagnostics
}

// cond returns the lock-contender condition variable, creating it on first
// use so that the zero value of SleepLock is usable. Caller must hold sl.mu.
func (sl *SleepLock) cond() *sync.Cond {
	if nil == sl.lockWait {
		sl.lockWait = sync.NewCond(&sl.mu)
	}
	return sl.lockWait
}

// Lock acquires the SleepLock, sleeping while it is held elsewhere.
func (sl *SleepLock) Lock() {
	sl.mu.Lock()
	if sl.locked {
		globals.stats.SleepLockWaits.Increment()
	}
	for sl.locked {
		sl.cond().Wait()
	}
	sl.locked = true
	sl.holder = utils.GetGID()
	sl.mu.Unlock()
}

// Unlock releases the SleepLock and wakes one contender. Unlocking a
// SleepLock not held by the calling goroutine is a fatal usage error.
func (sl *SleepLock) Unlock() {
	gid := utils.GetGID()

	sl.mu.Lock()
	if !sl.locked || gid != sl.holder {
		sl.mu.Unlock()
		halt.Haltf("ksync: Unlock() of SleepLock %q by goroutine %v which does not hold it", sl.Name, gid)
	}
	sl.locked = false
	sl.holder = 0
	sl.cond().Signal()
	sl.mu.Unlock()
}

// Holding reports whether the calling goroutine holds the SleepLock.
func (sl *SleepLock) Holding() bool {
	gid := utils.GetGID()

	sl.mu.Lock()
	holding := sl.locked && gid == sl.holder
	sl.mu.Unlock()

	return holding
}

// Cond is a condition variable bound to a SleepLock.
//
// Wait() must be called with the SleepLock held; it releases the lock
// atomically with going to sleep and has reacquired it by the time it
// returns. Waiters must re-check their condition in a loop, as with
// sync.Cond.
type Cond struct {
	lk     *SleepLock
	notify *sync.Cond // on lk.mu, so release-and-sleep is atomic
}

// NewCond returns a Cond bound to the supplied SleepLock.
func NewCond(lk *SleepLock) *Cond {
	return &Cond{
		lk:     lk,
		notify: sync.NewCond(&lk.mu),
	}
}

// Wait atomically releases the bound SleepLock and suspends the calling
// goroutine until Signal or Broadcast; the lock is held again on return.
// Calling Wait without holding the lock is a fatal usage error.
func (c *Cond) Wait() {
	gid := utils.GetGID()

	c.lk.mu.Lock()
	if !c.lk.locked || gid != c.lk.holder {
		c.lk.mu.Unlock()
		halt.Haltf("ksync: Cond.Wait() on SleepLock %q by goroutine %v which does not hold it", c.lk.Name, gid)
	}

	// Release the lock and wake a Lock() contender, then sleep. Both
	// happen under lk.mu, so no wakeup can slip between them.
	c.lk.locked = false
	c.lk.holder = 0
	c.lk.cond().Signal()

	globals.stats.CondWaits.Increment()
	c.notify.Wait()

	// Reacquire the lock before returning to the caller.
	for c.lk.locked {
		c.lk.cond().Wait()
	}
	c.lk.locked = true
	c.lk.holder = gid
	c.lk.mu.Unlock()
}

// Signal wakes one waiter, if any. The caller need not hold the lock.
func (c *Cond) Signal() {
	c.lk.mu.Lock()
	c.notify.Signal()
	c.lk.mu.Unlock()
}

// Broadcast wakes all waiters. The caller need not hold the lock.
func (c *Cond) Broadcast() {
	c.lk.mu.Lock()
	c.notify.Broadcast()
	c.lk.mu.Unlock()
}

// Semaphore is a counting semaphore: Acquire decrements the count, blocking
// while it is zero; Release increments it and never blocks.
type Semaphore struct {
	mu    sync.Mutex
	avail *sync.Cond // where Acquire() waits
	count uint64
	Name  string // optional, for diagnostics
}

// NewSemaphore returns a Semaphore with the given initial count.
func NewSemaphore(initial uint64, name string) *Semaphore {
	sem := &Semaphore{
		count: initial,
		Name:  name,
	}
	sem.avail = sync.NewCond(&sem.mu)
	return sem
}

// Acquire decrements the semaphore, sleeping while the count is zero.
func (sem *Semaphore) Acquire() {
	sem.mu.Lock()
	if 0 == sem.count {
		globals.stats.SemaphoreWaits.Increment()
	}
	for 0 == sem.count {
		sem.avail.Wait()
	}
	sem.count--
	sem.mu.Unlock()
}

// Release increments the semaphore and wakes one waiter. It never blocks.
func (sem *Semaphore) Release() {
	sem.mu.Lock()
	sem.count++
	sem.avail.Signal()
	sem.mu.Unlock()
}
