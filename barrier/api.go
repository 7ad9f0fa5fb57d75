// Package barrier implements a reusable N-party rendezvous: Wait blocks
// each arriving participant until all N have arrived, then releases them
// together and resets for the next use.
package barrier

import (
	"github.com/minikern/minikern/halt"
	"github.com/minikern/minikern/ksync"
	"github.com/minikern/minikern/logger"
)

// Barrier is a rendezvous point for a fixed set of participants. Create one
// with New; it is reusable indefinitely across generations.
type Barrier struct {
	lock         *ksync.SleepLock
	arrived      *ksync.Cond
	numParties   uint64
	partiesLeft  uint64 // arrivals still due in the current generation
	generation   uint64 // advances once per full rendezvous
	Name         string // optional, for diagnostics
}

// New returns a Barrier for numParties participants. numParties of zero is
// a fatal configuration error.
func New(numParties uint64, name string) (b *Barrier) {
	if 0 == numParties {
		halt.Haltf("barrier: New() called with numParties == 0 (name: %q)", name)
	}

	lock := &ksync.SleepLock{Name: "barrier." + name}
	b = &Barrier{
		lock:        lock,
		arrived:     ksync.NewCond(lock),
		numParties:  numParties,
		partiesLeft: numParties,
		Name:        name,
	}
	return
}

// Wait blocks the caller until all participants of the current generation
// have called Wait, then returns in every participant and resets the
// barrier for the next generation. A waiter released from generation g can
// never be conflated with a fresh arrival in generation g+1: each waiter
// sleeps until the generation it arrived in has advanced.
func (b *Barrier) Wait() {
	b.lock.Lock()

	b.partiesLeft--
	if 0 == b.partiesLeft {
		// last arrival: open the barrier and reset for reuse
		b.partiesLeft = b.numParties
		b.generation++
		logger.Tracef("barrier: %q generation %v complete", b.Name, b.generation)
		b.arrived.Broadcast()
		b.lock.Unlock()
		return
	}

	arrivedIn := b.generation
	for arrivedIn == b.generation {
		b.arrived.Wait()
	}
	b.lock.Unlock()
}
