// Package bbuf provides two fixed-capacity bounded-buffer implementations
// for producer/consumer coordination: one built purely on counting
// semaphores, one built on per-slot locks with condition variables.
//
// Both block the caller rather than returning a "buffer busy" soft error: a
// producer blocks while the buffer is full, a consumer while it is empty.
// Neither supports cancellation or timeouts.
package bbuf

import (
	"fmt"

	"github.com/minikern/minikern/halt"
	"github.com/minikern/minikern/ksync"
	"github.com/minikern/minikern/logger"
)

// SemBuffer is a bounded buffer of ints coordinated entirely with counting
// semaphores: one counting empty slots, one counting filled slots, and one
// binary semaphore per side serializing the producers and the consumers.
//
// One producer and one consumer may be active inside the buffer at a time;
// any number may call concurrently. FIFO ordering is guaranteed only with a
// single producer and a single consumer.
type SemBuffer struct {
	buffer   []int
	capacity uint64
	nextProd uint64 // write cursor, advances modulo capacity
	nextCons uint64 // read cursor, advances modulo capacity
	empty    *ksync.Semaphore
	full     *ksync.Semaphore
	prod     *ksync.Semaphore // producer-side mutual exclusion
	cons     *ksync.Semaphore // consumer-side mutual exclusion
}

// NewSemBuffer returns a SemBuffer of the given capacity. A capacity of
// zero is a fatal configuration error.
func NewSemBuffer(capacity uint64, name string) (semBuffer *SemBuffer) {
	if 0 == capacity {
		halt.Haltf("bbuf: NewSemBuffer() called with capacity == 0 (name: %q)", name)
	}

	semBuffer = &SemBuffer{
		buffer:   make([]int, capacity),
		capacity: capacity,
		empty:    ksync.NewSemaphore(capacity, name+".empty"),
		full:     ksync.NewSemaphore(0, name+".full"),
		prod:     ksync.NewSemaphore(1, name+".prod"),
		cons:     ksync.NewSemaphore(1, name+".cons"),
	}
	return
}

// Produce appends value, blocking while the buffer is full.
func (semBuffer *SemBuffer) Produce(value int) {
	semBuffer.empty.Acquire()
	semBuffer.prod.Acquire()

	semBuffer.buffer[semBuffer.nextProd] = value
	semBuffer.nextProd = (semBuffer.nextProd + 1) % semBuffer.capacity

	semBuffer.prod.Release()
	semBuffer.full.Release()
}

// Consume removes and returns the oldest value, blocking while the buffer
// is empty.
func (semBuffer *SemBuffer) Consume() (value int) {
	semBuffer.full.Acquire()
	semBuffer.cons.Acquire()

	value = semBuffer.buffer[semBuffer.nextCons]
	semBuffer.nextCons = (semBuffer.nextCons + 1) % semBuffer.capacity

	semBuffer.cons.Release()
	semBuffer.empty.Release()
	return
}

// condSlot is one independently lockable cell of a CondBuffer. The filled
// flag is only flipped while the slot's own lock is held.
type condSlot struct {
	value    int
	filled   bool
	lock     ksync.SleepLock
	inserted *ksync.Cond // signaled when the slot becomes filled
	emptied  *ksync.Cond // signaled when the slot becomes empty
}

// CondBuffer is a bounded buffer of ints built from independently lockable
// slots coordinated with condition variables, plus two global ordering
// locks serializing inserters and removers against their own kind.
type CondBuffer struct {
	slots      []condSlot
	capacity   uint64
	tail       uint64 // write cursor, guarded by insertLock
	head       uint64 // read cursor, guarded by deleteLock
	insertLock ksync.SleepLock
	deleteLock ksync.SleepLock
	printLock  ksync.SleepLock // guards diagnostic output only
	Name       string
}

// NewCondBuffer returns a CondBuffer of the given capacity. A capacity of
// zero is a fatal configuration error.
func NewCondBuffer(capacity uint64, name string) (condBuffer *CondBuffer) {
	if 0 == capacity {
		halt.Haltf("bbuf: NewCondBuffer() called with capacity == 0 (name: %q)", name)
	}

	condBuffer = &CondBuffer{
		slots:    make([]condSlot, capacity),
		capacity: capacity,
		Name:     name,
	}
	condBuffer.insertLock.Name = name + ".insertLock"
	condBuffer.deleteLock.Name = name + ".deleteLock"
	condBuffer.printLock.Name = name + ".printLock"
	for i := range condBuffer.slots {
		slot := &condBuffer.slots[i]
		slot.lock.Name = fmt.Sprintf("%s.slot[%d]", name, i)
		slot.inserted = ksync.NewCond(&slot.lock)
		slot.emptied = ksync.NewCond(&slot.lock)
	}
	return
}

// Insert appends value, blocking while the target slot is still filled.
// Inserters are globally ordered, so concurrent producers fill slots in
// cursor order.
func (condBuffer *CondBuffer) Insert(value int) {
	condBuffer.insertLock.Lock()

	slot := &condBuffer.slots[condBuffer.tail]
	slot.lock.Lock()
	for slot.filled {
		slot.emptied.Wait()
	}
	slot.value = value
	slot.filled = true
	slot.inserted.Signal()
	slot.lock.Unlock()

	condBuffer.tail = (condBuffer.tail + 1) % condBuffer.capacity
	condBuffer.insertLock.Unlock()
}

// Remove removes and returns the oldest value, blocking while the target
// slot is still empty. Removers are globally ordered.
func (condBuffer *CondBuffer) Remove() (value int) {
	condBuffer.deleteLock.Lock()

	slot := &condBuffer.slots[condBuffer.head]
	slot.lock.Lock()
	for !slot.filled {
		slot.inserted.Wait()
	}
	value = slot.value
	slot.filled = false
	slot.emptied.Signal()
	slot.lock.Unlock()

	condBuffer.head = (condBuffer.head + 1) % condBuffer.capacity
	condBuffer.deleteLock.Unlock()
	return
}

// Dump logs the buffer's current occupancy. The print lock serializes
// concurrent dumpers and is independent of buffer state.
func (condBuffer *CondBuffer) Dump() {
	condBuffer.printLock.Lock()

	occupied := 0
	for i := range condBuffer.slots {
		slot := &condBuffer.slots[i]
		slot.lock.Lock()
		if slot.filled {
			occupied++
		}
		slot.lock.Unlock()
	}
	logger.Infof("bbuf: %q holds %v of %v slots", condBuffer.Name, occupied, condBuffer.capacity)

	condBuffer.printLock.Unlock()
}
