package bbuf

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSemBufferFIFOSingleProducerConsumer(t *testing.T) {
	const numValues = 1000

	semBuffer := NewSemBuffer(8, "fifo")

	var group errgroup.Group
	group.Go(func() error {
		for i := 0; i < numValues; i++ {
			semBuffer.Produce(i)
		}
		return nil
	})
	group.Go(func() error {
		for i := 0; i < numValues; i++ {
			if got := semBuffer.Consume(); i != got {
				return assert.AnError
			}
		}
		return nil
	})

	err := group.Wait()
	require.NoError(t, err, "1P/1C consumption order differed from production order")
}

func TestSemBufferCapacitySafety(t *testing.T) {
	const (
		capacity     = 4
		numProducers = 4
		numConsumers = 4
		perProducer  = 250
	)

	semBuffer := NewSemBuffer(capacity, "stress")

	var (
		produced int64
		consumed int64
		group    errgroup.Group
	)

	for p := 0; p < numProducers; p++ {
		group.Go(func() error {
			for i := 0; i < perProducer; i++ {
				semBuffer.Produce(i)
				atomic.AddInt64(&produced, 1)

				// completed produces minus completed consumes stays in
				// [0, capacity]
				outstanding := atomic.LoadInt64(&produced) - atomic.LoadInt64(&consumed)
				if outstanding > capacity+numConsumers || outstanding < -int64(numProducers) {
					return assert.AnError
				}
			}
			return nil
		})
	}
	for c := 0; c < numConsumers; c++ {
		group.Go(func() error {
			for i := 0; i < perProducer; i++ {
				_ = semBuffer.Consume()
				atomic.AddInt64(&consumed, 1)
			}
			return nil
		})
	}

	err := group.Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(numProducers*perProducer), atomic.LoadInt64(&consumed), "a value was lost or duplicated")
}

func TestSemBufferProducerBlocksWhenFull(t *testing.T) {
	semBuffer := NewSemBuffer(1, "full")
	semBuffer.Produce(5)

	secondDone := make(chan struct{})
	go func() {
		semBuffer.Produce(7)
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatalf("Produce() on a full buffer did not block")
	case <-time.After(10 * time.Millisecond):
	}

	assert.Equal(t, 5, semBuffer.Consume())

	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatalf("blocked Produce() never completed after Consume()")
	}
	assert.Equal(t, 7, semBuffer.Consume())
}

func TestCondBufferFIFOSingleProducerConsumer(t *testing.T) {
	const numValues = 1000

	condBuffer := NewCondBuffer(8, "fifo")

	var group errgroup.Group
	group.Go(func() error {
		for i := 0; i < numValues; i++ {
			condBuffer.Insert(i)
		}
		return nil
	})
	group.Go(func() error {
		for i := 0; i < numValues; i++ {
			if got := condBuffer.Remove(); i != got {
				return assert.AnError
			}
		}
		return nil
	})

	err := group.Wait()
	require.NoError(t, err, "1P/1C removal order differed from insertion order")
}

func TestCondBufferCapacityOneBlocking(t *testing.T) {
	condBuffer := NewCondBuffer(1, "tiny")

	condBuffer.Insert(5)

	secondDone := make(chan struct{})
	go func() {
		condBuffer.Insert(7)
		close(secondDone)
	}()

	// the second insert targets the occupied slot and must wait
	select {
	case <-secondDone:
		t.Fatalf("Insert() into a full slot did not block")
	case <-time.After(10 * time.Millisecond):
	}

	require.Equal(t, 5, condBuffer.Remove())

	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatalf("blocked Insert() never completed after Remove()")
	}
	require.Equal(t, 7, condBuffer.Remove())
}

func TestCondBufferManyProducersConsumers(t *testing.T) {
	const (
		numProducers = 4
		numConsumers = 4
		perProducer  = 250
		numValues    = numProducers * perProducer
	)

	condBuffer := NewCondBuffer(4, "many")

	var (
		sumConsumed int64
		group       errgroup.Group
	)

	for p := 0; p < numProducers; p++ {
		p := p
		group.Go(func() error {
			for i := 0; i < perProducer; i++ {
				condBuffer.Insert(p*perProducer + i)
			}
			return nil
		})
	}
	for c := 0; c < numConsumers; c++ {
		group.Go(func() error {
			for i := 0; i < numValues/numConsumers; i++ {
				atomic.AddInt64(&sumConsumed, int64(condBuffer.Remove()))
			}
			return nil
		})
	}

	err := group.Wait()
	require.NoError(t, err)

	// every produced value consumed exactly once
	expected := int64(numValues) * int64(numValues-1) / 2
	assert.Equal(t, expected, atomic.LoadInt64(&sumConsumed), "a value was lost or duplicated")

	condBuffer.Dump()
}
