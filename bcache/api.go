// Package bcache implements a fixed-capacity, least-recently-used cache of
// disk blocks shared by concurrent callers.
//
// The cache owns a pool of block-sized slots allocated once at
// initialization. Each slot is identified by a (device, block number) pair;
// at most one slot holds a given pair while any caller references it. A
// pool-wide SpinLock guards the lookup index, the recency list, and every
// reference count; it is never held across transport I/O or a sleep. A
// per-slot SleepLock is the sole guard of a slot's contents and validity
// flag, so a caller holding it may block on device I/O without stalling the
// rest of the pool.
//
// Recency is tracked by an intrusive doubly linked list threaded through a
// fixed arena by integer slot id, with a sentinel at index numSlots. A slot
// moves to the most-recently-used end only when its last holder releases
// it, so eviction victims are chosen among zero-reference slots from the
// least-recently-used end.
//
// Pool exhaustion on a miss and lock-discipline violations are fatal;
// transport failures are returned to the caller.
package bcache

import (
	"fmt"

	"github.com/NVIDIA/sortedmap"

	"github.com/minikern/minikern/blockdev"
	"github.com/minikern/minikern/halt"
	"github.com/minikern/minikern/kerror"
	"github.com/minikern/minikern/ksync"
	"github.com/minikern/minikern/logger"
)

// Block is one pool slot. Dev, Blockno, Valid, and Data may only be
// examined or mutated while holding the slot's lock (Acquire/Read return
// with it held); the reference count and recency position belong to the
// pool and are touched only under the pool lock.
type Block struct {
	Dev     uint32
	Blockno uint32
	Valid   bool   // Data reflects on-device contents
	Data    []byte // blockdev.BlockSize bytes

	lock     ksync.SleepLock
	refcnt   uint32
	slot     int  // arena index, fixed at initialization
	assigned bool // identity (Dev, Blockno) has been set at least once
}

// BlockCache is the pool state object. Create one with New; the zero value
// is not usable.
type BlockCache struct {
	poolLock  ksync.SpinLock
	transport blockdev.Device
	blocks    []Block
	numSlots  int

	// Intrusive recency list threaded by slot id through prev/next, with
	// the sentinel at index numSlots. next[sentinel] is the MRU-most slot,
	// prev[sentinel] the LRU-most.
	prev []int
	next []int

	// lookup index: packKey(Dev, Blockno) -> slot id, for every slot whose
	// identity is currently assigned (valid or not)
	index sortedmap.LLRBTree
}

func packKey(dev uint32, blockno uint32) (key uint64) {
	key = (uint64(dev) << 32) | uint64(blockno)
	return
}

// New returns a BlockCache of numSlots block-sized slots atop the supplied
// transport. numSlots of zero is a fatal configuration error.
func New(transport blockdev.Device, numSlots uint32) (blockCache *BlockCache) {
	if 0 == numSlots {
		halt.Haltf("bcache: New() called with numSlots == 0")
	}

	blockCache = &BlockCache{
		transport: transport,
		blocks:    make([]Block, numSlots),
		numSlots:  int(numSlots),
		prev:      make([]int, numSlots+1),
		next:      make([]int, numSlots+1),
	}
	blockCache.poolLock.Name = "bcache.poolLock"
	blockCache.index = sortedmap.NewLLRBTree(sortedmap.CompareUint64, blockCache)

	// chain the arena through the sentinel in slot order
	sentinel := blockCache.numSlots
	link := sentinel
	for slot := 0; slot < blockCache.numSlots; slot++ {
		blockCache.blocks[slot].slot = slot
		blockCache.blocks[slot].Data = make([]byte, blockdev.BlockSize)
		blockCache.blocks[slot].lock.Name = fmt.Sprintf("bcache.slot[%d]", slot)

		blockCache.next[link] = slot
		blockCache.prev[slot] = link
		link = slot
	}
	blockCache.next[link] = sentinel
	blockCache.prev[sentinel] = link

	logger.Tracef("bcache: New() built a pool of %v slots", numSlots)
	return
}

// caller must hold poolLock
func (blockCache *BlockCache) unlink(slot int) {
	blockCache.next[blockCache.prev[slot]] = blockCache.next[slot]
	blockCache.prev[blockCache.next[slot]] = blockCache.prev[slot]
}

// caller must hold poolLock
func (blockCache *BlockCache) linkMRU(slot int) {
	sentinel := blockCache.numSlots
	blockCache.next[slot] = blockCache.next[sentinel]
	blockCache.prev[slot] = sentinel
	blockCache.prev[blockCache.next[sentinel]] = slot
	blockCache.next[sentinel] = slot
}

// Acquire returns the unique Block for (dev, blockno) with its reference
// count incremented and its per-slot lock held by the caller. On a miss the
// least-recently-used zero-reference slot is recycled for the new identity
// and returned invalid; no I/O is performed. A pool with every slot
// referenced is exhausted, which is fatal.
func (blockCache *BlockCache) Acquire(dev uint32, blockno uint32) (block *Block) {
	key := packKey(dev, blockno)

	blockCache.poolLock.Lock()

	slotAsValue, hit, err := blockCache.index.GetByKey(key)
	if nil != err {
		blockCache.poolLock.Unlock()
		halt.HaltWithErr(err)
	}
	if hit {
		block = &blockCache.blocks[slotAsValue.(int)]
		block.refcnt++
		globals.stats.Hits.Increment()
		blockCache.poolLock.Unlock()

		block.lock.Lock()
		return
	}

	globals.stats.Misses.Increment()

	// scan from the LRU end for a recyclable slot
	sentinel := blockCache.numSlots
	scanLength := uint64(0)
	for slot := blockCache.prev[sentinel]; slot != sentinel; slot = blockCache.prev[slot] {
		scanLength++
		victim := &blockCache.blocks[slot]
		if 0 != victim.refcnt {
			continue
		}

		halt.Trigger(halt.BcacheRecycleEntry)

		if victim.assigned {
			ok, deleteErr := blockCache.index.DeleteByKey(packKey(victim.Dev, victim.Blockno))
			if nil != deleteErr || !ok {
				blockCache.poolLock.Unlock()
				halt.Haltf("bcache: Acquire(dev: %v, blockno: %v): victim slot %v missing from index (err: %v)",
					dev, blockno, slot, deleteErr)
			}
		}

		victim.Dev = dev
		victim.Blockno = blockno
		victim.Valid = false
		victim.assigned = true
		victim.refcnt = 1

		ok, putErr := blockCache.index.Put(key, slot)
		if nil != putErr || !ok {
			blockCache.poolLock.Unlock()
			halt.Haltf("bcache: Acquire(dev: %v, blockno: %v): index insert failed (err: %v)", dev, blockno, putErr)
		}

		globals.stats.Recycles.Increment()
		globals.stats.RecycleScanLength.Add(scanLength)
		blockCache.poolLock.Unlock()

		victim.lock.Lock()
		block = victim
		return
	}

	blockCache.poolLock.Unlock()
	halt.Haltf("bcache: Acquire(dev: %v, blockno: %v): all %v slots referenced; block pool exhausted",
		dev, blockno, blockCache.numSlots)
	return
}

// Read returns the Block for (dev, blockno) as Acquire does, additionally
// guaranteeing its contents reflect the on-device data. A hit on a valid
// slot performs no I/O. A transport failure releases the slot and is
// returned to the caller; it is never fatal.
func (blockCache *BlockCache) Read(dev uint32, blockno uint32) (block *Block, err error) {
	block = blockCache.Acquire(dev, blockno)

	if !block.Valid {
		err = blockCache.transport.RW(dev, blockno, block.Data, false)
		if nil != err {
			if 0 > kerror.Errno(err) {
				err = kerror.AddError(err, kerror.IOError)
			}
			logger.ErrorfWithError(err, "bcache: Read(dev: %v, blockno: %v) transport read failed", dev, blockno)
			blockCache.Release(block)
			block = nil
			return
		}
		halt.Trigger(halt.BcacheMissReadExit)
		block.Valid = true
		globals.stats.TransportReads.Increment()
	}

	return
}

// Write pushes the block's current contents to the device synchronously.
// The caller must hold the block's lock (fatal usage error otherwise).
// Validity and reference count are untouched; a transport failure is
// returned to the caller.
func (blockCache *BlockCache) Write(block *Block) (err error) {
	if !block.lock.Holding() {
		halt.Haltf("bcache: Write(dev: %v, blockno: %v) called without holding the block lock",
			block.Dev, block.Blockno)
	}

	err = blockCache.transport.RW(block.Dev, block.Blockno, block.Data, true)
	if nil != err {
		if 0 > kerror.Errno(err) {
			err = kerror.AddError(err, kerror.IOError)
		}
		logger.ErrorfWithError(err, "bcache: Write(dev: %v, blockno: %v) transport write failed",
			block.Dev, block.Blockno)
		return
	}

	globals.stats.TransportWrites.Increment()
	return
}

// Release drops the caller's hold on the block: the per-slot lock is
// released, then the reference count is decremented under the pool lock.
// When the count reaches zero the slot is relinked at the most-recently-used
// end; this is the sole place recency ordering is updated. The caller must
// hold the block's lock, and the count must be positive (fatal otherwise).
func (blockCache *BlockCache) Release(block *Block) {
	if !block.lock.Holding() {
		halt.Haltf("bcache: Release(dev: %v, blockno: %v) called without holding the block lock",
			block.Dev, block.Blockno)
	}

	block.lock.Unlock()

	blockCache.poolLock.Lock()
	if 0 == block.refcnt {
		blockCache.poolLock.Unlock()
		halt.Haltf("bcache: Release(dev: %v, blockno: %v) would take the reference count below zero",
			block.Dev, block.Blockno)
	}
	block.refcnt--
	if 0 == block.refcnt {
		halt.Trigger(halt.BcacheReleaseToMRU)
		blockCache.unlink(block.slot)
		blockCache.linkMRU(block.slot)
	}
	blockCache.poolLock.Unlock()
}

// Pin increments the block's reference count under the pool lock, keeping
// it resident without holding its content lock. Recency is unaffected.
func (blockCache *BlockCache) Pin(block *Block) {
	blockCache.poolLock.Lock()
	block.refcnt++
	blockCache.poolLock.Unlock()
}

// Unpin undoes a Pin. Unpinning a block whose reference count is already
// zero is a fatal usage error.
func (blockCache *BlockCache) Unpin(block *Block) {
	blockCache.poolLock.Lock()
	if 0 == block.refcnt {
		blockCache.poolLock.Unlock()
		halt.Haltf("bcache: Unpin(dev: %v, blockno: %v) would take the reference count below zero",
			block.Dev, block.Blockno)
	}
	block.refcnt--
	blockCache.poolLock.Unlock()
}

// DumpKey implements sortedmap.LLRBTreeCallbacks.
func (blockCache *BlockCache) DumpKey(key sortedmap.Key) (keyAsString string, err error) {
	keyAsUint64, ok := key.(uint64)
	if !ok {
		err = fmt.Errorf("bcache: DumpKey() argument not a uint64")
		return
	}
	keyAsString = fmt.Sprintf("%08X:%08X", keyAsUint64>>32, keyAsUint64&0xFFFFFFFF)
	return
}

// DumpValue implements sortedmap.LLRBTreeCallbacks.
func (blockCache *BlockCache) DumpValue(value sortedmap.Value) (valueAsString string, err error) {
	valueAsInt, ok := value.(int)
	if !ok {
		err = fmt.Errorf("bcache: DumpValue() argument not an int")
		return
	}
	valueAsString = fmt.Sprintf("slot %d", valueAsInt)
	return
}
