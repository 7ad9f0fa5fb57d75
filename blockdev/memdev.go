package blockdev

import (
	"sync"

	"github.com/creachadair/cityhash"

	"github.com/minikern/minikern/kerror"
	"github.com/minikern/minikern/logger"
)

// MemDevice is an in-memory Device. Each stored block carries a checksum
// computed at write time and verified at read time, so corruption of the
// backing store (or a buggy caller scribbling on a shared buffer) surfaces
// as a CorruptDataError rather than silently bad data.
//
// FailNextRead and FailNextWrite arm one-shot transport failures for tests
// and fault-injection workloads.
type MemDevice struct {
	sync.Mutex
	numBlocks     uint32
	blocks        map[uint64][]byte // key is packKey(dev, blockno)
	checksums     map[uint64]uint64 // cityhash.Hash64 of the stored block
	failNextRead  bool
	failNextWrite bool
}

func packKey(dev uint32, blockno uint32) (key uint64) {
	key = (uint64(dev) << 32) | uint64(blockno)
	return
}

// RW implements Device.
func (memDevice *MemDevice) RW(dev uint32, blockno uint32, data []byte, isWrite bool) (err error) {
	if uint32(len(data)) < BlockSize {
		err = kerror.NewError(kerror.InvalidArgError,
			"blockdev: RW(dev: %v, blockno: %v) called with a %v byte buffer", dev, blockno, len(data))
		return
	}
	if blockno >= memDevice.numBlocks {
		err = kerror.NewError(kerror.OutOfRangeError,
			"blockdev: RW(dev: %v, blockno: %v) beyond device size of %v blocks", dev, blockno, memDevice.numBlocks)
		return
	}

	key := packKey(dev, blockno)

	memDevice.Lock()
	defer memDevice.Unlock()

	if isWrite {
		if memDevice.failNextWrite {
			memDevice.failNextWrite = false
			err = kerror.NewError(kerror.IOError, "blockdev: injected write failure (dev: %v, blockno: %v)", dev, blockno)
			logger.Tracef("blockdev: RW() returning injected write failure for dev %v blockno %v", dev, blockno)
			return
		}

		stored, ok := memDevice.blocks[key]
		if !ok {
			stored = make([]byte, BlockSize)
			memDevice.blocks[key] = stored
		}
		copy(stored, data[:BlockSize])
		memDevice.checksums[key] = cityhash.Hash64(stored)

		globals.stats.WriteOps.Increment()
		return
	}

	if memDevice.failNextRead {
		memDevice.failNextRead = false
		err = kerror.NewError(kerror.IOError, "blockdev: injected read failure (dev: %v, blockno: %v)", dev, blockno)
		logger.Tracef("blockdev: RW() returning injected read failure for dev %v blockno %v", dev, blockno)
		return
	}

	stored, ok := memDevice.blocks[key]
	if ok {
		if cityhash.Hash64(stored) != memDevice.checksums[key] {
			err = kerror.NewError(kerror.CorruptDataError,
				"blockdev: checksum mismatch on read (dev: %v, blockno: %v)", dev, blockno)
			return
		}
		copy(data[:BlockSize], stored)
	} else {
		// never written; reads as zeroes
		for i := uint32(0); i < BlockSize; i++ {
			data[i] = 0
		}
	}

	globals.stats.ReadOps.Increment()
	return
}

// FailNextRead arms a one-shot read failure: the next read RW() call will
// return an IOError without touching the backing store.
func (memDevice *MemDevice) FailNextRead() {
	memDevice.Lock()
	memDevice.failNextRead = true
	memDevice.Unlock()
}

// FailNextWrite arms a one-shot write failure.
func (memDevice *MemDevice) FailNextWrite() {
	memDevice.Lock()
	memDevice.failNextWrite = true
	memDevice.Unlock()
}

// CorruptBlock flips a bit in the stored copy of the given block without
// updating its checksum, so the next read of it reports CorruptDataError.
// It is a no-op if the block was never written.
func (memDevice *MemDevice) CorruptBlock(dev uint32, blockno uint32) {
	key := packKey(dev, blockno)

	memDevice.Lock()
	stored, ok := memDevice.blocks[key]
	if ok {
		stored[0] ^= 0x01
	}
	memDevice.Unlock()
}
