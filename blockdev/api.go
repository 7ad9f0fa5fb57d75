// Package blockdev defines the block transport consumed by the buffer
// cache and provides an in-memory implementation suitable for tests and
// workload drivers.
package blockdev

// BlockSize is the size, in bytes, of every block moved through a Device.
const BlockSize = 1024

// Device is the transport beneath the buffer cache. A Device moves whole
// blocks between the caller's buffer and stable storage.
//
// RW copies BlockSize bytes between data and block blockno of device unit
// dev: storage to data when isWrite is false, data to storage when isWrite
// is true. data must be at least BlockSize bytes. A transport failure is
// reported as a recoverable error to the caller; it is never fatal to the
// process.
type Device interface {
	RW(dev uint32, blockno uint32, data []byte, isWrite bool) (err error)
}

// NewMemDevice returns an in-memory Device holding numBlocks blocks per
// device unit. Blocks read before ever being written are zero-filled.
func NewMemDevice(numBlocks uint32) (memDevice *MemDevice) {
	memDevice = &MemDevice{
		numBlocks: numBlocks,
		blocks:    make(map[uint64][]byte),
		checksums: make(map[uint64]uint64),
	}
	return
}
