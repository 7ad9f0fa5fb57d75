package main

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/minikern/minikern/barrier"
	"github.com/minikern/minikern/bbuf"
	"github.com/minikern/minikern/bcache"
	"github.com/minikern/minikern/blockdev"
	"github.com/minikern/minikern/conf"
	"github.com/minikern/minikern/kstats"
	"github.com/minikern/minikern/logger"
	"github.com/minikern/minikern/utils"
)

var (
	measureBarrier    bool
	measureCache      bool
	measureCondBuffer bool
	measureSemBuffer  bool
	opsPerThread      uint64
	threads           uint64
)

func usage(file *os.File) {
	fmt.Fprintf(file, "Usage:\n")
	fmt.Fprintf(file, "    %v [abcs] threads ops-per-thread conf-file [section.option=value]*\n", os.Args[0])
	fmt.Fprintf(file, "  where:\n")
	fmt.Fprintf(file, "    a                       run barrier rendezvous workout\n")
	fmt.Fprintf(file, "    b                       run block cache read/write workout\n")
	fmt.Fprintf(file, "    c                       run condition-variable bounded buffer workout\n")
	fmt.Fprintf(file, "    s                       run semaphore bounded buffer workout\n")
	fmt.Fprintf(file, "    threads                 number of concurrent workers\n")
	fmt.Fprintf(file, "    ops-per-thread          operations each worker performs\n")
	fmt.Fprintf(file, "    conf-file               input to conf.MakeConfMapFromFile()\n")
	fmt.Fprintf(file, "    [section.option=value]* optional input to confMap.UpdateFromStrings()\n")
	fmt.Fprintf(file, "\n")
	fmt.Fprintf(file, "Note: Precisely one workout selector must be specified\n")
}

func main() {
	var (
		confMap conf.ConfMap
		err     error
	)

	if 5 > len(os.Args) {
		usage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "a":
		measureBarrier = true
	case "b":
		measureCache = true
	case "c":
		measureCondBuffer = true
	case "s":
		measureSemBuffer = true
	default:
		fmt.Fprintf(os.Stderr, "os.Args[1] ('%v') must be one of 'a', 'b', 'c', or 's'\n", os.Args[1])
		os.Exit(1)
	}

	threads, err = strconv.ParseUint(os.Args[2], 10, 64)
	if nil != err {
		fmt.Fprintf(os.Stderr, "strconv.ParseUint(\"%v\", 10, 64) of threads failed: %v\n", os.Args[2], err)
		os.Exit(1)
	}
	if 0 == threads {
		fmt.Fprintf(os.Stderr, "threads must be a positive number\n")
		os.Exit(1)
	}

	opsPerThread, err = strconv.ParseUint(os.Args[3], 10, 64)
	if nil != err {
		fmt.Fprintf(os.Stderr, "strconv.ParseUint(\"%v\", 10, 64) of ops-per-thread failed: %v\n", os.Args[3], err)
		os.Exit(1)
	}
	if 0 == opsPerThread {
		fmt.Fprintf(os.Stderr, "ops-per-thread must be a positive number\n")
		os.Exit(1)
	}

	confMap, err = conf.MakeConfMapFromFile(os.Args[4])
	if nil != err {
		fmt.Fprintf(os.Stderr, "conf.MakeConfMapFromFile(\"%v\") failed: %v\n", os.Args[4], err)
		os.Exit(1)
	}

	if 5 < len(os.Args) {
		err = confMap.UpdateFromStrings(os.Args[5:])
		if nil != err {
			fmt.Fprintf(os.Stderr, "confMap.UpdateFromStrings(%#v) failed: %v\n", os.Args[5:], err)
			os.Exit(1)
		}
	}

	err = logger.Up(confMap)
	if nil != err {
		fmt.Fprintf(os.Stderr, "logger.Up() failed: %v\n", err)
		os.Exit(1)
	}

	stopwatch := utils.NewStopwatch()

	switch {
	case measureBarrier:
		err = barrierWorkout()
	case measureCache:
		err = cacheWorkout(confMap)
	case measureCondBuffer:
		err = condBufferWorkout(confMap)
	case measureSemBuffer:
		err = semBufferWorkout(confMap)
	}

	elapsed := stopwatch.Stop()

	if nil != err {
		logger.Errorf("cacheworkout: workout failed: %v", err)
		_ = logger.Down()
		os.Exit(1)
	}

	totalOps := threads * opsPerThread
	opsPerSecond := float64(totalOps) / elapsed.Seconds()
	latencyPerOpInMilliSeconds := 1000.0 * elapsed.Seconds() / float64(totalOps)

	fmt.Printf("%v ops in %v [%.0f ops/sec, %.4f ms/op]\n", totalOps, elapsed, opsPerSecond, latencyPerOpInMilliSeconds)
	fmt.Printf("%v", kstats.SprintStats("*", "*"))

	err = logger.Down()
	if nil != err {
		fmt.Fprintf(os.Stderr, "logger.Down() failed: %v\n", err)
		os.Exit(1)
	}
}

func barrierWorkout() (err error) {
	b := barrier.New(threads, "cacheworkout")

	var group errgroup.Group
	for worker := uint64(0); worker < threads; worker++ {
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				b.Wait()
			}
			return nil
		})
	}
	err = group.Wait()
	return
}

func cacheWorkout(confMap conf.ConfMap) (err error) {
	var (
		cacheSlots   uint32
		deviceBlocks uint32
	)

	deviceBlocks, err = confMap.FetchOptionValueUint32("Workout", "DeviceBlocks")
	if nil != err {
		return
	}
	cacheSlots, err = confMap.FetchOptionValueUint32("Workout", "CacheSlots")
	if nil != err {
		return
	}

	memDevice := blockdev.NewMemDevice(deviceBlocks)
	blockCache := bcache.New(memDevice, cacheSlots)

	var group errgroup.Group
	for worker := uint64(0); worker < threads; worker++ {
		worker := worker
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				blockno := uint32((worker*13 + op) % uint64(deviceBlocks))
				block, readErr := blockCache.Read(0, blockno)
				if nil != readErr {
					return readErr
				}
				block.Data[0] = byte(worker)
				if writeErr := blockCache.Write(block); nil != writeErr {
					blockCache.Release(block)
					return writeErr
				}
				blockCache.Release(block)
			}
			return nil
		})
	}
	err = group.Wait()
	return
}

func condBufferWorkout(confMap conf.ConfMap) (err error) {
	var bufferCapacity uint64

	bufferCapacity, err = confMap.FetchOptionValueUint64("Workout", "BufferCapacity")
	if nil != err {
		return
	}

	condBuffer := bbuf.NewCondBuffer(bufferCapacity, "cacheworkout")

	var group errgroup.Group
	for worker := uint64(0); worker < threads; worker++ {
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				condBuffer.Insert(int(op))
			}
			return nil
		})
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				_ = condBuffer.Remove()
			}
			return nil
		})
	}
	err = group.Wait()
	condBuffer.Dump()
	return
}

func semBufferWorkout(confMap conf.ConfMap) (err error) {
	var bufferCapacity uint64

	bufferCapacity, err = confMap.FetchOptionValueUint64("Workout", "BufferCapacity")
	if nil != err {
		return
	}

	semBuffer := bbuf.NewSemBuffer(bufferCapacity, "cacheworkout")

	var group errgroup.Group
	for worker := uint64(0); worker < threads; worker++ {
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				semBuffer.Produce(int(op))
			}
			return nil
		})
		group.Go(func() error {
			for op := uint64(0); op < opsPerThread; op++ {
				_ = semBuffer.Consume()
			}
			return nil
		})
	}
	err = group.Wait()
	return
}
