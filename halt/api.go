// Package halt implements the fatal, unrecoverable error path of the kernel
// core, plus armable fault triggers for crash-injection testing.
//
// A halt is reserved for invariant violations: block-pool exhaustion,
// releasing a lock that is not held, a reference count going negative.
// These are programming errors in the caller, not runtime conditions, so the
// process terminates with a diagnostic rather than returning a soft error.
//
// Triggers let a test arm a HALT at a named point in the kernel (e.g. just
// before a cache slot is recycled) after a given number of crossings, to
// exercise recovery and invariant checking.
package halt

import (
	"fmt"
	"os"
	"syscall"

	"github.com/minikern/minikern/logger"
)

// Note 1: Following const block and HaltLabelStrings should be kept in sync
// Note 2: HaltLabelStrings should be easily parseable as URL components

const (
	apiTestHaltLabel1 = iota
	apiTestHaltLabel2
	BcacheRecycleEntry
	BcacheMissReadExit
	BcacheReleaseToMRU
)

var (
	HaltLabelStrings = []string{
		"halt.testHaltLabel1",
		"halt.testHaltLabel2",
		"bcache.recycle_Entry",
		"bcache.missRead_Exit",
		"bcache.releaseToMRU",
	}
)

// Arm sets up a HALT on the haltAfterCount'd call to Trigger()
func Arm(haltLabelString string, haltAfterCount uint32) {
	globals.Lock()
	haltLabel, ok := globals.triggerNamesToNumbers[haltLabelString]
	if !ok {
		globals.Unlock()
		HaltWithErr(fmt.Errorf("halt.Arm(haltLabelString='%v',) - label unknown", haltLabelString))
		return
	}
	if 0 == haltAfterCount {
		globals.Unlock()
		HaltWithErr(fmt.Errorf("halt.Arm(haltLabel=%v,) called with haltAfterCount==0", haltLabelString))
		return
	}
	globals.armedTriggers[haltLabel] = haltAfterCount
	globals.Unlock()
}

// Disarm removes a previously armed trigger via a call to Arm()
func Disarm(haltLabelString string) {
	globals.Lock()
	haltLabel, ok := globals.triggerNamesToNumbers[haltLabelString]
	if !ok {
		globals.Unlock()
		HaltWithErr(fmt.Errorf("halt.Disarm(haltLabelString='%v') - label unknown", haltLabelString))
		return
	}
	delete(globals.armedTriggers, haltLabel)
	globals.Unlock()
}

// Trigger decrements the haltAfterCount if armed and, should it reach 0, HALTs
func Trigger(haltLabel uint32) {
	globals.Lock()
	numTriggersRemaining, armed := globals.armedTriggers[haltLabel]
	if !armed {
		globals.Unlock()
		return
	}
	numTriggersRemaining--
	if 0 == numTriggersRemaining {
		globals.Unlock()
		HaltWithErr(fmt.Errorf("halt.Trigger(haltLabel==%v) triggered HALT", globals.triggerNumbersToNames[haltLabel]))
		return
	}
	globals.armedTriggers[haltLabel] = numTriggersRemaining
	globals.Unlock()
}

// Dump returns a map of currently armed triggers and their remaining trigger count
func Dump() (armedTriggers map[string]uint32) {
	armedTriggers = make(map[string]uint32)
	globals.Lock()
	for k, v := range globals.armedTriggers {
		armedTriggers[globals.triggerNumbersToNames[k]] = v
	}
	globals.Unlock()
	return
}

// List returns a slice of available triggers
func List() (availableTriggers []string) {
	globals.Lock()
	availableTriggers = make([]string, 0, len(globals.triggerNamesToNumbers))
	for k := range globals.triggerNamesToNumbers {
		availableTriggers = append(availableTriggers, k)
	}
	globals.Unlock()
	return
}

// Haltf terminates the process with a formatted diagnostic identifying the
// violated contract. It does not return.
func Haltf(format string, a ...interface{}) {
	HaltWithErr(fmt.Errorf(format, a...))
}

// HaltWithErr terminates the process with the supplied diagnostic. It does
// not return.
//
// If a test-mode callback has been installed via SetTestModeHaltCB the
// callback is invoked instead of exiting; should the callback itself return,
// we panic with the diagnostic so that control never continues past a HALT.
func HaltWithErr(err error) {
	globals.Lock()
	testModeHaltCB := globals.testModeHaltCB
	globals.Unlock()

	if nil == testModeHaltCB {
		logger.LogSafely("HALT: %v", err)
		fmt.Println(err)
		os.Exit(int(syscall.SIGKILL))
	}

	testModeHaltCB(err)
	panic(err)
}
