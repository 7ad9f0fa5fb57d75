// Package utils provides miscellaneous shared helpers: goroutine ids,
// caller-name extraction for logging, and a stopwatch.
package utils

import (
	"bytes"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

// GetGID returns the numeric id of the calling goroutine.
//
// The go runtime does not expose goroutine ids on purpose, but they are
// invaluable when debugging locking problems, so we parse the id out of the
// stack trace header.
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

var extractTrailingFnNameRE = regexp.MustCompile(`[^\/]*$`)
var extractPkgNameRE = regexp.MustCompile(`^[^.]*`)
var extractFnNameRE = regexp.MustCompile(`[^.]*$`)

// GetAFnName returns a string containing the function and package of the
// caller at the requested stack level (level 0 is the caller of GetAFnName).
func GetAFnName(level int) string {
	// Add one level to skip this function itself
	pc, _, _, _ := runtime.Caller(level + 1)
	functionObject := runtime.FuncForPC(pc)
	if nil == functionObject {
		return "unknown.unknown"
	}
	return extractTrailingFnNameRE.FindString(functionObject.Name())
}

// GetFuncPackage returns separate strings containing the calling function and
// package at the requested stack level, plus the caller's goroutine id.
func GetFuncPackage(level int) (fn string, pkg string, gid uint64) {
	funcPkg := GetAFnName(level + 1)

	pkg = extractPkgNameRE.FindString(funcPkg)
	fn = extractFnNameRE.FindString(funcPkg)
	gid = GetGID()

	return fn, pkg, gid
}

// Stopwatch measures elapsed time and formats it for diagnostics.
type Stopwatch struct {
	StartTime   time.Time
	IsRunning   bool
	ElapsedTime time.Duration
}

// NewStopwatch creates a Stopwatch and starts it.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{StartTime: time.Now(), IsRunning: true}
}

// Stop stops the Stopwatch and returns the elapsed time.
func (sw *Stopwatch) Stop() time.Duration {
	stopTime := time.Now()
	if sw.IsRunning {
		sw.ElapsedTime += stopTime.Sub(sw.StartTime)
		sw.IsRunning = false
	}
	return sw.ElapsedTime
}

// Restart restarts a stopped Stopwatch, accumulating onto the prior elapsed time.
func (sw *Stopwatch) Restart() {
	if !sw.IsRunning {
		sw.StartTime = time.Now()
		sw.IsRunning = true
	}
}

// Elapsed returns the elapsed time without stopping the Stopwatch.
func (sw *Stopwatch) Elapsed() time.Duration {
	if sw.IsRunning {
		return sw.ElapsedTime + time.Since(sw.StartTime)
	}
	return sw.ElapsedTime
}

// ElapsedMsString returns the elapsed time as a string in milliseconds.
func (sw *Stopwatch) ElapsedMsString() string {
	return fmt.Sprintf("%v", int64(sw.Elapsed()/time.Millisecond))
}
