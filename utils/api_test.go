package utils

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetGID(t *testing.T) {
	myGID := GetGID()
	if 0 == myGID {
		t.Fatalf("GetGID() returned 0 for a live goroutine")
	}

	var (
		otherGID uint64
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		otherGID = GetGID()
		wg.Done()
	}()
	wg.Wait()

	if myGID == otherGID {
		t.Fatalf("GetGID() returned the same id (%v) for two distinct goroutines", myGID)
	}
}

func TestGetFuncPackage(t *testing.T) {
	fn, pkg, gid := GetFuncPackage(0)
	if "TestGetFuncPackage" != fn {
		t.Errorf("GetFuncPackage() returned fn %q, expected \"TestGetFuncPackage\"", fn)
	}
	if "utils" != pkg {
		t.Errorf("GetFuncPackage() returned pkg %q, expected \"utils\"", pkg)
	}
	if gid != GetGID() {
		t.Errorf("GetFuncPackage() returned gid %v, expected %v", gid, GetGID())
	}

	if !strings.Contains(GetAFnName(0), "utils.") {
		t.Errorf("GetAFnName(0) lacks package qualifier: %q", GetAFnName(0))
	}
}

func TestStopwatch(t *testing.T) {
	sw := NewStopwatch()
	time.Sleep(5 * time.Millisecond)
	elapsed := sw.Stop()
	if elapsed <= 0 {
		t.Fatalf("Stopwatch.Stop() returned non-positive duration %v", elapsed)
	}

	frozen := sw.Elapsed()
	time.Sleep(2 * time.Millisecond)
	if sw.Elapsed() != frozen {
		t.Fatalf("stopped Stopwatch kept accumulating time")
	}

	sw.Restart()
	time.Sleep(2 * time.Millisecond)
	if sw.Elapsed() <= frozen {
		t.Fatalf("restarted Stopwatch did not accumulate additional time")
	}
}
