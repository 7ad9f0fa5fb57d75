package halt

import (
	"strings"
	"testing"
)

// catchHalt invokes testFunc with a test-mode halt callback installed and
// returns the halt diagnostic, or nil if no halt occurred.
func catchHalt(testFunc func()) (haltErr error) {
	SetTestModeHaltCB(func(err error) {
		haltErr = err
	})
	defer func() {
		SetTestModeHaltCB(nil)
		_ = recover() // the backstop panic after the callback returns
	}()

	testFunc()
	return
}

func TestTriggerArming(t *testing.T) {
	if len(List()) != len(HaltLabelStrings) {
		t.Fatalf("List() returned %v triggers, expected %v", len(List()), len(HaltLabelStrings))
	}

	Arm("halt.testHaltLabel1", 2)

	armed := Dump()
	if remaining, ok := armed["halt.testHaltLabel1"]; !ok || 2 != remaining {
		t.Fatalf("Dump() after Arm(,2) returned %v", armed)
	}

	// First crossing only decrements
	haltErr := catchHalt(func() {
		Trigger(apiTestHaltLabel1)
	})
	if nil != haltErr {
		t.Fatalf("Trigger() halted one crossing early: %v", haltErr)
	}

	// Second crossing halts
	haltErr = catchHalt(func() {
		Trigger(apiTestHaltLabel1)
	})
	if nil == haltErr {
		t.Fatalf("Trigger() failed to halt on the armed crossing")
	}
	if !strings.Contains(haltErr.Error(), "halt.testHaltLabel1") {
		t.Errorf("halt diagnostic does not name the trigger: %v", haltErr)
	}
}

func TestDisarm(t *testing.T) {
	Arm("halt.testHaltLabel2", 1)
	Disarm("halt.testHaltLabel2")

	haltErr := catchHalt(func() {
		Trigger(apiTestHaltLabel2)
	})
	if nil != haltErr {
		t.Fatalf("Trigger() halted on a disarmed trigger: %v", haltErr)
	}
}

func TestUnarmedTriggerIsFree(t *testing.T) {
	haltErr := catchHalt(func() {
		Trigger(BcacheRecycleEntry)
	})
	if nil != haltErr {
		t.Fatalf("Trigger() halted without being armed: %v", haltErr)
	}
}

func TestHaltf(t *testing.T) {
	haltErr := catchHalt(func() {
		Haltf("refcnt went negative on slot %v", 7)
	})
	if nil == haltErr {
		t.Fatalf("Haltf() did not halt")
	}
	if !strings.Contains(haltErr.Error(), "refcnt went negative on slot 7") {
		t.Errorf("halt diagnostic mangled: %v", haltErr)
	}
}

func TestArmUnknownLabelHalts(t *testing.T) {
	haltErr := catchHalt(func() {
		Arm("no.such.label", 1)
	})
	if nil == haltErr {
		t.Fatalf("Arm() of unknown label did not halt")
	}
}
