package logger

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/minikern/minikern/conf"
)

func TestLogEntryFields(t *testing.T) {
	var logBuf bytes.Buffer

	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Logging.TraceLevelLogging=logger",
	})
	if nil != err {
		t.Fatalf("MakeConfMapFromStrings() failed: %v", err)
	}

	err = Up(confMap)
	if nil != err {
		t.Fatalf("logger.Up() failed: %v", err)
	}
	defer func() {
		_ = Down()
	}()

	log.SetOutput(&logBuf)

	Infof("cache warmed with %v slots", 30)

	logged := logBuf.String()
	if !strings.Contains(logged, "cache warmed with 30 slots") {
		t.Errorf("log output missing message: %q", logged)
	}
	if !strings.Contains(logged, "package=logger") {
		t.Errorf("log output missing package field: %q", logged)
	}
	if !strings.Contains(logged, "function=TestLogEntryFields") {
		t.Errorf("log output missing function field: %q", logged)
	}

	// Tracing was enabled for this package above
	logBuf.Reset()
	Tracef("trace line %v", 1)
	if !strings.Contains(logBuf.String(), "trace line 1") {
		t.Errorf("trace output missing despite tracing enabled: %q", logBuf.String())
	}

	// And is off for unknown packages after reconfiguration
	setTraceLoggingLevel([]string{})
	logBuf.Reset()
	Tracef("trace line %v", 2)
	if strings.Contains(logBuf.String(), "trace line 2") {
		t.Errorf("trace output present despite tracing disabled: %q", logBuf.String())
	}
}
