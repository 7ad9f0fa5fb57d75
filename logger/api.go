// Package logger provides logging wrappers
//
// These wrappers allow us to standardize logging while still using a
// third-party logging package. The package is currently implemented on top
// of the sirupsen/logrus package:
//   https://github.com/sirupsen/logrus
//
// The APIs here add the calling package and function to all logs, so that
// log searches can be filtered by subsystem. Trace logging is
// enabled/disabled on a per-package basis via the "Logging.TraceLevelLogging"
// config option.
package logger

import (
	log "github.com/sirupsen/logrus"

	"github.com/minikern/minikern/utils"
)

type Level int

// Our logging levels - These are the different logging levels supported by this package.
const (
	// PanicLevel corresponds to logrus.PanicLevel; logrus will log and then call panic with the log message
	PanicLevel Level = iota
	// FatalLevel corresponds to logrus.FatalLevel; logrus will log and then call os.Exit(1)
	FatalLevel
	// ErrorLevel corresponds to logrus.ErrorLevel
	ErrorLevel
	// WarnLevel corresponds to logrus.WarnLevel
	WarnLevel
	// InfoLevel corresponds to logrus.InfoLevel; general operational entries about what's going on
	InfoLevel
	// TraceLevel is used for operational logs that trace the success path through a package.
	// Whether these are logged is controlled per package; when enabled they are
	// logged at logrus.InfoLevel.
	TraceLevel
	// DebugLevel is used for very verbose logging; controlled per package, logged
	// at logrus.DebugLevel.
	DebugLevel
)

// packageTraceSettings controls whether tracing is enabled for particular
// packages. If a package is in this map and set to "true" then trace logs for
// it are emitted. A package not in this map never traces.
//
// Note: in order to enable tracing for a package via the
// "Logging.TraceLevelLogging" config option, the package must already be in
// this map (with any value).
var packageTraceSettings = map[string]bool{
	"bcache":   false,
	"bbuf":     false,
	"barrier":  false,
	"blockdev": false,
	"ksync":    false,
	"logger":   false,
}

func traceEnabled(pkg string) bool {
	enabled, ok := packageTraceSettings[pkg]
	return ok && enabled
}

// entry returns a logrus entry annotated with the calling function, package,
// and goroutine id. level is the number of stack frames between the original
// log call site and this function.
func entry(level int) *log.Entry {
	fn, pkg, gid := utils.GetFuncPackage(level + 1)
	return log.WithFields(log.Fields{
		"function":  fn,
		"package":   pkg,
		"goroutine": gid,
	})
}

// Tracef logs at trace level, if tracing is enabled for the calling package.
func Tracef(format string, args ...interface{}) {
	_, pkg, _ := utils.GetFuncPackage(1)
	if !traceEnabled(pkg) {
		return
	}
	entry(1).Infof("trace: "+format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	entry(1).Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	entry(1).Infof(format, args...)
}

// Warnf logs at warning level.
func Warnf(format string, args ...interface{}) {
	entry(1).Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	entry(1).Errorf(format, args...)
}

// ErrorfWithError logs at error level, annotating the log with the supplied error.
func ErrorfWithError(err error, format string, args ...interface{}) {
	entry(1).WithField("error", err).Errorf(format, args...)
}

// Fatalf logs at fatal level and then exits.
func Fatalf(format string, args ...interface{}) {
	entry(1).Fatalf(format, args...)
}

// PanicfWithError logs at panic level, annotating the log with the supplied
// error, then panics with the formatted message.
func PanicfWithError(err error, format string, args ...interface{}) {
	entry(1).WithField("error", err).Panicf(format, args...)
}

// LogSafely logs at error level and swallows any panic raised by the logging
// machinery itself; used on paths that are already handling a fatal error.
func LogSafely(format string, args ...interface{}) {
	defer func() {
		_ = recover()
	}()
	entry(2).Errorf(format, args...)
}

func init() {
	// Defaults prior to Up(): text formatter to stderr, debug level so
	// nothing is suppressed before configuration arrives.
	log.SetFormatter(&log.TextFormatter{DisableColors: true})
	log.SetLevel(log.DebugLevel)
}
