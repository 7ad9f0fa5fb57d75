package logger

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/minikern/minikern/conf"
)

var logFile *os.File = nil

// Up configures the logging destination and per-package trace settings from
// the supplied confMap. Recognized options:
//
//   [Logging]
//   LogFilePath       = <path>          # optional; default stderr only
//   LogToConsole      = true|false      # in addition to LogFilePath
//   TraceLevelLogging = <pkg> <pkg> ... # packages to trace
func Up(confMap conf.ConfMap) (err error) {
	log.SetFormatter(&log.TextFormatter{DisableColors: true})

	logFilePath, _ := confMap.FetchOptionValueString("Logging", "LogFilePath")
	if "" != logFilePath {
		logFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if nil != err {
			log.Errorf("couldn't open log file: %v", err)
			return err
		}
	}

	// Determine whether we should log to console. Default is false.
	logToConsole, err := confMap.FetchOptionValueBool("Logging", "LogToConsole")
	if nil != err {
		logToConsole = false
	}

	if "" != logFilePath {
		if logToConsole {
			log.SetOutput(io.MultiWriter(logFile, os.Stderr))
		} else {
			log.SetOutput(logFile)
		}
	}
	// else: accept default destination of stderr

	// We always enable max logging in logrus and decide in this package
	// whether a given line is emitted.
	log.SetLevel(log.DebugLevel)

	traceConfSlice, _ := confMap.FetchOptionValueStringSlice("Logging", "TraceLevelLogging")
	setTraceLoggingLevel(traceConfSlice)

	err = nil
	return
}

// Down terminates the logger package.
func Down() (err error) {
	// We open and close our own logfile
	if nil != logFile {
		err = logFile.Close()
		logFile = nil
	}
	return
}

func setTraceLoggingLevel(confSlice []string) {
	for pkg := range packageTraceSettings {
		packageTraceSettings[pkg] = false
	}
	for _, pkg := range confSlice {
		if _, ok := packageTraceSettings[pkg]; ok {
			packageTraceSettings[pkg] = true
		}
	}
}
