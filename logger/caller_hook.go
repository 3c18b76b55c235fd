package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	loggerPackage  = "NEXUS-Terminal-sub001/logger."
	maxCallerDepth = 24
)

// callerHook points entry.Caller at the first frame outside logrus and this
// package so wrapped calls report where they were made.
type callerHook struct{}

func (callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := callSite(); ok {
		entry.Caller = &frame
	}
	return nil
}

func callSite() (runtime.Frame, bool) {
	pcs := make([]uintptr, maxCallerDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !internalFrame(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func internalFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, loggerPackage)
}
