package util

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLogLevel = LevelInfo
	logMu           sync.Mutex

	gray   = color.New(color.FgHiBlack).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
)

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	currentLogLevel = level
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are being logged
func IsQuiet() bool {
	return level() >= LevelError
}

// SetColors enables or disables colored output.
// fatih/color already disables itself when stderr is not a terminal.
func SetColors(enabled bool) {
	color.NoColor = !enabled
}

func level() LogLevel {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogLevel
}

func emit(min LogLevel, tag string, paint func(a ...interface{}) string, format string, args ...interface{}) {
	if level() > min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	logMu.Lock()
	fmt.Fprintf(os.Stderr, "%s %s %s\n", paint(timestamp()), tag, msg)
	logMu.Unlock()
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	emit(LevelDebug, "[DEBUG]", gray, format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	emit(LevelInfo, "[INFO] ", cyan, format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	emit(LevelWarn, "[WARN] ", yellow, format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	emit(LevelError, "[ERROR]", red, format, args...)
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	emit(LevelInfo, "[OK]   ", green, format, args...)
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
