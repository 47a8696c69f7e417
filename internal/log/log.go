// Package log holds the logger shared by the systick packages.
package log

import (
	"strings"

	"github.com/intuitivelabs/slog"
)

// Log is the generic log.
var Log slog.Log = slog.New(slog.LWARN, slog.LbackTraceS|slog.LlocInfoS,
	slog.LStdErr)

// SetLevel changes the log level from a config name
// ("err", "warn", "info", "dbg"). Unknown names are ignored and false is
// returned.
func SetLevel(name string) bool {
	switch strings.ToLower(name) {
	case "err", "error":
		slog.SetLevel(&Log, slog.LERR)
	case "warn", "warning":
		slog.SetLevel(&Log, slog.LWARN)
	case "info":
		slog.SetLevel(&Log, slog.LINFO)
	case "dbg", "debug":
		slog.SetLevel(&Log, slog.LDBG)
	default:
		return false
	}
	return true
}

// ERRon is a shorthand for checking if logging at LERR level is enabled.
func ERRon() bool {
	return Log.ERRon()
}

// ERR is a shorthand for logging an error message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, "ERROR: ", f, a...)
}

// WARNon is a shorthand for checking if logging at LWARN level is enabled.
func WARNon() bool {
	return Log.WARNon()
}

// WARN is a shorthand for logging a warning message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, "WARNING: ", f, a...)
}

// INFOon is a shorthand for checking if logging at LINFO level is enabled.
func INFOon() bool {
	return Log.INFOon()
}

// INFO is a shorthand for logging an info message.
func INFO(f string, a ...interface{}) {
	Log.LLog(slog.LINFO, 1, "INFO: ", f, a...)
}

// DBGon is a shorthand for checking if logging at LDBG level is enabled.
func DBGon() bool {
	return Log.DBGon()
}

// DBG is a shorthand for logging a debug message.
func DBG(f string, a ...interface{}) {
	Log.LLog(slog.LDBG, 1, "DBG: ", f, a...)
}
