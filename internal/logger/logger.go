// Package logger is a small leveled wrapper around the standard log package.
package logger

import (
	"log"
	"strings"
)

// Level orders log severities; smaller is more verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var level = LevelInfo

// SetLogLevel sets the global level from its name ("DEBUG", "INFO", "WARN",
// "ERROR", "FATAL", case-insensitive). Unknown names fall back to INFO.
func SetLogLevel(name string) {
	level = ParseLevel(name)
}

// ParseLevel maps a level name to a Level, defaulting to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

func Debugf(format string, v ...interface{}) {
	if level <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Infof(format string, v ...interface{}) {
	if level <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if level <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

func Errorf(format string, v ...interface{}) {
	if level <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs regardless of level and exits the process.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
