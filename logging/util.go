package logging

import (
	"log/slog"
	"strings"
)

// LevelFromString maps "DEBUG", "INFO", "WARN" and "ERROR" to a level,
// anything else (or nil) is INFO.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(*str))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
