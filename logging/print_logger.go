package logging

import (
	"fmt"
	"log/slog"
)

// PrintLogger adapts a slog.Logger to the Println/Printf style loggers
// expected by the MQTT client and the HTTP recovery handler.
type PrintLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func NewPrintLogger(logger *slog.Logger, level slog.Level) *PrintLogger {
	return &PrintLogger{logger: logger, level: level}
}

func (l *PrintLogger) Println(v ...any) {
	l.print(fmt.Sprint(v...))
}

func (l *PrintLogger) Printf(format string, v ...any) {
	l.print(fmt.Sprintf(format, v...))
}

func (l *PrintLogger) print(msg string) {
	switch l.level {
	case slog.LevelError:
		l.logger.Error(msg)
	case slog.LevelWarn:
		l.logger.Warn(msg)
	case slog.LevelDebug:
		l.logger.Debug(msg)
	default:
		l.logger.Info(msg)
	}
}
