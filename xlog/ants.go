package xlog

import (
	"fmt"
)

// AntsXLogger adapts XLogger to the ants goroutine pool's Logger
// interface so pool internals log through the same sink as the rest
// of the application.
type AntsXLogger struct {
	logger XLogger
}

func (l *AntsXLogger) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewAntsXLogger(logger XLogger) *AntsXLogger {
	return &AntsXLogger{
		logger: logger,
	}
}
