package log

import (
	"go.uber.org/zap"
)

// Logger is the structured logger handed to every component.
type Logger struct {
	*zap.Logger
}

func NewLogger() *Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return &Logger{logger}
}

// NewDevelopment logs human-readable lines at debug level.
func NewDevelopment() *Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return &Logger{logger}
}

func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// Named returns a child logger tagged with the component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{l.Logger.Named(component)}
}
