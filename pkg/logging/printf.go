package logging

import (
	"fmt"
	"strings"
)

// Printf adapts a Logger to the renderer's Printf-style logger interface.
// Each call becomes one message at the adapter's level.
type Printf struct {
	Logger *Logger
	Level  Level
}

// NewPrintf wraps logger so it can be handed to the render core.
func NewPrintf(logger *Logger, level Level) Printf {
	return Printf{Logger: logger, Level: level}
}

// Printf formats the message, drops the trailing newline and logs it.
func (p Printf) Printf(format string, args ...interface{}) {
	if !p.Logger.Enabled(p.Level) {
		return
	}
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	p.Logger.log(p.Level, message)
}
