package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/df07/go-sphere-tracer/pkg/core"
	"github.com/df07/go-sphere-tracer/pkg/logging"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// WebLogger implements core.Logger by sending messages to a console channel
type WebLogger struct {
	renderID    string
	consoleChan chan<- ConsoleMessage
	logger      *logging.Logger
}

// NewWebLogger creates a new web logger for a specific render. Messages are
// also written to logger at debug level; a nil logger uses the global one.
func NewWebLogger(renderID string, consoleChan chan<- ConsoleMessage, logger *logging.Logger) core.Logger {
	if logger == nil {
		logger = logging.L()
	}
	return &WebLogger{
		renderID:    renderID,
		consoleChan: consoleChan,
		logger:      logger.With(logging.String("render_id", renderID)),
	}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	wl.logger.Debug(strings.TrimRight(message, "\n"))

	// Send to web console if channel is available (non-blocking)
	if wl.consoleChan != nil {
		select {
		case wl.consoleChan <- ConsoleMessage{
			Message:   message,
			Timestamp: time.Now(),
			Level:     "info",
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
}
