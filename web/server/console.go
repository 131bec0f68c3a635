package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "debug", "info", "warn", "error"
}

// ConsoleHandler is a slog.Handler that forwards records to a render's web
// console. Sends never block; messages are dropped when the channel is full.
type ConsoleHandler struct {
	level       slog.Level
	attrs       []slog.Attr
	consoleChan chan<- ConsoleMessage
}

// NewConsoleHandler creates a console handler for a specific render
func NewConsoleHandler(renderID string, level slog.Level, consoleChan chan<- ConsoleMessage) *ConsoleHandler {
	return &ConsoleHandler{
		level:       level,
		attrs:       []slog.Attr{slog.String("render", renderID)},
		consoleChan: consoleChan,
	}
}

// Enabled implements slog.Handler
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.consoleChan != nil && level >= h.level
}

// Handle implements slog.Handler
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	select {
	case h.consoleChan <- ConsoleMessage{
		Message:   b.String(),
		Timestamp: r.Time,
		Level:     strings.ToLower(r.Level.String()),
	}:
	default:
		// Channel full, skip (don't block)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}
