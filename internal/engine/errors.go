package engine

import "errors"

var (
	// ErrShutdownTimeout is returned when workers do not exit within the
	// bounded join window during shutdown.
	ErrShutdownTimeout = errors.New("engine: workers did not exit before shutdown deadline")

	// ErrQueueClosed is returned for enqueues after shutdown has begun.
	ErrQueueClosed = errors.New("engine: intent queue is closed")
)
