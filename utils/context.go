package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds connection setup against the state store,
	// the Redis broker, and other per-call backend work.
	DefaultTimeout = 10 * time.Second

	// LongTimeout is for operations that legitimately take a while,
	// like draining in-flight searches on shutdown.
	LongTimeout = 30 * time.Second

	// ShortTimeout is for liveness probes against backing services.
	ShortTimeout = 2 * time.Second
)

// WithTimeout bounds parent by DefaultTimeout.
func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

// WithLongTimeout bounds parent by LongTimeout.
func WithLongTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, LongTimeout)
}

// WithShortTimeout bounds parent by ShortTimeout.
func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}
