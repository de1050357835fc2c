package channel

import (
	"log/slog"
	"time"
)

const (
	DefaultCapacity = 10
	DefaultTimeout  = 10 * time.Second
)

type options struct {
	backing Backing
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*options)

// WithBacking selects where the channel storage lives. Heap is the default.
func WithBacking(b Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDefaultTimeout sets the timeout that handles opened on the channel use
// for blocking transfers. Zero means wait without a deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

type handleOptions struct {
	nonBlocking bool
	timeout     time.Duration
}

type HandleOption func(*handleOptions)

// OpenNonBlocking makes every transfer on the handle fail with ErrWouldBlock
// instead of waiting.
func OpenNonBlocking() HandleOption {
	return func(o *handleOptions) {
		o.nonBlocking = true
	}
}

// OpenWithTimeout overrides the channel's default timeout for the handle.
func OpenWithTimeout(d time.Duration) HandleOption {
	return func(o *handleOptions) {
		o.timeout = d
	}
}
