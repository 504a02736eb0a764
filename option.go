package tcpsub

import (
	"net"
	"time"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect drops the subscriber when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and keeps the subscriber.
	Continue
)

// Default configuration values.
const (
	// defaultReadBufferSize is the size of the Reader's bufio buffer.
	defaultReadBufferSize = 4096
	// defaultQueueSize is the number of frames queued per subscriber.
	defaultQueueSize = 16
	// defaultWriteDeadline bounds a single subscriber write.
	defaultWriteDeadline = time.Minute
)

// options holds the configuration for a Reader.
type options struct {
	codec  Codec
	logger Logger

	dialTimeout    time.Duration // zero means no timeout
	readBufferSize int
}

// Option is a function that configures a Reader.
type Option func(*options)

// checkOptions sets default values for Reader options.
func checkOptions(opts *options) {
	if opts.codec == nil {
		opts.codec = JSON
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}
}

// CustomCodecOption returns an Option that sets the codec used by ReadDecoded.
// JSON is used when no codec is set.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// DialTimeoutOption bounds how long Dial waits for the connection.
func DialTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// ReadBufferSizeOption sets the size of the read buffer in front of the socket.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// publisherOptions holds the configuration for a Publisher.
type publisherOptions struct {
	codec  Codec
	logger Logger

	// onError is called when a subscriber fails or falls behind.
	// Returns Disconnect to drop the subscriber, Continue to keep it.
	onError     func(error) ErrorAction
	onSubscribe func(id string, addr net.Addr)

	bufferSize      int           // frames queued per subscriber
	writeDeadline   time.Duration
	shutdownTimeout time.Duration
}

// PublisherOption is a function that configures a Publisher.
type PublisherOption func(*publisherOptions)

// checkPublisherOptions sets default values for Publisher options.
func checkPublisherOptions(opts *publisherOptions) {
	if opts.codec == nil {
		opts.codec = JSON
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultQueueSize
	}
	if opts.writeDeadline <= 0 {
		opts.writeDeadline = defaultWriteDeadline
	}
}

// PublisherCodecOption sets the codec used by PublishValue.
func PublisherCodecOption(codec Codec) PublisherOption {
	return func(o *publisherOptions) {
		o.codec = codec
	}
}

// PublisherLoggerOption sets the logger for the publisher.
func PublisherLoggerOption(logger Logger) PublisherOption {
	return func(o *publisherOptions) {
		o.logger = logger
	}
}

// BufferSizeOption sets how many frames may be queued for one subscriber
// before Publish treats it as falling behind.
func BufferSizeOption(size int) PublisherOption {
	return func(o *publisherOptions) {
		o.bufferSize = size
	}
}

// WriteDeadlineOption bounds how long one write to a subscriber may block,
// including the final flush on shutdown. A subscriber that stays stalled
// past it is handled by the OnErrorOption callback. Default is one minute.
func WriteDeadlineOption(d time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		o.writeDeadline = d
	}
}

// OnErrorOption sets the error callback.
// It is invoked when a subscriber write fails or its queue is full.
// Return Disconnect to drop the subscriber, or Continue to keep it
// (the frame is dropped for that subscriber).
func OnErrorOption(cb func(error) ErrorAction) PublisherOption {
	return func(o *publisherOptions) {
		o.onError = cb
	}
}

// OnSubscribeOption sets a callback invoked for each accepted subscriber.
func OnSubscribeOption(cb func(id string, addr net.Addr)) PublisherOption {
	return func(o *publisherOptions) {
		o.onSubscribe = cb
	}
}

// ShutdownTimeoutOption sets the graceful shutdown timeout.
// When the Serve context is canceled, the publisher keeps accepting and
// serving subscribers for up to this duration before it stops. Close
// bypasses the remaining time. Default is 0 (immediate shutdown).
func ShutdownTimeoutOption(timeout time.Duration) PublisherOption {
	return func(o *publisherOptions) {
		o.shutdownTimeout = timeout
	}
}
