package tcpsub

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrConnectionClosed is returned when queueing to a closed subscriber.
var ErrConnectionClosed = errors.New("connection closed")

// ErrBufferFull is returned when a subscriber's send queue is full.
// This indicates backpressure: the subscriber is not reading fast enough.
var ErrBufferFull = errors.New("send buffer full")

// errStopped ends the loops of a subscriber whose queue has been flushed.
var errStopped = errors.New("subscriber stopped")

// subscriber is one connected Reader as seen from the Publisher. Encoded
// frames are queued by Publish and written by the subscriber's write loop.
type subscriber struct {
	id      string
	rawConn *net.TCPConn
	logger  Logger
	opts    *publisherOptions

	sendMsg  chan []byte
	quit     chan struct{}
	stopOnce sync.Once
	stopping atomic.Bool
	closed   atomic.Bool
}

func newSubscriber(id string, c *net.TCPConn, opts *publisherOptions) *subscriber {
	return &subscriber{
		id:      id,
		rawConn: c,
		logger:  opts.logger,
		opts:    opts,
		sendMsg: make(chan []byte, opts.bufferSize),
		quit:    make(chan struct{}),
	}
}

// run starts the subscriber's read and write loops and blocks until one of
// them fails, stop has flushed the queue, or ctx is canceled. The connection
// is closed when run returns.
func (s *subscriber) run(ctx context.Context) error {
	group, child := errgroup.WithContext(ctx)

	// Subscribers never send; unblock the drain read once the group is done.
	stop := context.AfterFunc(child, func() {
		_ = s.rawConn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	group.Go(func() error {
		return s.readLoop()
	})

	group.Go(func() error {
		return s.writeLoop(child)
	})

	err := group.Wait()
	s.close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, errStopped) {
		return nil
	}
	return err
}

// stop asks the write loop to flush what is queued and end the subscriber.
// Frames queued after stop are rejected.
func (s *subscriber) stop() {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		close(s.quit)
	})
}

// close marks the subscriber closed and closes the connection.
// Safe to call multiple times.
func (s *subscriber) close() error {
	if s.closed.Swap(true) {
		return nil // already closed
	}
	return s.rawConn.Close()
}

// enqueue queues an encoded frame without blocking.
func (s *subscriber) enqueue(data []byte) error {
	if s.closed.Load() || s.stopping.Load() {
		return ErrConnectionClosed
	}

	select {
	case s.sendMsg <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// enqueueContext queues an encoded frame, waiting for queue space until ctx is done.
func (s *subscriber) enqueueContext(ctx context.Context, data []byte) error {
	if s.closed.Load() || s.stopping.Load() {
		return ErrConnectionClosed
	}

	select {
	case s.sendMsg <- data:
		return nil
	case <-s.quit:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop discards anything the subscriber sends and returns when the peer
// goes away.
func (s *subscriber) readLoop() error {
	buf := make([]byte, 512)
	for {
		if _, err := s.rawConn.Read(buf); err != nil {
			return err
		}
	}
}

// writeLoop sends queued frames until ctx is canceled, a write fails, or
// stop is called. On stop the frames still queued are written first.
func (s *subscriber) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.quit:
			return s.flush()
		case data := <-s.sendMsg:
			if err := s.write(data); err != nil {
				return err
			}
		}
	}
}

// flush writes every queued frame under a single write deadline.
func (s *subscriber) flush() error {
	deadline := time.Now().Add(s.opts.writeDeadline)
	for {
		select {
		case data := <-s.sendMsg:
			if err := s.writeBefore(data, deadline); err != nil {
				return err
			}
		default:
			return errStopped
		}
	}
}

// write sends data with a deadline. The error is propagated only when
// onError returns Disconnect.
func (s *subscriber) write(data []byte) error {
	return s.writeBefore(data, time.Now().Add(s.opts.writeDeadline))
}

func (s *subscriber) writeBefore(data []byte, deadline time.Time) error {
	_ = s.rawConn.SetWriteDeadline(deadline)

	_, err := s.rawConn.Write(data)

	if err != nil {
		s.logger.Debug("write error", "subscriber", s.id, "addr", s.rawConn.RemoteAddr(), "error", err)
		if s.opts.onError(err) == Disconnect {
			return err
		}
	}

	return nil
}
