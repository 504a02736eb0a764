// Package tcpsub reads length-prefixed frames from a publisher over TCP.
// A Reader owns one connected socket and offers blocking, context-aware and
// asynchronous reads of header-driven frames, fixed-length blocks and decoded
// values. A Publisher is provided as the matching writer side.
package tcpsub

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// aLongTimeAgo is a deadline that makes pending socket reads return immediately.
var aLongTimeAgo = time.Unix(1, 0)

// Reader is the subscriber side of a framed TCP stream.
//
// A Reader is Open from construction until Close, after which every read fails
// with ErrClosed. Reads are not serialized: at most one read may be
// outstanding at a time, otherwise frame boundaries interleave.
type Reader struct {
	rawConn *net.TCPConn
	reader  *bufio.Reader
	logger  Logger

	opts options

	closed atomic.Bool
}

// Dial connects to host:port and returns a Reader for the connection.
// It blocks until the connection is established or fails with ErrConnect.
// An empty host dials the local system.
func Dial(host string, port uint16, opt ...Option) (*Reader, error) {
	return DialContext(context.Background(), host, port, opt...)
}

// DialContext is like Dial but aborts the connect when ctx is done.
func DialContext(ctx context.Context, host string, port uint16, opt ...Option) (*Reader, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	if port == 0 {
		return nil, opError("dial", ErrConnect, errors.New("invalid port 0"))
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	dialer := net.Dialer{Timeout: opts.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, opError("dial", ErrConnect, errors.Wrapf(err, "dial %s", addr))
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, opError("dial", ErrConnect, errors.Errorf("unexpected connection type %T", conn))
	}
	_ = tcpConn.SetNoDelay(true)

	r := newReaderWithOptions(tcpConn, opts)
	r.logger.Debug("reader connected", "addr", r.RemoteAddr(),
		"codec", opts.codec.Name(),
		"read_buffer_size", opts.readBufferSize)
	return r, nil
}

// NewReader wraps an already connected TCP connection.
// The Reader takes ownership of conn and closes it on Close.
func NewReader(conn *net.TCPConn, opt ...Option) *Reader {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)
	return newReaderWithOptions(conn, opts)
}

func newReaderWithOptions(c *net.TCPConn, opts options) *Reader {
	return &Reader{
		rawConn: c,
		reader:  bufio.NewReaderSize(c, opts.readBufferSize),
		logger:  opts.logger,
		opts:    opts,
	}
}

// ReadFrame reads one header-driven frame: a 2-byte little-endian length
// followed by that many payload bytes. It blocks until the whole frame has
// arrived and never returns a partial payload.
func (r *Reader) ReadFrame() ([]byte, error) {
	return r.ReadFrameContext(context.Background())
}

// ReadFrameContext is like ReadFrame but returns ctx.Err() when ctx is done
// first. A read interrupted this way leaves the stream mid-frame; the Reader
// should be closed.
func (r *Reader) ReadFrameContext(ctx context.Context) ([]byte, error) {
	return r.read(ctx, "read frame", readFrame)
}

// ReadExact reads exactly length bytes without a length header. The peer
// must be sending exactly that many bytes next.
func (r *Reader) ReadExact(length uint16) ([]byte, error) {
	return r.ReadExactContext(context.Background(), length)
}

// ReadExactContext is like ReadExact but returns ctx.Err() when ctx is done first.
func (r *Reader) ReadExactContext(ctx context.Context, length uint16) ([]byte, error) {
	return r.read(ctx, "read exact", func(rd io.Reader) ([]byte, error) {
		return readExact(rd, length)
	})
}

// Available returns the number of bytes that can be read without blocking:
// bytes already buffered by the Reader plus bytes queued in the socket's
// receive buffer where the platform reports them. It consumes nothing.
func (r *Reader) Available() int {
	if r.closed.Load() {
		return 0
	}
	n := r.reader.Buffered()
	if pending, err := pendingBytes(r.rawConn); err == nil {
		n += pending
	}
	return n
}

// Close releases the connection. Every later read fails with ErrClosed.
// Safe to call multiple times.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil // already closed
	}
	r.logger.Debug("reader closed", "addr", r.RemoteAddr())
	return r.rawConn.Close()
}

// IsClosed returns true if the Reader has been closed.
func (r *Reader) IsClosed() bool {
	return r.closed.Load()
}

// RemoteAddr returns the publisher's address.
func (r *Reader) RemoteAddr() net.Addr {
	return r.rawConn.RemoteAddr()
}

// LocalAddr returns the local end of the connection.
func (r *Reader) LocalAddr() net.Addr {
	return r.rawConn.LocalAddr()
}

// read runs fn against the buffered stream. When ctx can be canceled, the
// socket read deadline is moved to the past on cancellation so a blocked read
// returns; the deadline is cleared again before read returns.
func (r *Reader) read(ctx context.Context, op string, fn func(io.Reader) ([]byte, error)) ([]byte, error) {
	if r.closed.Load() {
		return nil, opError(op, ErrClosed, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, opError(op, nil, err)
	}

	if ctx.Done() != nil {
		interrupted := make(chan struct{})
		stop := context.AfterFunc(ctx, func() {
			_ = r.rawConn.SetReadDeadline(aLongTimeAgo)
			close(interrupted)
		})
		defer func() {
			if !stop() {
				<-interrupted
				_ = r.rawConn.SetReadDeadline(time.Time{})
			}
		}()
	}

	data, err := fn(r.reader)
	if err != nil {
		closed := r.closed.Load()
		if ctxErr := ctx.Err(); ctxErr != nil && !closed {
			err = ctxErr
		}
		return nil, readError(op, err, closed)
	}
	return data, nil
}
